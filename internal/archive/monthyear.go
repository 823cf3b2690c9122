package archive

import (
	"fmt"
	"time"

	"github.com/cryptohist/visioncrawl/internal/faults"
)

// MonthYear addresses one monthly archive slot. Values are immutable once
// constructed and ordered by (year, month).
type MonthYear struct {
	Month int
	Year  int
}

// NewMonthYear validates the month range before constructing the value.
func NewMonthYear(month, year int) (MonthYear, error) {
	if month < 1 || month > 12 {
		return MonthYear{}, faults.Configuration("archive.monthyear", fmt.Errorf("month %d out of range", month))
	}
	return MonthYear{Month: month, Year: year}, nil
}

// MonthYearOf truncates t to its archive slot.
func MonthYearOf(t time.Time) MonthYear {
	return MonthYear{Month: int(t.Month()), Year: t.Year()}
}

// EndUnit derives the newest month worth attempting for a run started at now.
// The public store publishes monthly archives with a delay, so the walk starts
// two months back.
func EndUnit(now time.Time) MonthYear {
	return MonthYearOf(now).Prev().Prev()
}

// MonthString renders the month zero-padded, as used in archive file names.
func (m MonthYear) MonthString() string {
	return fmt.Sprintf("%02d", m.Month)
}

// String renders the slot as "YYYY-MM".
func (m MonthYear) String() string {
	return fmt.Sprintf("%d-%s", m.Year, m.MonthString())
}

// Compare returns -1, 0 or 1 ordering by (year, month).
func (m MonthYear) Compare(other MonthYear) int {
	switch {
	case m.Year != other.Year:
		if m.Year < other.Year {
			return -1
		}
		return 1
	case m.Month != other.Month:
		if m.Month < other.Month {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Before reports whether m is strictly earlier than other.
func (m MonthYear) Before(other MonthYear) bool {
	return m.Compare(other) < 0
}

// Prev returns the preceding month, wrapping year boundaries.
func (m MonthYear) Prev() MonthYear {
	if m.Month == 1 {
		return MonthYear{Month: 12, Year: m.Year - 1}
	}
	return MonthYear{Month: m.Month - 1, Year: m.Year}
}

// Next returns the following month, wrapping year boundaries.
func (m MonthYear) Next() MonthYear {
	if m.Month == 12 {
		return MonthYear{Month: 1, Year: m.Year + 1}
	}
	return MonthYear{Month: m.Month + 1, Year: m.Year}
}

// MarshalJSON renders the slot as its "YYYY-MM" string form.
func (m MonthYear) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", m.String())), nil
}

// UnmarshalJSON parses the "YYYY-MM" string form.
func (m *MonthYear) UnmarshalJSON(data []byte) error {
	var year, month int
	if _, err := fmt.Sscanf(string(data), "\"%d-%d\"", &year, &month); err != nil {
		return fmt.Errorf("invalid month-year %s: %w", data, err)
	}
	parsed, err := NewMonthYear(month, year)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
