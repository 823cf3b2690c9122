// Package gaps canonicalizes detected coverage gaps ("down-times") into a
// minimal sorted set of non-overlapping intervals.
package gaps

import "sort"

// Period is a contiguous interval of missing coverage, in epoch milliseconds.
// Start <= End always holds for periods produced by this package.
type Period struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Contains reports whether ts falls inside the period, bounds included.
func (p Period) Contains(ts uint64) bool {
	return ts >= p.Start && ts <= p.End
}

// Merge sorts the given periods and fuses every overlapping or touching pair,
// returning the canonical minimal set. Touching intervals are fused because
// gaps are measured in the same millisecond unit as record timestamps, so
// adjacency means no discontinuity exists between them.
//
// Merge is pure: the input slice is not modified. It is idempotent and
// independent of input order. Empty input yields an empty result.
func Merge(periods []Period) []Period {
	if len(periods) == 0 {
		return nil
	}

	sorted := make([]Period, len(periods))
	copy(sorted, periods)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := make([]Period, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if next.Start <= current.End {
			if next.End > current.End {
				current.End = next.End
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)

	return merged
}
