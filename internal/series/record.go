// Package series extracts monthly kline archives into a normalized
// time-series representation, validating timestamp order and granularity
// alignment along the way.
package series

import (
	"fmt"
	"strconv"
)

// klineColumns is the normalized column count: open_time plus OHLCV. Upstream
// rows carry more trailing columns; those are dropped on extraction.
const klineColumns = 6

// Kline is one normalized candle row.
type Kline struct {
	OpenTime uint64
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// parseKline validates and normalizes one raw CSV row.
func parseKline(row []string) (Kline, error) {
	if len(row) < klineColumns {
		return Kline{}, fmt.Errorf("row has %d columns, want at least %d", len(row), klineColumns)
	}

	openTime, err := strconv.ParseUint(row[0], 10, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("open_time %q: %w", row[0], err)
	}

	var fields [5]float64
	for i := 0; i < 5; i++ {
		fields[i], err = strconv.ParseFloat(row[i+1], 64)
		if err != nil {
			return Kline{}, fmt.Errorf("column %d %q: %w", i+1, row[i+1], err)
		}
	}

	return Kline{
		OpenTime: openTime,
		Open:     fields[0],
		High:     fields[1],
		Low:      fields[2],
		Close:    fields[3],
		Volume:   fields[4],
	}, nil
}
