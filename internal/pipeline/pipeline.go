// Package pipeline walks assets backward through their monthly archive
// history and fans the walks out over a bounded pool of workers.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/cryptohist/visioncrawl/internal/archive"
	"github.com/cryptohist/visioncrawl/internal/faults"
	"github.com/cryptohist/visioncrawl/internal/gaps"
	"github.com/cryptohist/visioncrawl/internal/manifest"
	"github.com/cryptohist/visioncrawl/internal/series"
)

// Downloader makes one monthly archive available locally, verified.
type Downloader interface {
	Ensure(ctx context.Context, loc archive.Locator) error
}

// Extractor validates one cached archive and assembles the final series.
type Extractor interface {
	ExtractMonth(loc archive.Locator) (series.MonthStats, error)
	Assemble(loc archive.Locator, clearExtracts bool) (string, error)
}

// Result is the terminal state of one asset walk. Coverage is nil when the
// store had no data for the asset at all.
type Result struct {
	Asset    string
	Coverage *manifest.Coverage
	Gaps     []gaps.Period
	Months   int
}

// Pipeline scans one asset backward month-by-month from a fixed end unit
// until the store reports no earlier data or the platform birth year is
// exhausted. The walk is strictly sequential: boundary-gap detection needs
// the adjacent month's first timestamp.
type Pipeline struct {
	asset         string
	quote         string
	granularity   string
	birthYear     int
	end           archive.MonthYear
	clearExtracts bool

	downloader Downloader
	extractor  Extractor
}

// NewPipeline builds the walk for one asset ending at end (the newest month
// to attempt).
func NewPipeline(asset, quote, granularity string, birthYear int, end archive.MonthYear, clearExtracts bool, downloader Downloader, extractor Extractor) *Pipeline {
	return &Pipeline{
		asset:         asset,
		quote:         quote,
		granularity:   granularity,
		birthYear:     birthYear,
		end:           end,
		clearExtracts: clearExtracts,
		downloader:    downloader,
		extractor:     extractor,
	}
}

// Run executes the walk to completion. A not-found from the store is the
// normal terminal condition; every other failure aborts this asset only.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	result := Result{Asset: p.asset}

	unit := p.end
	var earliest archive.MonthYear
	var laterFirst uint64 // first timestamp of the previously processed (later) month
	var lastLoc archive.Locator

	for {
		if err := ctx.Err(); err != nil {
			return result, faults.Transient("pipeline.run", p.asset, err)
		}

		loc, err := archive.NewLocator(p.asset, p.quote, p.granularity, unit)
		if err != nil {
			return result, err
		}

		err = p.downloader.Ensure(ctx, loc)
		if faults.IsNotFound(err) {
			if result.Months == 0 {
				// No data at all, distinct from exhausting history.
				log.Info().Str("asset", p.asset).Stringer("unit", unit).Msg("no archive data available")
				return result, nil
			}
			log.Info().Str("asset", p.asset).Stringer("unit", unit).Msg("reached start of archive history")
			break
		}
		if err != nil {
			return result, err
		}

		stats, err := p.extractor.ExtractMonth(loc)
		if err != nil {
			return result, err
		}

		result.Gaps = append(result.Gaps, stats.Gaps...)
		if laterFirst != 0 {
			// Per-archive validation only orders rows within one month, so
			// disorder across the boundary has to be caught here.
			if stats.Last > laterFirst {
				return result, faults.Structural("pipeline.run", p.asset,
					fmt.Errorf("month %s ends at %d, after the following month begins at %d", unit, stats.Last, laterFirst))
			}
			if laterFirst-stats.Last > loc.TsFactor() {
				// Discontinuity between this month's tail and the following
				// month's head.
				result.Gaps = append(result.Gaps, gaps.Period{Start: stats.Last, End: laterFirst})
			}
		}
		laterFirst = stats.First
		earliest = unit
		lastLoc = loc
		result.Months++

		if unit.Year <= p.birthYear && unit.Month == 1 {
			log.Info().Str("asset", p.asset).Int("birth_year", p.birthYear).Msg("reached platform birth date")
			break
		}
		unit = unit.Prev()
	}

	if _, err := p.extractor.Assemble(lastLoc, p.clearExtracts); err != nil {
		return result, err
	}

	result.Coverage = &manifest.Coverage{Start: earliest, End: p.end}
	return result, nil
}
