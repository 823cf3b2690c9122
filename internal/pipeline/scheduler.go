package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cryptohist/visioncrawl/internal/archive"
	"github.com/cryptohist/visioncrawl/internal/manifest"
)

// SchedulerConfig describes one crawl run.
type SchedulerConfig struct {
	Quote         string
	Granularity   string
	BirthYear     int
	End           archive.MonthYear
	Concurrency   int
	ClearExtracts bool
}

// Failure records one asset whose pipeline aborted.
type Failure struct {
	Asset string
	Err   error
}

// Summary reports the outcome of a run.
type Summary struct {
	Completed int // assets with recorded coverage
	Empty     int // assets with no archive data at all
	Failures  []Failure
	Elapsed   time.Duration
}

// Scheduler runs asset pipelines under a bounded concurrency limit and
// aggregates their outcomes into the manifest. One asset's failure never
// blocks or aborts the others.
type Scheduler struct {
	cfg        SchedulerConfig
	downloader Downloader
	extractor  Extractor
	man        *manifest.Manifest
	starts     *manifest.StartDates
}

// NewScheduler wires a scheduler over shared downloader and extractor
// instances. The manifest and start-date store are the only shared-mutable
// state; both guard their own mutation.
func NewScheduler(cfg SchedulerConfig, downloader Downloader, extractor Extractor, man *manifest.Manifest, starts *manifest.StartDates) *Scheduler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Scheduler{
		cfg:        cfg,
		downloader: downloader,
		extractor:  extractor,
		man:        man,
		starts:     starts,
	}
}

// Run processes every asset to completion and returns the run summary.
// Completion order across assets is nondeterministic.
func (s *Scheduler) Run(ctx context.Context, assets []string) Summary {
	start := time.Now()

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

	// Guards the failure and counter fields only; disjoint from the
	// manifest's lock.
	var mu sync.Mutex
	var summary Summary

	for _, asset := range assets {
		wg.Add(1)
		go func(asset string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				mu.Lock()
				summary.Failures = append(summary.Failures, Failure{Asset: asset, Err: ctx.Err()})
				mu.Unlock()
				return
			}

			p := NewPipeline(asset, s.cfg.Quote, s.cfg.Granularity, s.cfg.BirthYear, s.cfg.End, s.cfg.ClearExtracts, s.downloader, s.extractor)
			result, err := p.Run(ctx)
			if err != nil {
				log.Error().Err(err).Str("asset", asset).Msg("asset pipeline failed")
				mu.Lock()
				summary.Failures = append(summary.Failures, Failure{Asset: asset, Err: err})
				mu.Unlock()
				return
			}

			if result.Coverage == nil {
				mu.Lock()
				summary.Empty++
				mu.Unlock()
				return
			}

			s.man.AddCoverage(asset, *result.Coverage)
			s.man.AddGaps(result.Gaps)
			s.starts.Set(asset, result.Coverage.Start)

			log.Info().
				Str("asset", asset).
				Stringer("start", result.Coverage.Start).
				Stringer("end", result.Coverage.End).
				Int("months", result.Months).
				Int("gaps", len(result.Gaps)).
				Msg("asset pipeline completed")
			mu.Lock()
			summary.Completed++
			mu.Unlock()
		}(asset)
	}

	wg.Wait()
	summary.Elapsed = time.Since(start)
	return summary
}
