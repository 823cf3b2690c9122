package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptohist/visioncrawl/internal/archive"
	"github.com/cryptohist/visioncrawl/internal/faults"
	"github.com/cryptohist/visioncrawl/internal/gaps"
	"github.com/cryptohist/visioncrawl/internal/manifest"
	"github.com/cryptohist/visioncrawl/internal/series"
)

// schedDownloader drives whole assets: listed assets have exactly one month
// of data at the end unit, broken assets fail, everything else 404s.
type schedDownloader struct {
	mu        sync.Mutex
	available map[string]bool
	broken    map[string]error
	inFlight  atomic.Int64
	maxSeen   atomic.Int64
}

func (d *schedDownloader) Ensure(_ context.Context, loc archive.Locator) error {
	current := d.inFlight.Add(1)
	defer d.inFlight.Add(-1)
	for {
		seen := d.maxSeen.Load()
		if current <= seen || d.maxSeen.CompareAndSwap(seen, current) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond) // widen the overlap window

	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.broken[loc.Asset]; ok {
		return err
	}
	if d.available[loc.Asset] {
		// Only the newest month exists; the walk's second probe 404s.
		d.available[loc.Asset] = false
		return nil
	}
	return faults.NotFound("downloader.ensure", loc.FileName())
}

type schedExtractor struct{}

func (schedExtractor) ExtractMonth(loc archive.Locator) (series.MonthStats, error) {
	return series.MonthStats{
		First: 1_680_307_200_000,
		Last:  1_680_307_260_000,
		Rows:  2,
		Gaps:  []gaps.Period{{Start: 100, End: 200}},
	}, nil
}

func (schedExtractor) Assemble(loc archive.Locator, _ bool) (string, error) {
	return loc.Pair() + ".csv", nil
}

func newTestScheduler(concurrency int, d Downloader, man *manifest.Manifest, starts *manifest.StartDates) *Scheduler {
	return NewScheduler(SchedulerConfig{
		Quote:       "USDT",
		Granularity: "1m",
		BirthYear:   2017,
		End:         archive.MonthYear{Month: 4, Year: 2023},
		Concurrency: concurrency,
	}, d, schedExtractor{}, man, starts)
}

func TestScheduler_AggregatesOutcomes(t *testing.T) {
	d := &schedDownloader{
		available: map[string]bool{"BTC": true, "ETH": true, "SOL": true},
		broken: map[string]error{
			"BAD": faults.Transient("downloader.ensure", "BADUSDT", errors.New("connection reset")),
		},
	}
	man := manifest.New("1m")
	starts, err := manifest.LoadStartDates(t.TempDir() + "/start_dates.json")
	require.NoError(t, err)

	summary := newTestScheduler(2, d, man, starts).Run(context.Background(),
		[]string{"BTC", "ETH", "SOL", "BAD", "EMPTY"})

	assert.Equal(t, 3, summary.Completed)
	assert.Equal(t, 1, summary.Empty)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "BAD", summary.Failures[0].Asset)
	assert.True(t, faults.IsTransient(summary.Failures[0].Err))

	doc := man.Finalize()
	assert.Len(t, doc.Assets, 3, "failed and empty assets must not reach the manifest")
	assert.NotContains(t, doc.Assets, "BAD")
	assert.NotContains(t, doc.Assets, "EMPTY")
	// Identical per-asset gaps collapse into one canonical period.
	assert.Equal(t, []gaps.Period{{Start: 100, End: 200}}, doc.DownTimes)

	unit, ok := starts.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, archive.MonthYear{Month: 4, Year: 2023}, unit)
}

func TestScheduler_RespectsConcurrencyBound(t *testing.T) {
	assets := []string{"A1", "A2", "A3", "A4", "A5", "A6", "A7", "A8"}
	available := make(map[string]bool, len(assets))
	for _, a := range assets {
		available[a] = true
	}
	d := &schedDownloader{available: available}

	man := manifest.New("1m")
	starts, err := manifest.LoadStartDates(t.TempDir() + "/start_dates.json")
	require.NoError(t, err)

	const limit = 3
	summary := newTestScheduler(limit, d, man, starts).Run(context.Background(), assets)

	assert.Equal(t, len(assets), summary.Completed)
	assert.LessOrEqual(t, d.maxSeen.Load(), int64(limit))
}

func TestScheduler_CancelledContextRecordsFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &schedDownloader{available: map[string]bool{"BTC": true}}
	man := manifest.New("1m")
	starts, err := manifest.LoadStartDates(t.TempDir() + "/start_dates.json")
	require.NoError(t, err)

	summary := newTestScheduler(1, d, man, starts).Run(ctx, []string{"BTC", "ETH"})

	assert.Zero(t, summary.Completed)
	assert.Len(t, summary.Failures, 2)
}
