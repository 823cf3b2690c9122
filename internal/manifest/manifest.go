// Package manifest aggregates per-asset coverage and merged down-times for
// one crawl run and persists them as JSON.
package manifest

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cryptohist/visioncrawl/internal/archive"
	"github.com/cryptohist/visioncrawl/internal/gaps"
)

// Coverage is the inclusive month range successfully ingested for one asset.
type Coverage struct {
	Start archive.MonthYear `json:"start"` // earliest month ingested
	End   archive.MonthYear `json:"end"`   // latest month attempted
}

// Document is the serialized form of a finished run.
type Document struct {
	RunID       string              `json:"run_id"`
	Granularity string              `json:"granularity"`
	GeneratedAt time.Time           `json:"generated_at"`
	Assets      map[string]Coverage `json:"assets"`
	DownTimes   []gaps.Period       `json:"down_times"`
}

// Manifest is the single shared-mutable aggregate of a run. All mutation
// methods are safe for concurrent use by pipeline workers; critical sections
// are short and perform no I/O.
type Manifest struct {
	mu          sync.Mutex
	runID       string
	granularity string
	assets      map[string]Coverage
	pending     []gaps.Period
}

// New creates an empty manifest for one run at the given granularity.
func New(granularity string) *Manifest {
	return &Manifest{
		runID:       uuid.NewString(),
		granularity: granularity,
		assets:      make(map[string]Coverage),
	}
}

// RunID identifies this run in logs and in the persisted document.
func (m *Manifest) RunID() string {
	return m.runID
}

// AddCoverage records the coverage period of a completed asset pipeline.
func (m *Manifest) AddCoverage(asset string, cov Coverage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[asset] = cov
}

// AddGaps appends detected down-times to the pending list. Canonicalization
// happens once at Finalize, after all writers are done.
func (m *Manifest) AddGaps(periods []gaps.Period) {
	if len(periods) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, periods...)
}

// AssetCount reports how many assets have recorded coverage.
func (m *Manifest) AssetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assets)
}

// Finalize merges the accumulated gaps into their canonical form and returns
// the document to persist. Call only after all pipeline workers have joined.
func (m *Manifest) Finalize() Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	assets := make(map[string]Coverage, len(m.assets))
	for asset, cov := range m.assets {
		assets[asset] = cov
	}

	// A gapless run still serializes down_times as an array, not null.
	merged := gaps.Merge(m.pending)
	if merged == nil {
		merged = []gaps.Period{}
	}

	return Document{
		RunID:       m.runID,
		Granularity: m.granularity,
		GeneratedAt: time.Now().UTC(),
		Assets:      assets,
		DownTimes:   merged,
	}
}
