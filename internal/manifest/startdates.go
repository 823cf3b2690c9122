package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cryptohist/visioncrawl/internal/archive"
)

// StartDates remembers the earliest known archive month per asset across
// runs. A missing file loads as an empty store.
type StartDates struct {
	mu    sync.Mutex
	path  string
	dates map[string]archive.MonthYear
}

// LoadStartDates reads the store at path, or starts empty when the file does
// not exist yet.
func LoadStartDates(path string) (*StartDates, error) {
	s := &StartDates{path: path, dates: make(map[string]archive.MonthYear)}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read start dates: %w", err)
	}
	if err := json.Unmarshal(content, &s.dates); err != nil {
		return nil, fmt.Errorf("failed to decode start dates: %w", err)
	}
	return s, nil
}

// Get returns the recorded earliest month for asset, if any.
func (s *StartDates) Get(asset string) (archive.MonthYear, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unit, ok := s.dates[asset]
	return unit, ok
}

// Set records the earliest ingested month for asset.
func (s *StartDates) Set(asset string, unit archive.MonthYear) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dates[asset] = unit
}

// Save persists the store next to the data it describes.
func (s *StartDates) Save() error {
	s.mu.Lock()
	content, err := json.MarshalIndent(s.dates, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode start dates: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create start dates directory: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write start dates: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace start dates: %w", err)
	}
	return nil
}
