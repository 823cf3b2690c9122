package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes the document to path atomically: the JSON is written to a
// temporary file, synced, then renamed over any previous manifest.
func Save(doc Document, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}
	defer func() {
		file.Close()
		os.Remove(tmpPath)
	}()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync manifest: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close manifest: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// Load reads a previously persisted document.
func Load(path string) (Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	var doc Document
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return doc, nil
}
