package series

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cryptohist/visioncrawl/internal/archive"
	"github.com/cryptohist/visioncrawl/internal/faults"
)

// Assemble concatenates the normalized month files for loc's pair in
// chronological order into the final per-asset result file, replacing any
// previous result. Month file names embed zero-padded year-month, so a
// lexical sort yields chronological order. With clearExtracts set the month
// files are removed once merged.
func (e *Extractor) Assemble(loc archive.Locator, clearExtracts bool) (string, error) {
	extractDir := loc.ExtractDir(e.dataDir)

	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", faults.Transient("series.assemble", extractDir, err)
	}

	var months []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".csv") {
			months = append(months, entry.Name())
		}
	}
	sort.Strings(months)

	if err := os.MkdirAll(loc.ResultsDir(e.dataDir), 0o755); err != nil {
		return "", faults.Transient("series.assemble", loc.ResultsDir(e.dataDir), err)
	}

	resultPath := loc.ResultPath(e.dataDir)
	tmpPath := resultPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", faults.Transient("series.assemble", tmpPath, err)
	}
	defer func() {
		out.Close()
		os.Remove(tmpPath)
	}()

	for _, name := range months {
		if err := appendFile(out, filepath.Join(extractDir, name)); err != nil {
			return "", err
		}
	}

	if err := out.Close(); err != nil {
		return "", faults.Transient("series.assemble", tmpPath, err)
	}
	if err := os.Rename(tmpPath, resultPath); err != nil {
		return "", faults.Transient("series.assemble", resultPath, err)
	}

	if clearExtracts {
		for _, name := range months {
			if err := os.Remove(filepath.Join(extractDir, name)); err != nil {
				log.Warn().Err(err).Str("file", name).Msg("could not clear extracted month file")
			}
		}
	}

	log.Debug().Str("pair", loc.Pair()).Int("months", len(months)).Str("result", resultPath).Msg("result series assembled")
	return resultPath, nil
}

func appendFile(dst io.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return faults.Transient("series.assemble", path, err)
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return faults.Transient("series.assemble", path, err)
	}
	return nil
}
