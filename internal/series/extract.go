package series

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/cryptohist/visioncrawl/internal/archive"
	"github.com/cryptohist/visioncrawl/internal/faults"
	"github.com/cryptohist/visioncrawl/internal/gaps"
)

// MonthStats summarizes one successfully extracted archive.
type MonthStats struct {
	First uint64        // open_time of the first record
	Last  uint64        // open_time of the last record
	Rows  int           // records written to the month file
	Gaps  []gaps.Period // intra-archive coverage gaps
}

// Extractor turns downloaded archives into normalized month files under the
// extract tier. An archive is accepted atomically: on any validation failure
// no month file is left behind.
type Extractor struct {
	dataDir string
}

// NewExtractor roots an extractor at the local data directory.
func NewExtractor(dataDir string) *Extractor {
	return &Extractor{dataDir: dataDir}
}

// ExtractMonth opens the cached archive for loc, validates the contained
// series and writes its normalized form to the month file. The returned stats
// carry the boundary timestamps and any gaps detected inside the archive.
//
// A gap is recorded whenever the delta to the previous record exceeds the
// granularity's ts-factor, or the record's timestamp is not an exact multiple
// of it. Decreasing timestamps are fatal for the whole archive.
func (e *Extractor) ExtractMonth(loc archive.Locator) (MonthStats, error) {
	archivePath := loc.ArchivePath(e.dataDir)

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return MonthStats{}, faults.Structural("series.extract", archivePath, err)
	}
	defer reader.Close()

	if len(reader.File) != 1 {
		return MonthStats{}, faults.Structural("series.extract", archivePath,
			fmt.Errorf("archive holds %d entries, want exactly 1", len(reader.File)))
	}

	entry, err := reader.File[0].Open()
	if err != nil {
		return MonthStats{}, faults.Structural("series.extract", archivePath, err)
	}
	defer entry.Close()

	if err := os.MkdirAll(loc.ExtractDir(e.dataDir), 0o755); err != nil {
		return MonthStats{}, faults.Transient("series.extract", loc.ExtractDir(e.dataDir), err)
	}

	monthPath := loc.MonthPath(e.dataDir)
	tmpPath := monthPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return MonthStats{}, faults.Transient("series.extract", tmpPath, err)
	}
	defer func() {
		out.Close()
		os.Remove(tmpPath)
	}()

	stats, err := e.scan(entry, out, loc)
	if err != nil {
		return MonthStats{}, err
	}

	if err := out.Close(); err != nil {
		return MonthStats{}, faults.Transient("series.extract", tmpPath, err)
	}
	if err := os.Rename(tmpPath, monthPath); err != nil {
		return MonthStats{}, faults.Transient("series.extract", monthPath, err)
	}

	log.Debug().
		Str("archive", loc.FileName()).
		Int("rows", stats.Rows).
		Int("gaps", len(stats.Gaps)).
		Msg("month extracted")
	return stats, nil
}

// scan walks the raw rows in file order, validating each one and writing its
// normalized form to out.
func (e *Extractor) scan(entry io.Reader, out io.Writer, loc archive.Locator) (MonthStats, error) {
	archivePath := loc.ArchivePath(e.dataDir)
	tsFactor := loc.TsFactor()

	csvReader := csv.NewReader(entry)
	csvReader.FieldsPerRecord = -1
	csvWriter := csv.NewWriter(out)

	var stats MonthStats
	var lastTS uint64
	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return MonthStats{}, faults.Structural("series.extract", archivePath, err)
		}

		record, err := parseKline(row)
		if err != nil {
			return MonthStats{}, faults.Structural("series.extract", archivePath, err)
		}

		if stats.Rows == 0 {
			// Seed from the first record: no gap is reported before it.
			stats.First = record.OpenTime
			lastTS = record.OpenTime
		} else {
			switch {
			case record.OpenTime < lastTS:
				return MonthStats{}, faults.Structural("series.extract", archivePath,
					fmt.Errorf("timestamps out of order: %d after %d", record.OpenTime, lastTS))
			case record.OpenTime-lastTS > tsFactor || record.OpenTime%tsFactor != 0:
				stats.Gaps = append(stats.Gaps, gaps.Period{Start: lastTS, End: record.OpenTime})
			}
			lastTS = record.OpenTime
		}

		if err := csvWriter.Write(row[:klineColumns]); err != nil {
			return MonthStats{}, faults.Transient("series.extract", archivePath, err)
		}
		stats.Rows++
	}

	if stats.Rows == 0 {
		return MonthStats{}, faults.Structural("series.extract", archivePath,
			fmt.Errorf("archive entry holds no records"))
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return MonthStats{}, faults.Transient("series.extract", archivePath, err)
	}

	stats.Last = lastTS
	return stats, nil
}
