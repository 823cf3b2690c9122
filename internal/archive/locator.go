// Package archive addresses, downloads and verifies the monthly kline
// archives published by the public data store.
package archive

import (
	"fmt"
	"path/filepath"

	"github.com/cryptohist/visioncrawl/internal/faults"
)

// Local cache tiers below the configured data directory.
const (
	DownloadsTier = "downloads"
	ExtractsTier  = "extracts"
	ResultsTier   = "results"
)

// granularities maps each supported sampling interval label to the fixed
// millisecond delta between consecutive records.
var granularities = map[string]uint64{
	"1s":  1_000,
	"1m":  60_000,
	"3m":  180_000,
	"5m":  300_000,
	"15m": 900_000,
	"30m": 1_800_000,
	"1h":  3_600_000,
	"2h":  7_200_000,
	"4h":  14_400_000,
	"6h":  21_600_000,
	"8h":  28_800_000,
	"12h": 43_200_000,
	"1d":  86_400_000,
}

// TsFactor resolves a granularity label to its millisecond delta. Unknown
// labels are a configuration defect, surfaced before any I/O happens.
func TsFactor(granularity string) (uint64, error) {
	factor, ok := granularities[granularity]
	if !ok {
		return 0, faults.Configuration("archive.granularity", fmt.Errorf("unsupported granularity %q", granularity))
	}
	return factor, nil
}

// Granularities lists the supported granularity labels.
func Granularities() []string {
	labels := make([]string, 0, len(granularities))
	for label := range granularities {
		labels = append(labels, label)
	}
	return labels
}

// Locator identifies one remote monthly archive together with its local cache
// locations. Values are copied freely.
type Locator struct {
	Asset       string
	Quote       string
	Granularity string
	Unit        MonthYear

	tsFactor uint64
}

// NewLocator validates the granularity and builds a locator. Construction
// fails fast on an unknown granularity, before any network or file access.
func NewLocator(asset, quote, granularity string, unit MonthYear) (Locator, error) {
	factor, err := TsFactor(granularity)
	if err != nil {
		return Locator{}, err
	}
	return Locator{
		Asset:       asset,
		Quote:       quote,
		Granularity: granularity,
		Unit:        unit,
		tsFactor:    factor,
	}, nil
}

// TsFactor is the expected millisecond delta between consecutive records.
func (l Locator) TsFactor() uint64 {
	return l.tsFactor
}

// Pair is the traded pair symbol, e.g. "BTCUSDT".
func (l Locator) Pair() string {
	return l.Asset + l.Quote
}

// FileName is the archive base name without extension,
// e.g. "BTCUSDT-1m-2023-04".
func (l Locator) FileName() string {
	return fmt.Sprintf("%s-%s-%d-%s", l.Pair(), l.Granularity, l.Unit.Year, l.Unit.MonthString())
}

// ArchiveURL is the remote location of the zip archive.
func (l Locator) ArchiveURL(baseURL string) string {
	return fmt.Sprintf("%s/%s/%s/%s.zip", baseURL, l.Pair(), l.Granularity, l.FileName())
}

// ChecksumURL is the remote location of the published checksum file.
func (l Locator) ChecksumURL(baseURL string) string {
	return l.ArchiveURL(baseURL) + ".CHECKSUM"
}

// DownloadDir is the local directory holding the cached archive.
func (l Locator) DownloadDir(dataDir string) string {
	return filepath.Join(dataDir, DownloadsTier, l.Granularity, l.Pair())
}

// ArchivePath is the local cache location of the zip archive.
func (l Locator) ArchivePath(dataDir string) string {
	return filepath.Join(l.DownloadDir(dataDir), l.FileName()+".zip")
}

// ChecksumPath is the local cache location of the checksum file.
func (l Locator) ChecksumPath(dataDir string) string {
	return l.ArchivePath(dataDir) + ".CHECKSUM"
}

// ExtractDir is the local directory holding normalized month files for the
// pair.
func (l Locator) ExtractDir(dataDir string) string {
	return filepath.Join(dataDir, ExtractsTier, l.Granularity, l.Pair())
}

// MonthPath is the normalized CSV written for this archive's month.
func (l Locator) MonthPath(dataDir string) string {
	return filepath.Join(l.ExtractDir(dataDir), l.FileName()+".csv")
}

// ResultsDir is the local directory holding per-asset result series and the
// run manifest for the granularity.
func (l Locator) ResultsDir(dataDir string) string {
	return filepath.Join(dataDir, ResultsTier, l.Granularity)
}

// ResultPath is the final assembled series file for the pair.
func (l Locator) ResultPath(dataDir string) string {
	return filepath.Join(l.ResultsDir(dataDir), l.Pair()+".csv")
}
