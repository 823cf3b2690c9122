package archive

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/cryptohist/visioncrawl/internal/faults"
)

// Getter fetches one remote object and streams its body to dst. The error is
// nil on success, a faults.KindNotFound error on HTTP 404, and a
// faults.KindTransient error for everything else.
type Getter interface {
	Fetch(ctx context.Context, url string, dst io.Writer) error
}

// Downloader makes sure a monthly archive sits verified in the download tier.
// Integrity failures escalate exactly once: the local copies are deleted and
// refetched, then a surviving mismatch is fatal for the archive.
type Downloader struct {
	client  Getter
	baseURL string
	dataDir string
}

// NewDownloader wires a downloader against the remote store rooted at baseURL
// and the local cache rooted at dataDir.
func NewDownloader(client Getter, baseURL, dataDir string) *Downloader {
	return &Downloader{client: client, baseURL: baseURL, dataDir: dataDir}
}

// Ensure returns nil once the archive for loc is cached and verified. It
// performs no network calls when a previously cached archive already passes
// verification.
func (d *Downloader) Ensure(ctx context.Context, loc Locator) error {
	archivePath := loc.ArchivePath(d.dataDir)
	checksumPath := loc.ChecksumPath(d.dataDir)

	if v := VerifyChecksum(archivePath, checksumPath); v.Result == VerifyMatch {
		log.Debug().Str("archive", loc.FileName()).Msg("cached archive verified, skipping download")
		return nil
	}

	if err := os.MkdirAll(loc.DownloadDir(d.dataDir), 0o755); err != nil {
		return faults.Transient("downloader.ensure", archivePath, err)
	}

	// First pass keeps any pre-existing local file. Most integrity failures
	// are stale or partial files from an interrupted run, so the forced
	// refetch below fixes them.
	if err := d.fetchPair(ctx, loc, false); err != nil {
		return err
	}
	if v := VerifyChecksum(archivePath, checksumPath); v.Result == VerifyMatch {
		return nil
	}

	log.Warn().Str("archive", loc.FileName()).Msg("archive failed verification, forcing refetch")
	if err := d.fetchPair(ctx, loc, true); err != nil {
		return err
	}
	v := VerifyChecksum(archivePath, checksumPath)
	if v.Result != VerifyMatch {
		return faults.Integrity("downloader.ensure", archivePath, v.Expected, v.Actual)
	}
	return nil
}

// fetchPair downloads the archive and its checksum file. With overwrite set
// the local copies are deleted first; otherwise existing files are kept as-is
// and only missing ones are fetched.
func (d *Downloader) fetchPair(ctx context.Context, loc Locator, overwrite bool) error {
	pairs := []struct {
		url  string
		path string
	}{
		{loc.ArchiveURL(d.baseURL), loc.ArchivePath(d.dataDir)},
		{loc.ChecksumURL(d.baseURL), loc.ChecksumPath(d.dataDir)},
	}

	for _, p := range pairs {
		if overwrite {
			if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
				return faults.Transient("downloader.fetch", p.path, err)
			}
		} else if _, err := os.Stat(p.path); err == nil {
			continue
		}
		if err := d.fetchFile(ctx, p.url, p.path); err != nil {
			return err
		}
	}
	return nil
}

func (d *Downloader) fetchFile(ctx context.Context, url, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return faults.Transient("downloader.fetch", path, err)
	}

	fetchErr := d.client.Fetch(ctx, url, file)
	closeErr := file.Close()

	if fetchErr != nil {
		// Never leave a partial body behind to poison a later run.
		os.Remove(path)
		return fetchErr
	}
	if closeErr != nil {
		os.Remove(path)
		return faults.Transient("downloader.fetch", path, closeErr)
	}
	return nil
}
