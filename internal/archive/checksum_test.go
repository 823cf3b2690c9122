package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func digestOf(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func TestVerifyChecksum(t *testing.T) {
	body := []byte("monthly archive body")
	digest := digestOf(body)

	tests := []struct {
		name     string
		archive  []byte // nil means no archive file
		checksum string // empty string with noChecksum means no checksum file
		noFile   bool
		want     VerifyResult
	}{
		{
			name:     "match",
			archive:  body,
			checksum: digest + "  BTCUSDT-1m-2023-04.zip\n",
			want:     VerifyMatch,
		},
		{
			name:     "digest_only_token",
			archive:  body,
			checksum: digest,
			want:     VerifyMatch,
		},
		{
			name:     "mismatch",
			archive:  body,
			checksum: digestOf([]byte("different body")) + "  file.zip",
			want:     VerifyMismatch,
		},
		{
			name:     "uppercase_digest_is_mismatch",
			archive:  body,
			checksum: "ABCDEF" + digest[6:],
			want:     VerifyMismatch,
		},
		{
			name:     "missing_archive",
			archive:  nil,
			checksum: digest,
			want:     VerifyUnavailable,
		},
		{
			name:    "missing_checksum_file",
			archive: body,
			noFile:  true,
			want:    VerifyUnavailable,
		},
		{
			name:     "empty_checksum_file",
			archive:  body,
			checksum: "  \n\t",
			want:     VerifyUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()

			archivePath := filepath.Join(dir, "archive.zip")
			if tt.archive != nil {
				archivePath = writeFile(t, dir, "archive.zip", tt.archive)
			}
			checksumPath := filepath.Join(dir, "archive.zip.CHECKSUM")
			if !tt.noFile {
				checksumPath = writeFile(t, dir, "archive.zip.CHECKSUM", []byte(tt.checksum))
			}

			v := VerifyChecksum(archivePath, checksumPath)
			assert.Equal(t, tt.want, v.Result)
		})
	}
}

func TestVerifyChecksum_CarriesDigests(t *testing.T) {
	dir := t.TempDir()
	body := []byte("corrupted body")
	expected := digestOf([]byte("published body"))

	archivePath := writeFile(t, dir, "a.zip", body)
	checksumPath := writeFile(t, dir, "a.zip.CHECKSUM", []byte(expected+"  a.zip"))

	v := VerifyChecksum(archivePath, checksumPath)
	require.Equal(t, VerifyMismatch, v.Result)
	assert.Equal(t, expected, v.Expected)
	assert.Equal(t, digestOf(body), v.Actual)
}
