package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
)

// VerifyResult is the outcome of comparing a cached archive against its
// published checksum.
type VerifyResult int

const (
	// VerifyMatch means the recomputed digest equals the published one.
	VerifyMatch VerifyResult = iota
	// VerifyMismatch means both files were readable but the digests differ.
	VerifyMismatch
	// VerifyUnavailable means either file is missing, unreadable, or the
	// checksum file carries no digest token.
	VerifyUnavailable
)

func (r VerifyResult) String() string {
	switch r {
	case VerifyMatch:
		return "match"
	case VerifyMismatch:
		return "mismatch"
	default:
		return "unavailable"
	}
}

// Verification carries the comparison outcome plus both digests, so a
// surviving mismatch can be reported with its expected and actual values.
type Verification struct {
	Result   VerifyResult
	Expected string
	Actual   string
}

// VerifyChecksum streams the archive through SHA-256 and compares the
// lower-hex digest case-sensitively against the first whitespace-delimited
// token of the checksum file.
func VerifyChecksum(archivePath, checksumPath string) Verification {
	content, err := os.ReadFile(checksumPath)
	if err != nil {
		return Verification{Result: VerifyUnavailable}
	}
	tokens := strings.Fields(string(content))
	if len(tokens) == 0 {
		return Verification{Result: VerifyUnavailable}
	}
	expected := tokens[0]

	actual, err := fileSHA256(archivePath)
	if err != nil {
		return Verification{Result: VerifyUnavailable, Expected: expected}
	}

	v := Verification{Expected: expected, Actual: actual}
	if actual == expected {
		v.Result = VerifyMatch
	} else {
		v.Result = VerifyMismatch
	}
	return v
}

// fileSHA256 digests the file in fixed-size chunks, never buffering the whole
// archive in memory.
func fileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(hasher, file, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
