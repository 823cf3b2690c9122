package faults

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the caller must react to it.
type Kind int

const (
	// KindNotFound means the upstream store has no object for the requested
	// month. It is the normal terminal condition of a backward walk, not a
	// failure.
	KindNotFound Kind = iota

	// KindTransient covers transport-level failures and unexpected HTTP
	// statuses. Retried once through the overwrite escalation, then fatal
	// for the current asset.
	KindTransient

	// KindIntegrity is a checksum mismatch that survived the forced refetch.
	KindIntegrity

	// KindStructural is a malformed archive: wrong entry count, unparseable
	// row, or out-of-order timestamps.
	KindStructural

	// KindConfiguration is a programming or configuration defect. The only
	// kind that justifies aborting the whole run.
	KindConfiguration
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindIntegrity:
		return "integrity"
	case KindStructural:
		return "structural"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error carries a failure kind plus the minimal context needed upstream.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "downloader.ensure"
	Path string // file or URL involved, when there is one

	// Expected and Actual hold the published and recomputed digests for
	// integrity failures.
	Expected string
	Actual   string

	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Kind == KindIntegrity && e.Expected != "" {
		msg += fmt.Sprintf(" (expected %s, got %s)", e.Expected, e.Actual)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports that the upstream store returned no object.
func NotFound(op, path string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Path: path}
}

// Transient wraps a retryable network-level failure.
func Transient(op, path string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Path: path, Err: err}
}

// Integrity reports a checksum mismatch for the archive at path.
func Integrity(op, path, expected, actual string) *Error {
	return &Error{Kind: KindIntegrity, Op: op, Path: path, Expected: expected, Actual: actual}
}

// Structural wraps a malformed-archive failure.
func Structural(op, path string, err error) *Error {
	return &Error{Kind: KindStructural, Op: op, Path: path, Err: err}
}

// Configuration reports a config or programming defect.
func Configuration(op string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

func is(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}

// IsNotFound reports whether err is a KindNotFound failure.
func IsNotFound(err error) bool { return is(err, KindNotFound) }

// IsTransient reports whether err is a KindTransient failure.
func IsTransient(err error) bool { return is(err, KindTransient) }

// IsIntegrity reports whether err is a KindIntegrity failure.
func IsIntegrity(err error) bool { return is(err, KindIntegrity) }

// IsStructural reports whether err is a KindStructural failure.
func IsStructural(err error) bool { return is(err, KindStructural) }

// IsConfiguration reports whether err is a KindConfiguration failure.
func IsConfiguration(err error) bool { return is(err, KindConfiguration) }
