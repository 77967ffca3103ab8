package types

import (
	"github.com/pkg/errors"
)

// Error categories. Every error raised by the core wraps exactly one
// of these so callers may classify failures with errors.Is().
var (
	// Programming errors: malformed lineage construction, missing
	// registrations, unknown dataset names and similar.
	ErrContract = errors.New("contract violation")

	// The command would exceed a configured resource ceiling.
	ErrLimitExceeded = errors.New("limit exceeded")

	// Merging named results across groups was not possible under
	// the requested policy.
	ErrMergeConflict = errors.New("merge conflict")

	ErrWindowOverlap = errors.New("cannot use window where it overlaps missing data")

	// Bulk evaluation requested of a node which only makes sense
	// per term.
	ErrPerTermOnly = errors.New("only available while iterating terms")

	// Streaming evaluation of a node that needs all groups of a
	// family at once.
	ErrBulkOnly = errors.New("only available on whole group stats")

	ErrNotFound = errors.New("not found")
)

func Contract(format string, args ...interface{}) error {
	return errors.Wrapf(ErrContract, format, args...)
}
