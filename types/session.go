package types

import (
	"context"
	"time"
)

// A RegroupCondition tests a document's term in a field. Equality
// conditions match documents having the term. Inequality conditions
// (int fields only) match documents whose term is <= the condition
// term.
type RegroupCondition struct {
	Field      string
	Term       Term
	Inequality bool
}

// A GroupRemapRule moves all documents currently in TargetGroup. The
// conditions are tested in order and the first match sends the
// document to the corresponding entry in Positive. Documents matching
// no condition go to NegativeGroup.
type GroupRemapRule struct {
	TargetGroup   int
	NegativeGroup int
	Positive      []int
	Conditions    []RegroupCondition
}

// The IndexSession is the collaborator which performs the actual work
// on a remote index. The core never constructs the wire encoding of
// these calls - only their logical parameters.
//
// Documents are partitioned into groups 0..NumGroups(). Regroup style
// calls replace the partition completely and any group not mentioned
// by a rule is moved to group 0.
type IndexSession interface {
	// Push an ordered list of primitive push instructions. The list
	// must leave exactly one new stat on the stack. Returns the
	// number of stats on the stack after the push.
	PushStats(ctx context.Context, pushes []string) (int, error)
	PopStat(ctx context.Context) error
	NumStats() int

	// Returns the sum of the stat over each group. The result has
	// NumGroups()+1 elements with index 0 unused.
	GetGroupStats(ctx context.Context, stat int) ([]int64, error)

	NumGroups() int

	Regroup(ctx context.Context, rules []GroupRemapRule) (int, error)

	// Bucket every group by the value of the pushed stat. Each
	// group is split into ceil((max-min)/interval) buckets plus two
	// gutters (values below min, values at or above max) unless
	// noGutters is set, in which case out of range documents are
	// moved to group 0.
	MetricRegroup(ctx context.Context, stat int, min, max, interval int64,
		noGutters bool) (int, error)

	// Documents whose stat is outside [min, max] are moved to
	// group 0. If negate is set documents inside the range are
	// removed instead.
	MetricFilter(ctx context.Context, stat int, min, max int64, negate bool) (int, error)

	// Split each group into numBuckets pseudo random buckets based
	// on the hash of the salted term of the document in field.
	RandomMultiRegroup(ctx context.Context, field string, isInt bool,
		salt string, numBuckets int) (int, error)

	// Iterate the terms of a field in ascending order. For each
	// term the groups containing it are visited in ascending order
	// with a row of every currently pushed stat.
	TermGroupIterator(ctx context.Context, field string, isInt bool) (TermCursor, error)

	Close() error
}

// A TermCursor walks the (term, group, stats) triples of a single
// field.
type TermCursor interface {
	NextTerm() bool
	Term() Term

	NextGroup() bool
	Group() int

	// Copy the stats of the current (term, group) into buf. buf
	// must have at least NumStats() elements.
	GroupStats(buf []int64)
	NumStats() int

	Err() error
	Close() error
}

// Datasets are remote index sessions covering a time range.
type TimeRange struct {
	Start time.Time
	End   time.Time
}
