// Aggregate metrics and filters.
//
// An aggregate expression is a tree of nodes. Leaves read statistics
// pushed into the remote sessions (DocStats), constants or named
// results of earlier commands. Inner nodes combine them
// arithmetically or across the groups of a family (Running, Window,
// SumChildren, ParentLag) or across the terms of an iteration
// (IterateLag).
//
// The set of node kinds is closed: the evaluator dispatches with a
// type switch over the node pointers. Nodes are immutable once built
// and carry no evaluation state. To evaluate a tree it must first be
// compiled against a registration (see Compile) which resolves stat
// indexes and allocates per-execution state.
//
// There are two evaluation modes which agree with each other:
//
//  1. Streaming (Apply): called once per (term, group) pair while
//     merge iterating a field.
//
//  2. Bulk (GroupStats): computes one value per group from the
//     finalized per-group stats.

package aggregates

import (
	"www.velocidex.com/golang/vgroup/protocols"
	"www.velocidex.com/golang/vgroup/pushes"
)

type Metric interface {
	isMetric()
}

type Constant struct {
	Value float64
}

// One value per group of the current generation. Index 0 is unused.
type PerGroupConstant struct {
	Values []float64
}

// Reads a stat pushed into a single session.
type DocStats struct {
	Push pushes.QualifiedPush
}

type Binary struct {
	Op       protocols.ArithOp
	Lhs, Rhs Metric
}

type Unary struct {
	Op    protocols.UnaryOp
	Inner Metric
}

type IfThenElse struct {
	Condition  Filter
	Then, Else Metric
}

// Cumulative sum over the groups of a family.
type Running struct {
	Inner Metric
}

// Trailing sum of Size groups within a family.
type Window struct {
	Size  int
	Inner Metric
}

// Every group of a family receives the sum over the whole family.
type SumChildren struct {
	Inner Metric
}

// The value of the group Delay steps earlier in the same family.
type ParentLag struct {
	Delay int
	Inner Metric
}

// The value seen Delay terms earlier in the same group while
// iterating.
type IterateLag struct {
	Delay int
	Inner Metric
}

// A named result saved by an earlier command.
type GroupStatsLookup struct {
	Name string
}

func (self *Constant) isMetric()         {}
func (self *PerGroupConstant) isMetric() {}
func (self *DocStats) isMetric()         {}
func (self *Binary) isMetric()           {}
func (self *Unary) isMetric()            {}
func (self *IfThenElse) isMetric()       {}
func (self *Running) isMetric()          {}
func (self *Window) isMetric()           {}
func (self *SumChildren) isMetric()      {}
func (self *ParentLag) isMetric()        {}
func (self *IterateLag) isMetric()       {}
func (self *GroupStatsLookup) isMetric() {}

func NewConstant(value float64) Metric {
	return &Constant{Value: value}
}

func NewDocStats(session string, push ...string) Metric {
	return &DocStats{Push: pushes.New(session, push...)}
}

func NewAdd(lhs, rhs Metric) Metric      { return &Binary{Op: protocols.Add, Lhs: lhs, Rhs: rhs} }
func NewSubtract(lhs, rhs Metric) Metric { return &Binary{Op: protocols.Sub, Lhs: lhs, Rhs: rhs} }
func NewMultiply(lhs, rhs Metric) Metric { return &Binary{Op: protocols.Mul, Lhs: lhs, Rhs: rhs} }
func NewDivide(lhs, rhs Metric) Metric   { return &Binary{Op: protocols.Div, Lhs: lhs, Rhs: rhs} }
func NewModulus(lhs, rhs Metric) Metric  { return &Binary{Op: protocols.Mod, Lhs: lhs, Rhs: rhs} }
func NewPower(lhs, rhs Metric) Metric    { return &Binary{Op: protocols.Pow, Lhs: lhs, Rhs: rhs} }

func NewRunning(inner Metric) Metric     { return &Running{Inner: inner} }
func NewSumChildren(inner Metric) Metric { return &SumChildren{Inner: inner} }

func NewWindow(size int, inner Metric) Metric {
	return &Window{Size: size, Inner: inner}
}

func NewParentLag(delay int, inner Metric) Metric {
	return &ParentLag{Delay: delay, Inner: inner}
}

func NewIterateLag(delay int, inner Metric) Metric {
	return &IterateLag{Delay: delay, Inner: inner}
}

func NewLookup(name string) Metric {
	return &GroupStatsLookup{Name: name}
}

// Sum the same document metric over several sessions. This is how a
// document metric is lifted into an aggregate over a scope of
// datasets.
func NewSumOverSessions(sessions []string, push ...string) Metric {
	var result Metric
	for _, session := range sessions {
		leaf := NewDocStats(session, push...)
		if result == nil {
			result = leaf
			continue
		}
		result = NewAdd(result, leaf)
	}

	if result == nil {
		return NewConstant(0)
	}
	return result
}
