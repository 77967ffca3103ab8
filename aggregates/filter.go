package aggregates

import (
	"www.velocidex.com/golang/vgroup/protocols"
	"www.velocidex.com/golang/vgroup/types"
)

type Filter interface {
	isFilter()
}

type And struct {
	Lhs, Rhs Filter
}

type Or struct {
	Lhs, Rhs Filter
}

type Not struct {
	Inner Filter
}

type BoolConstant struct {
	Value bool
}

type MetricCompare struct {
	Op       protocols.CompareOp
	Lhs, Rhs Metric
}

// Only meaningful while iterating terms.
type TermEquals struct {
	Term types.Term
}

// Only meaningful while iterating terms. The pattern must match the
// whole term.
type TermRegex struct {
	Pattern string
}

// True for groups labeled with a default key.
type IsDefaultGroup struct{}

func (self *And) isFilter()            {}
func (self *Or) isFilter()             {}
func (self *Not) isFilter()            {}
func (self *BoolConstant) isFilter()   {}
func (self *MetricCompare) isFilter()  {}
func (self *TermEquals) isFilter()     {}
func (self *TermRegex) isFilter()      {}
func (self *IsDefaultGroup) isFilter() {}

func NewAnd(lhs, rhs Filter) Filter { return &And{Lhs: lhs, Rhs: rhs} }
func NewOr(lhs, rhs Filter) Filter  { return &Or{Lhs: lhs, Rhs: rhs} }
func NewNot(inner Filter) Filter    { return &Not{Inner: inner} }

func NewCompare(op protocols.CompareOp, lhs, rhs Metric) Filter {
	return &MetricCompare{Op: op, Lhs: lhs, Rhs: rhs}
}

func NewTermEquals(term types.Term) Filter {
	return &TermEquals{Term: term}
}

func NewTermRegex(pattern string) Filter {
	return &TermRegex{Pattern: pattern}
}
