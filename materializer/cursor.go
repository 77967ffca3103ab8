package materializer

import (
	"www.velocidex.com/golang/vgroup/types"
)

type termGroup struct {
	group int
	stats []int64
}

type cursorTerm struct {
	term   types.Term
	groups []termGroup
}

// A cursor over a snapshot of term rows. Terms with no live groups
// are still visited but yield no groups.
type termCursor struct {
	terms     []cursorTerm
	term_idx  int
	group_idx int
	num_stats int
	closed    bool
}

func (self *termCursor) add(term types.Term, groups []termGroup) {
	self.terms = append(self.terms, cursorTerm{term: term, groups: groups})
}

func (self *termCursor) NextTerm() bool {
	if self.closed {
		return false
	}
	self.term_idx++
	self.group_idx = -1
	return self.term_idx < len(self.terms)
}

func (self *termCursor) Term() types.Term {
	return self.terms[self.term_idx].term
}

func (self *termCursor) NextGroup() bool {
	if self.closed || self.term_idx < 0 || self.term_idx >= len(self.terms) {
		return false
	}
	self.group_idx++
	return self.group_idx < len(self.terms[self.term_idx].groups)
}

func (self *termCursor) Group() int {
	return self.terms[self.term_idx].groups[self.group_idx].group
}

func (self *termCursor) GroupStats(buf []int64) {
	copy(buf, self.terms[self.term_idx].groups[self.group_idx].stats)
}

func (self *termCursor) NumStats() int {
	return self.num_stats
}

func (self *termCursor) Err() error {
	return nil
}

func (self *termCursor) Close() error {
	self.closed = true
	self.terms = nil
	return nil
}
