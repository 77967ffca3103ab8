// Merge iteration combines the sorted (term, group) streams of
// several sessions into one ordered stream.
//
// Each session contributes a subset of the globally indexed stats.
// For every distinct (term, group) the callback receives a single
// combined row holding every session's stats at their global index
// and 0 for sessions which never saw that pair.

package merge

import (
	"cmp"
	"container/heap"

	"github.com/pkg/errors"
	"www.velocidex.com/golang/vgroup/pushes"
	"www.velocidex.com/golang/vgroup/types"
)

// Where a session's local stat lands in the combined row.
type Column struct {
	Local  int
	Global int
}

type Source struct {
	Name    string
	Cursor  types.TermCursor
	Columns []Column
}

// The columns of the stats a registration pushed into session.
func Columns(reg *pushes.Registration, session string) []Column {
	globals := reg.PerSession[session]
	result := make([]Column, 0, len(globals))
	for i, global := range globals {
		result = append(result, Column{
			Local:  reg.LocalIndex(session, i),
			Global: global,
		})
	}
	return result
}

type termKey interface {
	~int64 | ~string
}

type IntCallback func(term int64, group int, stats []int64) error
type StringCallback func(term string, group int, stats []int64) error
type TermCallback func(term types.Term, group int, stats []int64) error

func IterateInt(sources []*Source, num_stats int, fn IntCallback) error {
	return iterate(sources, num_stats, func(term types.Term) int64 {
		return term.Int
	}, fn)
}

func IterateString(sources []*Source, num_stats int, fn StringCallback) error {
	return iterate(sources, num_stats, func(term types.Term) string {
		return term.Str
	}, fn)
}

// Iterate dispatches to the int or string merge and hands the term
// back as a types.Term.
func Iterate(sources []*Source, num_stats int, is_int bool, fn TermCallback) error {
	if is_int {
		return IterateInt(sources, num_stats, func(
			term int64, group int, stats []int64) error {
			return fn(types.IntTerm(term), group, stats)
		})
	}
	return IterateString(sources, num_stats, func(
		term string, group int, stats []int64) error {
		return fn(types.StringTerm(term), group, stats)
	})
}

// A live cursor positioned on a (term, group).
type cursor[K termKey] struct {
	source *Source
	term   K
	group  int
	row    []int64
}

type cursorHeap[K termKey] []*cursor[K]

func (h cursorHeap[K]) Len() int            { return len(h) }
func (h cursorHeap[K]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h cursorHeap[K]) Peek() *cursor[K]    { return h[0] }
func (h *cursorHeap[K]) Push(x interface{}) { *h = append(*h, x.(*cursor[K])) }

func (h *cursorHeap[K]) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

func (h cursorHeap[K]) Less(i, j int) bool {
	return compareKey(h[i].term, h[i].group, h[j].term, h[j].group) < 0
}

func compareKey[K termKey](term_a K, group_a int, term_b K, group_b int) int {
	if c := cmp.Compare(term_a, term_b); c != 0 {
		return c
	}
	return cmp.Compare(group_a, group_b)
}

type merger[K termKey] struct {
	heap    cursorHeap[K]
	term_of func(types.Term) K
	popped  []*cursor[K]
	errs    []error
}

// Move the cursor to its next (term, group) and queue it. Exhausted
// cursors are closed.
func (self *merger[K]) requeue(c *cursor[K], started bool) {
	tc := c.source.Cursor
	last_term, last_group := c.term, c.group

	if !(started && tc.NextGroup()) {
		found := false
		for tc.NextTerm() {
			if tc.NextGroup() {
				found = true
				break
			}
		}
		if !found {
			err := tc.Err()
			if err != nil {
				self.errs = append(self.errs, errors.Wrapf(err, "session %v", c.source.Name))
			}
			err = tc.Close()
			if err != nil {
				self.errs = append(self.errs, err)
			}
			return
		}
	}

	c.term = self.term_of(tc.Term())
	c.group = tc.Group()
	if started && compareKey(c.term, c.group, last_term, last_group) <= 0 {
		self.errs = append(self.errs, types.Contract(
			"session %v is not sorted: (%v, %d) after (%v, %d)",
			c.source.Name, c.term, c.group, last_term, last_group))
		_ = tc.Close()
		return
	}

	heap.Push(&self.heap, c)
}

func (self *merger[K]) close() {
	for _, c := range self.popped {
		_ = c.source.Cursor.Close()
	}
	self.popped = nil

	for self.heap.Len() > 0 {
		c := heap.Pop(&self.heap).(*cursor[K])
		_ = c.source.Cursor.Close()
	}
}

func checkColumns(sources []*Source, num_stats int) error {
	for _, source := range sources {
		for _, column := range source.Columns {
			if column.Global < 0 || column.Global >= num_stats {
				return types.Contract("session %v column %d outside of %d stats",
					source.Name, column.Global, num_stats)
			}
			if column.Local < 0 || column.Local >= source.Cursor.NumStats() {
				return types.Contract("session %v has no local stat %d",
					source.Name, column.Local)
			}
		}
	}
	return nil
}

func (self *merger[K]) err() error {
	if len(self.errs) == 0 {
		return nil
	}
	return self.errs[0]
}

func iterate[K termKey](sources []*Source, num_stats int,
	term_of func(types.Term) K,
	fn func(term K, group int, stats []int64) error) error {

	err := checkColumns(sources, num_stats)
	if err != nil {
		for _, source := range sources {
			_ = source.Cursor.Close()
		}
		return err
	}

	self := &merger[K]{term_of: term_of}
	defer self.close()

	for _, source := range sources {
		self.requeue(&cursor[K]{
			source: source,
			row:    make([]int64, source.Cursor.NumStats()),
		}, false)
	}

	combined := make([]int64, num_stats)
	for self.heap.Len() > 0 {
		if err := self.err(); err != nil {
			return err
		}

		// Every round starts from zero since sessions not having
		// this pair contribute nothing.
		for i := range combined {
			combined[i] = 0
		}

		next := self.heap.Peek()
		term, group := next.term, next.group
		for self.heap.Len() > 0 {
			next := self.heap.Peek()
			if next.term != term || next.group != group {
				break
			}
			heap.Pop(&self.heap)
			self.popped = append(self.popped, next)

			next.source.Cursor.GroupStats(next.row)
			for _, column := range next.source.Columns {
				combined[column.Global] = next.row[column.Local]
			}
		}

		err := fn(term, group, combined)
		if err != nil {
			return err
		}

		for _, c := range self.popped {
			self.requeue(c, true)
		}
		self.popped = self.popped[:0]
	}

	return self.err()
}
