package merge

import (
	"testing"

	"github.com/go-test/deep"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/vgroup/types"
)

type testGroup struct {
	group int
	stats []int64
}

type testTerm struct {
	term   types.Term
	groups []testGroup
}

type sliceCursor struct {
	terms     []testTerm
	term_idx  int
	group_idx int
	num_stats int
	err       error
	closed    bool
}

func newCursor(num_stats int, terms ...testTerm) *sliceCursor {
	return &sliceCursor{terms: terms, term_idx: -1, num_stats: num_stats}
}

func (self *sliceCursor) NextTerm() bool {
	self.term_idx++
	self.group_idx = -1
	if self.term_idx >= len(self.terms) {
		return false
	}
	return true
}

func (self *sliceCursor) Term() types.Term { return self.terms[self.term_idx].term }

func (self *sliceCursor) NextGroup() bool {
	if self.term_idx < 0 || self.term_idx >= len(self.terms) {
		return false
	}
	self.group_idx++
	return self.group_idx < len(self.terms[self.term_idx].groups)
}

func (self *sliceCursor) Group() int {
	return self.terms[self.term_idx].groups[self.group_idx].group
}

func (self *sliceCursor) GroupStats(buf []int64) {
	copy(buf, self.terms[self.term_idx].groups[self.group_idx].stats)
}

func (self *sliceCursor) NumStats() int { return self.num_stats }
func (self *sliceCursor) Err() error    { return self.err }

func (self *sliceCursor) Close() error {
	self.closed = true
	return nil
}

type row struct {
	Term  int64
	Group int
	Stats []int64
}

func intTerm(term int64, groups ...testGroup) testTerm {
	return testTerm{term: types.IntTerm(term), groups: groups}
}

func stringTerm(term string, groups ...testGroup) testTerm {
	return testTerm{term: types.StringTerm(term), groups: groups}
}

func g(group int, stats ...int64) testGroup {
	return testGroup{group: group, stats: stats}
}

// Session a has a stat pushed before ours at local index 0.
func testSources() []*Source {
	return []*Source{
		{
			Name: "a",
			Cursor: newCursor(2,
				intTerm(1, g(1, 99, 5), g(2, 99, 6)),
				intTerm(3, g(1, 99, 7))),
			Columns: []Column{{Local: 1, Global: 0}},
		},
		{
			Name: "b",
			Cursor: newCursor(1,
				intTerm(1, g(2, 10)),
				intTerm(2, g(1, 11))),
			Columns: []Column{{Local: 0, Global: 1}},
		},
	}
}

func collect(t *testing.T, sources []*Source) []row {
	var result []row
	err := IterateInt(sources, 2, func(term int64, group int, stats []int64) error {
		result = append(result, row{
			Term:  term,
			Group: group,
			Stats: append([]int64{}, stats...),
		})
		return nil
	})
	require.NoError(t, err)
	return result
}

func TestIterateInt(t *testing.T) {
	assert.Equal(t, []row{
		{1, 1, []int64{5, 0}},
		{1, 2, []int64{6, 10}},
		// The buffer is cleared between rows.
		{2, 1, []int64{0, 11}},
		{3, 1, []int64{7, 0}},
	}, collect(t, testSources()))
}

func TestIterateIsIdempotent(t *testing.T) {
	first := collect(t, testSources())
	second := collect(t, testSources())
	assert.Nil(t, deep.Equal(first, second))
}

func TestIterateString(t *testing.T) {
	sources := []*Source{
		{
			Name: "a",
			Cursor: newCursor(1,
				stringTerm("b", g(1, 1)),
				stringTerm("c", g(1, 2))),
			Columns: []Column{{Local: 0, Global: 0}},
		},
		{
			Name:    "b",
			Cursor:  newCursor(1, stringTerm("ba", g(3, 4), g(4, 5))),
			Columns: []Column{{Local: 0, Global: 0}},
		},
	}

	var terms []string
	var groups []int
	err := IterateString(sources, 1, func(term string, group int, stats []int64) error {
		terms = append(terms, term)
		groups = append(groups, group)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "ba", "ba", "c"}, terms)
	assert.Equal(t, []int{1, 3, 4, 1}, groups)
}

func TestIterateSkipsEmptyTerms(t *testing.T) {
	sources := []*Source{{
		Name:    "a",
		Cursor:  newCursor(1, intTerm(1), intTerm(2, g(1, 3))),
		Columns: []Column{{Local: 0, Global: 0}},
	}}

	var terms []types.Term
	err := Iterate(sources, 1, true, func(term types.Term, group int, stats []int64) error {
		terms = append(terms, term)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []types.Term{types.IntTerm(2)}, terms)
}

func TestIterateErrors(t *testing.T) {
	// Unsorted groups are rejected.
	sources := []*Source{{
		Name:    "a",
		Cursor:  newCursor(1, intTerm(1, g(2, 1), g(1, 1))),
		Columns: []Column{{Local: 0, Global: 0}},
	}}
	err := IterateInt(sources, 1, func(int64, int, []int64) error { return nil })
	assert.True(t, errors.Is(err, types.ErrContract))

	// Cursor failures surface after the cursor is exhausted.
	failing := newCursor(1, intTerm(1, g(1, 1)))
	failing.err = errors.New("connection reset")
	sources = []*Source{{Name: "a", Cursor: failing, Columns: []Column{{0, 0}}}}
	err = IterateInt(sources, 1, func(int64, int, []int64) error { return nil })
	assert.ErrorContains(t, err, "connection reset")
	assert.True(t, failing.closed)

	// Callback errors stop the iteration and close the cursors.
	sources = testSources()
	calls := 0
	err = IterateInt(sources, 2, func(int64, int, []int64) error {
		calls++
		return errors.New("stop")
	})
	assert.EqualError(t, err, "stop")
	assert.Equal(t, 1, calls)
	for _, source := range sources {
		assert.True(t, source.Cursor.(*sliceCursor).closed)
	}

	// Columns must fit the combined row. Every cursor is closed even
	// those after the bad one.
	sources = testSources()
	err = IterateInt(sources, 1, func(int64, int, []int64) error { return nil })
	assert.True(t, errors.Is(err, types.ErrContract))
	for _, source := range sources {
		assert.True(t, source.Cursor.(*sliceCursor).closed)
	}

	sources = testSources()
	sources[0].Columns = []Column{{Local: 2, Global: 0}}
	err = IterateString(sources, 2, func(string, int, []int64) error { return nil })
	assert.True(t, errors.Is(err, types.ErrContract))
	for _, source := range sources {
		assert.True(t, source.Cursor.(*sliceCursor).closed)
	}
}
