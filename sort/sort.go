package sort

import (
	"container/heap"
	"sort"

	"www.velocidex.com/golang/vgroup/types"
)

// An Item is one (term, group) row offered to the sorter. Value is
// the sort key and Row carries the rest of the output columns.
type Item struct {
	Term  types.Term
	Group int
	Value float64
	Row   []float64
}

// TopK keeps the best K items of each group in memory. Items are
// ranked by value (largest first unless Ascending) with ties broken
// by term order.
type TopK struct {
	K         int
	Ascending bool

	groups map[int]*groupSorterCtx
}

func NewTopK(k int, ascending bool) *TopK {
	return &TopK{
		K:         k,
		Ascending: ascending,
		groups:    make(map[int]*groupSorterCtx),
	}
}

func (self *TopK) Add(item Item) {
	if self.K <= 0 {
		return
	}

	ctx, pres := self.groups[item.Group]
	if !pres {
		ctx = &groupSorterCtx{ascending: self.Ascending}
		self.groups[item.Group] = ctx
	}

	if ctx.Len() < self.K {
		heap.Push(ctx, item)
		return
	}

	// The root of the heap is the worst item we keep.
	if ctx.better(item, ctx.Items[0]) {
		ctx.Items[0] = item
		heap.Fix(ctx, 0)
	}
}

// Groups with at least one item, ascending.
func (self *TopK) Groups() []int {
	result := make([]int, 0, len(self.groups))
	for group := range self.groups {
		result = append(result, group)
	}
	sort.Ints(result)
	return result
}

// The kept items of group, best first.
func (self *TopK) Items(group int) []Item {
	ctx, pres := self.groups[group]
	if !pres {
		return nil
	}

	result := append([]Item{}, ctx.Items...)
	sort.Slice(result, func(i, j int) bool {
		return ctx.better(result[i], result[j])
	})
	return result
}

// All kept items ordered by group and then rank.
func (self *TopK) All() []Item {
	var result []Item
	for _, group := range self.Groups() {
		result = append(result, self.Items(group)...)
	}
	return result
}

// The heap of a single group is ordered worst first so the weakest
// item is evicted.
type groupSorterCtx struct {
	Items     []Item
	ascending bool
}

func (self *groupSorterCtx) better(a, b Item) bool {
	if a.Value != b.Value {
		if self.ascending {
			return a.Value < b.Value
		}
		return a.Value > b.Value
	}
	return a.Term.Compare(b.Term) < 0
}

func (self *groupSorterCtx) Len() int {
	return len(self.Items)
}

func (self *groupSorterCtx) Less(i, j int) bool {
	return self.better(self.Items[j], self.Items[i])
}

func (self *groupSorterCtx) Swap(i, j int) {
	self.Items[i], self.Items[j] = self.Items[j], self.Items[i]
}

func (self *groupSorterCtx) Push(x interface{}) {
	self.Items = append(self.Items, x.(Item))
}

func (self *groupSorterCtx) Pop() interface{} {
	n := len(self.Items)
	item := self.Items[n-1]
	self.Items = self.Items[:n-1]
	return item
}
