package grouper

import (
	"github.com/RoaringBitmap/roaring/v2"
	"www.velocidex.com/golang/vgroup/types"
)

// Create a new generation with len(keys)-1 groups following
// previous. Index 0 of both slices is reserved and ignored.
func Create(previous KeySet, parents []int, keys []GroupKey) (KeySet, error) {
	if !previous.IsValid() {
		return KeySet{}, types.Contract("no previous generation")
	}

	if len(keys) == 0 || len(parents) != len(keys) {
		return KeySet{}, types.Contract(
			"parents (%d) and keys (%d) must have the same non zero length",
			len(parents), len(keys))
	}

	gen := &generation{
		previous: previous.id,
		parents:  make([]int, len(parents)),
		keys:     make([]GroupKey, len(keys)),
	}

	for group := 1; group < len(parents); group++ {
		err := previous.checkParent(parents[group], group)
		if err != nil {
			return KeySet{}, err
		}
		gen.parents[group] = parents[group]
		gen.keys[group] = keys[group]
	}

	return previous.lineage.add(gen), nil
}

// Build a new generation containing only the groups flagged in
// present. Surviving groups are renumbered densely in ascending order
// of their raw group. parent and key are called with the raw group.
//
// Returns the new generation and a mapping from raw group to new
// group (0 for dropped groups). The mapping has one element more than
// the largest raw group in present.
func DensifyFrom(previous KeySet, present *roaring.Bitmap,
	parent func(raw int) int, key func(raw int) GroupKey) (KeySet, []int, error) {

	size := 1
	if !present.IsEmpty() {
		size = int(present.Maximum()) + 1
	}
	mapping := make([]int, size)

	count := int(present.GetCardinality())
	if present.Contains(0) {
		count--
	}

	parents := make([]int, 1, count+1)
	keys := make([]GroupKey, 1, count+1)

	it := present.Iterator()
	for it.HasNext() {
		raw := int(it.Next())
		if raw == 0 {
			continue
		}

		parents = append(parents, parent(raw))
		keys = append(keys, key(raw))
		mapping[raw] = len(keys) - 1
	}

	next, err := Create(previous, parents, keys)
	if err != nil {
		return KeySet{}, nil, err
	}
	return next, mapping, nil
}

// Like DensifyFrom but every group in 1..count is present.
func AssumeDense(previous KeySet, count int,
	parent func(group int) int, key func(group int) GroupKey) (KeySet, error) {
	parents := make([]int, count+1)
	keys := make([]GroupKey, count+1)

	for group := 1; group <= count; group++ {
		parents[group] = parent(group)
		keys[group] = key(group)
	}

	return Create(previous, parents, keys)
}
