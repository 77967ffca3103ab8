// Implements the lineage of group partitions.
//
// Every regroup of the documents creates a new generation of
// groups. A generation records, for each of its groups, the group in
// the previous generation it was split from and the key used to label
// it in output. Generations are immutable and are stored in an append
// only arena so older generations remain valid for as long as the
// lineage is alive.

package grouper

import (
	"sync"

	"www.velocidex.com/golang/vgroup/types"
)

type generation struct {
	// Index of the previous generation in the arena, -1 for the
	// root.
	previous int

	// Both are indexed by group and have count+1 elements.
	parents []int
	keys    []GroupKey
}

func (self *generation) count() int {
	return len(self.keys) - 1
}

type Lineage struct {
	mu          sync.Mutex
	generations []*generation
}

// Create a new lineage containing only the root generation.
func NewLineage() *Lineage {
	return &Lineage{
		generations: []*generation{{
			previous: -1,
			parents:  []int{0},
			keys:     []GroupKey{nil},
		}},
	}
}

func (self *Lineage) Root() KeySet {
	return KeySet{lineage: self, id: 0}
}

func (self *Lineage) get(id int) *generation {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.generations[id]
}

func (self *Lineage) add(gen *generation) KeySet {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.generations = append(self.generations, gen)
	return KeySet{lineage: self, id: len(self.generations) - 1}
}

// Number of generations in the arena including the root.
func (self *Lineage) Len() int {
	self.mu.Lock()
	defer self.mu.Unlock()

	return len(self.generations)
}

// A KeySet is a handle to one generation of the lineage. It is a
// small value and may be freely copied.
type KeySet struct {
	lineage *Lineage
	id      int
}

func (self KeySet) IsValid() bool {
	return self.lineage != nil
}

func (self KeySet) IsRoot() bool {
	return self.lineage != nil && self.id == 0
}

func (self KeySet) Lineage() *Lineage {
	return self.lineage
}

func (self KeySet) Count() int {
	return self.lineage.get(self.id).count()
}

func (self KeySet) Previous() KeySet {
	gen := self.lineage.get(self.id)
	if gen.previous < 0 {
		return KeySet{}
	}
	return KeySet{lineage: self.lineage, id: gen.previous}
}

// Parent returns the group in the previous generation which group was
// split from. Groups outside the generation have parent 0.
func (self KeySet) Parent(group int) int {
	gen := self.lineage.get(self.id)
	if group <= 0 || group >= len(gen.parents) {
		return 0
	}
	return gen.parents[group]
}

func (self KeySet) Key(group int) GroupKey {
	gen := self.lineage.get(self.id)
	if group <= 0 || group >= len(gen.keys) {
		return nil
	}
	return gen.keys[group]
}

// A group is present if it has a key and all its ancestors are
// present. The root generation has no ancestors so everything is
// present there.
func (self KeySet) IsPresent(group int) bool {
	current := self
	for !current.IsRoot() {
		if current.Key(group) == nil {
			return false
		}
		group = current.Parent(group)
		current = current.Previous()
	}
	return true
}

// Walk up the lineage levels generations. Returns 0 if the walk
// passes through an excluded group or runs out of generations.
func (self KeySet) Ancestor(group int, levels int) int {
	current := self
	for i := 0; i < levels; i++ {
		if group == 0 || !current.IsValid() || current.IsRoot() {
			return 0
		}
		group = current.Parent(group)
		current = current.Previous()
	}
	return group
}

// The keys of group and its ancestors, outermost first. The root and
// initial keys are not included.
func (self KeySet) KeyPath(group int) []GroupKey {
	var result []GroupKey
	current := self
	for group > 0 && current.IsValid() && !current.IsRoot() {
		key := current.Key(group)
		if key != nil {
			if _, ok := key.(InitialKey); !ok {
				result = append(result, key)
			}
		}
		group = current.Parent(group)
		current = current.Previous()
	}

	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// Rendered labels of group and its ancestors.
func (self KeySet) LabelPath(group int) []string {
	path := self.KeyPath(group)
	result := make([]string, 0, len(path))
	for _, key := range path {
		result = append(result, key.Render())
	}
	return result
}

func (self KeySet) checkParent(parent, group int) error {
	if parent < 0 || parent > self.Count() {
		return types.Contract("group %d: parent %d outside [0, %d]",
			group, parent, self.Count())
	}
	return nil
}

// LastSiblings maps each group to the last group of its family.
// Families must be contiguous so the parents of consecutive groups may
// never decrease. Groups without a parent are their own family.
func (self KeySet) LastSiblings() ([]int, error) {
	count := self.Count()
	last_parent := 0
	for group := 1; group <= count; group++ {
		parent := self.Parent(group)
		if parent == 0 {
			continue
		}
		if parent < last_parent {
			return nil, types.Contract("group %d has parent %d after a group with parent %d",
				group, parent, last_parent)
		}
		last_parent = parent
	}

	result := make([]int, count+1)
	for group := count; group >= 1; group-- {
		parent := self.Parent(group)
		if parent > 0 && group < count && self.Parent(group+1) == parent {
			result[group] = result[group+1]
			continue
		}
		result[group] = group
	}
	return result, nil
}
