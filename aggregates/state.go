package aggregates

import (
	"www.velocidex.com/golang/vgroup/types"
)

// Per node streaming state. Family scoped accumulators start over
// whenever the iterated term changes.
type streamState interface {
	reset()
}

type termTracker struct {
	seen bool
	term types.Term
}

// Returns true if term differs from the previous call.
func (self *termTracker) changed(term types.Term) bool {
	if self.seen && self.term.Equal(term) {
		return false
	}
	self.seen = true
	self.term = term
	return true
}

type runningState struct {
	termTracker
	sums map[int]float64
}

func (self *runningState) reset() {
	self.sums = make(map[int]float64)
}

func (self *runningState) add(parent int, value float64) float64 {
	self.sums[parent] += value
	return self.sums[parent]
}

type windowSlot struct {
	group    int
	sum      float64
	consumed bool
}

// Each value is added ahead into the slots of the next size groups.
// A slot is consumed when its own group arrives. Finding an
// unconsumed slot with contributions when it is needed for a later
// group means a group inside the window never arrived.
type windowState struct {
	termTracker
	parent     int
	last_group int
	slots      []windowSlot
}

func newWindowState(size int) *windowState {
	result := &windowState{slots: make([]windowSlot, size)}
	result.reset()
	return result
}

func (self *windowState) reset() {
	self.parent = -1
	self.last_group = 0
	for i := range self.slots {
		self.slots[i] = windowSlot{}
	}
}

func (self *windowState) add(parent, group int, value float64) (float64, error) {
	if parent != self.parent {
		self.reset()
		self.parent = parent
	}

	if group <= self.last_group {
		return 0, types.ErrWindowOverlap
	}
	self.last_group = group

	size := len(self.slots)
	for i := 0; i < size; i++ {
		target := group + i
		slot := &self.slots[target%size]
		if slot.group != target {
			if !slot.consumed && slot.sum != 0 {
				return 0, types.ErrWindowOverlap
			}
			*slot = windowSlot{group: target}
		}
		slot.sum += value
	}

	slot := &self.slots[group%size]
	slot.consumed = true
	return slot.sum, nil
}

type lagEntry struct {
	group  int
	parent int
	value  float64
}

type parentLagState struct {
	termTracker
	delay      int
	last_group int
	ring       []lagEntry
}

func newParentLagState(delay int) *parentLagState {
	result := &parentLagState{delay: delay}
	if delay > 0 {
		result.ring = make([]lagEntry, delay)
	}
	return result
}

func (self *parentLagState) reset() {
	self.last_group = 0
	for i := range self.ring {
		self.ring[i] = lagEntry{}
	}
}

// Returns the value stored delay groups ago if it belongs to the same
// family.
func (self *parentLagState) add(parent, group int, value float64) (float64, error) {
	if group <= self.last_group {
		return 0, types.Contract(
			"parent lag needs ascending groups: %d after %d", group, self.last_group)
	}
	self.last_group = group

	if self.delay == 0 {
		return value, nil
	}

	slot := &self.ring[group%self.delay]
	result := 0.0
	if slot.group == group-self.delay && slot.group > 0 && slot.parent == parent {
		result = slot.value
	}
	*slot = lagEntry{group: group, parent: parent, value: value}
	return result, nil
}

type lagRing struct {
	values []float64
	next   int
	filled int
}

// The lag by arrival is kept separately for every group and never
// reset between terms.
type iterateLagState struct {
	delay   int
	history map[int]*lagRing
}

func (self *iterateLagState) reset() {}

func (self *iterateLagState) add(group int, value float64) float64 {
	if self.delay == 0 {
		return value
	}

	ring, pres := self.history[group]
	if !pres {
		ring = &lagRing{values: make([]float64, self.delay)}
		self.history[group] = ring
	}

	result := 0.0
	if ring.filled == self.delay {
		result = ring.values[ring.next]
	} else {
		ring.filled++
	}
	ring.values[ring.next] = value
	ring.next = (ring.next + 1) % self.delay
	return result
}
