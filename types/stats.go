package types

import (
	"sync/atomic"

	"github.com/Velocidex/ordereddict"
)

// A lightweight struct for accumulating general stats.
type Stats struct {
	// Commands executed including failed ones.
	_Commands uint64

	// Remote regroup style calls.
	_Regroups uint64

	// Distinct stats pushed to remote sessions.
	_Pushes uint64

	// Combined rows emitted by merge iteration.
	_MergedRows uint64

	// New groups created by lineage generations.
	_GroupsCreated uint64
}

func (self *Stats) IncCommands() {
	atomic.AddUint64(&self._Commands, uint64(1))
}

func (self *Stats) IncRegroups() {
	atomic.AddUint64(&self._Regroups, uint64(1))
}

func (self *Stats) IncPushes(i int) {
	atomic.AddUint64(&self._Pushes, uint64(i))
}

func (self *Stats) IncMergedRows(i int) {
	atomic.AddUint64(&self._MergedRows, uint64(i))
}

func (self *Stats) IncGroupsCreated(i int) {
	atomic.AddUint64(&self._GroupsCreated, uint64(i))
}

func (self *Stats) Snapshot() *ordereddict.Dict {
	return ordereddict.NewDict().
		Set("Commands", atomic.LoadUint64(&self._Commands)).
		Set("Regroups", atomic.LoadUint64(&self._Regroups)).
		Set("Pushes", atomic.LoadUint64(&self._Pushes)).
		Set("MergedRows", atomic.LoadUint64(&self._MergedRows)).
		Set("GroupsCreated", atomic.LoadUint64(&self._GroupsCreated))
}
