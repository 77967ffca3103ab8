package session

import (
	"sort"

	"github.com/pkg/errors"
	"www.velocidex.com/golang/vgroup/types"
)

// A named per group result and the depth it was computed at.
type SavedGroupStat struct {
	Name   string
	Values []float64
	Depth  int
}

// How values of named results combine when several groups collapse
// into one.
type MergePolicy int

const (
	SumAll MergePolicy = iota

	// All collapsing groups must carry the same value.
	TakeTheOneUniqueValue

	// No two groups may collapse into one.
	FailIfPresent
)

var policy_names = map[MergePolicy]string{
	SumAll:                "SumAll",
	TakeTheOneUniqueValue: "TakeTheOneUniqueValue",
	FailIfPresent:         "FailIfPresent",
}

func (self MergePolicy) String() string {
	return policy_names[self]
}

func ParseMergePolicy(name string) (MergePolicy, error) {
	if name == "" {
		return SumAll, nil
	}
	for policy, policy_name := range policy_names {
		if policy_name == name {
			return policy, nil
		}
	}
	return 0, types.Contract("unknown merge policy %q", name)
}

// Save a named result computed against the current generation.
func (self *Session) SaveLookup(name string, values []float64) error {
	state := self.Snapshot()
	if len(values) != state.NumGroups+1 {
		return types.Contract("lookup %v has %d values for %d groups",
			name, len(values), state.NumGroups)
	}

	self.mu.Lock()
	defer self.mu.Unlock()

	self.lookups[name] = &SavedGroupStat{
		Name:   name,
		Values: append([]float64{}, values...),
		Depth:  state.Depth,
	}
	return nil
}

// Lookup returns the named result realigned to the current groups:
// each group takes the value of its ancestor at the depth the result
// was computed.
func (self *Session) Lookup(name string) ([]float64, error) {
	state := self.Snapshot()

	self.mu.Lock()
	saved, pres := self.lookups[name]
	self.mu.Unlock()

	if !pres {
		return nil, errors.Wrapf(types.ErrNotFound, "named result %v", name)
	}

	levels := state.Depth - saved.Depth
	if levels < 0 {
		return nil, types.Contract("named result %v was computed at depth %d, now at %d",
			name, saved.Depth, state.Depth)
	}

	result := make([]float64, state.NumGroups+1)
	for group := 1; group <= state.NumGroups; group++ {
		ancestor := group
		if levels > 0 {
			ancestor = state.Keys.Ancestor(group, levels)
		}
		if ancestor > 0 && ancestor < len(saved.Values) {
			result[group] = saved.Values[ancestor]
		}
	}
	return result, nil
}

func (self *Session) LookupNames() []string {
	self.mu.Lock()
	defer self.mu.Unlock()

	result := make([]string, 0, len(self.lookups))
	for name := range self.lookups {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Compute the lookups saved at from_depth mapped onto count groups at
// to_depth. Lookups at other depths are not affected.
func (self *Session) mergeLookups(from_depth, to_depth, count int,
	policy MergePolicy, target func(group int) int) (map[string]*SavedGroupStat, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	result := make(map[string]*SavedGroupStat)
	for name, saved := range self.lookups {
		if saved.Depth != from_depth {
			continue
		}

		values := make([]float64, count+1)
		seen := make([]bool, count+1)
		for group := 1; group < len(saved.Values); group++ {
			to := target(group)
			if to <= 0 || to > count {
				continue
			}

			err := mergeValue(policy, values, seen, to, saved.Values[group])
			if err != nil {
				return nil, errors.Wrapf(err, "named result %v group %d", name, group)
			}
		}

		result[name] = &SavedGroupStat{
			Name:   name,
			Values: values,
			Depth:  to_depth,
		}
	}
	return result, nil
}

func mergeValue(policy MergePolicy, values []float64, seen []bool, to int, value float64) error {
	if !seen[to] {
		seen[to] = true
		values[to] = value
		return nil
	}

	switch policy {
	case SumAll:
		values[to] += value
		return nil

	case TakeTheOneUniqueValue:
		if values[to] != value {
			return errors.Wrapf(types.ErrMergeConflict,
				"divergent values %v and %v", values[to], value)
		}
		return nil

	case FailIfPresent:
		return errors.Wrapf(types.ErrMergeConflict, "more than one group merges into %d", to)
	}

	return types.Contract("unknown merge policy %d", int(policy))
}
