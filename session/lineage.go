package session

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"www.velocidex.com/golang/vgroup/grouper"
	"www.velocidex.com/golang/vgroup/types"
)

// Apply the same remap rules to every dataset. Returns the number of
// groups the datasets report.
func (self *Session) Regroup(ctx context.Context, rules []types.GroupRemapRule) (int, error) {
	return self.RegroupEach(ctx, func(dataset *Dataset) []types.GroupRemapRule {
		return rules
	})
}

// Apply remap rules computed for each dataset.
func (self *Session) RegroupEach(ctx context.Context,
	rules_for func(dataset *Dataset) []types.GroupRemapRule) (int, error) {
	var mu sync.Mutex
	result := 0
	err := self.ForEachDataset(ctx, self.datasets, func(
		ctx context.Context, dataset *Dataset) error {
		num_groups, err := dataset.Session.Regroup(ctx, rules_for(dataset))
		if err != nil {
			return err
		}
		mu.Lock()
		result = max(result, num_groups)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return 0, err
	}

	self.stats.IncRegroups()
	return result, nil
}

// Groups having at least one document in any dataset.
func (self *Session) PresentGroups(ctx context.Context, num_groups int) (
	*roaring.Bitmap, error) {
	var mu sync.Mutex
	result := roaring.New()
	err := self.ForEachDataset(ctx, self.datasets, func(
		ctx context.Context, dataset *Dataset) error {
		count, err := dataset.Session.PushStats(ctx, []string{"count()"})
		if err != nil {
			return err
		}
		counts, err := dataset.Session.GetGroupStats(ctx, count-1)
		pop_err := dataset.Session.PopStat(ctx)
		if err != nil {
			return err
		}
		if pop_err != nil {
			return pop_err
		}

		mu.Lock()
		defer mu.Unlock()
		for group := 1; group < len(counts) && group <= num_groups; group++ {
			if counts[group] > 0 {
				result.Add(uint32(group))
			}
		}
		return nil
	})
	return result, err
}

// Densify compacts the raw groups left by a remote bucketing call
// into a new generation one level deeper. Raw groups not in present
// are dropped and the datasets are renumbered to match.
func (self *Session) Densify(ctx context.Context, present *roaring.Bitmap,
	parent func(raw int) int, key func(raw int) grouper.GroupKey) error {
	state := self.Snapshot()

	err := self.CheckGroupLimit(int(present.GetCardinality()))
	if err != nil {
		return err
	}

	next, mapping, err := grouper.DensifyFrom(state.Keys, present, parent, key)
	if err != nil {
		return err
	}

	// Renumber the datasets unless the raw numbering is already dense.
	dense := true
	for raw := 1; raw < len(mapping); raw++ {
		if mapping[raw] != raw {
			dense = false
			break
		}
	}

	if !dense {
		rules := make([]types.GroupRemapRule, 0, next.Count())
		for raw := 1; raw < len(mapping); raw++ {
			if mapping[raw] > 0 {
				rules = append(rules, types.GroupRemapRule{
					TargetGroup:   raw,
					NegativeGroup: mapping[raw],
				})
			}
		}
		_, err = self.Regroup(ctx, rules)
		if err != nil {
			return err
		}
	}

	self.setState(next, state.Depth+1)
	level.Debug(self.logger).Log("msg", "densified", "groups", next.Count())
	return nil
}

// The datasets already hold groups 1..count without gaps.
func (self *Session) AssumeDense(count int,
	parent func(group int) int, key func(group int) grouper.GroupKey) error {
	state := self.Snapshot()

	err := self.CheckGroupLimit(count)
	if err != nil {
		return err
	}

	next, err := grouper.AssumeDense(state.Keys, count, parent, key)
	if err != nil {
		return err
	}

	self.setState(next, state.Depth+1)
	return nil
}

// Replace the current generation with next at the same depth. mapping
// sends each current group to its group in next (0 to drop it). Named
// results computed at the current depth are merged with policy before
// the datasets are remapped.
func (self *Session) Rebase(ctx context.Context, next grouper.KeySet,
	mapping []int, policy MergePolicy) error {
	state := self.Snapshot()
	if next.Previous().IsValid() && state.Keys.Previous().IsValid() &&
		next.Previous() != state.Keys.Previous() {
		return types.Contract("rebased generation must follow the same previous generation")
	}

	target := func(group int) int {
		if group < len(mapping) {
			return mapping[group]
		}
		return 0
	}

	merged, err := self.mergeLookups(state.Depth, state.Depth, next.Count(), policy, target)
	if err != nil {
		return err
	}

	rules := make([]types.GroupRemapRule, 0, state.NumGroups)
	for group := 1; group <= state.NumGroups; group++ {
		to := target(group)
		if to < 0 || to > next.Count() {
			return types.Contract("group %d mapped to %d outside [0, %d]",
				group, to, next.Count())
		}
		if to > 0 {
			rules = append(rules, types.GroupRemapRule{
				TargetGroup:   group,
				NegativeGroup: to,
			})
		}
	}

	_, err = self.Regroup(ctx, rules)
	if err != nil {
		return errors.Wrap(err, "rebase")
	}

	self.mu.Lock()
	for name, lookup := range merged {
		self.lookups[name] = lookup
	}
	self.mu.Unlock()

	self.setState(next, state.Depth)
	return nil
}

// Merge every group into its parent, going back one generation.
func (self *Session) IntoParent(ctx context.Context, policy MergePolicy) error {
	state := self.Snapshot()
	if state.Depth == 0 {
		return types.Contract("cannot regroup into parent at depth 0")
	}

	previous := state.Keys.Previous()
	if !previous.IsValid() || previous.IsRoot() {
		return types.Contract("no parent generation")
	}

	merged, err := self.mergeLookups(state.Depth, state.Depth-1, previous.Count(), policy,
		state.Keys.Parent)
	if err != nil {
		return err
	}

	rules := make([]types.GroupRemapRule, 0, state.NumGroups)
	for group := 1; group <= state.NumGroups; group++ {
		parent := state.Keys.Parent(group)
		if parent > 0 {
			rules = append(rules, types.GroupRemapRule{
				TargetGroup:   group,
				NegativeGroup: parent,
			})
		}
	}

	_, err = self.Regroup(ctx, rules)
	if err != nil {
		return errors.Wrap(err, "regroup into parent")
	}

	self.mu.Lock()
	for name, lookup := range merged {
		self.lookups[name] = lookup
	}
	self.mu.Unlock()

	self.setState(previous, state.Depth-1)
	return nil
}
