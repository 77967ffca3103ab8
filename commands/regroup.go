package commands

import (
	"context"

	"www.velocidex.com/golang/vgroup/grouper"
	"www.velocidex.com/golang/vgroup/session"
	"www.velocidex.com/golang/vgroup/types"
)

// Merge every group matching the filter into the last group of its
// family. The last sibling itself always survives. Named results of
// the merged groups are combined with merge_policy.
type RegroupIntoLastSiblingWhere struct {
	Filter      string   `vgroup:"required,field=filter"`
	MergePolicy string   `vgroup:"field=merge_policy"`
	Scope       []string `vgroup:"field=scope"`
}

func (self *RegroupIntoLastSiblingWhere) Name() string {
	return "regroup_into_last_sibling_where"
}

func (self *RegroupIntoLastSiblingWhere) Execute(
	ctx context.Context, s *session.Session) (types.Any, error) {
	policy, err := session.ParseMergePolicy(self.MergePolicy)
	if err != nil {
		return nil, err
	}

	matches, err := evaluateGroupFilter(ctx, s, self.Scope, self.Filter)
	if err != nil {
		return nil, err
	}

	state := s.Snapshot()
	ends, err := state.Keys.LastSiblings()
	if err != nil {
		return nil, err
	}

	targets := make([]int, state.NumGroups+1)
	for group := 1; group <= state.NumGroups; group++ {
		targets[group] = group
		if matches[group] {
			targets[group] = ends[group]
		}
	}

	return nil, rebase(ctx, s, state, targets, policy)
}

// Drop the groups not matching the filter.
type ApplyGroupFilter struct {
	Filter string   `vgroup:"required,field=filter"`
	Scope  []string `vgroup:"field=scope"`
}

func (self *ApplyGroupFilter) Name() string { return "apply_group_filter" }

func (self *ApplyGroupFilter) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	matches, err := evaluateGroupFilter(ctx, s, self.Scope, self.Filter)
	if err != nil {
		return nil, err
	}

	state := s.Snapshot()
	targets := make([]int, state.NumGroups+1)
	for group := 1; group <= state.NumGroups; group++ {
		if matches[group] {
			targets[group] = group
		}
	}

	// Nothing is ever merged so any policy will do.
	return nil, rebase(ctx, s, state, targets, session.FailIfPresent)
}

// Merge every group into its parent going back one generation.
type RegroupIntoParent struct {
	MergePolicy string `vgroup:"field=merge_policy"`
}

func (self *RegroupIntoParent) Name() string { return "regroup_into_parent" }

func (self *RegroupIntoParent) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	policy, err := session.ParseMergePolicy(self.MergePolicy)
	if err != nil {
		return nil, err
	}
	return nil, s.IntoParent(ctx, policy)
}

func evaluateGroupFilter(ctx context.Context, s *session.Session,
	scope_names []string, expression string) ([]bool, error) {
	scope, err := resolveScope(s, scope_names)
	if err != nil {
		return nil, err
	}

	filter, err := scope.filter(expression)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return nil, types.Contract("a filter is required")
	}

	return s.ComputeGroupFilter(ctx, filter)
}

// Move every group to targets[group] (0 drops it) where each target
// is a surviving group, i.e. its own target. Survivors are renumbered
// densely into a replacement generation at the same depth.
func rebase(ctx context.Context, s *session.Session, state session.State,
	targets []int, policy session.MergePolicy) error {
	mapping := make([]int, state.NumGroups+1)
	parents := []int{0}
	keys := []grouper.GroupKey{nil}

	for group := 1; group <= state.NumGroups; group++ {
		if targets[group] != group {
			continue
		}
		parents = append(parents, state.Keys.Parent(group))
		keys = append(keys, state.Keys.Key(group))
		mapping[group] = len(keys) - 1
	}

	for group := 1; group <= state.NumGroups; group++ {
		target := targets[group]
		if target == 0 {
			mapping[group] = 0
			continue
		}
		if targets[target] != target {
			return types.Contract("group %d merges into group %d which does not survive",
				group, target)
		}
		mapping[group] = mapping[target]
	}

	next, err := grouper.Create(state.Keys.Previous(), parents, keys)
	if err != nil {
		return err
	}

	return s.Rebase(ctx, next, mapping, policy)
}
