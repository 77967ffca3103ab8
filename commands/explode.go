package commands

import (
	"context"

	"www.velocidex.com/golang/vgroup/arg_parser"
	"www.velocidex.com/golang/vgroup/grouper"
	"www.velocidex.com/golang/vgroup/session"
	"www.velocidex.com/golang/vgroup/types"
)

// Split every group by an explicit list of terms. Documents matching
// none of the terms go to the default group when one is named and are
// dropped otherwise.
type ExplodeFieldIn struct {
	Field   string   `vgroup:"required,field=field"`
	Terms   []string `vgroup:"required,field=terms"`
	IsInt   bool     `vgroup:"field=is_int"`
	Default string   `vgroup:"field=default"`
}

func (self *ExplodeFieldIn) Name() string { return "explode_field_in" }

func (self *ExplodeFieldIn) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	terms, err := parseTerms(self.Terms, self.IsInt)
	if err != nil {
		return nil, err
	}

	return nil, explodeTerms(ctx, s, self.Field, self.Default,
		func(group int) []types.Term { return terms })
}

// Like explode_field_in with a separate list of terms for every
// current group.
type ExplodePerGroup struct {
	Field   string      `vgroup:"required,field=field"`
	Terms   []types.Any `vgroup:"required,field=terms"`
	IsInt   bool        `vgroup:"field=is_int"`
	Default string      `vgroup:"field=default"`
}

func (self *ExplodePerGroup) Name() string { return "explode_per_group" }

func (self *ExplodePerGroup) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	num_groups := s.NumGroups()
	if len(self.Terms) != num_groups {
		return nil, types.Contract("%d term lists given for %d groups",
			len(self.Terms), num_groups)
	}

	per_group := make([][]types.Term, num_groups+1)
	for i, item := range self.Terms {
		terms, err := parseTerms(arg_parser.ToStringArray(item), self.IsInt)
		if err != nil {
			return nil, err
		}
		per_group[i+1] = terms
	}

	return nil, explodeTerms(ctx, s, self.Field, self.Default, indexed(per_group))
}

func termKey(term types.Term) grouper.GroupKey {
	if term.IsInt {
		return grouper.IntKey{Value: term.Int}
	}
	return grouper.StringKey{Value: term.Str}
}

// Assign new groups for the terms of each current group in order,
// regroup the datasets and build the next generation from the same
// assignment.
func explodeTerms(ctx context.Context, s *session.Session, field, default_label string,
	terms_for func(group int) []types.Term) error {
	state := s.Snapshot()

	parents := []int{0}
	keys := []grouper.GroupKey{nil}
	rules := make([]types.GroupRemapRule, 0, state.NumGroups)

	for group := 1; group <= state.NumGroups; group++ {
		if !state.Keys.IsPresent(group) {
			continue
		}

		terms := terms_for(group)
		rule := types.GroupRemapRule{TargetGroup: group}
		for _, term := range terms {
			parents = append(parents, group)
			keys = append(keys, termKey(term))
			rule.Positive = append(rule.Positive, len(keys)-1)
			rule.Conditions = append(rule.Conditions, types.RegroupCondition{
				Field: field,
				Term:  term,
			})
		}

		if default_label != "" {
			parents = append(parents, group)
			keys = append(keys, grouper.DefaultKey{Label: default_label})
			rule.NegativeGroup = len(keys) - 1
		}
		rules = append(rules, rule)
	}

	count := len(keys) - 1
	err := s.CheckGroupLimit(count)
	if err != nil {
		return err
	}

	_, err = s.Regroup(ctx, rules)
	if err != nil {
		return err
	}

	return s.AssumeDense(count, indexed(parents), indexed(keys))
}

// Split every group into pseudo random buckets by the hash of a field.
type ExplodeRandom struct {
	Field      string `vgroup:"required,field=field"`
	IsInt      bool   `vgroup:"field=is_int"`
	NumBuckets int    `vgroup:"required,field=num_buckets"`
	Salt       string `vgroup:"field=salt"`
}

func (self *ExplodeRandom) Name() string { return "explode_random" }

func (self *ExplodeRandom) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	if self.NumBuckets <= 0 {
		return nil, types.Contract("need at least one bucket, not %d", self.NumBuckets)
	}

	k := self.NumBuckets
	count := s.NumGroups() * k
	err := s.CheckGroupLimit(count)
	if err != nil {
		return nil, err
	}

	err = s.ForEachDataset(ctx, s.Datasets(), func(
		ctx context.Context, dataset *session.Dataset) error {
		_, err := dataset.Session.RandomMultiRegroup(ctx,
			self.Field, self.IsInt, self.Salt, k)
		return err
	})
	if err != nil {
		return nil, err
	}

	return nil, s.AssumeDense(count,
		func(group int) int { return (group-1)/k + 1 },
		func(group int) grouper.GroupKey {
			return grouper.RandomKey{Bucket: (group-1)%k + 1, Of: k}
		})
}

// Split every group by the dataset its documents come from.
type ExplodeSessionNames struct{}

func (self *ExplodeSessionNames) Name() string { return "explode_session_names" }

func (self *ExplodeSessionNames) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	datasets := s.Datasets()
	num_datasets := len(datasets)
	if num_datasets == 0 {
		return nil, types.Contract("no datasets")
	}

	position := make(map[string]int)
	for i, dataset := range datasets {
		position[dataset.Name] = i
	}

	num_groups := s.NumGroups()
	count := num_groups * num_datasets
	err := s.CheckGroupLimit(count)
	if err != nil {
		return nil, err
	}

	_, err = s.RegroupEach(ctx, func(dataset *session.Dataset) []types.GroupRemapRule {
		rules := make([]types.GroupRemapRule, 0, num_groups)
		for group := 1; group <= num_groups; group++ {
			rules = append(rules, types.GroupRemapRule{
				TargetGroup:   group,
				NegativeGroup: (group-1)*num_datasets + position[dataset.Name] + 1,
			})
		}
		return rules
	})
	if err != nil {
		return nil, err
	}

	return nil, s.AssumeDense(count,
		func(group int) int { return (group-1)/num_datasets + 1 },
		func(group int) grouper.GroupKey {
			return grouper.SessionKey{Name: datasets[(group-1)%num_datasets].Name}
		})
}
