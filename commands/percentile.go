package commands

import (
	"context"
	"sort"

	"www.velocidex.com/golang/vgroup/aggregates"
	"www.velocidex.com/golang/vgroup/docmetric"
	"www.velocidex.com/golang/vgroup/grouper"
	"www.velocidex.com/golang/vgroup/session"
	"www.velocidex.com/golang/vgroup/types"
)

// Percentiles returns the ranks of the k bucket boundaries in a sorted
// list of size values. The first boundary is always rank 0.
func Percentiles(size, k int) []int {
	result := make([]int, k)
	for i := range result {
		result[i] = (size*i + k - 1) / k
	}
	return result
}

func percentileKey(lo, hi, k int) grouper.PercentileKey {
	return grouper.PercentileKey{
		Lo: 100 * float64(lo) / float64(k),
		Hi: 100 * float64(hi) / float64(k),
	}
}

type termValue struct {
	term  types.Term
	value float64
}

// Split every group into k buckets of terms by the quantiles of an
// aggregate metric computed for each term.
type ExplodeAggregatePercentile struct {
	Field      string   `vgroup:"required,field=field"`
	IsInt      bool     `vgroup:"field=is_int"`
	Metric     string   `vgroup:"required,field=metric"`
	NumBuckets int      `vgroup:"required,field=num_buckets"`
	Scope      []string `vgroup:"field=scope"`
}

func (self *ExplodeAggregatePercentile) Name() string { return "explode_aggregate_percentile" }

func (self *ExplodeAggregatePercentile) Execute(
	ctx context.Context, s *session.Session) (types.Any, error) {
	k := self.NumBuckets
	if k <= 0 {
		return nil, types.Contract("need at least one bucket, not %d", k)
	}

	num_groups := s.NumGroups()
	count := num_groups * k
	err := s.CheckGroupLimit(count)
	if err != nil {
		return nil, err
	}

	scope, err := resolveScope(s, self.Scope)
	if err != nil {
		return nil, err
	}

	metric, err := scope.metric(self.Metric)
	if err != nil {
		return nil, err
	}

	per_group := make([][]termValue, num_groups+1)
	err = iterateMetrics(ctx, s, scope, self.Field, self.IsInt,
		[]aggregates.Metric{metric}, nil,
		func(term types.Term, group int, values []float64) error {
			if group <= num_groups {
				per_group[group] = append(per_group[group],
					termValue{term: term, value: values[0]})
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	rules := make([]types.GroupRemapRule, 0, num_groups)
	for group := 1; group <= num_groups; group++ {
		items := per_group[group]
		if len(items) == 0 {
			continue
		}

		sorted := make([]float64, 0, len(items))
		for _, item := range items {
			sorted = append(sorted, item.value)
		}
		sort.Float64s(sorted)

		boundaries := make([]float64, k)
		for i, rank := range Percentiles(len(sorted), k) {
			boundaries[i] = sorted[min(rank, len(sorted)-1)]
		}

		rule := types.GroupRemapRule{TargetGroup: group}
		for _, item := range items {
			bucket := 0
			for i := 1; i < k; i++ {
				if item.value >= boundaries[i] {
					bucket = i
				}
			}
			rule.Positive = append(rule.Positive, (group-1)*k+bucket+1)
			rule.Conditions = append(rule.Conditions, types.RegroupCondition{
				Field: self.Field,
				Term:  item.term,
			})
		}
		rules = append(rules, rule)
	}

	_, err = s.Regroup(ctx, rules)
	if err != nil {
		return nil, err
	}

	return nil, s.AssumeDense(count,
		func(group int) int { return (group-1)/k + 1 },
		func(group int) grouper.GroupKey {
			bucket := (group - 1) % k
			return percentileKey(bucket, bucket+1, k)
		})
}

// Split every group into k buckets holding about the same number of
// documents by the value of an int field. Buckets which end up with
// the same cutoff term are merged into one wider bucket.
type ExplodePerDocPercentile struct {
	Field      string   `vgroup:"required,field=field"`
	NumBuckets int      `vgroup:"required,field=num_buckets"`
	Scope      []string `vgroup:"field=scope"`
}

func (self *ExplodePerDocPercentile) Name() string { return "explode_per_doc_percentile" }

type cutoff struct {
	term   int64
	lo, hi int
}

func (self *ExplodePerDocPercentile) Execute(
	ctx context.Context, s *session.Session) (result types.Any, err error) {
	k := self.NumBuckets
	if k <= 0 {
		return nil, types.Contract("need at least one bucket, not %d", k)
	}

	scope, err := resolveScope(s, self.Scope)
	if err != nil {
		return nil, err
	}

	count := aggregates.NewSumOverSessions(scope.names, docmetric.Count)
	reg, err := s.PushMetrics(ctx, aggregates.Requires(count))
	if err != nil {
		return nil, err
	}
	defer func() {
		pop_err := reg.Pop(ctx)
		if err == nil {
			err = pop_err
		}
	}()

	compiled, err := s.RegisterMetric(count, reg)
	if err != nil {
		return nil, err
	}

	stats, err := s.GroupStats(ctx, reg)
	if err != nil {
		return nil, err
	}

	num_groups := s.NumGroups()
	totals, err := compiled.GroupStats(stats, num_groups)
	if err != nil {
		return nil, err
	}

	// Scan the terms in ascending order keeping a running count of
	// documents per group. Bucket i ends at the first term where the
	// running count reaches (i+1)/k of the group total.
	cumulative := make([]float64, num_groups+1)
	cutoffs := make([][]cutoff, num_groups+1)
	err = s.IterateField(ctx, scope.datasets, self.Field, true, reg,
		func(term types.Term, group int, stats []int64) error {
			if group > num_groups {
				return nil
			}

			value, err := compiled.Apply(term, stats, group)
			if err != nil {
				return err
			}
			cumulative[group] += value

			for {
				next := len(cutoffs[group])
				if next >= k-1 ||
					cumulative[group] < totals[group]*float64(next+1)/float64(k) {
					break
				}

				cutoffs[group] = append(cutoffs[group],
					cutoff{term: term.Int, lo: next, hi: next + 1})
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	parents := []int{0}
	keys := []grouper.GroupKey{nil}
	rules := make([]types.GroupRemapRule, 0, num_groups)
	for group := 1; group <= num_groups; group++ {
		if !s.Keys().IsPresent(group) {
			continue
		}

		rule := types.GroupRemapRule{TargetGroup: group}
		last_hi := 0
		for _, item := range collapse(cutoffs[group]) {
			parents = append(parents, group)
			keys = append(keys, percentileKey(item.lo, item.hi, k))
			rule.Positive = append(rule.Positive, len(keys)-1)
			rule.Conditions = append(rule.Conditions, types.RegroupCondition{
				Field:      self.Field,
				Term:       types.IntTerm(item.term),
				Inequality: true,
			})
			last_hi = item.hi
		}

		// Everything above the last cutoff.
		parents = append(parents, group)
		keys = append(keys, percentileKey(last_hi, k, k))
		rule.NegativeGroup = len(keys) - 1
		rules = append(rules, rule)
	}

	total_groups := len(keys) - 1
	err = s.CheckGroupLimit(total_groups)
	if err != nil {
		return nil, err
	}

	_, err = s.Regroup(ctx, rules)
	if err != nil {
		return nil, err
	}

	return nil, s.AssumeDense(total_groups, indexed(parents), indexed(keys))
}

// Merge consecutive cutoffs on the same term.
func collapse(cutoffs []cutoff) []cutoff {
	var result []cutoff
	for _, item := range cutoffs {
		if len(result) > 0 && result[len(result)-1].term == item.term {
			result[len(result)-1].hi = item.hi
			continue
		}
		result = append(result, item)
	}
	return result
}
