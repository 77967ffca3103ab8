package commands

import (
	"context"

	"www.velocidex.com/golang/vgroup/aggregates"
	"www.velocidex.com/golang/vgroup/marshal"
	"www.velocidex.com/golang/vgroup/session"
	"www.velocidex.com/golang/vgroup/sort"
	"www.velocidex.com/golang/vgroup/types"
)

// Merge iterate field evaluating metrics for every (term, group).
// Rows rejected by filter (which may be nil) are not passed to fn.
// Every row is evaluated so stateful metrics see the full stream.
func iterateMetrics(ctx context.Context, s *session.Session, scope *scoped,
	field string, is_int bool, metrics []aggregates.Metric, filter aggregates.Filter,
	fn func(term types.Term, group int, values []float64) error) (err error) {

	set := aggregates.RequiresAll(metrics...)
	if filter != nil {
		set.Union(aggregates.FilterRequires(filter))
	}

	reg, err := s.PushMetrics(ctx, set)
	if err != nil {
		return err
	}
	defer func() {
		pop_err := reg.Pop(ctx)
		if err == nil {
			err = pop_err
		}
	}()

	compiled, err := s.RegisterMetrics(metrics, reg)
	if err != nil {
		return err
	}

	var compiled_filter *aggregates.CompiledFilter
	if filter != nil {
		compiled_filter, err = s.RegisterFilter(filter, reg)
		if err != nil {
			return err
		}
	}

	values := make([]float64, len(compiled))
	return s.IterateField(ctx, scope.datasets, field, is_int, reg,
		func(term types.Term, group int, stats []int64) error {
			for i, metric := range compiled {
				value, err := metric.Apply(term, stats, group)
				if err != nil {
					return err
				}
				values[i] = value
			}

			if compiled_filter != nil {
				allowed, err := compiled_filter.Allow(term, stats, group)
				if err != nil || !allowed {
					return err
				}
			}
			return fn(term, group, values)
		})
}

// The smallest term of an int field in every group.
type GetFieldMin struct {
	Field      string   `vgroup:"required,field=field"`
	LookupName string   `vgroup:"field=name"`
	Scope      []string `vgroup:"field=scope"`
}

func (self *GetFieldMin) Name() string { return "get_field_min" }

func (self *GetFieldMin) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	return fieldExtreme(ctx, s, self.Field, self.LookupName, self.Scope, false)
}

// The largest term of an int field in every group.
type GetFieldMax struct {
	Field      string   `vgroup:"required,field=field"`
	LookupName string   `vgroup:"field=name"`
	Scope      []string `vgroup:"field=scope"`
}

func (self *GetFieldMax) Name() string { return "get_field_max" }

func (self *GetFieldMax) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	return fieldExtreme(ctx, s, self.Field, self.LookupName, self.Scope, true)
}

// Terms arrive in ascending order so the first term seen in a group
// is its minimum and the last its maximum. Groups without the field
// are 0.
func fieldExtreme(ctx context.Context, s *session.Session,
	field, name string, scope_names []string, is_max bool) (types.Any, error) {
	scope, err := resolveScope(s, scope_names)
	if err != nil {
		return nil, err
	}

	num_groups := s.NumGroups()
	result := make(marshal.Values, num_groups+1)
	seen := make([]bool, num_groups+1)

	err = s.IterateField(ctx, scope.datasets, field, true, nil,
		func(term types.Term, group int, stats []int64) error {
			if group > num_groups {
				return nil
			}
			if is_max || !seen[group] {
				result[group] = float64(term.Int)
				seen[group] = true
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, saveValues(s, name, result)
}

// Count the distinct terms of a field in every group. With a window
// size w a term is counted in a group when it occurs in that group or
// any of the w-1 siblings before it.
type GetGroupDistincts struct {
	Field      string   `vgroup:"required,field=field"`
	IsInt      bool     `vgroup:"field=is_int"`
	Filter     string   `vgroup:"field=filter"`
	WindowSize int      `vgroup:"field=window_size"`
	LookupName string   `vgroup:"field=name"`
	Scope      []string `vgroup:"field=scope"`
}

func (self *GetGroupDistincts) Name() string { return "get_group_distincts" }

func (self *GetGroupDistincts) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	scope, err := resolveScope(s, self.Scope)
	if err != nil {
		return nil, err
	}

	filter, err := scope.filter(self.Filter)
	if err != nil {
		return nil, err
	}

	window := max(self.WindowSize, 1)
	ends, err := s.Keys().LastSiblings()
	if err != nil {
		return nil, err
	}

	num_groups := s.NumGroups()
	result := make(marshal.Values, num_groups+1)

	// Groups up to counted_until already count the current term.
	var last_term *types.Term
	counted_until := 0

	err = iterateMetrics(ctx, s, scope, self.Field, self.IsInt, nil, filter,
		func(term types.Term, group int, values []float64) error {
			if group > num_groups {
				return nil
			}
			if last_term == nil || !last_term.Equal(term) {
				last_term = &term
				counted_until = 0
			}

			hi := min(group+window-1, ends[group])
			for target := max(group, counted_until+1); target <= hi; target++ {
				result[target]++
			}
			counted_until = max(counted_until, hi)
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, saveValues(s, self.LookupName, result)
}

// Sum an aggregate metric over every term of a field.
type SumAcross struct {
	Field      string   `vgroup:"required,field=field"`
	IsInt      bool     `vgroup:"field=is_int"`
	Metric     string   `vgroup:"required,field=metric"`
	Filter     string   `vgroup:"field=filter"`
	LookupName string   `vgroup:"field=name"`
	Scope      []string `vgroup:"field=scope"`
}

func (self *SumAcross) Name() string { return "sum_across" }

func (self *SumAcross) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	scope, err := resolveScope(s, self.Scope)
	if err != nil {
		return nil, err
	}

	metric, err := scope.metric(self.Metric)
	if err != nil {
		return nil, err
	}

	filter, err := scope.filter(self.Filter)
	if err != nil {
		return nil, err
	}

	num_groups := s.NumGroups()
	result := make(marshal.Values, num_groups+1)
	err = iterateMetrics(ctx, s, scope, self.Field, self.IsInt,
		[]aggregates.Metric{metric}, filter,
		func(term types.Term, group int, values []float64) error {
			if group <= num_groups {
				result[group] += values[0]
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, saveValues(s, self.LookupName, result)
}

// Stream one row per (group, term) with the values of metrics. With
// top_k only the best k terms of each group by the sort_by metric are
// kept.
type Iterate struct {
	Field     string   `vgroup:"required,field=field"`
	IsInt     bool     `vgroup:"field=is_int"`
	Metrics   []string `vgroup:"required,field=metrics"`
	Names     []string `vgroup:"field=names"`
	Filter    string   `vgroup:"field=filter"`
	TopK      int      `vgroup:"field=top_k"`
	SortBy    int      `vgroup:"field=sort_by"`
	Ascending bool     `vgroup:"field=ascending"`
	Scope     []string `vgroup:"field=scope"`
}

func (self *Iterate) Name() string { return "iterate" }

func (self *Iterate) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	names, err := columnNames(self.Metrics, self.Names)
	if err != nil {
		return nil, err
	}

	if self.SortBy < 0 || self.SortBy >= len(self.Metrics) {
		return nil, types.Contract("sort_by %d is not one of the %d metrics",
			self.SortBy, len(self.Metrics))
	}

	scope, err := resolveScope(s, self.Scope)
	if err != nil {
		return nil, err
	}

	metrics, err := scope.metrics(self.Metrics)
	if err != nil {
		return nil, err
	}

	filter, err := scope.filter(self.Filter)
	if err != nil {
		return nil, err
	}

	state := s.Snapshot()
	columns := append(marshal.LabelColumns(state.Depth), "term")
	result := marshal.NewRows(append(columns, names...)...)

	add := func(term types.Term, group int, values []float64) error {
		row := marshal.Labels(state.Keys, state.Depth, group)
		row = append(row, term.Value())
		for _, value := range values {
			row = append(row, value)
		}
		return result.Add(row...)
	}

	var sorter *sort.TopK
	if self.TopK > 0 {
		sorter = sort.NewTopK(self.TopK, self.Ascending)
	}

	err = iterateMetrics(ctx, s, scope, self.Field, self.IsInt, metrics, filter,
		func(term types.Term, group int, values []float64) error {
			if sorter == nil {
				return add(term, group, values)
			}
			sorter.Add(sort.Item{
				Term:  term,
				Group: group,
				Value: values[self.SortBy],
				Row:   append([]float64{}, values...),
			})
			return nil
		})
	if err != nil {
		return nil, err
	}

	if sorter != nil {
		for _, item := range sorter.All() {
			err = add(item.Term, item.Group, item.Row)
			if err != nil {
				return nil, err
			}
		}
	}

	return result, nil
}

// Output column names default to the expressions.
func columnNames(expressions, names []string) ([]string, error) {
	if len(names) == 0 {
		return expressions, nil
	}
	if len(names) != len(expressions) {
		return nil, types.Contract("%d names given for %d metrics",
			len(names), len(expressions))
	}
	return names, nil
}
