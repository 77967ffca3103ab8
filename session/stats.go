package session

import (
	"context"
	"sync"

	"github.com/go-kit/log/level"
	"www.velocidex.com/golang/vgroup/aggregates"
	"www.velocidex.com/golang/vgroup/merge"
	"www.velocidex.com/golang/vgroup/pushes"
	"www.velocidex.com/golang/vgroup/types"
)

// Push every stat in set into its session. The caller must Pop the
// registration once it is done with the stats.
func (self *Session) PushMetrics(ctx context.Context, set *pushes.Set) (
	*pushes.Registration, error) {
	reg, err := pushes.PushMetrics(ctx, self.sessions(), set, self.config.ParallelSessions)
	if err != nil {
		return nil, err
	}

	self.stats.IncPushes(reg.NumStats)
	level.Debug(self.logger).Log("msg", "pushed stats", "count", reg.NumStats)
	return reg, nil
}

func (self *Session) RegisterCtx(reg *pushes.Registration) *aggregates.RegisterCtx {
	result := &aggregates.RegisterCtx{
		Groups:  self.Keys(),
		Lookup:  self.Lookup,
		Regexes: self.regexes,
	}
	if reg != nil {
		result.Indexes = reg.Indexes
	}
	return result
}

func (self *Session) RegisterMetric(metric aggregates.Metric,
	reg *pushes.Registration) (*aggregates.CompiledMetric, error) {
	return aggregates.Compile(metric, self.RegisterCtx(reg))
}

func (self *Session) RegisterMetrics(metrics []aggregates.Metric,
	reg *pushes.Registration) ([]*aggregates.CompiledMetric, error) {
	return aggregates.CompileAll(metrics, self.RegisterCtx(reg))
}

func (self *Session) RegisterFilter(filter aggregates.Filter,
	reg *pushes.Registration) (*aggregates.CompiledFilter, error) {
	return aggregates.CompileFilter(filter, self.RegisterCtx(reg))
}

// Fetch the per group columns of every registered stat, addressed by
// global index.
func (self *Session) GroupStats(ctx context.Context, reg *pushes.Registration) (
	[][]int64, error) {
	num_groups := self.NumGroups()
	result := make([][]int64, reg.NumStats)
	for i := range result {
		result[i] = make([]int64, num_groups+1)
	}

	var mu sync.Mutex
	scope := make([]*Dataset, 0, len(reg.PerSession))
	for _, dataset := range self.datasets {
		if len(reg.PerSession[dataset.Name]) > 0 {
			scope = append(scope, dataset)
		}
	}

	err := self.ForEachDataset(ctx, scope, func(ctx context.Context, dataset *Dataset) error {
		for i, global := range reg.PerSession[dataset.Name] {
			column, err := dataset.Session.GetGroupStats(ctx, reg.LocalIndex(dataset.Name, i))
			if err != nil {
				return err
			}

			mu.Lock()
			copy(result[global], column)
			mu.Unlock()
		}
		return nil
	})
	return result, err
}

// Evaluate metrics over whole groups: push what they need, fetch the
// group stats and pop again.
func (self *Session) ComputeGroupStats(ctx context.Context,
	metrics ...aggregates.Metric) (result [][]float64, err error) {
	reg, err := self.PushMetrics(ctx, aggregates.RequiresAll(metrics...))
	if err != nil {
		return nil, err
	}
	defer func() {
		pop_err := reg.Pop(ctx)
		if err == nil {
			err = pop_err
		}
	}()

	compiled, err := self.RegisterMetrics(metrics, reg)
	if err != nil {
		return nil, err
	}

	stats, err := self.GroupStats(ctx, reg)
	if err != nil {
		return nil, err
	}

	num_groups := self.NumGroups()
	for _, metric := range compiled {
		values, err := metric.GroupStats(stats, num_groups)
		if err != nil {
			return nil, err
		}
		result = append(result, values)
	}
	return result, nil
}

// Merge iterate field over the datasets in scope. reg may be nil when
// no stats are needed.
func (self *Session) IterateField(ctx context.Context, scope []*Dataset,
	field string, is_int bool, reg *pushes.Registration,
	fn merge.TermCallback) error {

	num_stats := 0
	if reg != nil {
		num_stats = reg.NumStats
	}

	sources := make([]*merge.Source, 0, len(scope))
	for _, dataset := range scope {
		cursor, err := dataset.Session.TermGroupIterator(ctx, field, is_int)
		if err != nil {
			for _, source := range sources {
				_ = source.Cursor.Close()
			}
			return err
		}

		source := &merge.Source{Name: dataset.Name, Cursor: cursor}
		if reg != nil {
			source.Columns = merge.Columns(reg, dataset.Name)
		}
		sources = append(sources, source)
	}

	rows := 0
	err := merge.Iterate(sources, num_stats, is_int, func(
		term types.Term, group int, stats []int64) error {
		rows++
		return fn(term, group, stats)
	})

	self.stats.IncMergedRows(rows)
	self.metrics.merged_rows.Add(float64(rows))
	level.Debug(self.logger).Log("msg", "merge iterated", "field", field, "rows", rows)
	return err
}

// Evaluate a filter over whole groups.
func (self *Session) ComputeGroupFilter(ctx context.Context,
	filter aggregates.Filter) (result []bool, err error) {
	reg, err := self.PushMetrics(ctx, aggregates.FilterRequires(filter))
	if err != nil {
		return nil, err
	}
	defer func() {
		pop_err := reg.Pop(ctx)
		if err == nil {
			err = pop_err
		}
	}()

	compiled, err := self.RegisterFilter(filter, reg)
	if err != nil {
		return nil, err
	}

	stats, err := self.GroupStats(ctx, reg)
	if err != nil {
		return nil, err
	}

	return compiled.GroupStats(stats, self.NumGroups())
}
