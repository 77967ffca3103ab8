package commands

import (
	"context"
	"math"
	"time"

	"github.com/go-kit/log/level"
	"www.velocidex.com/golang/vgroup/docmetric"
	"www.velocidex.com/golang/vgroup/grouper"
	"www.velocidex.com/golang/vgroup/pushes"
	"www.velocidex.com/golang/vgroup/session"
	"www.velocidex.com/golang/vgroup/types"
)

// Bucket every group by the value of a document metric. Values below
// min and at or above max land in two gutter buckets unless
// no_gutters is set, in which case those documents are dropped.
type MetricRegroup struct {
	Metric    string   `vgroup:"required,field=metric"`
	Min       int64    `vgroup:"required,field=min"`
	Max       int64    `vgroup:"required,field=max"`
	Interval  int64    `vgroup:"required,field=interval"`
	NoGutters bool     `vgroup:"field=no_gutters"`
	Scope     []string `vgroup:"field=scope"`
}

func (self *MetricRegroup) Name() string { return "metric_regroup" }

func (self *MetricRegroup) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	program, err := docmetric.Compile(self.Metric)
	if err != nil {
		return nil, err
	}

	scope, err := resolveScope(s, self.Scope)
	if err != nil {
		return nil, err
	}

	buckets := &bucketing{min: self.Min, max: self.Max, interval: self.Interval,
		no_gutters: self.NoGutters}
	return nil, buckets.regroup(ctx, s, scope, program,
		func(bucket int) grouper.GroupKey {
			lo, hi := buckets.bounds(bucket)
			return grouper.RangeKey{Lo: lo, Hi: hi}
		})
}

// Bucket every group by time.
type TimeRegroup struct {
	Interval string   `vgroup:"required,field=interval"`
	Field    string   `vgroup:"field=field"`
	Format   string   `vgroup:"field=format"`
	Scope    []string `vgroup:"field=scope"`
}

func (self *TimeRegroup) Name() string { return "time_regroup" }

func (self *TimeRegroup) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	interval, err := time.ParseDuration(self.Interval)
	if err != nil || interval < time.Second {
		return nil, types.Contract("invalid time interval %q", self.Interval)
	}

	field := self.Field
	if field == "" {
		field = "unixtime"
	}

	program, err := docmetric.Compile(field)
	if err != nil {
		return nil, err
	}

	scope, err := resolveScope(s, self.Scope)
	if err != nil {
		return nil, err
	}

	start, end := s.TimeBounds()
	if start.IsZero() || !end.After(start) {
		return nil, types.Contract("datasets have no time range")
	}

	buckets := &bucketing{
		min:        start.Unix(),
		max:        end.Unix(),
		interval:   int64(interval / time.Second),
		no_gutters: true,
	}
	return nil, buckets.regroup(ctx, s, scope, program,
		func(bucket int) grouper.GroupKey {
			lo, hi := buckets.bounds(bucket)
			return grouper.TimeRangeKey{
				Start:  time.Unix(int64(lo), 0),
				End:    time.Unix(int64(hi), 0),
				Format: self.Format,
			}
		})
}

type bucketing struct {
	min, max, interval int64
	no_gutters         bool
}

func (self *bucketing) numBuckets() int {
	span := self.max - self.min
	result := span / self.interval
	if span%self.interval != 0 {
		result++
	}
	return int(result)
}

// Buckets of each group on the remote side including gutters.
func (self *bucketing) perGroup() int {
	if self.no_gutters {
		return self.numBuckets()
	}
	return self.numBuckets() + 2
}

func (self *bucketing) bounds(bucket int) (float64, float64) {
	n := self.numBuckets()
	switch {
	case bucket == n:
		key := grouper.BelowRange(float64(self.min))
		return key.Lo, key.Hi
	case bucket == n+1:
		key := grouper.AboveRange(float64(self.max))
		return key.Lo, key.Hi
	}

	lo := self.min + int64(bucket)*self.interval
	hi := min(lo+self.interval, self.max)
	return float64(lo), float64(hi)
}

// Push the program into every dataset in scope, bucket the datasets
// remotely and densify the occupied buckets into the next generation.
// Datasets outside the scope have no value to bucket by and are
// dropped.
func (self *bucketing) regroup(ctx context.Context, s *session.Session,
	scope *scoped, program []string, key func(bucket int) grouper.GroupKey) (err error) {
	// max-min is negative when the span does not fit in an int64.
	if self.interval <= 0 || self.max <= self.min || self.max-self.min < 0 {
		return types.Contract("invalid bucket range [%d, %d) / %d",
			self.min, self.max, self.interval)
	}

	// The datasets are bucketed before empty buckets can be dropped so
	// every raw bucket counts against the limit.
	err = s.CheckGroupLimit(self.numBuckets())
	if err != nil {
		return err
	}
	per_group := self.perGroup()
	total := math.MaxInt
	if s.NumGroups() <= math.MaxInt/per_group {
		total = s.NumGroups() * per_group
	}
	err = s.CheckGroupLimit(total)
	if err != nil {
		return err
	}

	set := pushes.NewSet()
	for _, dataset := range scope.datasets {
		set.Add(pushes.New(dataset.Name, program...))
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

	err = s.ForEachDataset(ctx, s.Datasets(), func(
		ctx context.Context, dataset *session.Dataset) error {
		if len(reg.PerSession[dataset.Name]) == 0 {
			level.Debug(s.Logger()).Log("msg", "no metric for dataset, dropping documents",
				"dataset", dataset.Name)
			_, err := dataset.Session.Regroup(ctx, nil)
			return err
		}

		_, err := dataset.Session.MetricRegroup(ctx, reg.LocalIndex(dataset.Name, 0),
			self.min, self.max, self.interval, self.no_gutters)
		return err
	})
	if err != nil {
		return err
	}

	present, err := s.PresentGroups(ctx, s.NumGroups()*per_group)
	if err != nil {
		return err
	}

	return s.Densify(ctx, present,
		func(raw int) int { return (raw-1)/per_group + 1 },
		func(raw int) grouper.GroupKey { return key((raw - 1) % per_group) })
}

// Drop the documents not matching a document filter from the
// datasets in scope. The groups are unchanged.
type FilterDocs struct {
	Filter string   `vgroup:"required,field=filter"`
	Scope  []string `vgroup:"field=scope"`
}

func (self *FilterDocs) Name() string { return "filter_docs" }

func (self *FilterDocs) Execute(ctx context.Context, s *session.Session) (result types.Any, err error) {
	program, err := docmetric.CompileFilter(self.Filter)
	if err != nil {
		return nil, err
	}

	scope, err := resolveScope(s, self.Scope)
	if err != nil {
		return nil, err
	}

	set := pushes.NewSet()
	for _, dataset := range scope.datasets {
		set.Add(pushes.New(dataset.Name, program...))
	}

	reg, err := s.PushMetrics(ctx, set)
	if err != nil {
		return nil, err
	}
	defer func() {
		pop_err := reg.Pop(ctx)
		if err == nil {
			err = pop_err
		}
	}()

	return nil, s.ForEachDataset(ctx, scope.datasets, func(
		ctx context.Context, dataset *session.Dataset) error {
		_, err := dataset.Session.MetricFilter(ctx,
			reg.LocalIndex(dataset.Name, 0), 1, 1, false)
		return err
	})
}
