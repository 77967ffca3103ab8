package commands

import (
	"context"

	"www.velocidex.com/golang/vgroup/marshal"
	"www.velocidex.com/golang/vgroup/session"
	"www.velocidex.com/golang/vgroup/types"
)

// One row per present group with the value of every metric.
type GetGroupStats struct {
	Metrics []string `vgroup:"required,field=metrics"`
	Names   []string `vgroup:"field=names"`
	Labels  bool     `vgroup:"field=labels"`
	Scope   []string `vgroup:"field=scope"`
}

func (self *GetGroupStats) Name() string { return "get_group_stats" }

func (self *GetGroupStats) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	names, err := columnNames(self.Metrics, self.Names)
	if err != nil {
		return nil, err
	}

	scope, err := resolveScope(s, self.Scope)
	if err != nil {
		return nil, err
	}

	metrics, err := scope.metrics(self.Metrics)
	if err != nil {
		return nil, err
	}

	values, err := s.ComputeGroupStats(ctx, metrics...)
	if err != nil {
		return nil, err
	}

	state := s.Snapshot()
	return marshal.GroupStats(state.Keys, state.Depth, self.Labels, names, values)
}

// Save the group stats of a metric as a named result.
type ComputeAndCreateGroupStatsLookup struct {
	LookupName string   `vgroup:"required,field=name"`
	Metric     string   `vgroup:"required,field=metric"`
	Scope      []string `vgroup:"field=scope"`
}

func (self *ComputeAndCreateGroupStatsLookup) Name() string {
	return "compute_and_create_group_stats_lookup"
}

func (self *ComputeAndCreateGroupStatsLookup) Execute(
	ctx context.Context, s *session.Session) (types.Any, error) {
	scope, err := resolveScope(s, self.Scope)
	if err != nil {
		return nil, err
	}

	metric, err := scope.metric(self.Metric)
	if err != nil {
		return nil, err
	}

	values, err := s.ComputeGroupStats(ctx, metric)
	if err != nil {
		return nil, err
	}

	return nil, s.SaveLookup(self.LookupName, values[0])
}

// Save explicit per group values as a named result. Values may omit
// the unused group 0.
type CreateGroupStatsLookup struct {
	LookupName string    `vgroup:"required,field=name"`
	Values     []float64 `vgroup:"required,field=values"`
}

func (self *CreateGroupStatsLookup) Name() string { return "create_group_stats_lookup" }

func (self *CreateGroupStatsLookup) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	values := self.Values
	if len(values) == s.NumGroups() {
		values = append([]float64{0}, values...)
	}
	return nil, s.SaveLookup(self.LookupName, values)
}

type GetNumGroups struct{}

func (self *GetNumGroups) Name() string { return "get_num_groups" }

func (self *GetNumGroups) Execute(ctx context.Context, s *session.Session) (types.Any, error) {
	return s.NumGroups(), nil
}
