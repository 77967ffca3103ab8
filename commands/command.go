// Package commands implements the plan steps. Every step is a
// descriptor struct decoded from the step args which knows how to run
// itself against a session.
package commands

import (
	"context"
	"sort"
	"strconv"

	"github.com/Velocidex/ordereddict"
	"github.com/pkg/errors"
	"www.velocidex.com/golang/vgroup/aggregates"
	"www.velocidex.com/golang/vgroup/arg_parser"
	"www.velocidex.com/golang/vgroup/session"
	"www.velocidex.com/golang/vgroup/types"
)

type Command interface {
	Name() string

	// Execute returns a serializable result or nil when the command
	// only transitions the session state.
	Execute(ctx context.Context, session *session.Session) (types.Any, error)
}

var registry = map[string]func() Command{
	"explode_field_in":                      func() Command { return &ExplodeFieldIn{} },
	"explode_per_group":                     func() Command { return &ExplodePerGroup{} },
	"explode_random":                        func() Command { return &ExplodeRandom{} },
	"explode_session_names":                 func() Command { return &ExplodeSessionNames{} },
	"metric_regroup":                        func() Command { return &MetricRegroup{} },
	"time_regroup":                          func() Command { return &TimeRegroup{} },
	"filter_docs":                           func() Command { return &FilterDocs{} },
	"explode_aggregate_percentile":          func() Command { return &ExplodeAggregatePercentile{} },
	"explode_per_doc_percentile":            func() Command { return &ExplodePerDocPercentile{} },
	"compute_bootstrap":                     func() Command { return &ComputeBootstrap{} },
	"regroup_into_last_sibling_where":       func() Command { return &RegroupIntoLastSiblingWhere{} },
	"regroup_into_parent":                   func() Command { return &RegroupIntoParent{} },
	"apply_group_filter":                    func() Command { return &ApplyGroupFilter{} },
	"get_group_stats":                       func() Command { return &GetGroupStats{} },
	"compute_and_create_group_stats_lookup": func() Command { return &ComputeAndCreateGroupStatsLookup{} },
	"create_group_stats_lookup":             func() Command { return &CreateGroupStatsLookup{} },
	"get_field_min":                         func() Command { return &GetFieldMin{} },
	"get_field_max":                         func() Command { return &GetFieldMax{} },
	"get_group_distincts":                   func() Command { return &GetGroupDistincts{} },
	"sum_across":                            func() Command { return &SumAcross{} },
	"iterate":                               func() Command { return &Iterate{} },
	"get_num_groups":                        func() Command { return &GetNumGroups{} },
}

// Names of every known step, sorted.
func Names() []string {
	result := make([]string, 0, len(registry))
	for name := range registry {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// A zero descriptor of the named command.
func Blank(name string) (Command, error) {
	factory, pres := registry[name]
	if !pres {
		return nil, errors.Wrapf(types.ErrNotFound, "command %v", name)
	}
	return factory(), nil
}

// Decode a plan step into its command. explainer may be nil.
func New(name string, args *ordereddict.Dict, explainer types.Explainer) (Command, error) {
	result, err := Blank(name)
	if err != nil {
		return nil, err
	}

	err = arg_parser.ExtractArgs(args, result)
	if explainer != nil {
		explainer.ParseArgs(name, args, result, err)
	}
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return result, nil
}

// Run a command through the session so it is logged, traced and
// instrumented.
func Run(ctx context.Context, s *session.Session, command Command) (types.Any, error) {
	return s.RunCommand(ctx, command.Name(), command,
		func(ctx context.Context) (interface{}, error) {
			return command.Execute(ctx, s)
		})
}

// Resolve the scope of a command and parse its aggregate expressions
// against it.
type scoped struct {
	datasets []*session.Dataset
	names    []string
}

func resolveScope(s *session.Session, names []string) (*scoped, error) {
	datasets, err := s.Scope(names)
	if err != nil {
		return nil, err
	}
	return &scoped{datasets: datasets, names: session.ScopeNames(datasets)}, nil
}

func (self *scoped) metric(expression string) (aggregates.Metric, error) {
	return aggregates.ParseMetric(expression, self.names)
}

func (self *scoped) metrics(expressions []string) ([]aggregates.Metric, error) {
	result := make([]aggregates.Metric, 0, len(expressions))
	for _, expression := range expressions {
		metric, err := self.metric(expression)
		if err != nil {
			return nil, err
		}
		result = append(result, metric)
	}
	return result, nil
}

// An empty expression is no filter at all.
func (self *scoped) filter(expression string) (aggregates.Filter, error) {
	if expression == "" {
		return nil, nil
	}
	return aggregates.ParseFilter(expression, self.names)
}

func parseTerms(terms []string, is_int bool) ([]types.Term, error) {
	result := make([]types.Term, 0, len(terms))
	for _, term := range terms {
		if !is_int {
			result = append(result, types.StringTerm(term))
			continue
		}

		value, err := strconv.ParseInt(term, 10, 64)
		if err != nil {
			return nil, types.Contract("term %q of an int field is not an int", term)
		}
		result = append(result, types.IntTerm(value))
	}
	return result, nil
}

// Save values as a named result when name is given.
func saveValues(s *session.Session, name string, values []float64) error {
	if name == "" {
		return nil
	}
	return s.SaveLookup(name, values)
}

// Close over index slices built for AssumeDense.
func indexed[T any](items []T) func(group int) T {
	return func(group int) T {
		return items[group]
	}
}
