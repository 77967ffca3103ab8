package commands

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log/level"
	"www.velocidex.com/golang/vgroup/aggregates"
	"www.velocidex.com/golang/vgroup/session"
	"www.velocidex.com/golang/vgroup/types"
)

const (
	BootstrapMin      = "min"
	BootstrapMax      = "max"
	BootstrapAll      = "all"
	BootstrapNumTerms = "numTerms"
)

// Estimate the spread of an aggregate metric by resampling the terms
// of a field with replacement. Every round sums the stats of
// num_terms randomly chosen terms of each group and evaluates the
// metric over the sums. The sorted samples are saved as named
// results <name>_min, <name>_max, <name>_all_<i> and
// <name>_numTerms.
type ComputeBootstrap struct {
	Field         string   `vgroup:"required,field=field"`
	IsInt         bool     `vgroup:"field=is_int"`
	Metric        string   `vgroup:"required,field=metric"`
	NumBootstraps int      `vgroup:"required,field=num_bootstraps"`
	Seed          string   `vgroup:"field=seed"`
	Outputs       []string `vgroup:"field=outputs"`
	LookupName    string   `vgroup:"required,field=name"`
	Scope         []string `vgroup:"field=scope"`
}

func (self *ComputeBootstrap) Name() string { return "compute_bootstrap" }

func (self *ComputeBootstrap) outputs() ([]string, error) {
	if len(self.Outputs) == 0 {
		return []string{BootstrapMin, BootstrapMax, BootstrapAll, BootstrapNumTerms}, nil
	}
	for _, output := range self.Outputs {
		switch output {
		case BootstrapMin, BootstrapMax, BootstrapAll, BootstrapNumTerms:
		default:
			return nil, types.Contract("unknown bootstrap output %q", output)
		}
	}
	return self.Outputs, nil
}

func (self *ComputeBootstrap) Execute(
	ctx context.Context, s *session.Session) (result types.Any, err error) {
	if self.NumBootstraps <= 0 {
		return nil, types.Contract("need at least one bootstrap round, not %d",
			self.NumBootstraps)
	}

	outputs, err := self.outputs()
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

	reg, err := s.PushMetrics(ctx, aggregates.Requires(metric))
	if err != nil {
		return nil, err
	}
	defer func() {
		pop_err := reg.Pop(ctx)
		if err == nil {
			err = pop_err
		}
	}()

	compiled, err := s.RegisterMetric(metric, reg)
	if err != nil {
		return nil, err
	}

	// Buffer the stats row of every (group, term).
	num_groups := s.NumGroups()
	rows := make([][][]int64, num_groups+1)
	cells := 0
	err = s.IterateField(ctx, scope.datasets, self.Field, self.IsInt, reg,
		func(term types.Term, group int, stats []int64) error {
			if group > num_groups {
				return nil
			}
			cells++
			err := s.CheckBootstrapBuffer(cells)
			if err != nil {
				return err
			}
			rows[group] = append(rows[group], append([]int64{}, stats...))
			return nil
		})
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(int64(xxhash.Sum64String(self.Seed))))
	samples := make([][]float64, num_groups+1)
	sums := make([][]int64, reg.NumStats)

	for round := 0; round < self.NumBootstraps; round++ {
		for i := range sums {
			sums[i] = make([]int64, num_groups+1)
		}

		for group := 1; group <= num_groups; group++ {
			num_terms := len(rows[group])
			for i := 0; i < num_terms; i++ {
				row := rows[group][rng.Intn(num_terms)]
				for stat, value := range row {
					sums[stat][group] += value
				}
			}
		}

		values, err := compiled.GroupStats(sums, num_groups)
		if err != nil {
			return nil, err
		}

		for group := 1; group <= num_groups; group++ {
			if len(rows[group]) > 0 {
				samples[group] = append(samples[group], values[group])
			}
		}
	}

	for _, group_samples := range samples {
		sort.Float64s(group_samples)
	}

	var names []string
	save := func(name string, value func(group int) float64) error {
		values := make([]float64, num_groups+1)
		for group := 1; group <= num_groups; group++ {
			values[group] = value(group)
		}
		names = append(names, name)
		return s.SaveLookup(name, values)
	}

	sample := func(i int) func(group int) float64 {
		return func(group int) float64 {
			group_samples := samples[group]
			if len(group_samples) == 0 {
				return 0
			}
			return group_samples[min(max(i, 0), len(group_samples)-1)]
		}
	}

	for _, output := range outputs {
		switch output {
		case BootstrapMin:
			err = save(self.LookupName+"_min", sample(0))

		case BootstrapMax:
			err = save(self.LookupName+"_max", sample(self.NumBootstraps-1))

		case BootstrapNumTerms:
			err = save(self.LookupName+"_numTerms", func(group int) float64 {
				return float64(len(rows[group]))
			})

		case BootstrapAll:
			for i := 0; i < self.NumBootstraps && err == nil; i++ {
				err = save(fmt.Sprintf("%s_all_%d", self.LookupName, i), sample(i))
			}
		}
		if err != nil {
			return nil, err
		}
	}

	level.Debug(s.Logger()).Log("msg", "bootstrap", "rounds", self.NumBootstraps,
		"cells", cells, "results", len(names))
	return names, nil
}
