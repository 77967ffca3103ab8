package aggregates

import (
	"regexp"

	"www.velocidex.com/golang/vgroup/grouper"
	"www.velocidex.com/golang/vgroup/protocols"
	"www.velocidex.com/golang/vgroup/pushes"
	"www.velocidex.com/golang/vgroup/types"
)

// Everything a tree needs to resolve before it can be evaluated.
type RegisterCtx struct {
	Indexes pushes.IndexMap

	// The generation the evaluation runs against. Group arguments
	// to Apply and GroupStats are groups of this generation.
	Groups grouper.KeySet

	// Resolves a named result realigned to Groups.
	Lookup func(name string) ([]float64, error)

	Regexes *protocols.RegexCache
}

// Resolved indexes and private evaluation state of one compiled
// tree. Everything is keyed by node identity so the same tree may be
// compiled any number of times.
type evaluator struct {
	groups  grouper.KeySet
	indexes map[*DocStats]int
	lookups map[*GroupStatsLookup][]float64
	regexes map[*TermRegex]*regexp.Regexp
	state   map[interface{}]streamState
}

type CompiledMetric struct {
	root Metric
	*evaluator
}

type CompiledFilter struct {
	root Filter
	*evaluator
}

func newEvaluator(ctx *RegisterCtx) *evaluator {
	return &evaluator{
		groups:  ctx.Groups,
		indexes: make(map[*DocStats]int),
		lookups: make(map[*GroupStatsLookup][]float64),
		regexes: make(map[*TermRegex]*regexp.Regexp),
		state:   make(map[interface{}]streamState),
	}
}

// Compile registers the metric against the pushed stats. The result
// is single use: it carries the streaming state of one pass.
func Compile(metric Metric, ctx *RegisterCtx) (*CompiledMetric, error) {
	result := &CompiledMetric{root: metric, evaluator: newEvaluator(ctx)}
	err := result.registerMetric(metric, ctx)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func CompileFilter(filter Filter, ctx *RegisterCtx) (*CompiledFilter, error) {
	result := &CompiledFilter{root: filter, evaluator: newEvaluator(ctx)}
	err := result.registerFilter(filter, ctx)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Compile several metrics sharing one registration.
func CompileAll(metrics []Metric, ctx *RegisterCtx) ([]*CompiledMetric, error) {
	result := make([]*CompiledMetric, 0, len(metrics))
	for _, metric := range metrics {
		compiled, err := Compile(metric, ctx)
		if err != nil {
			return nil, err
		}
		result = append(result, compiled)
	}
	return result, nil
}

func (self *evaluator) registerMetric(metric Metric, ctx *RegisterCtx) error {
	switch t := metric.(type) {
	case nil:
		return types.Contract("nil metric")

	case *Constant, *PerGroupConstant:
		return nil

	case *DocStats:
		idx, pres := ctx.Indexes.Get(t.Push)
		if !pres {
			return types.Contract("push %v was never registered", t.Push)
		}
		self.indexes[t] = idx
		return nil

	case *GroupStatsLookup:
		if ctx.Lookup == nil {
			return types.Contract("no named results available for %v", t.Name)
		}
		values, err := ctx.Lookup(t.Name)
		if err != nil {
			return err
		}
		self.lookups[t] = values
		return nil

	case *Binary:
		err := self.registerMetric(t.Lhs, ctx)
		if err != nil {
			return err
		}
		return self.registerMetric(t.Rhs, ctx)

	case *Unary:
		return self.registerMetric(t.Inner, ctx)

	case *IfThenElse:
		err := self.registerFilter(t.Condition, ctx)
		if err != nil {
			return err
		}
		err = self.registerMetric(t.Then, ctx)
		if err != nil {
			return err
		}
		return self.registerMetric(t.Else, ctx)

	case *Running:
		self.state[t] = &runningState{sums: make(map[int]float64)}
		return self.registerMetric(t.Inner, ctx)

	case *Window:
		if t.Size <= 0 {
			return types.Contract("window size must be positive, not %d", t.Size)
		}
		self.state[t] = newWindowState(t.Size)
		return self.registerMetric(t.Inner, ctx)

	case *SumChildren:
		return self.registerMetric(t.Inner, ctx)

	case *ParentLag:
		if t.Delay < 0 {
			return types.Contract("lag delay must not be negative, not %d", t.Delay)
		}
		self.state[t] = newParentLagState(t.Delay)
		return self.registerMetric(t.Inner, ctx)

	case *IterateLag:
		if t.Delay < 0 {
			return types.Contract("lag delay must not be negative, not %d", t.Delay)
		}
		self.state[t] = &iterateLagState{
			delay:   t.Delay,
			history: make(map[int]*lagRing),
		}
		return self.registerMetric(t.Inner, ctx)
	}

	return types.Contract("unknown metric node %T", metric)
}

func (self *evaluator) registerFilter(filter Filter, ctx *RegisterCtx) error {
	switch t := filter.(type) {
	case nil:
		return types.Contract("nil filter")

	case *BoolConstant, *TermEquals, *IsDefaultGroup:
		return nil

	case *TermRegex:
		cache := ctx.Regexes
		if cache == nil {
			cache = protocols.NewRegexCache()
		}
		re, err := cache.Compile(t.Pattern)
		if err != nil {
			return err
		}
		self.regexes[t] = re
		return nil

	case *And:
		err := self.registerFilter(t.Lhs, ctx)
		if err != nil {
			return err
		}
		return self.registerFilter(t.Rhs, ctx)

	case *Or:
		err := self.registerFilter(t.Lhs, ctx)
		if err != nil {
			return err
		}
		return self.registerFilter(t.Rhs, ctx)

	case *Not:
		return self.registerFilter(t.Inner, ctx)

	case *MetricCompare:
		err := self.registerMetric(t.Lhs, ctx)
		if err != nil {
			return err
		}
		return self.registerMetric(t.Rhs, ctx)
	}

	return types.Contract("unknown filter node %T", filter)
}
