package aggregates

import (
	"github.com/pkg/errors"
	"www.velocidex.com/golang/vgroup/protocols"
	"www.velocidex.com/golang/vgroup/types"
)

// Apply evaluates the metric for one (term, group) pair of a merge
// iteration. stats is the combined row addressed by global index.
func (self *CompiledMetric) Apply(
	term types.Term, stats []int64, group int) (float64, error) {
	return self.apply(self.root, term, stats, group)
}

func (self *CompiledFilter) Allow(
	term types.Term, stats []int64, group int) (bool, error) {
	return self.allow(self.root, term, stats, group)
}

func (self *evaluator) parentOf(group int) int {
	return self.groups.Parent(group)
}

func (self *evaluator) apply(metric Metric,
	term types.Term, stats []int64, group int) (float64, error) {
	switch t := metric.(type) {
	case *Constant:
		return t.Value, nil

	case *PerGroupConstant:
		return valueAt(t.Values, group), nil

	case *GroupStatsLookup:
		return valueAt(self.lookups[t], group), nil

	case *DocStats:
		idx, pres := self.indexes[t]
		if !pres || idx >= len(stats) {
			return 0, types.Contract("push %v is not available", t.Push)
		}
		return float64(stats[idx]), nil

	case *Binary:
		lhs, err := self.apply(t.Lhs, term, stats, group)
		if err != nil {
			return 0, err
		}
		rhs, err := self.apply(t.Rhs, term, stats, group)
		if err != nil {
			return 0, err
		}
		return protocols.Arith(t.Op, lhs, rhs), nil

	case *Unary:
		value, err := self.apply(t.Inner, term, stats, group)
		if err != nil {
			return 0, err
		}
		return protocols.Unary(t.Op, value), nil

	case *IfThenElse:
		// Both branches always run so stateful children see every
		// row.
		cond, err := self.allow(t.Condition, term, stats, group)
		if err != nil {
			return 0, err
		}
		then, err := self.apply(t.Then, term, stats, group)
		if err != nil {
			return 0, err
		}
		otherwise, err := self.apply(t.Else, term, stats, group)
		if err != nil {
			return 0, err
		}
		if cond {
			return then, nil
		}
		return otherwise, nil

	case *Running:
		value, err := self.apply(t.Inner, term, stats, group)
		if err != nil {
			return 0, err
		}
		state := self.state[t].(*runningState)
		if state.changed(term) {
			state.reset()
		}
		return state.add(self.parentOf(group), value), nil

	case *Window:
		value, err := self.apply(t.Inner, term, stats, group)
		if err != nil {
			return 0, err
		}
		state := self.state[t].(*windowState)
		if state.changed(term) {
			state.reset()
		}
		result, err := state.add(self.parentOf(group), group, value)
		if err != nil {
			return 0, errors.Wrapf(err, "window(%d) at group %d", t.Size, group)
		}
		return result, nil

	case *ParentLag:
		value, err := self.apply(t.Inner, term, stats, group)
		if err != nil {
			return 0, err
		}
		state := self.state[t].(*parentLagState)
		if state.changed(term) {
			state.reset()
		}
		return state.add(self.parentOf(group), group, value)

	case *IterateLag:
		value, err := self.apply(t.Inner, term, stats, group)
		if err != nil {
			return 0, err
		}
		state := self.state[t].(*iterateLagState)
		return state.add(group, value), nil

	case *SumChildren:
		return 0, errors.Wrap(types.ErrBulkOnly, "sum_children")
	}

	return 0, types.Contract("unknown metric node %T", metric)
}

func (self *evaluator) allow(filter Filter,
	term types.Term, stats []int64, group int) (bool, error) {
	switch t := filter.(type) {
	case *BoolConstant:
		return t.Value, nil

	case *TermEquals:
		return t.Term.Equal(term), nil

	case *TermRegex:
		re, pres := self.regexes[t]
		if !pres {
			return false, types.Contract("regex %q was never compiled", t.Pattern)
		}
		return protocols.MatchTerm(re, term), nil

	case *IsDefaultGroup:
		return self.isDefault(group), nil

	case *Not:
		value, err := self.allow(t.Inner, term, stats, group)
		return !value, err

	case *And:
		lhs, err := self.allow(t.Lhs, term, stats, group)
		if err != nil {
			return false, err
		}
		rhs, err := self.allow(t.Rhs, term, stats, group)
		return lhs && rhs, err

	case *Or:
		lhs, err := self.allow(t.Lhs, term, stats, group)
		if err != nil {
			return false, err
		}
		rhs, err := self.allow(t.Rhs, term, stats, group)
		return lhs || rhs, err

	case *MetricCompare:
		lhs, err := self.apply(t.Lhs, term, stats, group)
		if err != nil {
			return false, err
		}
		rhs, err := self.apply(t.Rhs, term, stats, group)
		if err != nil {
			return false, err
		}
		return protocols.Compare(t.Op, lhs, rhs), nil
	}

	return false, types.Contract("unknown filter node %T", filter)
}

func (self *evaluator) isDefault(group int) bool {
	key := self.groups.Key(group)
	return key != nil && key.IsDefault()
}

func valueAt(values []float64, group int) float64 {
	if group < 0 || group >= len(values) {
		return 0
	}
	return values[group]
}
