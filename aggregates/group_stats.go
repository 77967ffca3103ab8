package aggregates

import (
	"github.com/pkg/errors"
	"www.velocidex.com/golang/vgroup/protocols"
	"www.velocidex.com/golang/vgroup/types"
)

// GroupStats evaluates the metric over whole groups. stats[i] is the
// per group column of global stat i with index 0 unused. The result
// has num_groups+1 elements.
func (self *CompiledMetric) GroupStats(
	stats [][]int64, num_groups int) ([]float64, error) {
	return self.groupStats(self.root, stats, num_groups)
}

func (self *CompiledFilter) GroupStats(
	stats [][]int64, num_groups int) ([]bool, error) {
	return self.filterGroupStats(self.root, stats, num_groups)
}

func (self *evaluator) groupStats(metric Metric,
	stats [][]int64, num_groups int) ([]float64, error) {
	result := make([]float64, num_groups+1)

	switch t := metric.(type) {
	case *Constant:
		for i := 1; i <= num_groups; i++ {
			result[i] = t.Value
		}
		return result, nil

	case *PerGroupConstant:
		for i := 1; i <= num_groups; i++ {
			result[i] = valueAt(t.Values, i)
		}
		return result, nil

	case *GroupStatsLookup:
		values := self.lookups[t]
		for i := 1; i <= num_groups; i++ {
			result[i] = valueAt(values, i)
		}
		return result, nil

	case *DocStats:
		idx, pres := self.indexes[t]
		if !pres || idx >= len(stats) {
			return nil, types.Contract("push %v is not available", t.Push)
		}
		column := stats[idx]
		for i := 1; i <= num_groups && i < len(column); i++ {
			result[i] = float64(column[i])
		}
		return result, nil

	case *Binary:
		lhs, err := self.groupStats(t.Lhs, stats, num_groups)
		if err != nil {
			return nil, err
		}
		rhs, err := self.groupStats(t.Rhs, stats, num_groups)
		if err != nil {
			return nil, err
		}
		return protocols.ArithArrays(t.Op, lhs, rhs), nil

	case *Unary:
		inner, err := self.groupStats(t.Inner, stats, num_groups)
		if err != nil {
			return nil, err
		}
		for i := 1; i < len(inner); i++ {
			inner[i] = protocols.Unary(t.Op, inner[i])
		}
		return inner, nil

	case *IfThenElse:
		cond, err := self.filterGroupStats(t.Condition, stats, num_groups)
		if err != nil {
			return nil, err
		}
		then, err := self.groupStats(t.Then, stats, num_groups)
		if err != nil {
			return nil, err
		}
		otherwise, err := self.groupStats(t.Else, stats, num_groups)
		if err != nil {
			return nil, err
		}
		for i := 1; i <= num_groups; i++ {
			if cond[i] {
				result[i] = then[i]
			} else {
				result[i] = otherwise[i]
			}
		}
		return result, nil

	case *Running:
		inner, err := self.groupStats(t.Inner, stats, num_groups)
		if err != nil {
			return nil, err
		}
		sum := 0.0
		for i := 1; i <= num_groups; i++ {
			if i == 1 || self.parentOf(i) != self.parentOf(i-1) {
				sum = 0
			}
			sum += inner[i]
			result[i] = sum
		}
		return result, nil

	case *Window:
		inner, err := self.groupStats(t.Inner, stats, num_groups)
		if err != nil {
			return nil, err
		}
		start := 1
		for i := 1; i <= num_groups; i++ {
			if i > 1 && self.parentOf(i) != self.parentOf(i-1) {
				start = i
			}
			lo := i - t.Size + 1
			if lo < start {
				lo = start
			}
			for j := lo; j <= i; j++ {
				result[i] += inner[j]
			}
		}
		return result, nil

	case *SumChildren:
		inner, err := self.groupStats(t.Inner, stats, num_groups)
		if err != nil {
			return nil, err
		}
		// Families are delimited by a change of parent.
		start := 1
		sum := 0.0
		for i := 1; i <= num_groups+1; i++ {
			if i > num_groups || (i > 1 && self.parentOf(i) != self.parentOf(i-1)) {
				for j := start; j < i; j++ {
					result[j] = sum
				}
				start = i
				sum = 0
			}
			if i <= num_groups {
				sum += inner[i]
			}
		}
		return result, nil

	case *ParentLag:
		inner, err := self.groupStats(t.Inner, stats, num_groups)
		if err != nil {
			return nil, err
		}
		for i := 1; i <= num_groups; i++ {
			source := i - t.Delay
			if source >= 1 && self.parentOf(source) == self.parentOf(i) {
				result[i] = inner[source]
			}
		}
		return result, nil

	case *IterateLag:
		return nil, errors.Wrap(types.ErrPerTermOnly, "iterate_lag")
	}

	return nil, types.Contract("unknown metric node %T", metric)
}

func (self *evaluator) filterGroupStats(filter Filter,
	stats [][]int64, num_groups int) ([]bool, error) {
	result := make([]bool, num_groups+1)

	switch t := filter.(type) {
	case *BoolConstant:
		for i := 1; i <= num_groups; i++ {
			result[i] = t.Value
		}
		return result, nil

	case *IsDefaultGroup:
		for i := 1; i <= num_groups; i++ {
			result[i] = self.isDefault(i)
		}
		return result, nil

	case *TermEquals:
		return nil, errors.Wrap(types.ErrPerTermOnly, "term equality")

	case *TermRegex:
		return nil, errors.Wrapf(types.ErrPerTermOnly, "term regex %q", t.Pattern)

	case *Not:
		inner, err := self.filterGroupStats(t.Inner, stats, num_groups)
		if err != nil {
			return nil, err
		}
		for i := 1; i <= num_groups; i++ {
			result[i] = !inner[i]
		}
		return result, nil

	case *And, *Or:
		var lhs_filter, rhs_filter Filter
		is_and := false
		switch n := t.(type) {
		case *And:
			lhs_filter, rhs_filter, is_and = n.Lhs, n.Rhs, true
		case *Or:
			lhs_filter, rhs_filter = n.Lhs, n.Rhs
		}
		lhs, err := self.filterGroupStats(lhs_filter, stats, num_groups)
		if err != nil {
			return nil, err
		}
		rhs, err := self.filterGroupStats(rhs_filter, stats, num_groups)
		if err != nil {
			return nil, err
		}
		for i := 1; i <= num_groups; i++ {
			if is_and {
				result[i] = lhs[i] && rhs[i]
			} else {
				result[i] = lhs[i] || rhs[i]
			}
		}
		return result, nil

	case *MetricCompare:
		lhs, err := self.groupStats(t.Lhs, stats, num_groups)
		if err != nil {
			return nil, err
		}
		rhs, err := self.groupStats(t.Rhs, stats, num_groups)
		if err != nil {
			return nil, err
		}
		for i := 1; i <= num_groups; i++ {
			result[i] = protocols.Compare(t.Op, lhs[i], rhs[i])
		}
		return result, nil
	}

	return nil, types.Contract("unknown filter node %T", filter)
}
