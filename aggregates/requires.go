package aggregates

import (
	"www.velocidex.com/golang/vgroup/pushes"
)

// The set of pushes needed to evaluate the metric.
func Requires(metric Metric) *pushes.Set {
	result := pushes.NewSet()
	requires(metric, result)
	return result
}

func FilterRequires(filter Filter) *pushes.Set {
	result := pushes.NewSet()
	filterRequires(filter, result)
	return result
}

// Union of the requirements of all metrics.
func RequiresAll(metrics ...Metric) *pushes.Set {
	result := pushes.NewSet()
	for _, metric := range metrics {
		requires(metric, result)
	}
	return result
}

func requires(metric Metric, set *pushes.Set) {
	switch t := metric.(type) {
	case *DocStats:
		set.Add(t.Push)
	case *Binary:
		requires(t.Lhs, set)
		requires(t.Rhs, set)
	case *Unary:
		requires(t.Inner, set)
	case *IfThenElse:
		filterRequires(t.Condition, set)
		requires(t.Then, set)
		requires(t.Else, set)
	case *Running:
		requires(t.Inner, set)
	case *Window:
		requires(t.Inner, set)
	case *SumChildren:
		requires(t.Inner, set)
	case *ParentLag:
		requires(t.Inner, set)
	case *IterateLag:
		requires(t.Inner, set)
	}
}

func filterRequires(filter Filter, set *pushes.Set) {
	switch t := filter.(type) {
	case *And:
		filterRequires(t.Lhs, set)
		filterRequires(t.Rhs, set)
	case *Or:
		filterRequires(t.Lhs, set)
		filterRequires(t.Rhs, set)
	case *Not:
		filterRequires(t.Inner, set)
	case *MetricCompare:
		requires(t.Lhs, set)
		requires(t.Rhs, set)
	}
}
