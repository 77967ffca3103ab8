package protocols

import "fmt"

type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

var compare_names = map[CompareOp]string{
	Eq: "=",
	Ne: "!=",
	Lt: "<",
	Le: "<=",
	Gt: ">",
	Ge: ">=",
}

func (self CompareOp) String() string {
	name, pres := compare_names[self]
	if !pres {
		return fmt.Sprintf("CompareOp(%d)", int(self))
	}
	return name
}

// Comparisons are exact on doubles. NaN compares false with
// everything except through Ne.
func Compare(op CompareOp, lhs, rhs float64) bool {
	switch op {
	case Eq:
		return lhs == rhs
	case Ne:
		return lhs != rhs
	case Lt:
		return lhs < rhs
	case Le:
		return lhs <= rhs
	case Gt:
		return lhs > rhs
	case Ge:
		return lhs >= rhs
	}
	panic(fmt.Sprintf("unknown comparison %v", op))
}

func Bool(value float64) float64 {
	if value != 0 {
		return 1
	}
	return 0
}
