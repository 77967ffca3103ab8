// Operator protocols used by aggregate expressions.
//
// All aggregate values flow through double precision. Division and
// modulus follow IEEE semantics so dividing by zero produces an
// infinity or NaN rather than an error - this matches how the values
// are rendered downstream.

package protocols

import (
	"fmt"
	"math"
)

type ArithOp int

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Mod
	Pow
	Min
	Max
)

var arith_names = map[ArithOp]string{
	Add: "+",
	Sub: "-",
	Mul: "*",
	Div: "/",
	Mod: "%",
	Pow: "^",
	Min: "min",
	Max: "max",
}

func (self ArithOp) String() string {
	name, pres := arith_names[self]
	if !pres {
		return fmt.Sprintf("ArithOp(%d)", int(self))
	}
	return name
}

// Arithmetic table
// op    result
// +     lhs + rhs
// -     lhs - rhs
// *     lhs * rhs
// /     lhs / rhs  (IEEE: x/0 -> +-Inf, 0/0 -> NaN)
// %     math.Mod(lhs, rhs) (sign of lhs)
// ^     math.Pow(lhs, rhs)
// min   math.Min
// max   math.Max
func Arith(op ArithOp, lhs, rhs float64) float64 {
	switch op {
	case Add:
		return lhs + rhs
	case Sub:
		return lhs - rhs
	case Mul:
		return lhs * rhs
	case Div:
		return lhs / rhs
	case Mod:
		return math.Mod(lhs, rhs)
	case Pow:
		return math.Pow(lhs, rhs)
	case Min:
		return math.Min(lhs, rhs)
	case Max:
		return math.Max(lhs, rhs)
	}
	panic(fmt.Sprintf("unknown arithmetic operator %v", op))
}

// Apply an operator element wise to two dense group arrays. The
// result is written into lhs which is returned. Element 0 is not a
// group and is left alone.
func ArithArrays(op ArithOp, lhs, rhs []float64) []float64 {
	for i := 1; i < len(lhs) && i < len(rhs); i++ {
		lhs[i] = Arith(op, lhs[i], rhs[i])
	}
	return lhs
}

type UnaryOp int

const (
	Negate UnaryOp = iota
	Abs
	Signum
	Log
)

func Unary(op UnaryOp, value float64) float64 {
	switch op {
	case Negate:
		return -value
	case Abs:
		return math.Abs(value)
	case Signum:
		switch {
		case value > 0:
			return 1
		case value < 0:
			return -1
		}
		// Preserves NaN and signed zero.
		return value
	case Log:
		return math.Log(value)
	}
	panic(fmt.Sprintf("unknown unary operator %d", int(op)))
}
