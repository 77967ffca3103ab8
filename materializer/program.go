package materializer

import (
	"strconv"
	"strings"

	"www.velocidex.com/golang/vgroup/docmetric"
	"www.velocidex.com/golang/vgroup/types"
)

type instruction func(doc *Document, stack []int64) ([]int64, error)

// A compiled push program. Running it on a document must leave a
// single value on the stack.
type program struct {
	source       []string
	instructions []instruction
}

func compileProgram(pushes []string) (*program, error) {
	result := &program{source: pushes}
	depth := 0
	for _, push := range pushes {
		inst, pops, err := compileInstruction(push)
		if err != nil {
			return nil, err
		}
		if depth < pops {
			return nil, types.Contract("push %q needs %d values on the stack", push, pops)
		}
		depth = depth - pops + 1
		result.instructions = append(result.instructions, inst)
	}

	if depth != 1 {
		return nil, types.Contract("pushes %v leave %d values on the stack", pushes, depth)
	}
	return result, nil
}

func (self *program) eval(doc *Document, stack []int64) (int64, error) {
	stack = stack[:0]
	var err error
	for _, inst := range self.instructions {
		stack, err = inst(doc, stack)
		if err != nil {
			return 0, err
		}
	}
	return stack[len(stack)-1], nil
}

func binary(fn func(a, b int64) int64) instruction {
	return func(doc *Document, stack []int64) ([]int64, error) {
		n := len(stack)
		stack[n-2] = fn(stack[n-2], stack[n-1])
		return stack[:n-1], nil
	}
}

func boolValue(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

var binary_ops = map[string]func(a, b int64) int64{
	"+": func(a, b int64) int64 { return a + b },
	"-": func(a, b int64) int64 { return a - b },
	"*": func(a, b int64) int64 { return a * b },

	// Integer division by zero yields 0 like the remote index does.
	"/": func(a, b int64) int64 {
		if b == 0 {
			return 0
		}
		return a / b
	},
	"%": func(a, b int64) int64 {
		if b == 0 {
			return 0
		}
		return a % b
	},
	"=":  func(a, b int64) int64 { return boolValue(a == b) },
	"!=": func(a, b int64) int64 { return boolValue(a != b) },
	"<":  func(a, b int64) int64 { return boolValue(a < b) },
	"<=": func(a, b int64) int64 { return boolValue(a <= b) },
	">":  func(a, b int64) int64 { return boolValue(a > b) },
	">=": func(a, b int64) int64 { return boolValue(a >= b) },
	docmetric.Min: func(a, b int64) int64 {
		if a < b {
			return a
		}
		return b
	},
	docmetric.Max: func(a, b int64) int64 {
		if a > b {
			return a
		}
		return b
	},
}

func push(fn func(doc *Document) int64) instruction {
	return func(doc *Document, stack []int64) ([]int64, error) {
		return append(stack, fn(doc)), nil
	}
}

// Returns the instruction and the number of values it pops.
func compileInstruction(token string) (instruction, int, error) {
	if fn, pres := binary_ops[token]; pres {
		return binary(fn), 2, nil
	}

	if value, ok := docmetric.ParseConstant(token); ok {
		return push(func(doc *Document) int64 { return value }), 0, nil
	}

	switch token {
	case docmetric.Count:
		return push(func(doc *Document) int64 { return 1 }), 0, nil

	case docmetric.Abs:
		return func(doc *Document, stack []int64) ([]int64, error) {
			n := len(stack)
			if stack[n-1] < 0 {
				stack[n-1] = -stack[n-1]
			}
			return stack, nil
		}, 1, nil
	}

	kind, field, term, ok := docmetric.ParseHas(token)
	if ok {
		if kind == "hasstr" {
			return push(func(doc *Document) int64 {
				return boolValue(doc.HasStr(field, term))
			}), 0, nil
		}

		value, err := strconv.ParseInt(term, 10, 64)
		if err != nil {
			return nil, 0, types.Contract("hasint needs an int term: %q", token)
		}
		return push(func(doc *Document) int64 {
			return boolValue(doc.HasInt(field, value))
		}), 0, nil
	}

	if token == "" || strings.ContainsAny(token, " ()") {
		return nil, 0, types.Contract("unknown push %q", token)
	}

	// Anything else is an int field.
	return push(func(doc *Document) int64 { return doc.Int(token) }), 0, nil
}
