// Document metrics are computed by the remote index for every
// document. They are expressed as a postfix program of primitive
// push instructions which leaves exactly one value on the stack:
//
//	count()          1 for every document
//	<integer>        a constant
//	<field>          the value of an int field (0 when missing)
//	hasint f:N       1 if the document has int term N in field f
//	hasstr f:S       1 if the document has string term S in field f
//	+ - * / %        arithmetic on the top two values
//	= != < <= > >=   comparison of the top two values (0 or 1)
//	min() max()      of the top two values
//	abs()            of the top value
//
// This package compiles the human readable form into that program.

package docmetric

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
	"github.com/pkg/errors"
	"www.velocidex.com/golang/vgroup/types"
	"www.velocidex.com/golang/vgroup/utils"
)

const (
	Count = "count()"
	Abs   = "abs()"
	Min   = "min()"
	Max   = "max()"
)

var (
	docLexer = lexer.Must(lexer.Regexp(
		`(?ms)` +
			`(\s+)` +
			`|(?ims)(?P<AND>\bAND\b)` +
			`|(?ims)(?P<OR>\bOR\b)` +
			`|(?ims)(?P<NOT>\bNOT\b)` +
			"|(?P<Ident>[a-zA-Z_][a-zA-Z0-9_.]*|`[^`]+`)" +
			`|(?P<String>'([^'\\]*(\\.[^'\\]*)*)'|"([^"\\]*(\\.[^"\\]*)*)")` +
			`|(?P<Number>\d+)` +
			`|(?P<Operators>!=|<=|>=|[-+*/%,()=<>])`,
	))

	docParser = participle.MustBuild(
		&_Expression{},
		participle.Lexer(docLexer),
	)
)

type _Expression struct {
	Left  *_AndExpression `@@`
	Right []*_OpOrTerm    `{ @@ }`
}

type _OpOrTerm struct {
	Operator string          `@OR`
	Term     *_AndExpression `@@`
}

type _AndExpression struct {
	Left  *_NotExpression `@@`
	Right []*_OpAndTerm   `{ @@ }`
}

type _OpAndTerm struct {
	Operator string          `@AND`
	Term     *_NotExpression `@@`
}

type _NotExpression struct {
	Not     *_NotExpression `( NOT @@ `
	Operand *_Comparison    `| @@ )`
}

type _Comparison struct {
	Left     *_Sum  `@@`
	Operator string `[ @( "<=" | ">=" | "!=" | "=" | "<" | ">" ) `
	Right    *_Sum  ` @@ ]`
}

type _Sum struct {
	Left  *_Product `@@`
	Right []*_OpSum `{ @@ }`
}

type _OpSum struct {
	Operator string    `@( "+" | "-" )`
	Term     *_Product `@@`
}

type _Product struct {
	Left  *_Value      `@@`
	Right []*_OpFactor `{ @@ }`
}

type _OpFactor struct {
	Operator string  `@( "*" | "/" | "%" )`
	Factor   *_Value `@@`
}

type _Value struct {
	Negated       bool         `[ @"-" ]`
	Number        *string      `( @Number `
	String        *string      `| @String `
	Symbol        *_SymbolRef  `| @@ `
	Subexpression *_Expression `| "(" @@ ")" )`
}

type _SymbolRef struct {
	Symbol     string         `@Ident`
	Called     bool           `[ @"(" `
	Parameters []*_Expression ` [ @@ { "," @@ } ] ")" ]`
}

// Compile a document metric into its push program.
func Compile(expression string) ([]string, error) {
	ast := &_Expression{}
	err := docParser.ParseString(expression, ast)
	if err != nil {
		return nil, errors.Wrapf(types.ErrContract,
			"document metric %q: %v", expression, err)
	}

	compiler := &compiler{}
	err = compiler.expression(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "document metric %q", expression)
	}
	return compiler.program, nil
}

// Compile a document filter. The program always leaves 0 or 1.
func CompileFilter(expression string) ([]string, error) {
	program, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	if !isBoolean(program) {
		program = append(program, "0", "!=")
	}
	return program, nil
}

func isBoolean(program []string) bool {
	if len(program) == 0 {
		return false
	}
	switch last := program[len(program)-1]; {
	case strings.HasPrefix(last, "hasint "), strings.HasPrefix(last, "hasstr "):
		return true
	default:
		_, pres := comparisons[last]
		return pres
	}
}

var comparisons = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

type compiler struct {
	program []string
}

func (self *compiler) emit(pushes ...string) {
	self.program = append(self.program, pushes...)
}

// Logical operators work on truth values so each operand is
// normalized to 0 or 1 first.
func (self *compiler) truth(emit func() error) error {
	start := len(self.program)
	err := emit()
	if err != nil {
		return err
	}
	if !isBoolean(self.program[start:]) {
		self.emit("0", "!=")
	}
	return nil
}

func (self *compiler) expression(expr *_Expression) error {
	if len(expr.Right) == 0 {
		return self.and(expr.Left)
	}

	err := self.truth(func() error { return self.and(expr.Left) })
	if err != nil {
		return err
	}
	for _, term := range expr.Right {
		err := self.truth(func() error { return self.and(term.Term) })
		if err != nil {
			return err
		}
		self.emit(Max)
	}
	return nil
}

func (self *compiler) and(expr *_AndExpression) error {
	if len(expr.Right) == 0 {
		return self.not(expr.Left)
	}

	err := self.truth(func() error { return self.not(expr.Left) })
	if err != nil {
		return err
	}
	for _, term := range expr.Right {
		err := self.truth(func() error { return self.not(term.Term) })
		if err != nil {
			return err
		}
		self.emit("*")
	}
	return nil
}

func (self *compiler) not(expr *_NotExpression) error {
	if expr.Not == nil {
		return self.comparison(expr.Operand)
	}

	err := self.not(expr.Not)
	if err != nil {
		return err
	}
	self.emit("0", "=")
	return nil
}

func (self *compiler) comparison(cmp *_Comparison) error {
	if cmp.Operator == "" {
		return self.sum(cmp.Left)
	}

	// field = "term" tests for a string term.
	field := bareField(cmp.Left)
	value := singleValue(cmp.Right)
	if field != "" && value != nil && value.String != nil {
		test := "hasstr " + field + ":" + utils.Unquote(*value.String)
		switch cmp.Operator {
		case "=":
			self.emit(test)
			return nil
		case "!=":
			self.emit(test, "0", "=")
			return nil
		}
		return types.Contract("strings only support = and !=")
	}

	err := self.sum(cmp.Left)
	if err != nil {
		return err
	}
	err = self.sum(cmp.Right)
	if err != nil {
		return err
	}
	self.emit(cmp.Operator)
	return nil
}

// The sum when the expression has no logical structure.
func arithmetic(expr *_Expression) *_Sum {
	if len(expr.Right) > 0 || len(expr.Left.Right) > 0 ||
		expr.Left.Left.Not != nil || expr.Left.Left.Operand.Operator != "" {
		return nil
	}
	return expr.Left.Left.Operand.Left
}

func singleValue(sum *_Sum) *_Value {
	if sum == nil || len(sum.Right) > 0 || len(sum.Left.Right) > 0 {
		return nil
	}
	return sum.Left.Left
}

func bareField(sum *_Sum) string {
	value := singleValue(sum)
	if value == nil || value.Negated || value.Symbol == nil || value.Symbol.Called {
		return ""
	}
	return utils.UnquoteIdent(value.Symbol.Symbol)
}

func (self *compiler) sum(sum *_Sum) error {
	err := self.product(sum.Left)
	if err != nil {
		return err
	}
	for _, term := range sum.Right {
		err := self.product(term.Term)
		if err != nil {
			return err
		}
		self.emit(term.Operator)
	}
	return nil
}

func (self *compiler) product(product *_Product) error {
	err := self.value(product.Left)
	if err != nil {
		return err
	}
	for _, factor := range product.Right {
		err := self.value(factor.Factor)
		if err != nil {
			return err
		}
		self.emit(factor.Operator)
	}
	return nil
}

func (self *compiler) value(value *_Value) error {
	// Negation is 0 - x which needs the 0 below x on the stack.
	if value.Negated {
		if value.Number != nil {
			self.emit("-" + *value.Number)
			return nil
		}
		self.emit("0")
	}

	var err error
	switch {
	case value.Number != nil:
		self.emit(*value.Number)
	case value.String != nil:
		err = types.Contract("unexpected string %v", *value.String)
	case value.Symbol != nil:
		err = self.symbol(value.Symbol)
	case value.Subexpression != nil:
		err = self.expression(value.Subexpression)
	}
	if err != nil {
		return err
	}

	if value.Negated {
		self.emit("-")
	}
	return nil
}

func (self *compiler) symbol(symbol *_SymbolRef) error {
	name := utils.UnquoteIdent(symbol.Symbol)
	if !symbol.Called {
		self.emit(name)
		return nil
	}

	args := symbol.Parameters
	switch strings.ToLower(name) {
	case "count":
		if len(args) != 0 {
			return types.Contract("count() takes no arguments")
		}
		self.emit(Count)
		return nil

	case "abs":
		if len(args) != 1 {
			return types.Contract("abs() takes one argument")
		}
		err := self.expression(args[0])
		if err != nil {
			return err
		}
		self.emit(Abs)
		return nil

	case "min", "max":
		if len(args) < 2 {
			return types.Contract("%v() takes at least two arguments", name)
		}
		err := self.expression(args[0])
		if err != nil {
			return err
		}
		for _, arg := range args[1:] {
			err := self.expression(arg)
			if err != nil {
				return err
			}
			self.emit(strings.ToLower(name) + "()")
		}
		return nil

	case "hasint", "hasstr":
		if len(args) != 2 {
			return types.Contract("%v() takes a field and a term", name)
		}
		field := bareField(arithmetic(args[0]))
		if field == "" {
			return types.Contract("%v() needs a field name", name)
		}
		value := singleValue(arithmetic(args[1]))
		if value == nil {
			return types.Contract("%v() needs a literal term", name)
		}

		if strings.ToLower(name) == "hasint" {
			if value.Number == nil {
				return types.Contract("hasint() needs an integer term")
			}
			term := *value.Number
			if value.Negated {
				term = "-" + term
			}
			self.emit(HasInt(field, term))
			return nil
		}

		switch {
		case value.String != nil:
			self.emit(HasStr(field, utils.Unquote(*value.String)))
		case value.Number != nil:
			self.emit(HasStr(field, *value.Number))
		default:
			return types.Contract("hasstr() needs a string term")
		}
		return nil
	}

	return types.Contract("unknown document function %v()", name)
}

func HasInt(field string, term string) string {
	return "hasint " + field + ":" + term
}

func HasStr(field string, term string) string {
	return "hasstr " + field + ":" + term
}

// Parse a hasint/hasstr push into its field and term.
func ParseHas(push string) (kind, field, term string, ok bool) {
	for _, prefix := range []string{"hasint ", "hasstr "} {
		if strings.HasPrefix(push, prefix) {
			rest := push[len(prefix):]
			idx := strings.Index(rest, ":")
			if idx < 0 {
				return "", "", "", false
			}
			return strings.TrimSpace(prefix), rest[:idx], rest[idx+1:], true
		}
	}
	return "", "", "", false
}

// Is the push an integer constant?
func ParseConstant(push string) (int64, bool) {
	value, err := strconv.ParseInt(push, 10, 64)
	return value, err == nil
}
