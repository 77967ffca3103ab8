package aggregates

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle"
	"github.com/alecthomas/participle/lexer"
	"github.com/pkg/errors"
	"www.velocidex.com/golang/vgroup/docmetric"
	"www.velocidex.com/golang/vgroup/protocols"
	"www.velocidex.com/golang/vgroup/types"
	"www.velocidex.com/golang/vgroup/utils"
)

// Aggregate expressions look like:
//
//	running([count()]) / sum_children([count()])
//	window(7, [clicks] / [impressions])
//	if(is_default(), 0, ds1.[count()] - ds2.[count()])
//
// A bracketed document metric is summed over every dataset in scope
// unless qualified with a dataset name.
var (
	aggLexer = lexer.Must(lexer.Regexp(
		`(?ms)` +
			`(\s+)` +
			`|(?P<DocMetric>\[[^\]]*\])` +
			`|(?ims)(?P<AND>\bAND\b)` +
			`|(?ims)(?P<OR>\bOR\b)` +
			`|(?ims)(?P<NOT>\bNOT\b)` +
			`|(?ims)(?P<BOOL>\bTRUE\b|\bFALSE\b)` +
			"|(?P<Ident>[a-zA-Z_][a-zA-Z0-9_]*|`[^`]+`)" +
			`|(?P<String>'([^'\\]*(\\.[^'\\]*)*)'|"([^"\\]*(\\.[^"\\]*)*)")` +
			`|(?P<Number>\d*\.?\d+([eE][-+]?\d+)?)` +
			`|(?P<Operators>!=|<=|>=|=~|[-+*/%^,.()=<>])`,
	))

	aggParser = participle.MustBuild(
		&_Expression{},
		participle.Lexer(aggLexer),
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
	Operator string `[ @( "<=" | ">=" | "!=" | "=~" | "=" | "<" | ">" ) `
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
	Left  *_Power      `@@`
	Right []*_OpFactor `{ @@ }`
}

type _OpFactor struct {
	Operator string  `@( "*" | "/" | "%" )`
	Factor   *_Power `@@`
}

type _Power struct {
	Left     *_Value `@@`
	Exponent *_Power `[ "^" @@ ]`
}

type _Value struct {
	Negated       bool         `[ @"-" ]`
	Number        *string      `( @Number `
	String        *string      `| @String `
	Boolean       *string      `| @BOOL `
	DocMetric     *string      `| @DocMetric `
	Symbol        *_SymbolRef  `| @@ `
	Subexpression *_Expression `| "(" @@ ")" )`
}

type _SymbolRef struct {
	Symbol     string         `@Ident`
	Qualified  *string        `[ "." @DocMetric ]`
	Called     bool           `[ @"(" `
	Parameters []*_Expression ` [ @@ { "," @@ } ] ")" ]`
}

// ParseMetric parses an aggregate metric. Unqualified document
// metrics are summed over datasets.
func ParseMetric(expression string, datasets []string) (Metric, error) {
	ast, err := parse(expression)
	if err != nil {
		return nil, err
	}
	builder := &astBuilder{datasets: datasets}
	return builder.metric(ast)
}

func ParseFilter(expression string, datasets []string) (Filter, error) {
	ast, err := parse(expression)
	if err != nil {
		return nil, err
	}
	builder := &astBuilder{datasets: datasets}
	return builder.filter(ast)
}

func parse(expression string) (*_Expression, error) {
	ast := &_Expression{}
	err := aggParser.ParseString(expression, ast)
	if err != nil {
		return nil, errors.Wrapf(types.ErrContract, "parse %q: %v", expression, err)
	}
	return ast, nil
}

type astBuilder struct {
	datasets []string
}

// An expression is boolean if it uses any logical or comparison
// operator at its top level.
func (self *_Expression) isBoolean() bool {
	if len(self.Right) > 0 || len(self.Left.Right) > 0 {
		return true
	}
	not := self.Left.Left
	if not.Not != nil {
		return true
	}
	return not.Operand.Operator != ""
}

// The sum when the expression has no logical structure.
func (self *_Expression) arithmetic() *_Sum {
	if self.isBoolean() {
		return nil
	}
	return self.Left.Left.Operand.Left
}

func (self *astBuilder) metric(expr *_Expression) (Metric, error) {
	sum := expr.arithmetic()
	if sum == nil {
		// Booleans used as metrics count as 0 or 1.
		filter, err := self.filter(expr)
		if err != nil {
			return nil, err
		}
		return &IfThenElse{
			Condition: filter,
			Then:      NewConstant(1),
			Else:      NewConstant(0),
		}, nil
	}
	return self.sum(sum)
}

func (self *astBuilder) sum(sum *_Sum) (Metric, error) {
	result, err := self.product(sum.Left)
	if err != nil {
		return nil, err
	}

	for _, term := range sum.Right {
		rhs, err := self.product(term.Term)
		if err != nil {
			return nil, err
		}
		if term.Operator == "+" {
			result = NewAdd(result, rhs)
		} else {
			result = NewSubtract(result, rhs)
		}
	}
	return result, nil
}

func (self *astBuilder) product(product *_Product) (Metric, error) {
	result, err := self.power(product.Left)
	if err != nil {
		return nil, err
	}

	for _, factor := range product.Right {
		rhs, err := self.power(factor.Factor)
		if err != nil {
			return nil, err
		}
		switch factor.Operator {
		case "*":
			result = NewMultiply(result, rhs)
		case "/":
			result = NewDivide(result, rhs)
		case "%":
			result = NewModulus(result, rhs)
		}
	}
	return result, nil
}

func (self *astBuilder) power(power *_Power) (Metric, error) {
	base, err := self.value(power.Left)
	if err != nil {
		return nil, err
	}
	if power.Exponent == nil {
		return base, nil
	}
	exponent, err := self.power(power.Exponent)
	if err != nil {
		return nil, err
	}
	return NewPower(base, exponent), nil
}

func (self *astBuilder) value(value *_Value) (Metric, error) {
	result, err := self.unsigned(value)
	if err != nil {
		return nil, err
	}
	if value.Negated {
		return &Unary{Op: protocols.Negate, Inner: result}, nil
	}
	return result, nil
}

func (self *astBuilder) unsigned(value *_Value) (Metric, error) {
	switch {
	case value.Number != nil:
		number, err := strconv.ParseFloat(*value.Number, 64)
		if err != nil {
			return nil, types.Contract("invalid number %v", *value.Number)
		}
		return NewConstant(number), nil

	case value.Boolean != nil:
		if strings.EqualFold(*value.Boolean, "true") {
			return NewConstant(1), nil
		}
		return NewConstant(0), nil

	case value.String != nil:
		return nil, types.Contract("string %v is not a metric", *value.String)

	case value.DocMetric != nil:
		return self.docMetric("", *value.DocMetric)

	case value.Symbol != nil:
		return self.symbol(value.Symbol)

	case value.Subexpression != nil:
		return self.metric(value.Subexpression)
	}
	return nil, types.Contract("empty expression")
}

func (self *astBuilder) docMetric(dataset, token string) (Metric, error) {
	pushes, err := docmetric.Compile(strings.TrimSuffix(
		strings.TrimPrefix(token, "["), "]"))
	if err != nil {
		return nil, err
	}

	if dataset != "" {
		return NewDocStats(dataset, pushes...), nil
	}
	if len(self.datasets) == 0 {
		return nil, types.Contract("document metric %v has no datasets in scope", token)
	}
	return NewSumOverSessions(self.datasets, pushes...), nil
}

func (self *astBuilder) symbol(symbol *_SymbolRef) (Metric, error) {
	name := utils.UnquoteIdent(symbol.Symbol)
	if symbol.Qualified != nil {
		return self.docMetric(name, *symbol.Qualified)
	}

	// A bare name refers to a named result.
	if !symbol.Called {
		return NewLookup(name), nil
	}

	args := symbol.Parameters
	switch strings.ToLower(name) {
	case "running":
		inner, err := self.oneMetric(name, args)
		if err != nil {
			return nil, err
		}
		return NewRunning(inner), nil

	case "sum_children":
		inner, err := self.oneMetric(name, args)
		if err != nil {
			return nil, err
		}
		return NewSumChildren(inner), nil

	case "abs", "signum", "log":
		inner, err := self.oneMetric(name, args)
		if err != nil {
			return nil, err
		}
		op := map[string]protocols.UnaryOp{
			"abs":    protocols.Abs,
			"signum": protocols.Signum,
			"log":    protocols.Log,
		}[strings.ToLower(name)]
		return &Unary{Op: op, Inner: inner}, nil

	case "window", "parent_lag", "lag", "iterate_lag":
		if len(args) != 2 {
			return nil, types.Contract("%v() takes a size and a metric", name)
		}
		size, err := self.integer(args[0])
		if err != nil {
			return nil, err
		}
		inner, err := self.metric(args[1])
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(name) {
		case "window":
			return NewWindow(size, inner), nil
		case "iterate_lag":
			return NewIterateLag(size, inner), nil
		}
		return NewParentLag(size, inner), nil

	case "min", "max":
		if len(args) < 2 {
			return nil, types.Contract("%v() needs at least two metrics", name)
		}
		op := protocols.Min
		if strings.ToLower(name) == "max" {
			op = protocols.Max
		}
		result, err := self.metric(args[0])
		if err != nil {
			return nil, err
		}
		for _, arg := range args[1:] {
			rhs, err := self.metric(arg)
			if err != nil {
				return nil, err
			}
			result = &Binary{Op: op, Lhs: result, Rhs: rhs}
		}
		return result, nil

	case "if":
		if len(args) != 3 {
			return nil, types.Contract("if() takes a condition and two metrics")
		}
		cond, err := self.filter(args[0])
		if err != nil {
			return nil, err
		}
		then, err := self.metric(args[1])
		if err != nil {
			return nil, err
		}
		otherwise, err := self.metric(args[2])
		if err != nil {
			return nil, err
		}
		return &IfThenElse{Condition: cond, Then: then, Else: otherwise}, nil

	case "lookup":
		if len(args) != 1 {
			return nil, types.Contract("lookup() takes a name")
		}
		name, err := self.str(args[0])
		if err != nil {
			return nil, err
		}
		return NewLookup(name), nil
	}

	return nil, types.Contract("unknown function %v()", name)
}

func (self *astBuilder) oneMetric(name string, args []*_Expression) (Metric, error) {
	if len(args) != 1 {
		return nil, types.Contract("%v() takes exactly one metric", name)
	}
	return self.metric(args[0])
}

func (self *astBuilder) integer(expr *_Expression) (int, error) {
	metric, err := self.metric(expr)
	if err != nil {
		return 0, err
	}
	constant, ok := metric.(*Constant)
	if !ok || constant.Value != float64(int(constant.Value)) {
		return 0, types.Contract("expected an integer constant")
	}
	return int(constant.Value), nil
}

// The literal value of an expression consisting of a single value.
func (self *_Expression) literal() *_Value {
	sum := self.arithmetic()
	if sum == nil || len(sum.Right) > 0 || len(sum.Left.Right) > 0 ||
		sum.Left.Left.Exponent != nil {
		return nil
	}
	return sum.Left.Left.Left
}

func (self *astBuilder) str(expr *_Expression) (string, error) {
	value := expr.literal()
	if value == nil || value.String == nil {
		return "", types.Contract("expected a string")
	}
	return utils.Unquote(*value.String), nil
}

func (self *astBuilder) filter(expr *_Expression) (Filter, error) {
	result, err := self.andFilter(expr.Left)
	if err != nil {
		return nil, err
	}
	for _, term := range expr.Right {
		rhs, err := self.andFilter(term.Term)
		if err != nil {
			return nil, err
		}
		result = NewOr(result, rhs)
	}
	return result, nil
}

func (self *astBuilder) andFilter(expr *_AndExpression) (Filter, error) {
	result, err := self.notFilter(expr.Left)
	if err != nil {
		return nil, err
	}
	for _, term := range expr.Right {
		rhs, err := self.notFilter(term.Term)
		if err != nil {
			return nil, err
		}
		result = NewAnd(result, rhs)
	}
	return result, nil
}

func (self *astBuilder) notFilter(expr *_NotExpression) (Filter, error) {
	if expr.Not != nil {
		inner, err := self.notFilter(expr.Not)
		if err != nil {
			return nil, err
		}
		return NewNot(inner), nil
	}
	return self.comparison(expr.Operand)
}

var compare_ops = map[string]protocols.CompareOp{
	"=":  protocols.Eq,
	"!=": protocols.Ne,
	"<":  protocols.Lt,
	"<=": protocols.Le,
	">":  protocols.Gt,
	">=": protocols.Ge,
}

func (self *astBuilder) comparison(cmp *_Comparison) (Filter, error) {
	if cmp.Operator == "" {
		return self.bareFilter(cmp.Left)
	}

	if isTermSymbol(cmp.Left) {
		return self.termFilter(cmp.Operator, cmp.Right)
	}

	if cmp.Operator == "=~" {
		return nil, types.Contract("=~ only applies to term")
	}

	lhs, err := self.sum(cmp.Left)
	if err != nil {
		return nil, err
	}
	rhs, err := self.sum(cmp.Right)
	if err != nil {
		return nil, err
	}
	return NewCompare(compare_ops[cmp.Operator], lhs, rhs), nil
}

func singleValue(sum *_Sum) *_Value {
	if len(sum.Right) > 0 || len(sum.Left.Right) > 0 || sum.Left.Left.Exponent != nil {
		return nil
	}
	return sum.Left.Left.Left
}

func isTermSymbol(sum *_Sum) bool {
	value := singleValue(sum)
	return value != nil && !value.Negated && value.Symbol != nil &&
		!value.Symbol.Called && value.Symbol.Qualified == nil &&
		strings.EqualFold(value.Symbol.Symbol, "term")
}

// term = "x", term = 5, term != "x" and term =~ "regex".
func (self *astBuilder) termFilter(operator string, rhs *_Sum) (Filter, error) {
	value := singleValue(rhs)
	if value == nil {
		return nil, types.Contract("term can only be compared to a literal")
	}

	switch operator {
	case "=~":
		if value.String == nil {
			return nil, types.Contract("term =~ needs a string pattern")
		}
		return NewTermRegex(utils.Unquote(*value.String)), nil

	case "=", "!=":
		var term types.Term
		switch {
		case value.String != nil:
			term = types.StringTerm(utils.Unquote(*value.String))
		case value.Number != nil:
			number, err := strconv.ParseInt(*value.Number, 10, 64)
			if err != nil {
				return nil, types.Contract("int term expected, not %v", *value.Number)
			}
			if value.Negated {
				number = -number
			}
			term = types.IntTerm(number)
		default:
			return nil, types.Contract("term can only be compared to a literal")
		}

		result := NewTermEquals(term)
		if operator == "!=" {
			result = NewNot(result)
		}
		return result, nil
	}

	return nil, types.Contract("unsupported term comparison %v", operator)
}

func (self *astBuilder) bareFilter(sum *_Sum) (Filter, error) {
	value := singleValue(sum)
	if value != nil && !value.Negated {
		switch {
		case value.Boolean != nil:
			return &BoolConstant{Value: strings.EqualFold(*value.Boolean, "true")}, nil

		case value.Subexpression != nil:
			return self.filter(value.Subexpression)

		case value.Symbol != nil && value.Symbol.Called &&
			strings.EqualFold(value.Symbol.Symbol, "is_default"):
			return &IsDefaultGroup{}, nil
		}
	}

	// Any other metric is true when non zero.
	metric, err := self.sum(sum)
	if err != nil {
		return nil, err
	}
	return NewCompare(protocols.Ne, metric, NewConstant(0)), nil
}
