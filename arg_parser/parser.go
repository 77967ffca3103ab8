package arg_parser

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Velocidex/ordereddict"
	errors "github.com/pkg/errors"
	"www.velocidex.com/golang/vgroup/types"
	"www.velocidex.com/golang/vgroup/utils"
)

type tmpTypes struct {
	any types.Any
}

var (
	// A bit of a hack to get the type of interface fields
	testType = tmpTypes{}
	anyType  = reflect.ValueOf(testType).Type().Field(0).Type
)

// Structs may tag fields with this name to control parsing.
const tagName = "vgroup"

type FieldParser struct {
	Field    string
	FieldIdx int
	Required bool

	// Go type of the target field, for help output.
	Type   string
	Parser func(value interface{}) (interface{}, error)
}

type Parser struct {
	Fields []*FieldParser
}

func (self *Parser) Parse(args *ordereddict.Dict, target reflect.Value) error {
	parsed := make([]string, 0, args.Len())

	for _, parser := range self.Fields {
		value, pres := args.Get(parser.Field)
		if !pres {
			if parser.Required {
				return types.Contract("field %s is required", parser.Field)
			}
			continue
		}

		// Keep track of the fields we parsed.
		parsed = append(parsed, parser.Field)

		// Convert the value using the parser
		new_value, err := parser.Parser(value)
		if err != nil {
			return errors.Wrapf(types.ErrContract, "field %s: %v", parser.Field, err)
		}

		// Now set the field on the struct.
		err = setValue(target.Field(parser.FieldIdx), new_value)
		if err != nil {
			return errors.Wrapf(types.ErrContract, "field %s: %v", parser.Field, err)
		}
	}

	// Something is wrong! We did not extract all the fields from
	// the args, there may be unexpected args.
	if len(parsed) != args.Len() {
		for _, key := range args.Keys() {
			if !utils.InString(parsed, key) {
				return types.Contract("unexpected arg %v", key)
			}
		}
	}

	return nil
}

func setValue(field reflect.Value, value interface{}) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	v := reflect.ValueOf(value)
	if v.Type().ConvertibleTo(field.Type()) {
		field.Set(v.Convert(field.Type()))
		return nil
	}

	// Slices of interfaces are copied element by element.
	if v.Kind() == reflect.Slice && field.Kind() == reflect.Slice {
		result := reflect.MakeSlice(field.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			err := setValue(result.Index(i), v.Index(i).Interface())
			if err != nil {
				return err
			}
		}
		field.Set(result)
		return nil
	}

	return fmt.Errorf("cannot assign %T", value)
}

func anyParser(arg interface{}) (interface{}, error) {
	return arg, nil
}

func stringParser(arg interface{}) (interface{}, error) {
	// If we expect a string and we get an array of length 1 of
	// strings, we just take the first element.
	if utils.IsArray(arg) {
		new_value := ToStringArray(arg)
		if len(new_value) == 1 {
			return new_value[0], nil
		}
		return nil, errors.New("should be a string not a list")
	}

	switch t := arg.(type) {
	case string:
		return t, nil

	case nil:
		return "", nil
	default:
		return fmt.Sprintf("%v", arg), nil
	}
}

func stringSliceParser(arg interface{}) (interface{}, error) {
	if arg == nil {
		return []string{}, nil
	}
	return ToStringArray(arg), nil
}

func int64SliceParser(arg interface{}) (interface{}, error) {
	items := ToAnyArray(arg)
	result := make([]int64, 0, len(items))
	for _, item := range items {
		a, ok := utils.ToInt64(item)
		if !ok {
			return nil, fmt.Errorf("should be a list of ints not %T", item)
		}
		result = append(result, a)
	}
	return result, nil
}

func floatSliceParser(arg interface{}) (interface{}, error) {
	items := ToAnyArray(arg)
	result := make([]float64, 0, len(items))
	for _, item := range items {
		a, ok := utils.ToFloat(item)
		if !ok {
			return nil, fmt.Errorf("should be a list of floats not %T", item)
		}
		result = append(result, a)
	}
	return result, nil
}

func anySliceParser(arg interface{}) (interface{}, error) {
	return ToAnyArray(arg), nil
}

func boolParser(arg interface{}) (interface{}, error) {
	a, ok := utils.ToBool(arg)
	if ok {
		return a, nil
	}
	return nil, fmt.Errorf("should be a bool not %T", arg)
}

func floatParser(arg interface{}) (interface{}, error) {
	a, ok := utils.ToFloat(arg)
	if ok {
		return a, nil
	}
	return nil, fmt.Errorf("should be a float not %T", arg)
}

func int64Parser(arg interface{}) (interface{}, error) {
	a, ok := utils.ToInt64(arg)
	if ok {
		return a, nil
	}
	return nil, errors.New("should be an int")
}

func intParser(arg interface{}) (interface{}, error) {
	a, ok := utils.ToInt64(arg)
	if ok {
		return int(a), nil
	}
	return nil, errors.New("should be an int")
}

// Builds a cacheable parser for the struct type of v.
func BuildParser(v reflect.Value) (*Parser, error) {
	t := v.Type()

	if t.Kind() != reflect.Struct {
		return nil, types.Contract("only structs can be set with ExtractArgs()")
	}

	result := &Parser{}

	for i := 0; i < v.NumField(); i++ {
		// Get the field tag value
		field_types_value := t.Field(i)

		tag := field_types_value.Tag.Get(tagName)

		// Skip if tag is not defined or ignored
		if tag == "" || tag == "-" {
			continue
		}

		directives := strings.Split(tag, ",")
		options := make(map[string]string)
		for _, directive := range directives {
			if strings.Contains(directive, "=") {
				components := strings.Split(directive, "=")
				if len(components) >= 2 {
					options[components[0]] = components[1]
				}
			} else {
				options[directive] = "Y"
			}
		}

		// Is the name specified in the tag?
		field_name, pres := options["field"]
		if !pres {
			field_name = field_types_value.Name
		}

		if field_name == "" {
			return nil, types.Contract("fields can not be empty")
		}

		_, required := options["required"]
		field_parser := &FieldParser{
			Field:    field_name,
			FieldIdx: i,
			Required: required,
			Type:     field_types_value.Type.String(),
		}
		result.Fields = append(result.Fields, field_parser)

		field_value := v.Field(field_types_value.Index[0])
		if !field_value.IsValid() || !field_value.CanSet() {
			return nil, types.Contract("field %s is unsettable", field_name)
		}

		// The target field is an types.Any type - just assign it directly.
		if field_types_value.Type == anyType {
			field_parser.Parser = anyParser
			continue
		}

		// Supported target field types:
		switch field_types_value.Type.Kind() {

		case reflect.Slice:
			switch field_types_value.Type.Elem().Kind() {
			case reflect.String:
				field_parser.Parser = stringSliceParser
			case reflect.Int64:
				field_parser.Parser = int64SliceParser
			case reflect.Float64:
				field_parser.Parser = floatSliceParser
			case reflect.Interface:
				field_parser.Parser = anySliceParser
			default:
				return nil, types.Contract("unsupported slice type for field %v", field_name)
			}
			continue

		case reflect.String:
			field_parser.Parser = stringParser
			continue

		case reflect.Bool:
			field_parser.Parser = boolParser
			continue

		case reflect.Float64:
			field_parser.Parser = floatParser
			continue

		case reflect.Int64:
			field_parser.Parser = int64Parser
			continue

		case reflect.Int:
			field_parser.Parser = intParser
			continue

		default:
			return nil, types.Contract("unsupported type for field %v", field_name)
		}

	}

	return result, nil
}
