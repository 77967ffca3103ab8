// Utility functions for extracting and validating the arguments of
// plan steps.
package arg_parser

import (
	"fmt"
	"reflect"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vgroup/types"
	"www.velocidex.com/golang/vgroup/utils"
)

// Extract the content of args into the struct value. Value's members
// should be tagged with the "vgroup" tag:

// type ExplodeFieldIn struct {
//    Field string `vgroup:"required,field=field"`
// }

// We will raise an error if a required field is missing, an unknown
// arg is given or an arg has the wrong type.

// NOTE: In order for the field to be populated by this function, the
// field must be exported (i.e. name begins with cap) and it must have
// vgroup tags.
func ExtractArgs(args *ordereddict.Dict, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return types.Contract("ExtractArgs() needs a pointer to a struct not %T", target)
	}
	v = v.Elem()

	parser, err := GetParser(v)
	if err != nil {
		return err
	}

	if args == nil {
		args = ordereddict.NewDict()
	}
	return parser.Parse(args, v)
}

// Coerce the arg into something resembling a list of strings. A
// single value expands into a list of length 1.
func ToStringArray(arg types.Any) []string {
	var result []string
	for _, value := range ToAnyArray(arg) {
		item, ok := utils.ToString(value)
		if !ok {
			item = fmt.Sprintf("%v", value)
		}
		result = append(result, item)
	}
	return result
}

func ToAnyArray(arg types.Any) []types.Any {
	var result []types.Any
	if utils.IsNil(arg) {
		return result
	}

	slice := reflect.ValueOf(arg)
	if slice.Kind() == reflect.Slice || slice.Kind() == reflect.Array {
		for i := 0; i < slice.Len(); i++ {
			result = append(result, slice.Index(i).Interface())
		}
		return result
	}

	return append(result, arg)
}
