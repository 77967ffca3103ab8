package utils

import (
	"reflect"
	"strconv"
	"strings"
)

func IsNil(i interface{}) bool {
	if i == nil {
		return true
	}

	switch reflect.TypeOf(i).Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Slice:
		return reflect.ValueOf(i).IsNil()
	}
	return false
}

func InString(hay []string, needle string) bool {
	for _, x := range hay {
		if x == needle {
			return true
		}
	}

	return false
}

func IsArray(a interface{}) bool {
	rt := reflect.TypeOf(a)
	if rt == nil {
		return false
	}
	return rt.Kind() == reflect.Slice || rt.Kind() == reflect.Array
}

// Try very hard to convert to a string
func ToString(x interface{}) (string, bool) {
	switch t := x.(type) {
	case string:
		return t, true
	case *string:
		return *t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}

func ToFloat(x interface{}) (float64, bool) {
	switch t := x.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case string:
		result, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return result, err == nil
	case interface{ Float64() (float64, error) }:
		result, err := t.Float64()
		return result, err == nil
	}

	result, ok := ToInt64(x)
	return float64(result), ok
}

func ToInt64(x interface{}) (int64, bool) {
	switch t := x.(type) {
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case int:
		return int64(t), true
	case uint8:
		return int64(t), true
	case int8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case int16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case int32:
		return int64(t), true
	case uint64:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t != float64(int64(t)) {
			return 0, false
		}
		return int64(t), true

	// Numbers decoded by json with UseNumber()
	case interface{ Int64() (int64, error) }:
		result, err := t.Int64()
		return result, err == nil

	case string:
		result, err := strconv.ParseInt(strings.TrimSpace(t), 0, 64)
		return result, err == nil

	default:
		return 0, false
	}
}

func ToBool(x interface{}) (bool, bool) {
	switch t := x.(type) {
	case bool:
		return t, true
	case string:
		result, err := strconv.ParseBool(strings.TrimSpace(t))
		return result, err == nil
	case nil:
		return false, true
	}

	result, ok := ToInt64(x)
	return result != 0, ok
}
