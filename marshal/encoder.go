package marshal

import (
	"io"
	"math"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"www.velocidex.com/golang/vgroup/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Write a command result as JSON lines. Rows produce one object per
// row, Values a single {"values": [...]} object and anything else is
// encoded as is. A nil result writes nothing.
func WriteJSON(w io.Writer, result types.Any) error {
	if result == nil {
		return nil
	}

	stream := jsoniter.NewStream(json, w, 4096)
	switch t := result.(type) {
	case *Rows:
		for _, row := range t.Rows {
			stream.WriteObjectStart()
			for i, column := range t.Columns {
				if i > 0 {
					stream.WriteMore()
				}
				stream.WriteObjectField(column)
				writeValue(stream, row[i])
			}
			stream.WriteObjectEnd()
			stream.WriteRaw("\n")
		}

	case Values:
		stream.WriteObjectStart()
		stream.WriteObjectField("values")
		stream.WriteArrayStart()
		for i, value := range t {
			if i > 0 {
				stream.WriteMore()
			}
			writeValue(stream, value)
		}
		stream.WriteArrayEnd()
		stream.WriteObjectEnd()
		stream.WriteRaw("\n")

	default:
		writeValue(stream, result)
		stream.WriteRaw("\n")
	}

	err := stream.Flush()
	if err != nil {
		return err
	}
	return stream.Error
}

// Floats which are not finite have no JSON representation and are
// written as strings.
func writeValue(stream *jsoniter.Stream, value types.Any) {
	switch t := value.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			stream.WriteString(formatFloat(t))
			return
		}
		stream.WriteFloat64(t)
	default:
		stream.WriteVal(value)
	}
}

// Write a command result as tab separated values with a header line.
func WriteTSV(w io.Writer, result types.Any) error {
	var lines []string

	switch t := result.(type) {
	case nil:
		return nil

	case *Rows:
		lines = append(lines, strings.Join(t.Columns, "\t"))
		for _, row := range t.Rows {
			cells := make([]string, 0, len(row))
			for _, value := range row {
				cells = append(cells, formatCell(value))
			}
			lines = append(lines, strings.Join(cells, "\t"))
		}

	case Values:
		lines = append(lines, "group\tvalue")
		for group := 1; group < len(t); group++ {
			lines = append(lines, strconv.Itoa(group)+"\t"+formatFloat(t[group]))
		}

	default:
		lines = append(lines, formatCell(result))
	}

	for _, line := range lines {
		_, err := io.WriteString(w, line+"\n")
		if err != nil {
			return err
		}
	}
	return nil
}

var tsvEscaper = strings.NewReplacer("\\", "\\\\", "\t", "\\t", "\n", "\\n", "\r", "\\r")

func formatCell(value types.Any) string {
	switch t := value.(type) {
	case string:
		return tsvEscaper.Replace(t)
	case float64:
		return formatFloat(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case types.Term:
		return tsvEscaper.Replace(t.String())
	case nil:
		return ""
	}

	serialized, err := json.MarshalToString(value)
	if err != nil {
		return ""
	}
	return tsvEscaper.Replace(serialized)
}

func formatFloat(value float64) string {
	switch {
	case math.IsNaN(value):
		return "NaN"
	case math.IsInf(value, 1):
		return "Infinity"
	case math.IsInf(value, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
