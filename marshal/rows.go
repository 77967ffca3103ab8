package marshal

import (
	"fmt"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/vgroup/grouper"
	"www.velocidex.com/golang/vgroup/types"
)

// Rows is a table of results with a fixed set of columns. Both the
// row streaming shape (labels, term, metrics per (group, term)) and
// the whole group stats shape (labels, metrics per group) use it.
type Rows struct {
	Columns []string
	Rows    [][]types.Any
}

func NewRows(columns ...string) *Rows {
	return &Rows{Columns: columns}
}

func (self *Rows) Add(values ...types.Any) error {
	if len(values) != len(self.Columns) {
		return types.Contract("row has %d values but there are %d columns",
			len(values), len(self.Columns))
	}
	self.Rows = append(self.Rows, values)
	return nil
}

func (self *Rows) Len() int {
	return len(self.Rows)
}

func (self *Rows) Dicts() []*ordereddict.Dict {
	result := make([]*ordereddict.Dict, 0, len(self.Rows))
	for _, row := range self.Rows {
		item := ordereddict.NewDict()
		for i, column := range self.Columns {
			item.Set(column, row[i])
		}
		result = append(result, item)
	}
	return result
}

// Values is a per group result. Index 0 is unused.
type Values []float64

func LabelColumns(depth int) []string {
	result := make([]string, 0, depth)
	for i := 1; i <= depth; i++ {
		result = append(result, fmt.Sprintf("label_%d", i))
	}
	return result
}

// Label values of group padded to depth columns.
func Labels(keys grouper.KeySet, depth, group int) []types.Any {
	path := keys.LabelPath(group)
	result := make([]types.Any, depth)
	for i := range result {
		result[i] = ""
		if i < len(path) {
			result[i] = path[i]
		}
	}
	return result
}

// Build the whole group stats shape: one row for each present group
// with the values of every metric.
func GroupStats(keys grouper.KeySet, depth int, labels bool,
	names []string, values [][]float64) (*Rows, error) {
	if len(names) != len(values) {
		return nil, types.Contract("%d metric names for %d metrics", len(names), len(values))
	}

	columns := []string{"group"}
	if labels {
		columns = append(columns, LabelColumns(depth)...)
	}
	result := NewRows(append(columns, names...)...)

	for group := 1; group <= keys.Count(); group++ {
		if !keys.IsPresent(group) {
			continue
		}

		row := []types.Any{group}
		if labels {
			row = append(row, Labels(keys, depth, group)...)
		}
		for _, column := range values {
			value := 0.0
			if group < len(column) {
				value = column[group]
			}
			row = append(row, value)
		}
		err := result.Add(row...)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}
