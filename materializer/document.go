package materializer

import (
	"bufio"
	"bytes"
	"io"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.Config{
	UseNumber:              true,
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// A Document holds the terms of each field. A field is either an int
// field or a string field. Fields may have several terms.
type Document struct {
	Ints map[string][]int64
	Strs map[string][]string
}

func NewDocument() *Document {
	return &Document{
		Ints: make(map[string][]int64),
		Strs: make(map[string][]string),
	}
}

func (self *Document) AddInt(field string, terms ...int64) *Document {
	self.Ints[field] = append(self.Ints[field], terms...)
	return self
}

func (self *Document) AddStr(field string, terms ...string) *Document {
	self.Strs[field] = append(self.Strs[field], terms...)
	return self
}

// The first int term of field or 0.
func (self *Document) Int(field string) int64 {
	terms := self.Ints[field]
	if len(terms) == 0 {
		return 0
	}
	return terms[0]
}

func (self *Document) HasInt(field string, term int64) bool {
	for _, t := range self.Ints[field] {
		if t == term {
			return true
		}
	}
	return false
}

func (self *Document) HasStr(field string, term string) bool {
	for _, t := range self.Strs[field] {
		if t == term {
			return true
		}
	}
	return false
}

func (self *Document) Fields() []string {
	result := make([]string, 0, len(self.Ints)+len(self.Strs))
	for k := range self.Ints {
		result = append(result, k)
	}
	for k := range self.Strs {
		result = append(result, k)
	}
	sort.Strings(result)
	return result
}

// Decode a document from a JSON object. Integral numbers become int
// terms, everything else becomes string terms. Arrays add one term
// per element.
func DecodeDocument(data []byte) (*Document, error) {
	fields := make(map[string]interface{})
	err := json.Unmarshal(data, &fields)
	if err != nil {
		return nil, errors.Wrap(err, "decode document")
	}

	result := NewDocument()
	for name, value := range fields {
		values, ok := value.([]interface{})
		if !ok {
			values = []interface{}{value}
		}
		for _, v := range values {
			result.addValue(name, v)
		}
	}
	return result, nil
}

func (self *Document) addValue(field string, value interface{}) {
	switch t := value.(type) {
	case nil:
	case jsoniter.Number:
		i, err := t.Int64()
		if err == nil {
			self.AddInt(field, i)
			return
		}
		self.AddStr(field, t.String())
	case string:
		self.AddStr(field, t)
	case bool:
		if t {
			self.AddInt(field, 1)
		} else {
			self.AddInt(field, 0)
		}
	default:
		serialized, _ := json.Marshal(t)
		self.AddStr(field, string(serialized))
	}
}

// Read one JSON object per line. Blank lines are ignored.
func ReadDocuments(reader io.Reader) ([]*Document, error) {
	var result []*Document

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line_number := 0
	for scanner.Scan() {
		line_number++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		doc, err := DecodeDocument(line)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line_number)
		}
		result = append(result, doc)
	}

	return result, scanner.Err()
}
