package types

// These are the public types exposed to package clients.

import (
	"strconv"
	"strings"
)

// A Generic object which may be carried in a result row.
type Any interface{}

// A Term is a single value of a field in the index. Fields are either
// int fields or string fields - a term carries one or the other.
type Term struct {
	IsInt bool
	Int   int64
	Str   string
}

func IntTerm(value int64) Term {
	return Term{IsInt: true, Int: value}
}

func StringTerm(value string) Term {
	return Term{Str: value}
}

// Compare orders int terms numerically and string terms
// lexicographically. Int terms sort before string terms although a
// single field never mixes the two.
func (self Term) Compare(other Term) int {
	if self.IsInt != other.IsInt {
		if self.IsInt {
			return -1
		}
		return 1
	}

	if self.IsInt {
		switch {
		case self.Int < other.Int:
			return -1
		case self.Int > other.Int:
			return 1
		}
		return 0
	}

	return strings.Compare(self.Str, other.Str)
}

func (self Term) Equal(other Term) bool {
	return self.Compare(other) == 0
}

func (self Term) String() string {
	if self.IsInt {
		return strconv.FormatInt(self.Int, 10)
	}
	return self.Str
}

// A value which carries both representations is used where a term
// needs to be rendered into an output row.
func (self Term) Value() Any {
	if self.IsInt {
		return self.Int
	}
	return self.Str
}
