// The push protocol maps the statistics required by expression trees
// onto the stat stacks of the remote sessions.
//
// Every leaf of an expression names a QualifiedPush: the session it
// reads from and the ordered list of primitive push instructions that
// compute the stat. Equal pushes collapse to a single stat so each
// distinct push is computed remotely only once per command.

package pushes

import (
	"strings"

	"github.com/Velocidex/ordereddict"
)

type QualifiedPush struct {
	Session string
	Pushes  []string
}

func New(session string, pushes ...string) QualifiedPush {
	return QualifiedPush{
		Session: session,
		Pushes:  append([]string{}, pushes...),
	}
}

// The identity of the push used for deduplication.
func (self QualifiedPush) Key() string {
	return self.Session + "\x00" + strings.Join(self.Pushes, "\x00")
}

func (self QualifiedPush) String() string {
	return self.Session + ":" + strings.Join(self.Pushes, " ")
}

// A Set of QualifiedPush which remembers insertion order. Index
// assignment follows this order so results are reproducible.
type Set struct {
	items *ordereddict.Dict
}

func NewSet(items ...QualifiedPush) *Set {
	result := &Set{items: ordereddict.NewDict()}
	for _, item := range items {
		result.Add(item)
	}
	return result
}

func (self *Set) Add(push QualifiedPush) *Set {
	key := push.Key()
	_, pres := self.items.Get(key)
	if !pres {
		self.items.Set(key, push)
	}
	return self
}

func (self *Set) Union(other *Set) *Set {
	if other == nil {
		return self
	}
	for _, item := range other.Items() {
		self.Add(item)
	}
	return self
}

func (self *Set) Contains(push QualifiedPush) bool {
	_, pres := self.items.Get(push.Key())
	return pres
}

func (self *Set) Len() int {
	return self.items.Len()
}

func (self *Set) Items() []QualifiedPush {
	result := make([]QualifiedPush, 0, self.items.Len())
	for _, key := range self.items.Keys() {
		value, _ := self.items.Get(key)
		result = append(result, value.(QualifiedPush))
	}
	return result
}
