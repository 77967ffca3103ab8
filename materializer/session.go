// An in memory index session. This is what the remote index does but
// over a list of documents held in memory. It is used by the command
// line tool and throughout the tests.

package materializer

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"
	"www.velocidex.com/golang/vgroup/types"
)

type InMemorySession struct {
	mu sync.Mutex

	name   string
	docs   []*Document
	groups []int

	num_groups int

	// One column per pushed stat with a value per document.
	stats    [][]int64
	programs []*program

	// Inverted index of each field: term -> documents.
	int_index map[string]map[int64]*roaring.Bitmap
	str_index map[string]map[string]*roaring.Bitmap

	closed bool
}

// All documents start in group 1.
func NewInMemorySession(name string, docs []*Document) *InMemorySession {
	result := &InMemorySession{
		name:       name,
		docs:       docs,
		groups:     make([]int, len(docs)),
		num_groups: 1,
		int_index:  make(map[string]map[int64]*roaring.Bitmap),
		str_index:  make(map[string]map[string]*roaring.Bitmap),
	}
	for i := range result.groups {
		result.groups[i] = 1
	}
	return result
}

func (self *InMemorySession) Name() string {
	return self.name
}

func (self *InMemorySession) NumDocs() int {
	return len(self.docs)
}

// The group of every document.
func (self *InMemorySession) Groups() []int {
	self.mu.Lock()
	defer self.mu.Unlock()

	return append([]int{}, self.groups...)
}

func (self *InMemorySession) checkOpen() error {
	if self.closed {
		return types.Contract("session %v is closed", self.name)
	}
	return nil
}

func (self *InMemorySession) PushStats(ctx context.Context, pushes []string) (int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if err := self.checkOpen(); err != nil {
		return 0, err
	}

	prog, err := compileProgram(pushes)
	if err != nil {
		return 0, err
	}

	column := make([]int64, len(self.docs))
	stack := make([]int64, 0, len(pushes))
	for i, doc := range self.docs {
		column[i], err = prog.eval(doc, stack)
		if err != nil {
			return 0, err
		}
	}

	self.stats = append(self.stats, column)
	self.programs = append(self.programs, prog)
	return len(self.stats), nil
}

func (self *InMemorySession) PopStat(ctx context.Context) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	if len(self.stats) == 0 {
		return types.Contract("session %v has no stats to pop", self.name)
	}
	self.stats = self.stats[:len(self.stats)-1]
	self.programs = self.programs[:len(self.programs)-1]
	return nil
}

func (self *InMemorySession) NumStats() int {
	self.mu.Lock()
	defer self.mu.Unlock()

	return len(self.stats)
}

func (self *InMemorySession) NumGroups() int {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.num_groups
}

func (self *InMemorySession) GetGroupStats(ctx context.Context, stat int) ([]int64, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if stat < 0 || stat >= len(self.stats) {
		return nil, types.Contract("session %v has no stat %d", self.name, stat)
	}

	result := make([]int64, self.num_groups+1)
	for i, value := range self.stats[stat] {
		group := self.groups[i]
		if group > 0 {
			result[group] += value
		}
	}
	return result, nil
}

func (self *InMemorySession) matches(doc *Document, cond types.RegroupCondition) bool {
	if !cond.Term.IsInt {
		return doc.HasStr(cond.Field, cond.Term.Str)
	}

	if !cond.Inequality {
		return doc.HasInt(cond.Field, cond.Term.Int)
	}

	for _, term := range doc.Ints[cond.Field] {
		if term <= cond.Term.Int {
			return true
		}
	}
	return false
}

func (self *InMemorySession) Regroup(ctx context.Context, rules []types.GroupRemapRule) (int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if err := self.checkOpen(); err != nil {
		return 0, err
	}

	by_target := make(map[int]*types.GroupRemapRule)
	num_groups := 0
	for i := range rules {
		rule := &rules[i]
		if rule.TargetGroup <= 0 {
			return 0, types.Contract("rule targets group %d", rule.TargetGroup)
		}
		if len(rule.Positive) != len(rule.Conditions) {
			return 0, types.Contract("rule for group %d has %d conditions and %d positive groups",
				rule.TargetGroup, len(rule.Conditions), len(rule.Positive))
		}
		if _, pres := by_target[rule.TargetGroup]; pres {
			return 0, types.Contract("more than one rule for group %d", rule.TargetGroup)
		}
		by_target[rule.TargetGroup] = rule

		num_groups = max(num_groups, rule.NegativeGroup)
		for _, positive := range rule.Positive {
			num_groups = max(num_groups, positive)
		}
	}

	for i, doc := range self.docs {
		rule, pres := by_target[self.groups[i]]
		if !pres {
			self.groups[i] = 0
			continue
		}

		new_group := rule.NegativeGroup
		for j, cond := range rule.Conditions {
			if self.matches(doc, cond) {
				new_group = rule.Positive[j]
				break
			}
		}
		self.groups[i] = new_group
	}

	self.num_groups = num_groups
	return num_groups, nil
}

func (self *InMemorySession) MetricRegroup(ctx context.Context, stat int,
	min, max, interval int64, no_gutters bool) (int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if err := self.checkOpen(); err != nil {
		return 0, err
	}
	if stat < 0 || stat >= len(self.stats) {
		return 0, types.Contract("session %v has no stat %d", self.name, stat)
	}
	if interval <= 0 || max <= min {
		return 0, types.Contract("invalid bucket range [%d, %d) / %d", min, max, interval)
	}

	buckets := int(math.Ceil(float64(max-min) / float64(interval)))
	per_group := buckets
	if !no_gutters {
		per_group += 2
	}

	for i, value := range self.stats[stat] {
		group := self.groups[i]
		if group == 0 {
			continue
		}

		var bucket int
		switch {
		case value < min:
			if no_gutters {
				self.groups[i] = 0
				continue
			}
			bucket = buckets
		case value >= max:
			if no_gutters {
				self.groups[i] = 0
				continue
			}
			bucket = buckets + 1
		default:
			bucket = int((value - min) / interval)
		}
		self.groups[i] = (group-1)*per_group + bucket + 1
	}

	self.num_groups = self.num_groups * per_group
	return self.num_groups, nil
}

func (self *InMemorySession) MetricFilter(ctx context.Context, stat int,
	min, max int64, negate bool) (int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if err := self.checkOpen(); err != nil {
		return 0, err
	}
	if stat < 0 || stat >= len(self.stats) {
		return 0, types.Contract("session %v has no stat %d", self.name, stat)
	}

	for i, value := range self.stats[stat] {
		inside := value >= min && value <= max
		if inside == negate {
			self.groups[i] = 0
		}
	}
	return self.num_groups, nil
}

func (self *InMemorySession) RandomMultiRegroup(ctx context.Context,
	field string, is_int bool, salt string, num_buckets int) (int, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if err := self.checkOpen(); err != nil {
		return 0, err
	}
	if num_buckets <= 0 {
		return 0, types.Contract("need at least one bucket, not %d", num_buckets)
	}

	for i, doc := range self.docs {
		group := self.groups[i]
		if group == 0 {
			continue
		}

		var term string
		if is_int {
			terms := doc.Ints[field]
			if len(terms) == 0 {
				self.groups[i] = 0
				continue
			}
			term = strconv.FormatInt(terms[0], 10)
		} else {
			terms := doc.Strs[field]
			if len(terms) == 0 {
				self.groups[i] = 0
				continue
			}
			term = terms[0]
		}

		bucket := int(xxhash.Sum64String(term+salt) % uint64(num_buckets))
		self.groups[i] = (group-1)*num_buckets + bucket + 1
	}

	self.num_groups = self.num_groups * num_buckets
	return self.num_groups, nil
}

func (self *InMemorySession) intIndex(field string) map[int64]*roaring.Bitmap {
	index, pres := self.int_index[field]
	if pres {
		return index
	}

	index = make(map[int64]*roaring.Bitmap)
	for i, doc := range self.docs {
		for _, term := range doc.Ints[field] {
			bm, pres := index[term]
			if !pres {
				bm = roaring.New()
				index[term] = bm
			}
			bm.Add(uint32(i))
		}
	}
	self.int_index[field] = index
	return index
}

func (self *InMemorySession) strIndex(field string) map[string]*roaring.Bitmap {
	index, pres := self.str_index[field]
	if pres {
		return index
	}

	index = make(map[string]*roaring.Bitmap)
	for i, doc := range self.docs {
		for _, term := range doc.Strs[field] {
			bm, pres := index[term]
			if !pres {
				bm = roaring.New()
				index[term] = bm
			}
			bm.Add(uint32(i))
		}
	}
	self.str_index[field] = index
	return index
}

// Snapshot the (term, group, stats) rows of field. Documents in
// group 0 are not visited.
func (self *InMemorySession) TermGroupIterator(ctx context.Context,
	field string, is_int bool) (types.TermCursor, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if err := self.checkOpen(); err != nil {
		return nil, err
	}

	result := &termCursor{num_stats: len(self.stats), term_idx: -1}

	if is_int {
		index := self.intIndex(field)
		terms := make([]int64, 0, len(index))
		for term := range index {
			terms = append(terms, term)
		}
		sort.Slice(terms, func(i, j int) bool { return terms[i] < terms[j] })

		for _, term := range terms {
			result.add(types.IntTerm(term), self.termGroups(index[term]))
		}

	} else {
		index := self.strIndex(field)
		terms := make([]string, 0, len(index))
		for term := range index {
			terms = append(terms, term)
		}
		sort.Strings(terms)

		for _, term := range terms {
			result.add(types.StringTerm(term), self.termGroups(index[term]))
		}
	}

	return result, nil
}

func (self *InMemorySession) termGroups(docs *roaring.Bitmap) []termGroup {
	by_group := make(map[int][]int64)
	it := docs.Iterator()
	for it.HasNext() {
		doc := int(it.Next())
		group := self.groups[doc]
		if group == 0 {
			continue
		}

		row, pres := by_group[group]
		if !pres {
			row = make([]int64, len(self.stats))
			by_group[group] = row
		}
		for i, column := range self.stats {
			row[i] += column[doc]
		}
	}

	result := make([]termGroup, 0, len(by_group))
	for group, row := range by_group {
		result = append(result, termGroup{group: group, stats: row})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].group < result[j].group })
	return result
}

func (self *InMemorySession) Close() error {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.closed = true
	return nil
}
