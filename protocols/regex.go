package protocols

import (
	"regexp"
	"sync"

	"github.com/pkg/errors"
	"www.velocidex.com/golang/vgroup/types"
)

// Term regexes must match the whole term. Compiled expressions are
// cached since the same filter is usually compiled once per command
// but evaluated for every term.
type RegexCache struct {
	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

func NewRegexCache() *RegexCache {
	return &RegexCache{
		cache: make(map[string]*regexp.Regexp),
	}
}

func (self *RegexCache) Compile(pattern string) (*regexp.Regexp, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	re, pres := self.cache[pattern]
	if pres {
		return re, nil
	}

	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return nil, errors.Wrapf(types.ErrContract, "compile regex %q: %v", pattern, err)
	}

	self.cache[pattern] = re
	return re, nil
}

// Int terms are matched by their decimal representation.
func MatchTerm(re *regexp.Regexp, term types.Term) bool {
	if term.IsInt {
		return re.MatchString(term.String())
	}
	return re.MatchString(term.Str)
}
