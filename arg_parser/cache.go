package arg_parser

import (
	"reflect"
	"sync"
)

// Parsers depend only on the descriptor type so each type is built
// once and shared by every plan step decoding into it.
var (
	mu          sync.RWMutex
	parserCache = make(map[reflect.Type]*Parser)
)

func GetParser(target reflect.Value) (*Parser, error) {
	descriptor_type := target.Type()

	mu.RLock()
	parser, pres := parserCache[descriptor_type]
	mu.RUnlock()
	if pres {
		return parser, nil
	}

	parser, err := BuildParser(target)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()

	// Another step may have built it first.
	if existing, pres := parserCache[descriptor_type]; pres {
		return existing, nil
	}
	parserCache[descriptor_type] = parser
	return parser, nil
}
