package pushes

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"www.velocidex.com/golang/vgroup/types"
)

// Maps each distinct push to its global stat index.
type IndexMap map[string]int

func (self IndexMap) Get(push QualifiedPush) (int, bool) {
	idx, pres := self[push.Key()]
	return idx, pres
}

// The outcome of pushing a set of stats.
type Registration struct {
	Indexes IndexMap

	// For every session, the global index of each of its stats in
	// the order they were pushed. Local stat i of the session is
	// global stat PerSession[session][i].
	PerSession map[string][]int

	// Total number of global indexes.
	NumStats int

	// Stats already on the session stacks before we pushed ours.
	base     map[string]int
	sessions map[string]types.IndexSession
	parallel bool
}

// Local stat index on the session for the push'th stat we pushed.
func (self *Registration) LocalIndex(session string, i int) int {
	return self.base[session] + i
}

func (self *Registration) Sessions() []string {
	result := make([]string, 0, len(self.PerSession))
	for name := range self.PerSession {
		result = append(result, name)
	}
	return result
}

// Assign global indexes to every push in set and push them into the
// sessions. Pushes are issued to each session in the order their
// indexes were assigned since the sessions return stats positionally.
func PushMetrics(ctx context.Context,
	sessions map[string]types.IndexSession,
	set *Set, parallel bool) (*Registration, error) {

	result := &Registration{
		Indexes:    make(IndexMap),
		PerSession: make(map[string][]int),
		base:       make(map[string]int),
		sessions:   sessions,
		parallel:   parallel,
	}

	per_session := make(map[string][]QualifiedPush)
	for _, push := range set.Items() {
		_, pres := sessions[push.Session]
		if !pres {
			return nil, errors.Wrapf(types.ErrNotFound,
				"push %v refers to unknown session", push)
		}

		result.Indexes[push.Key()] = result.NumStats
		result.PerSession[push.Session] = append(
			result.PerSession[push.Session], result.NumStats)
		per_session[push.Session] = append(per_session[push.Session], push)
		result.NumStats++
	}

	var mu sync.Mutex
	err := forEach(ctx, parallel, per_session, func(
		ctx context.Context, name string, items []QualifiedPush) error {
		session := sessions[name]
		base := session.NumStats()

		mu.Lock()
		result.base[name] = base
		mu.Unlock()

		for i, push := range items {
			count, err := session.PushStats(ctx, push.Pushes)
			if err != nil {
				return errors.Wrapf(err, "push %v", push)
			}

			// The stat must land exactly where we expect it.
			if count != base+i+1 {
				return types.Contract(
					"push %v left %d stats on session %v, expected %d",
					push, count, name, base+i+1)
			}
		}
		return nil
	})
	if err != nil {
		// Leave the sessions as we found them.
		_ = result.Pop(ctx)
		return nil, err
	}

	return result, nil
}

// Pop all the stats this registration pushed.
func (self *Registration) Pop(ctx context.Context) error {
	return forEach(ctx, self.parallel, self.PerSession, func(
		ctx context.Context, name string, items []int) error {
		session := self.sessions[name]
		base, pres := self.base[name]
		if !pres {
			return nil
		}

		for session.NumStats() > base {
			err := session.PopStat(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Run fn for each session, concurrently if requested. All calls are
// awaited before returning.
func forEach[T any](ctx context.Context, parallel bool, items map[string]T,
	fn func(ctx context.Context, name string, item T) error) error {
	if !parallel {
		for name, item := range items {
			err := fn(ctx, name, item)
			if err != nil {
				return err
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for name, item := range items {
		name, item := name, item
		g.Go(func() error {
			return fn(ctx, name, item)
		})
	}
	return g.Wait()
}
