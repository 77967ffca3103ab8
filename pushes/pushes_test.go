package pushes

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/vgroup/materializer"
	"www.velocidex.com/golang/vgroup/types"
)

func TestSetKeepsFirstInsertion(t *testing.T) {
	set := NewSet(
		New("a", "count()"),
		New("b", "count()"),
		New("a", "clicks"),
		New("a", "count()"),
	)
	assert.Equal(t, 3, set.Len())
	assert.Equal(t, []QualifiedPush{
		New("a", "count()"),
		New("b", "count()"),
		New("a", "clicks"),
	}, set.Items())

	assert.True(t, set.Contains(New("b", "count()")))
	assert.False(t, set.Contains(New("b", "clicks")))

	// Pushes are compared by value.
	assert.NotEqual(t, New("a", "x", "y").Key(), New("a", "x y").Key())

	set.Union(NewSet(New("c", "count()"), New("a", "clicks")))
	assert.Equal(t, 4, set.Len())
	assert.Equal(t, "c:count()", set.Items()[3].String())
}

func testSessions() (map[string]types.IndexSession, *materializer.InMemorySession,
	*materializer.InMemorySession) {
	a := materializer.NewInMemorySession("a", []*materializer.Document{
		materializer.NewDocument().AddInt("clicks", 3),
		materializer.NewDocument().AddInt("clicks", 4),
	})
	b := materializer.NewInMemorySession("b", []*materializer.Document{
		materializer.NewDocument().AddInt("clicks", 5),
	})
	return map[string]types.IndexSession{"a": a, "b": b}, a, b
}

func TestPushMetrics(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		ctx := context.Background()
		sessions, a, b := testSessions()

		// A stat left by someone else stays below ours.
		_, err := a.PushStats(ctx, []string{"count()"})
		require.NoError(t, err)

		set := NewSet(
			New("a", "count()"),
			New("b", "count()"),
			New("a", "clicks"),
		)
		reg, err := PushMetrics(ctx, sessions, set, parallel)
		require.NoError(t, err)

		assert.Equal(t, 3, reg.NumStats)
		assert.Equal(t, map[string][]int{"a": {0, 2}, "b": {1}}, reg.PerSession)
		idx, pres := reg.Indexes.Get(New("a", "clicks"))
		assert.True(t, pres)
		assert.Equal(t, 2, idx)

		assert.Equal(t, 3, a.NumStats())
		assert.Equal(t, 1, b.NumStats())
		assert.Equal(t, 2, reg.LocalIndex("a", 1))
		assert.Equal(t, 0, reg.LocalIndex("b", 0))

		clicks, err := a.GetGroupStats(ctx, reg.LocalIndex("a", 1))
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 7}, clicks)

		require.NoError(t, reg.Pop(ctx))
		assert.Equal(t, 1, a.NumStats())
		assert.Equal(t, 0, b.NumStats())
	}
}

func TestPushMetricsUnknownSession(t *testing.T) {
	sessions, a, _ := testSessions()
	_, err := PushMetrics(context.Background(), sessions,
		NewSet(New("a", "count()"), New("nope", "count()")), false)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.Equal(t, 0, a.NumStats())
}

func TestPushMetricsFailureUnwinds(t *testing.T) {
	sessions, a, b := testSessions()
	_, err := PushMetrics(context.Background(), sessions,
		NewSet(New("b", "count()"), New("a", "count()"), New("a", "+")), true)
	assert.True(t, errors.Is(err, types.ErrContract))

	// Nothing is left behind on either session.
	assert.Equal(t, 0, a.NumStats())
	assert.Equal(t, 0, b.NumStats())
}
