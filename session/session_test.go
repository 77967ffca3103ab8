package session

import (
	"context"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/vgroup/aggregates"
	"www.velocidex.com/golang/vgroup/grouper"
	"www.velocidex.com/golang/vgroup/materializer"
	"www.velocidex.com/golang/vgroup/types"
)

func testDocs() []*materializer.Document {
	return []*materializer.Document{
		materializer.NewDocument().AddStr("country", "us").AddStr("browser", "ff").AddInt("clicks", 1),
		materializer.NewDocument().AddStr("country", "us").AddStr("browser", "ie").AddInt("clicks", 2),
		materializer.NewDocument().AddStr("country", "gb").AddStr("browser", "ff").AddInt("clicks", 3),
	}
}

func testSession(t *testing.T, config Config) *Session {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	session, err := New(config,
		&Dataset{
			Name:    "first",
			Session: materializer.NewInMemorySession("first", testDocs()),
			Start:   day,
			End:     day.Add(24 * time.Hour),
		},
		&Dataset{
			Name:    "second",
			Session: materializer.NewInMemorySession("second", testDocs()[:1]),
			Start:   day.Add(-24 * time.Hour),
			End:     day.Add(12 * time.Hour),
		})
	require.NoError(t, err)
	return session
}

func condition(field, value string) types.RegroupCondition {
	return types.RegroupCondition{Field: field, Term: types.StringTerm(value)}
}

// Explode by country (us=1, gb=2) then by browser within us only,
// giving groups 1 (us/ff) and 2 (us/ie) with parent 1 and group 3
// (gb) with parent 2.
func explode(t *testing.T, session *Session) {
	ctx := context.Background()

	_, err := session.Regroup(ctx, []types.GroupRemapRule{{
		TargetGroup: 1,
		Positive:    []int{1, 2},
		Conditions:  []types.RegroupCondition{condition("country", "us"), condition("country", "gb")},
	}})
	require.NoError(t, err)

	countries := []string{"", "us", "gb"}
	require.NoError(t, session.AssumeDense(2,
		func(int) int { return 1 },
		func(group int) grouper.GroupKey { return grouper.StringKey{countries[group]} }))
	require.NoError(t, session.SaveLookup("by_country", []float64{0, 10, 20}))

	_, err = session.Regroup(ctx, []types.GroupRemapRule{{
		TargetGroup: 1,
		Positive:    []int{1, 2},
		Conditions:  []types.RegroupCondition{condition("browser", "ff"), condition("browser", "ie")},
	}, {
		TargetGroup:   2,
		NegativeGroup: 3,
	}})
	require.NoError(t, err)

	parents := []int{0, 1, 1, 2}
	require.NoError(t, session.AssumeDense(3,
		func(group int) int { return parents[group] },
		func(group int) grouper.GroupKey { return grouper.IntKey{int64(group)} }))
}

func TestInitialState(t *testing.T) {
	session := testSession(t, DefaultConfig())
	state := session.Snapshot()
	assert.Equal(t, 1, state.NumGroups)
	assert.Equal(t, 0, state.Depth)
	assert.Equal(t, grouper.InitialKey{}, state.Keys.Key(1))

	start, end := session.TimeBounds()
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), end)

	_, err := session.Scope([]string{"first", "third"})
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestLookupRealignment(t *testing.T) {
	session := testSession(t, DefaultConfig())
	explode(t, session)

	assert.Equal(t, 2, session.Depth())
	values, err := session.Lookup("by_country")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10, 10, 20}, values)

	_, err = session.Lookup("missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))

	// Lookups must match the current groups.
	err = session.SaveLookup("short", []float64{0, 1})
	assert.True(t, errors.Is(err, types.ErrContract))
}

func TestIntoParentSumAll(t *testing.T) {
	ctx := context.Background()
	session := testSession(t, DefaultConfig())
	explode(t, session)

	require.NoError(t, session.SaveLookup("x", []float64{0, 1, 2, 3}))
	require.NoError(t, session.IntoParent(ctx, SumAll))

	assert.Equal(t, 2, session.NumGroups())
	assert.Equal(t, 1, session.Depth())

	values, err := session.Lookup("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 3}, values)

	// Results from shallower depths are untouched.
	values, err = session.Lookup("by_country")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 10, 20}, values)

	// The datasets were merged too.
	counts, err := session.ComputeGroupStats(ctx,
		aggregates.NewSumOverSessions(session.DatasetNames(), "count()"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 1}, counts[0])
}

func TestIntoParentPolicies(t *testing.T) {
	ctx := context.Background()

	session := testSession(t, DefaultConfig())
	explode(t, session)
	require.NoError(t, session.SaveLookup("x", []float64{0, 1, 2, 3}))

	err := session.IntoParent(ctx, TakeTheOneUniqueValue)
	assert.True(t, errors.Is(err, types.ErrMergeConflict))

	// Nothing changed.
	assert.Equal(t, 2, session.Depth())
	assert.Equal(t, 3, session.NumGroups())

	require.NoError(t, session.SaveLookup("x", []float64{0, 2, 2, 3}))
	require.NoError(t, session.IntoParent(ctx, TakeTheOneUniqueValue))
	values, err := session.Lookup("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 3}, values)

	session = testSession(t, DefaultConfig())
	explode(t, session)
	require.NoError(t, session.SaveLookup("x", []float64{0, 1, 2, 3}))
	err = session.IntoParent(ctx, FailIfPresent)
	assert.True(t, errors.Is(err, types.ErrMergeConflict))

	// At depth 0 there is no parent.
	session = testSession(t, DefaultConfig())
	err = session.IntoParent(ctx, SumAll)
	assert.True(t, errors.Is(err, types.ErrContract))
}

func TestRebaseKeepsDepth(t *testing.T) {
	session := testSession(t, DefaultConfig())
	explode(t, session)
	require.NoError(t, session.SaveLookup("x", []float64{0, 1, 2, 3}))

	// Merge group 1 into group 2.
	state := session.Snapshot()
	next, err := grouper.Create(state.Keys.Previous(), []int{0, 1, 2},
		[]grouper.GroupKey{nil, grouper.StringKey{"us"}, grouper.StringKey{"gb"}})
	require.NoError(t, err)
	require.NoError(t, session.Rebase(context.Background(), next, []int{0, 1, 1, 2}, SumAll))

	assert.Equal(t, 2, session.Depth())
	assert.Equal(t, 2, session.NumGroups())
	values, err := session.Lookup("x")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 3}, values)

	// The datasets follow the new numbering.
	counts, err := session.ComputeGroupStats(context.Background(),
		aggregates.NewSumOverSessions(session.DatasetNames(), "count()"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 3, 1}, counts[0])
}

func TestDensify(t *testing.T) {
	ctx := context.Background()
	session := testSession(t, DefaultConfig())

	// Bucket clicks into [0, 2) [2, 4) with gutters. Only raw groups
	// 1 and 2 are occupied.
	reg, err := session.PushMetrics(ctx, aggregates.Requires(
		aggregates.NewSumOverSessions(session.DatasetNames(), "clicks")))
	require.NoError(t, err)

	for _, dataset := range session.Datasets() {
		_, err := dataset.Session.MetricRegroup(ctx, reg.LocalIndex(dataset.Name, 0), 0, 4, 2, false)
		require.NoError(t, err)
	}
	require.NoError(t, reg.Pop(ctx))

	present, err := session.PresentGroups(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, present.ToArray())

	present.Remove(1)
	require.NoError(t, session.Densify(ctx, present,
		func(raw int) int { return 1 },
		func(raw int) grouper.GroupKey { return grouper.IntKey{int64(raw)} }))

	assert.Equal(t, 1, session.NumGroups())
	assert.Equal(t, 1, session.Depth())
	assert.Equal(t, grouper.IntKey{2}, session.Keys().Key(1))

	counts, err := session.ComputeGroupStats(ctx,
		aggregates.NewSumOverSessions(session.DatasetNames(), "count()"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2}, counts[0])
}

func TestGroupLimit(t *testing.T) {
	config := DefaultConfig()
	config.GroupLimit = 2
	session := testSession(t, config)

	err := session.AssumeDense(3, func(int) int { return 1 },
		func(int) grouper.GroupKey { return nil })
	assert.True(t, errors.Is(err, types.ErrLimitExceeded))
	assert.ErrorContains(t, err, "3 groups exceeds the limit of 2")

	err = session.Densify(context.Background(), roaring.BitmapOf(1, 2, 3),
		func(int) int { return 1 }, func(int) grouper.GroupKey { return nil })
	assert.True(t, errors.Is(err, types.ErrLimitExceeded))
}

func TestIterateField(t *testing.T) {
	ctx := context.Background()
	session := testSession(t, Config{ParallelSessions: false})

	metric := aggregates.NewSumOverSessions(session.DatasetNames(), "clicks")
	reg, err := session.PushMetrics(ctx, aggregates.Requires(metric))
	require.NoError(t, err)
	defer reg.Pop(ctx)

	compiled, err := session.RegisterMetric(metric, reg)
	require.NoError(t, err)

	result := make(map[string]float64)
	err = session.IterateField(ctx, session.Datasets(), "browser", false, reg,
		func(term types.Term, group int, stats []int64) error {
			value, err := compiled.Apply(term, stats, group)
			result[term.Str] = value
			return err
		})
	require.NoError(t, err)

	// ff appears once in second and twice in first.
	assert.Equal(t, map[string]float64{"ff": 1 + 1 + 3, "ie": 2}, result)
}

func TestParseConfig(t *testing.T) {
	config, err := ParseConfig([]byte("group_limit: 50\n"))
	require.NoError(t, err)
	assert.Equal(t, 50, config.GroupLimit)
	assert.Equal(t, 10000000, config.BootstrapBufferLimit)
	assert.True(t, config.ParallelSessions)

	_, err = ParseConfig([]byte("group_limit: -1\n"))
	assert.Error(t, err)

	policy, err := ParseMergePolicy("FailIfPresent")
	require.NoError(t, err)
	assert.Equal(t, FailIfPresent, policy)

	_, err = ParseMergePolicy("Whatever")
	assert.True(t, errors.Is(err, types.ErrContract))
}
