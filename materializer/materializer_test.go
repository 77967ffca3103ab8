package materializer

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/vgroup/types"
)

const testDocuments = `
{"country": "us", "clicks": 3, "status": [200, 404]}
{"country": "gb", "clicks": 5, "status": 200}

{"country": "us", "clicks": 10, "status": 500}
{"clicks": -2}
`

func testSession(t *testing.T) *InMemorySession {
	docs, err := ReadDocuments(strings.NewReader(testDocuments))
	require.NoError(t, err)
	require.Equal(t, 4, len(docs))
	return NewInMemorySession("test", docs)
}

func TestDecodeDocument(t *testing.T) {
	doc, err := DecodeDocument([]byte(`{"a": 1, "b": "x", "c": [1, 2], "d": 1.5, "e": true}`))
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, doc.Ints["a"])
	assert.Equal(t, []string{"x"}, doc.Strs["b"])
	assert.Equal(t, []int64{1, 2}, doc.Ints["c"])
	assert.Equal(t, []string{"1.5"}, doc.Strs["d"])
	assert.Equal(t, int64(1), doc.Int("e"))
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, doc.Fields())

	_, err = ReadDocuments(strings.NewReader("{\"a\": 1}\nnot json\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestPushStats(t *testing.T) {
	ctx := context.Background()
	session := testSession(t)

	count, err := session.PushStats(ctx, []string{"count()"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = session.PushStats(ctx, []string{"clicks", "2", "*", "hasstr country:us", "+"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stats, err := session.GetGroupStats(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 4}, stats)

	stats, err = session.GetGroupStats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 7 + 10 + 21 - 4}, stats)

	// Programs must leave exactly one value.
	_, err = session.PushStats(ctx, []string{"1", "2"})
	assert.True(t, errors.Is(err, types.ErrContract))
	_, err = session.PushStats(ctx, []string{"+"})
	assert.True(t, errors.Is(err, types.ErrContract))
	_, err = session.PushStats(ctx, []string{"frob()"})
	assert.True(t, errors.Is(err, types.ErrContract))

	require.NoError(t, session.PopStat(ctx))
	assert.Equal(t, 1, session.NumStats())
}

func TestRegroup(t *testing.T) {
	ctx := context.Background()
	session := testSession(t)

	num_groups, err := session.Regroup(ctx, []types.GroupRemapRule{{
		TargetGroup:   1,
		NegativeGroup: 3,
		Positive:      []int{1, 2},
		Conditions: []types.RegroupCondition{
			{Field: "country", Term: types.StringTerm("us")},
			{Field: "status", Term: types.IntTerm(200)},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, num_groups)
	assert.Equal(t, []int{1, 2, 1, 3}, session.Groups())

	// Groups without a rule are dropped.
	num_groups, err = session.Regroup(ctx, []types.GroupRemapRule{{
		TargetGroup:   1,
		NegativeGroup: 2,
		Positive:      []int{1},
		Conditions: []types.RegroupCondition{
			{Field: "clicks", Term: types.IntTerm(5), Inequality: true},
		},
	}})
	require.NoError(t, err)
	assert.Equal(t, 2, num_groups)
	assert.Equal(t, []int{1, 0, 2, 0}, session.Groups())
}

func TestMetricRegroup(t *testing.T) {
	ctx := context.Background()
	session := testSession(t)

	_, err := session.PushStats(ctx, []string{"clicks"})
	require.NoError(t, err)

	// Buckets [0, 4) [4, 8) plus the two gutters.
	num_groups, err := session.MetricRegroup(ctx, 0, 0, 8, 4, false)
	require.NoError(t, err)
	assert.Equal(t, 4, num_groups)
	assert.Equal(t, []int{1, 2, 4, 3}, session.Groups())

	session = testSession(t)
	_, err = session.PushStats(ctx, []string{"clicks"})
	require.NoError(t, err)

	num_groups, err = session.MetricRegroup(ctx, 0, 0, 8, 4, true)
	require.NoError(t, err)
	assert.Equal(t, 2, num_groups)
	assert.Equal(t, []int{1, 2, 0, 0}, session.Groups())
}

func TestMetricFilter(t *testing.T) {
	ctx := context.Background()
	session := testSession(t)

	_, err := session.PushStats(ctx, []string{"clicks"})
	require.NoError(t, err)

	_, err = session.MetricFilter(ctx, 0, 0, 5, false)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 0, 0}, session.Groups())

	session = testSession(t)
	_, err = session.PushStats(ctx, []string{"clicks"})
	require.NoError(t, err)

	_, err = session.MetricFilter(ctx, 0, 0, 5, true)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1}, session.Groups())
}

func TestRandomMultiRegroup(t *testing.T) {
	ctx := context.Background()
	session := testSession(t)

	num_groups, err := session.RandomMultiRegroup(ctx, "country", false, "salt", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, num_groups)

	groups := session.Groups()

	// Same term always lands in the same bucket.
	assert.Equal(t, groups[0], groups[2])
	assert.NotEqual(t, 0, groups[0])

	// No term, no group.
	assert.Equal(t, 0, groups[3])
}

func TestTermGroupIterator(t *testing.T) {
	ctx := context.Background()
	session := testSession(t)

	_, err := session.PushStats(ctx, []string{"clicks"})
	require.NoError(t, err)

	_, err = session.Regroup(ctx, []types.GroupRemapRule{{
		TargetGroup:   1,
		NegativeGroup: 2,
		Positive:      []int{1},
		Conditions: []types.RegroupCondition{
			{Field: "country", Term: types.StringTerm("us")},
		},
	}})
	require.NoError(t, err)

	cursor, err := session.TermGroupIterator(ctx, "status", true)
	require.NoError(t, err)
	defer cursor.Close()

	type row struct {
		term  int64
		group int
		stats []int64
	}
	var rows []row
	buf := make([]int64, cursor.NumStats())
	for cursor.NextTerm() {
		for cursor.NextGroup() {
			cursor.GroupStats(buf)
			rows = append(rows, row{cursor.Term().Int, cursor.Group(),
				append([]int64{}, buf...)})
		}
	}
	require.NoError(t, cursor.Err())

	assert.Equal(t, []row{
		{200, 1, []int64{3}},
		{200, 2, []int64{5}},
		{404, 1, []int64{3}},
		{500, 1, []int64{10}},
	}, rows)
}

func TestClosedSession(t *testing.T) {
	session := testSession(t)
	require.NoError(t, session.Close())

	_, err := session.PushStats(context.Background(), []string{"count()"})
	assert.True(t, errors.Is(err, types.ErrContract))
}
