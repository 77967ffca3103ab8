package commands

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Velocidex/ordereddict"
	"github.com/go-test/deep"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"www.velocidex.com/golang/vgroup/aggregates"
	"www.velocidex.com/golang/vgroup/docmetric"
	"www.velocidex.com/golang/vgroup/grouper"
	"www.velocidex.com/golang/vgroup/marshal"
	"www.velocidex.com/golang/vgroup/materializer"
	"www.velocidex.com/golang/vgroup/session"
	"www.velocidex.com/golang/vgroup/types"
)

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func doc(country, browser string, clicks, hour, tier int64) *materializer.Document {
	return materializer.NewDocument().
		AddStr("country", country).
		AddStr("browser", browser).
		AddInt("clicks", clicks).
		AddInt("hour", hour).
		AddInt("tier", tier).
		AddInt("unixtime", day.Unix()+hour*3600-1800)
}

// Six documents over two datasets:
//
//	first:  us/ff/1 us/ie/2 gb/ff/3 gb/ie/4
//	second: us/ff/5 fr/ff/6
func testSession(t *testing.T, config session.Config) *session.Session {
	s, err := session.New(config,
		&session.Dataset{
			Name: "first",
			Session: materializer.NewInMemorySession("first", []*materializer.Document{
				doc("us", "ff", 1, 1, 1),
				doc("us", "ie", 2, 2, 1),
				doc("gb", "ff", 3, 3, 1),
				doc("gb", "ie", 4, 1, 1),
			}),
			Start: day,
			End:   day.Add(3 * time.Hour),
		},
		&session.Dataset{
			Name: "second",
			Session: materializer.NewInMemorySession("second", []*materializer.Document{
				doc("us", "ff", 5, 3, 2),
				doc("fr", "ff", 6, 2, 2),
			}),
			Start: day.Add(time.Hour),
			End:   day.Add(2 * time.Hour),
		})
	require.NoError(t, err)
	return s
}

func run(t *testing.T, s *session.Session, name string, args *ordereddict.Dict) types.Any {
	result, err := tryRun(s, name, args)
	require.NoError(t, err)
	return result
}

func tryRun(s *session.Session, name string, args *ordereddict.Dict) (types.Any, error) {
	command, err := New(name, args, nil)
	if err != nil {
		return nil, err
	}
	return Run(context.Background(), s, command)
}

func args() *ordereddict.Dict {
	return ordereddict.NewDict()
}

func counts(t *testing.T, s *session.Session) []float64 {
	values, err := s.ComputeGroupStats(context.Background(),
		aggregates.NewSumOverSessions(s.DatasetNames(), docmetric.Count))
	require.NoError(t, err)
	return values[0]
}

func lookup(t *testing.T, s *session.Session, name string) []float64 {
	values, err := s.Lookup(name)
	require.NoError(t, err)
	return values
}

func explodeCountry(t *testing.T, s *session.Session, terms []string, default_label string) {
	command := args().Set("field", "country").Set("terms", terms)
	if default_label != "" {
		command.Set("default", default_label)
	}
	run(t, s, "explode_field_in", command)
}

func TestRegistry(t *testing.T) {
	assert.Len(t, Names(), 22)
	for _, name := range Names() {
		assert.Equal(t, name, registry[name]().Name())
	}

	_, err := New("no_such_step", args(), nil)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	_, err = New("explode_field_in", args().Set("terms", []string{"us"}), nil)
	assert.True(t, errors.Is(err, types.ErrContract))

	_, err = New("get_num_groups", args().Set("unexpected", 1), nil)
	assert.True(t, errors.Is(err, types.ErrContract))
}

func TestExplodeFieldIn(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	explodeCountry(t, s, []string{"us", "gb"}, "other")

	assert.Equal(t, 1, s.Depth())
	assert.Equal(t, []float64{0, 3, 2, 1}, counts(t, s))
	assert.Equal(t, []string{"us"}, s.Keys().LabelPath(1))
	assert.True(t, s.Keys().Key(3).IsDefault())

	// Without a default unmatched documents are dropped.
	run(t, s, "explode_field_in", args().Set("field", "browser").Set("terms", []string{"ff"}))
	assert.Equal(t, 2, s.Depth())
	assert.Equal(t, []float64{0, 2, 1, 1}, counts(t, s))
	assert.Equal(t, []string{"other", "ff"}, s.Keys().LabelPath(3))
}

func TestExplodeIntTerms(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	run(t, s, "explode_field_in", args().Set("field", "hour").
		Set("terms", []interface{}{1, 3}).Set("is_int", true))
	assert.Equal(t, []float64{0, 2, 2}, counts(t, s))
	assert.Equal(t, grouper.IntKey{Value: 3}, s.Keys().Key(2))

	_, err := tryRun(s, "explode_field_in", args().Set("field", "hour").
		Set("terms", []string{"x"}).Set("is_int", true))
	assert.True(t, errors.Is(err, types.ErrContract))
}

func TestExplodeGroupLimit(t *testing.T) {
	config := session.DefaultConfig()
	config.GroupLimit = 2
	s := testSession(t, config)

	_, err := tryRun(s, "explode_field_in", args().Set("field", "country").
		Set("terms", []string{"us", "gb"}).Set("default", "other"))
	assert.True(t, errors.Is(err, types.ErrLimitExceeded))

	// Nothing changed.
	assert.Equal(t, 1, s.NumGroups())
	assert.Equal(t, 0, s.Depth())
	assert.Equal(t, []float64{0, 6}, counts(t, s))
}

func TestExplodePerGroup(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	explodeCountry(t, s, []string{"us", "gb"}, "")

	run(t, s, "explode_per_group", args().Set("field", "browser").
		Set("terms", []interface{}{[]interface{}{"ff"}, []interface{}{"ff", "ie"}}))

	assert.Equal(t, []float64{0, 2, 1, 1}, counts(t, s))
	assert.Equal(t, 1, s.Keys().Parent(1))
	assert.Equal(t, 2, s.Keys().Parent(3))

	_, err := tryRun(s, "explode_per_group", args().Set("field", "browser").
		Set("terms", []interface{}{"ff"}))
	assert.True(t, errors.Is(err, types.ErrContract))
}

func TestMetricRegroup(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	run(t, s, "metric_regroup", args().Set("metric", "clicks").
		Set("min", 0).Set("max", 6).Set("interval", 2))

	// Buckets [0,2) [2,4) [4,6) and the upper gutter are occupied.
	assert.Equal(t, 1, s.Depth())
	assert.Equal(t, []float64{0, 1, 2, 2, 1}, counts(t, s))
	assert.Equal(t, grouper.RangeKey{Lo: 2, Hi: 4}, s.Keys().Key(2))
	assert.Equal(t, grouper.AboveRange(6), s.Keys().Key(4))
	assert.True(t, s.Keys().Key(4).IsDefault())
}

func TestMetricRegroupScope(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	run(t, s, "metric_regroup", args().Set("metric", "clicks").
		Set("min", 0).Set("max", 6).Set("interval", 2).
		Set("scope", []string{"first"}))

	// The second dataset has no metric and is dropped.
	assert.Equal(t, []float64{0, 1, 2, 1}, counts(t, s))

	_, err := tryRun(s, "metric_regroup", args().Set("metric", "clicks").
		Set("min", 6).Set("max", 0).Set("interval", 2))
	assert.True(t, errors.Is(err, types.ErrContract))
}

func TestTimeRegroup(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	run(t, s, "time_regroup", args().Set("interval", "1h"))

	assert.Equal(t, []float64{0, 2, 2, 2}, counts(t, s))
	assert.Equal(t, "[2024-01-01T00:00:00Z, 2024-01-01T01:00:00Z)",
		s.Keys().Key(1).Render())

	_, err := tryRun(s, "time_regroup", args().Set("interval", "soon"))
	assert.True(t, errors.Is(err, types.ErrContract))
}

func TestMetricRegroupGroupLimit(t *testing.T) {
	config := session.DefaultConfig()
	config.GroupLimit = 10
	s := testSession(t, config)

	// Only a few buckets would be occupied but all of them are
	// allocated on the datasets.
	_, err := tryRun(s, "metric_regroup", args().Set("metric", "clicks").
		Set("min", 0).Set("max", 1000).Set("interval", 1))
	assert.True(t, errors.Is(err, types.ErrLimitExceeded))

	assert.Equal(t, 1, s.NumGroups())
	assert.Equal(t, 0, s.Depth())
	assert.Equal(t, []float64{0, 6}, counts(t, s))
}

func TestTimeRegroupGroupLimit(t *testing.T) {
	config := session.DefaultConfig()
	config.GroupLimit = 10
	s := testSession(t, config)

	_, err := tryRun(s, "time_regroup", args().Set("interval", "1s"))
	assert.True(t, errors.Is(err, types.ErrLimitExceeded))

	assert.Equal(t, 1, s.NumGroups())
	assert.Equal(t, 0, s.Depth())
	assert.Equal(t, []float64{0, 6}, counts(t, s))
}

func TestMetricRegroupSpanOverflow(t *testing.T) {
	s := testSession(t, session.DefaultConfig())

	_, err := tryRun(s, "metric_regroup", args().Set("metric", "clicks").
		Set("min", int64(math.MinInt64)).Set("max", 1).Set("interval", 1))
	assert.True(t, errors.Is(err, types.ErrContract))

	// The widest span that fits is just too many groups.
	_, err = tryRun(s, "metric_regroup", args().Set("metric", "clicks").
		Set("min", int64(0)).Set("max", int64(math.MaxInt64)).Set("interval", 1))
	assert.True(t, errors.Is(err, types.ErrLimitExceeded))

	assert.Equal(t, 1, s.NumGroups())
	assert.Equal(t, []float64{0, 6}, counts(t, s))
}

func TestFilterDocs(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	run(t, s, "filter_docs", args().Set("filter", `country = "us"`).
		Set("scope", []string{"first"}))

	// Only the first dataset was filtered.
	assert.Equal(t, 1, s.NumGroups())
	assert.Equal(t, []float64{0, 4}, counts(t, s))

	run(t, s, "filter_docs", args().Set("filter", "clicks > 1 and clicks < 6"))
	assert.Equal(t, []float64{0, 2}, counts(t, s))
}

func TestPercentileBoundaries(t *testing.T) {
	for size := 0; size < 20; size++ {
		for k := 1; k < 8; k++ {
			ranks := Percentiles(size, k)
			require.Len(t, ranks, k)
			assert.Equal(t, 0, ranks[0])
			for i := 1; i < k; i++ {
				assert.LessOrEqual(t, ranks[i-1], ranks[i])
			}
		}
	}

	assert.Equal(t, []int{0, 2}, Percentiles(3, 2))
	assert.Equal(t, []int{0, 1, 2, 3}, Percentiles(4, 4))
}

func TestExplodeAggregatePercentile(t *testing.T) {
	s := testSession(t, session.DefaultConfig())

	// Clicks per country are fr=6, gb=7, us=8 so the boundaries of
	// two buckets are 6 and 8.
	run(t, s, "explode_aggregate_percentile", args().Set("field", "country").
		Set("metric", "[clicks]").Set("num_buckets", 2))

	assert.Equal(t, []float64{0, 3, 3}, counts(t, s))
	assert.Equal(t, grouper.PercentileKey{Lo: 0, Hi: 50}, s.Keys().Key(1))

	// The us documents are in the top bucket.
	run(t, s, "explode_field_in", args().Set("field", "country").Set("terms", []string{"us"}))
	assert.Equal(t, []float64{0, 0, 3}, counts(t, s))
}

func TestExplodePerDocPercentile(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	run(t, s, "explode_per_doc_percentile", args().Set("field", "clicks").
		Set("num_buckets", 2))

	assert.Equal(t, []float64{0, 3, 3}, counts(t, s))
	assert.Equal(t, grouper.PercentileKey{Lo: 50, Hi: 100}, s.Keys().Key(2))
}

func TestExplodePerDocPercentileCollapses(t *testing.T) {
	s := testSession(t, session.DefaultConfig())

	// Four of the six documents have tier 1 so the first two
	// quartiles end on the same term.
	run(t, s, "explode_per_doc_percentile", args().Set("field", "tier").
		Set("num_buckets", 4))

	assert.Equal(t, []float64{0, 4, 2, 0}, counts(t, s))
	assert.Equal(t, []grouper.GroupKey{
		grouper.PercentileKey{Lo: 0, Hi: 50},
		grouper.PercentileKey{Lo: 50, Hi: 75},
		grouper.PercentileKey{Lo: 75, Hi: 100},
	}, []grouper.GroupKey{s.Keys().Key(1), s.Keys().Key(2), s.Keys().Key(3)})
}

func TestComputeBootstrapSingleTerm(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	explodeCountry(t, s, []string{"us", "gb", "fr"}, "")

	// Every group has a single term so resampling always picks it.
	result := run(t, s, "compute_bootstrap", args().Set("field", "country").
		Set("metric", "[clicks]").Set("num_bootstraps", 1).
		Set("seed", "test").Set("name", "b"))

	assert.Equal(t, []string{"b_min", "b_max", "b_all_0", "b_numTerms"}, result)

	expected := []float64{0, 8, 7, 6}
	assert.Equal(t, expected, lookup(t, s, "b_min"))
	assert.Equal(t, expected, lookup(t, s, "b_max"))
	assert.Equal(t, expected, lookup(t, s, "b_all_0"))
	assert.Equal(t, []float64{0, 1, 1, 1}, lookup(t, s, "b_numTerms"))
}

func TestComputeBootstrapDeterministic(t *testing.T) {
	bootstrap := func() []float64 {
		s := testSession(t, session.DefaultConfig())
		run(t, s, "compute_bootstrap", args().Set("field", "clicks").Set("is_int", true).
			Set("metric", "[clicks]").Set("num_bootstraps", 5).
			Set("seed", "seed").Set("name", "b").
			Set("outputs", []string{"min", "max"}))

		low := lookup(t, s, "b_min")
		high := lookup(t, s, "b_max")
		assert.LessOrEqual(t, low[1], high[1])

		// Six terms of 1..6 clicks resampled six times.
		assert.GreaterOrEqual(t, low[1], 6.0)
		assert.LessOrEqual(t, high[1], 36.0)

		_, err := s.Lookup("b_all_0")
		assert.True(t, errors.Is(err, types.ErrNotFound))
		return append(low, high...)
	}

	if diff := deep.Equal(bootstrap(), bootstrap()); diff != nil {
		t.Error(diff)
	}
}

func TestComputeBootstrapBufferLimit(t *testing.T) {
	config := session.DefaultConfig()
	config.BootstrapBufferLimit = 2
	s := testSession(t, config)

	_, err := tryRun(s, "compute_bootstrap", args().Set("field", "clicks").
		Set("is_int", true).Set("metric", "[clicks]").
		Set("num_bootstraps", 1).Set("name", "b"))
	assert.True(t, errors.Is(err, types.ErrLimitExceeded))

	_, err = tryRun(s, "compute_bootstrap", args().Set("field", "clicks").
		Set("metric", "[clicks]").Set("num_bootstraps", 1).
		Set("name", "b").Set("outputs", []string{"median"}))
	assert.True(t, errors.Is(err, types.ErrContract))
}

func TestRegroupIntoParent(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	explodeCountry(t, s, []string{"us", "gb"}, "")
	run(t, s, "explode_field_in", args().Set("field", "browser").
		Set("terms", []string{"ff", "ie"}))
	run(t, s, "compute_and_create_group_stats_lookup", args().
		Set("name", "c").Set("metric", "[count()]"))
	assert.Equal(t, []float64{0, 2, 1, 1, 1}, lookup(t, s, "c"))

	run(t, s, "regroup_into_parent", args().Set("merge_policy", "SumAll"))

	assert.Equal(t, 1, s.Depth())
	assert.Equal(t, []float64{0, 3, 2}, counts(t, s))
	assert.Equal(t, []float64{0, 3, 2}, lookup(t, s, "c"))

	_, err := tryRun(s, "regroup_into_parent", args().Set("merge_policy", "Whatever"))
	assert.True(t, errors.Is(err, types.ErrContract))
}

// Groups: us/ff us/rest gb/ff gb/rest other/ff other/rest with
// counts 2 1 1 1 1 0.
func explodeTwoLevels(t *testing.T, s *session.Session) {
	explodeCountry(t, s, []string{"us", "gb"}, "other")
	run(t, s, "explode_field_in", args().Set("field", "browser").
		Set("terms", []string{"ff"}).Set("default", "rest"))
	require.Equal(t, []float64{0, 2, 1, 1, 1, 1, 0}, counts(t, s))
}

func TestRegroupIntoLastSiblingWhere(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	explodeTwoLevels(t, s)
	run(t, s, "create_group_stats_lookup", args().Set("name", "one").
		Set("values", []float64{1, 1, 1, 1, 1, 1}))

	run(t, s, "regroup_into_last_sibling_where", args().
		Set("filter", "[count()] < 2"))

	// us/ff survives. gb/ff and other/ff merge into their last
	// siblings.
	assert.Equal(t, 2, s.Depth())
	assert.Equal(t, []float64{0, 2, 1, 2, 1}, counts(t, s))
	assert.Equal(t, []float64{0, 1, 1, 2, 2}, lookup(t, s, "one"))
	assert.Equal(t, []string{"gb", "rest"}, s.Keys().LabelPath(3))
	assert.Equal(t, 2, s.Keys().Parent(3))
}

func TestRegroupIntoLastSiblingConflict(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	explodeTwoLevels(t, s)
	run(t, s, "create_group_stats_lookup", args().Set("name", "one").
		Set("values", []float64{1, 1, 1, 1, 1, 1}))

	_, err := tryRun(s, "regroup_into_last_sibling_where", args().
		Set("filter", "[count()] < 2").Set("merge_policy", "FailIfPresent"))
	assert.True(t, errors.Is(err, types.ErrMergeConflict))

	// The session and its datasets are unchanged.
	assert.Equal(t, 6, s.NumGroups())
	assert.Equal(t, []float64{0, 2, 1, 1, 1, 1, 0}, counts(t, s))

	// Identical values may be merged under TakeTheOneUniqueValue.
	run(t, s, "regroup_into_last_sibling_where", args().
		Set("filter", "[count()] < 2").Set("merge_policy", "TakeTheOneUniqueValue"))
	assert.Equal(t, []float64{0, 1, 1, 1, 1}, lookup(t, s, "one"))
}

func TestApplyGroupFilter(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	explodeCountry(t, s, []string{"us", "gb"}, "other")

	run(t, s, "apply_group_filter", args().Set("filter", "[count()] >= 2"))
	assert.Equal(t, []float64{0, 3, 2}, counts(t, s))
	assert.Equal(t, 1, s.Depth())
	assert.Equal(t, []string{"gb"}, s.Keys().LabelPath(2))

	run(t, s, "apply_group_filter", args().Set("filter", "not is_default()"))
	assert.Equal(t, 2, s.NumGroups())
}

func TestGetGroupStats(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	explodeCountry(t, s, []string{"us", "gb"}, "")

	result := run(t, s, "get_group_stats", args().
		Set("metrics", []string{"[count()]", "[clicks] / [count()]", "first.[clicks]"}).
		Set("names", []string{"count", "mean", "first_clicks"}).
		Set("labels", true))

	rows, ok := result.(*marshal.Rows)
	require.True(t, ok)
	assert.Equal(t, []string{"group", "label_1", "count", "mean", "first_clicks"}, rows.Columns)
	assert.Equal(t, [][]types.Any{
		{1, "us", 3.0, 8.0 / 3, 3.0},
		{2, "gb", 2.0, 3.5, 7.0},
	}, rows.Rows)

	_, err := tryRun(s, "get_group_stats", args().
		Set("metrics", []string{"[count()]"}).Set("names", []string{"a", "b"}))
	assert.True(t, errors.Is(err, types.ErrContract))
}

func TestCreateGroupStatsLookup(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	explodeCountry(t, s, []string{"us", "gb"}, "")

	// Group 0 may be left out.
	run(t, s, "create_group_stats_lookup", args().Set("name", "w").
		Set("values", []float64{5, 6}))
	assert.Equal(t, []float64{0, 5, 6}, lookup(t, s, "w"))

	result := run(t, s, "get_group_stats", args().
		Set("metrics", []string{"w * [count()]"}))
	rows := result.(*marshal.Rows)
	assert.Equal(t, [][]types.Any{{1, 15.0}, {2, 12.0}}, rows.Rows)

	_, err := tryRun(s, "create_group_stats_lookup", args().Set("name", "w").
		Set("values", []float64{1, 2, 3, 4}))
	assert.True(t, errors.Is(err, types.ErrContract))
}

func TestGetFieldMinMax(t *testing.T) {
	docs := func() []*materializer.Document {
		var result []*materializer.Document
		for _, group := range []string{"a", "b"} {
			for value := int64(1); value <= 3; value++ {
				result = append(result, materializer.NewDocument().
					AddStr("g", group).AddInt("v", value))
			}
		}
		return result
	}
	s, err := session.New(session.DefaultConfig(), &session.Dataset{
		Name:    "only",
		Session: materializer.NewInMemorySession("only", docs()),
	})
	require.NoError(t, err)

	run(t, s, "explode_field_in", args().Set("field", "g").Set("terms", []string{"a", "b"}))

	assert.Equal(t, marshal.Values{0, 3, 3},
		run(t, s, "get_field_max", args().Set("field", "v").Set("name", "max_v")))
	assert.Equal(t, marshal.Values{0, 1, 1},
		run(t, s, "get_field_min", args().Set("field", "v")))
	assert.Equal(t, []float64{0, 3, 3}, lookup(t, s, "max_v"))
}

func TestGetGroupDistincts(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	assert.Equal(t, marshal.Values{0, 2},
		run(t, s, "get_group_distincts", args().Set("field", "browser")))

	explodeCountry(t, s, []string{"us", "gb", "fr"}, "")
	assert.Equal(t, marshal.Values{0, 2, 2, 1},
		run(t, s, "get_group_distincts", args().Set("field", "browser")))

	// fr sees the ie of gb through the window.
	assert.Equal(t, marshal.Values{0, 2, 2, 2},
		run(t, s, "get_group_distincts", args().Set("field", "browser").
			Set("window_size", 2)))

	assert.Equal(t, marshal.Values{0, 1, 2, 1},
		run(t, s, "get_group_distincts", args().Set("field", "browser").
			Set("filter", "[clicks] > 2").Set("name", "d")))
	assert.Equal(t, []float64{0, 1, 2, 1}, lookup(t, s, "d"))
}

func TestSumAcross(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	assert.Equal(t, marshal.Values{0, 21},
		run(t, s, "sum_across", args().Set("field", "browser").Set("metric", "[clicks]")))

	assert.Equal(t, marshal.Values{0, 15},
		run(t, s, "sum_across", args().Set("field", "browser").
			Set("metric", "[clicks]").Set("filter", `term = "ff"`)))

	assert.Equal(t, marshal.Values{0, 2},
		run(t, s, "sum_across", args().Set("field", "browser").
			Set("metric", "[count()]").Set("scope", []string{"second"})))
}

func TestIterate(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	explodeCountry(t, s, []string{"us", "gb"}, "")

	result := run(t, s, "iterate", args().Set("field", "browser").
		Set("metrics", []string{"[clicks]"}).Set("names", []string{"clicks"}))
	rows := result.(*marshal.Rows)
	assert.Equal(t, []string{"label_1", "term", "clicks"}, rows.Columns)
	assert.Equal(t, [][]types.Any{
		{"us", "ff", 6.0},
		{"gb", "ff", 3.0},
		{"us", "ie", 2.0},
		{"gb", "ie", 4.0},
	}, rows.Rows)

	result = run(t, s, "iterate", args().Set("field", "browser").
		Set("metrics", []string{"[clicks]", "[count()]"}).Set("top_k", 1))
	rows = result.(*marshal.Rows)
	assert.Equal(t, [][]types.Any{
		{"us", "ff", 6.0, 2.0},
		{"gb", "ie", 4.0, 1.0},
	}, rows.Rows)

	_, err := tryRun(s, "iterate", args().Set("field", "browser").
		Set("metrics", []string{"[clicks]"}).Set("sort_by", 1))
	assert.True(t, errors.Is(err, types.ErrContract))
}

func TestIterateRunning(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	explodeCountry(t, s, []string{"us", "gb", "fr"}, "")

	// The running sum restarts for every term.
	result := run(t, s, "iterate", args().Set("field", "browser").
		Set("metrics", []string{"running([clicks])"}).
		Set("filter", "term =~ \"^f\""))
	rows := result.(*marshal.Rows)
	assert.Equal(t, [][]types.Any{
		{"us", "ff", 6.0},
		{"gb", "ff", 9.0},
		{"fr", "ff", 15.0},
	}, rows.Rows)
}

func TestExplodeRandom(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	run(t, s, "explode_random", args().Set("field", "browser").Set("num_buckets", 2))

	assert.Equal(t, 2, s.NumGroups())
	assert.Equal(t, 1, s.Depth())
	assert.Equal(t, grouper.RandomKey{Bucket: 2, Of: 2}, s.Keys().Key(2))

	values := counts(t, s)
	assert.Equal(t, 6.0, values[1]+values[2])

	// Each browser lands in a single bucket.
	result := run(t, s, "get_group_distincts", args().Set("field", "browser"))
	distincts := result.(marshal.Values)
	assert.Equal(t, 2.0, distincts[1]+distincts[2])
}

func TestExplodeSessionNames(t *testing.T) {
	s := testSession(t, session.DefaultConfig())
	explodeCountry(t, s, []string{"us", "gb"}, "")
	run(t, s, "explode_session_names", args())

	assert.Equal(t, []float64{0, 2, 1, 2, 0}, counts(t, s))
	assert.Equal(t, []string{"us", "second"}, s.Keys().LabelPath(2))
	assert.Equal(t, 4, run(t, s, "get_num_groups", args()))
}
