package query

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
)

func tagged() []endpoint.Details {
	return []endpoint.Details{
		endpoint.New("epTags1", "", endpoint.Source, "", "green", "large", "frequent"),
		endpoint.New("epTags2", "", endpoint.Source, ""),
		endpoint.New("epTags3", "", endpoint.Source, "", "small", "infrequent"),
	}
}

func names(ds []endpoint.Details) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Name)
	}
	return out
}

func equalNames(t *testing.T, got []endpoint.Details, want ...string) {
	t.Helper()
	g := names(got)
	if len(g) != len(want) {
		t.Fatalf("got %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("got %v, want %v", g, want)
		}
	}
}

func TestTagConstraints(t *testing.T) {
	tests := []struct {
		name  string
		query *Query
		want  []string
	}{
		{"include green,large", New().IncludeTags("green", "large").MustBuild(), []string{"epTags1"}},
		{"exclude green,large", New().ExcludeTags("green", "large").MustBuild(), []string{"epTags2", "epTags3"}},
		{"include green,infrequent", New().IncludeTags("green", "infrequent").MustBuild(), nil},
		{"ignore cancels include", New().IncludeTag("green").IgnoreTag("green").MustBuild(), []string{"epTags1", "epTags2", "epTags3"}},
		{"ignore cancels exclude", New().ExcludeTag("small").IgnoreTag("small").MustBuild(), []string{"epTags1", "epTags2", "epTags3"}},
		{"ignore one of many", New().IncludeTags("green", "small").IgnoreTags("small").MustBuild(), []string{"epTags1"}},
		{"include and exclude", New().IncludeTag("green").ExcludeTag("frequent").MustBuild(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equalNames(t, tt.query.Apply(tagged()), tt.want...)
		})
	}
}

func TestFilterIsFreshPerCall(t *testing.T) {
	q := New().Matches(2).MustBuild()
	items := tagged()

	first := q.Apply(items)
	second := q.Apply(items)

	equalNames(t, first, "epTags1", "epTags2")
	equalNames(t, second, "epTags1", "epTags2")
}

func TestMatchesQuota(t *testing.T) {
	items := tagged()
	tests := []struct {
		matches int
		want    int
	}{
		{0, 0},
		{1, 1},
		{3, 3},
		{10, 3},
		{Unlimited, 3},
	}
	for _, tt := range tests {
		q := New().Matches(tt.matches).MustBuild()
		for round := 0; round < 2; round++ {
			if got := len(q.Apply(items)); got != tt.want {
				t.Errorf("matches=%d round %d: got %d items, want %d", tt.matches, round, got, tt.want)
			}
		}
	}
}

func TestQuotaOnlyCountsOtherwiseMatchingItems(t *testing.T) {
	q := New().ExcludeTag("green").Matches(1).MustBuild()
	f := q.Filter()

	items := tagged()
	if f(items[0]) {
		t.Fatal("epTags1 carries an excluded tag")
	}
	if !f(items[1]) {
		t.Fatal("epTags2 should consume the single match")
	}
	if f(items[2]) {
		t.Fatal("quota exhausted, epTags3 must be rejected")
	}
}

func TestRegexConstraints(t *testing.T) {
	items := []endpoint.Details{
		endpoint.New("sensor.temp", "temperature in celsius", endpoint.Source, ""),
		endpoint.New("sensor.humidity", "relative humidity", endpoint.Source, ""),
		endpoint.New("actuator", "valve", endpoint.Sink, ""),
	}

	equalNames(t, New().Name(`sensor\..*`).MustBuild().Apply(items), "sensor.temp", "sensor.humidity")
	equalNames(t, New().Name(`sensor`).MustBuild().Apply(items))
	equalNames(t, New().Description(`.*celsius`).MustBuild().Apply(items), "sensor.temp")
	equalNames(t, New().Polarity(endpoint.Sink).MustBuild().Apply(items), "actuator")
}

func TestSchemaExactMatch(t *testing.T) {
	items := []endpoint.Details{
		endpoint.New("a", "", endpoint.Source, `{"type":"string"}`),
		endpoint.New("b", "", endpoint.Source, `{"type": "string"}`),
		endpoint.New("c", "", endpoint.Source, ""),
	}
	equalNames(t, New().Schema(`{"type":"string"}`).MustBuild().Apply(items), "a")
	equalNames(t, New().Schema("").MustBuild().Apply(items), "c")
}

func TestWhereClause(t *testing.T) {
	q, err := New().Where(`size(tags) == 0 || "frequent" in tags`).Build()
	if err != nil {
		t.Fatal(err)
	}
	equalNames(t, q.Apply(tagged()), "epTags1", "epTags2")

	if _, err := New().Where(`tags +`).Build(); err == nil {
		t.Error("expected compile error")
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := New().Name("(").Build(); err == nil {
		t.Error("expected regex error")
	}
	if _, err := New().Matches(-2).Build(); !errors.Is(err, mwerrors.ErrBadQuery) {
		t.Errorf("quota error = %v, want ErrBadQuery", err)
	}
}

func TestDerivedQueriesDoNotMutateOriginal(t *testing.T) {
	q := New().IncludeTag("green").Matches(3).MustBuild()
	d := q.WithPolarity(endpoint.Sink).WithSchema("s").WithMatches(1)

	if q.HasPolarity() || q.HasSchema() || q.Matches() != 3 {
		t.Errorf("original mutated: %s", q)
	}
	if !d.HasPolarity() || !d.HasSchema() || d.Matches() != 1 {
		t.Errorf("derived missing fields: %s", d)
	}
	if c := d.WithoutOwnerFields(); c.HasPolarity() || c.HasSchema() {
		t.Errorf("owner fields not cleared: %s", c)
	}
}

func TestSpecRoundTripPreservesBehaviour(t *testing.T) {
	q := New().Name("ep.*").IncludeTag("green").ExcludeTag("small").Polarity(endpoint.Source).Matches(1).MustBuild()

	data, err := json.Marshal(q.Spec())
	if err != nil {
		t.Fatal(err)
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		t.Fatal(err)
	}
	decoded, err := FromSpec(spec)
	if err != nil {
		t.Fatal(err)
	}
	equalNames(t, decoded.Apply(tagged()), names(q.Apply(tagged()))...)
}
