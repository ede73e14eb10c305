// Package query compiles declarative endpoint queries into reusable,
// stateful predicates.
//
// A Query is immutable once built. Each call to Filter returns a predicate
// with its own match counter seeded from the query's quota, so the same
// Query applied twice accepts the same items twice.
package query

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Homlet/middleware-android-sub001/internal/cel"
	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/tags"
)

// Unlimited is the quota sentinel that never exhausts.
const Unlimited = -1

// Query is a compiled, immutable endpoint filter plus a match quota.
type Query struct {
	spec   Spec
	nameRE *regexp.Regexp
	descRE *regexp.Regexp
	where  *cel.Filter
}

// Filter reports whether an endpoint is accepted. Predicates returned by
// Query.Filter carry their own quota counter and are not safe for
// concurrent use.
type Filter func(endpoint.Details) bool

// FromSpec compiles a wire Spec into a Query. Every failure wraps ErrBadQuery.
func FromSpec(s Spec) (*Query, error) {
	if s.Matches < Unlimited {
		return nil, fmt.Errorf("%w: matches must be non-negative or Unlimited, got %d", mwerrors.ErrBadQuery, s.Matches)
	}
	if s.Polarity != endpoint.PolarityUnset && !s.Polarity.Valid() {
		return nil, fmt.Errorf("%w: invalid polarity %d", mwerrors.ErrBadQuery, s.Polarity)
	}

	q := &Query{spec: s.normalized()}

	var err error
	if s.Name != "" {
		if q.nameRE, err = compileAnchored(s.Name); err != nil {
			return nil, fmt.Errorf("%w: name regex: %w", mwerrors.ErrBadQuery, err)
		}
	}
	if s.Description != "" {
		if q.descRE, err = compileAnchored(s.Description); err != nil {
			return nil, fmt.Errorf("%w: description regex: %w", mwerrors.ErrBadQuery, err)
		}
	}
	if s.Where != "" {
		if q.where, err = cel.Compile(s.Where); err != nil {
			return nil, fmt.Errorf("%w: where: %w", mwerrors.ErrBadQuery, err)
		}
	}
	return q, nil
}

// MustFromSpec is like FromSpec but panics on error.
func MustFromSpec(s Spec) *Query {
	q, err := FromSpec(s)
	if err != nil {
		panic(err)
	}
	return q
}

// All returns a query that matches every endpoint without limit.
func All() *Query {
	return &Query{spec: Spec{Matches: Unlimited}}
}

// compileAnchored compiles re so that it must match the whole string.
func compileAnchored(re string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + re + ")$")
}

// Spec returns the wire form of the query.
func (q *Query) Spec() Spec {
	return q.spec.clone()
}

// Matches returns the quota; Unlimited means no quota.
func (q *Query) Matches() int { return q.spec.Matches }

// HasSchema reports whether the schema constraint was set explicitly.
func (q *Query) HasSchema() bool { return q.spec.Schema != nil }

// HasPolarity reports whether the polarity constraint was set explicitly.
func (q *Query) HasPolarity() bool { return q.spec.Polarity != endpoint.PolarityUnset }

// Polarity returns the polarity constraint, PolarityUnset when absent.
func (q *Query) Polarity() endpoint.Polarity { return q.spec.Polarity }

// Schema returns the schema constraint and whether it is set.
func (q *Query) Schema() (string, bool) {
	if q.spec.Schema == nil {
		return "", false
	}
	return *q.spec.Schema, true
}

// IncludeTags returns the required tags.
func (q *Query) IncludeTags() []string { return slices.Clone(q.spec.IncludeTags) }

// ExcludeTags returns the forbidden tags.
func (q *Query) ExcludeTags() []string { return slices.Clone(q.spec.ExcludeTags) }

// WithMatches returns a copy with a different quota.
func (q *Query) WithMatches(n int) *Query {
	c := *q
	c.spec = q.spec.clone()
	c.spec.Matches = n
	return &c
}

// WithPolarity returns a copy constrained to polarity p.
func (q *Query) WithPolarity(p endpoint.Polarity) *Query {
	c := *q
	c.spec = q.spec.clone()
	c.spec.Polarity = p
	return &c
}

// WithSchema returns a copy constrained to an exact schema.
func (q *Query) WithSchema(schema string) *Query {
	c := *q
	c.spec = q.spec.clone()
	c.spec.Schema = &schema
	return &c
}

// WithoutOwnerFields returns a copy with schema and polarity cleared.
func (q *Query) WithoutOwnerFields() *Query {
	c := *q
	c.spec = q.spec.clone()
	c.spec.Schema = nil
	c.spec.Polarity = endpoint.PolarityUnset
	return &c
}

// Match applies every constraint except the quota.
func (q *Query) Match(d endpoint.Details) bool {
	if q.nameRE != nil && !q.nameRE.MatchString(d.Name) {
		return false
	}
	if q.descRE != nil && !q.descRE.MatchString(d.Description) {
		return false
	}
	if q.spec.Schema != nil && *q.spec.Schema != d.Schema {
		return false
	}
	if q.spec.Polarity != endpoint.PolarityUnset && q.spec.Polarity != d.Polarity {
		return false
	}
	if len(q.spec.IncludeTags) > 0 || len(q.spec.ExcludeTags) > 0 {
		have := tags.Set(d.Tags)
		if !tags.HasAll(have, q.spec.IncludeTags) || tags.HasAny(have, q.spec.ExcludeTags) {
			return false
		}
	}
	if q.where != nil && !q.where.Match(d.Attributes()) {
		return false
	}
	return true
}

// Filter materializes a fresh predicate with its own quota counter.
func (q *Query) Filter() Filter {
	remaining := q.spec.Matches
	return func(d endpoint.Details) bool {
		if !q.Match(d) {
			return false
		}
		if remaining == Unlimited {
			return true
		}
		if remaining <= 0 {
			return false
		}
		remaining--
		return true
	}
}

// Apply runs a fresh filter over items, preserving their order.
func (q *Query) Apply(items []endpoint.Details) []endpoint.Details {
	f := q.Filter()
	var out []endpoint.Details
	for _, d := range items {
		if f(d) {
			out = append(out, d)
		}
	}
	return out
}

// MatchesAny reports whether at least one item passes every constraint,
// ignoring the quota.
func (q *Query) MatchesAny(items []endpoint.Details) bool {
	for _, d := range items {
		if q.Match(d) {
			return true
		}
	}
	return false
}

// String renders the query for logs.
func (q *Query) String() string {
	var parts []string
	if q.spec.Name != "" {
		parts = append(parts, "name~"+q.spec.Name)
	}
	if q.spec.Description != "" {
		parts = append(parts, "description~"+q.spec.Description)
	}
	if q.spec.Schema != nil {
		parts = append(parts, "schema=<set>")
	}
	if q.spec.Polarity != endpoint.PolarityUnset {
		parts = append(parts, "polarity="+q.spec.Polarity.String())
	}
	if len(q.spec.IncludeTags) > 0 {
		parts = append(parts, "+tags="+strings.Join(q.spec.IncludeTags, ","))
	}
	if len(q.spec.ExcludeTags) > 0 {
		parts = append(parts, "-tags="+strings.Join(q.spec.ExcludeTags, ","))
	}
	if q.spec.Where != "" {
		parts = append(parts, "where="+q.spec.Where)
	}
	if q.spec.Matches == Unlimited {
		parts = append(parts, "matches=*")
	} else {
		parts = append(parts, fmt.Sprintf("matches=%d", q.spec.Matches))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
