package query

import (
	"slices"

	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
)

// Builder accumulates query constraints. The zero quota is Unlimited.
type Builder struct {
	spec Spec
}

// New starts an unconstrained, unlimited query.
func New() *Builder {
	return &Builder{spec: Spec{Matches: Unlimited}}
}

// Name sets a regular expression the whole endpoint name must match.
func (b *Builder) Name(re string) *Builder {
	b.spec.Name = re
	return b
}

// Description sets a regular expression the whole description must match.
func (b *Builder) Description(re string) *Builder {
	b.spec.Description = re
	return b
}

// Schema requires an exact schema document.
func (b *Builder) Schema(schema string) *Builder {
	b.spec.Schema = &schema
	return b
}

// Polarity requires the endpoint polarity.
func (b *Builder) Polarity(p endpoint.Polarity) *Builder {
	b.spec.Polarity = p
	return b
}

// IncludeTag requires tag t.
func (b *Builder) IncludeTag(t string) *Builder {
	return b.IncludeTags(t)
}

// IncludeTags requires every tag in ts.
func (b *Builder) IncludeTags(ts ...string) *Builder {
	for _, t := range ts {
		b.spec.ExcludeTags = remove(b.spec.ExcludeTags, t)
		if !slices.Contains(b.spec.IncludeTags, t) {
			b.spec.IncludeTags = append(b.spec.IncludeTags, t)
		}
	}
	return b
}

// ExcludeTag forbids tag t.
func (b *Builder) ExcludeTag(t string) *Builder {
	return b.ExcludeTags(t)
}

// ExcludeTags forbids every tag in ts.
func (b *Builder) ExcludeTags(ts ...string) *Builder {
	for _, t := range ts {
		b.spec.IncludeTags = remove(b.spec.IncludeTags, t)
		if !slices.Contains(b.spec.ExcludeTags, t) {
			b.spec.ExcludeTags = append(b.spec.ExcludeTags, t)
		}
	}
	return b
}

// IgnoreTag drops any include or exclude constraint on t.
func (b *Builder) IgnoreTag(t string) *Builder {
	return b.IgnoreTags(t)
}

// IgnoreTags drops any include or exclude constraint on each tag in ts.
func (b *Builder) IgnoreTags(ts ...string) *Builder {
	for _, t := range ts {
		b.spec.IncludeTags = remove(b.spec.IncludeTags, t)
		b.spec.ExcludeTags = remove(b.spec.ExcludeTags, t)
	}
	return b
}

// Matches sets the quota. Use Unlimited to remove it.
func (b *Builder) Matches(n int) *Builder {
	b.spec.Matches = n
	return b
}

// Where adds a CEL predicate over name, description, polarity, schema and tags.
func (b *Builder) Where(expr string) *Builder {
	b.spec.Where = expr
	return b
}

// Build compiles the accumulated constraints.
func (b *Builder) Build() (*Query, error) {
	return FromSpec(b.spec)
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Query {
	return MustFromSpec(b.spec)
}

func remove(list []string, t string) []string {
	return slices.DeleteFunc(list, func(s string) bool { return s == t })
}
