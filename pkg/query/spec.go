package query

import (
	"slices"

	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	"github.com/Homlet/middleware-android-sub001/pkg/tags"
)

// Spec is the serializable form of a Query.
type Spec struct {
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Schema      *string           `json:"schema,omitempty"`
	Polarity    endpoint.Polarity `json:"polarity,omitempty"`
	IncludeTags []string          `json:"include_tags,omitempty"`
	ExcludeTags []string          `json:"exclude_tags,omitempty"`
	Matches     int               `json:"matches"`
	Where       string            `json:"where,omitempty"`
}

func (s Spec) normalized() Spec {
	c := s.clone()
	c.IncludeTags = tags.Normalize(c.IncludeTags)
	c.ExcludeTags = tags.Normalize(c.ExcludeTags)
	return c
}

func (s Spec) clone() Spec {
	c := s
	c.IncludeTags = slices.Clone(s.IncludeTags)
	c.ExcludeTags = slices.Clone(s.ExcludeTags)
	if s.Schema != nil {
		schema := *s.Schema
		c.Schema = &schema
	}
	return c
}
