// Package endpoint defines the immutable description of a named, polarized
// data port.
package endpoint

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Homlet/middleware-android-sub001/pkg/tags"
)

// Polarity is the direction of an endpoint. Sources emit, sinks receive.
type Polarity int

const (
	PolarityUnset Polarity = iota
	Source
	Sink
)

// String returns the wire name of the polarity.
func (p Polarity) String() string {
	switch p {
	case Source:
		return "SOURCE"
	case Sink:
		return "SINK"
	default:
		return "UNSET"
	}
}

// Opposite returns the polarity an endpoint of polarity p links to.
func (p Polarity) Opposite() Polarity {
	switch p {
	case Source:
		return Sink
	case Sink:
		return Source
	default:
		return PolarityUnset
	}
}

// Valid reports whether p is Source or Sink.
func (p Polarity) Valid() bool {
	return p == Source || p == Sink
}

// ParsePolarity parses "source"/"sink" in any case.
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SOURCE":
		return Source, nil
	case "SINK":
		return Sink, nil
	default:
		return PolarityUnset, fmt.Errorf("invalid polarity %q (expected source or sink)", s)
	}
}

func (p Polarity) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Polarity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" || s == "UNSET" {
		*p = PolarityUnset
		return nil
	}
	parsed, err := ParsePolarity(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Details describes an endpoint. It is a value type; identity is Name.
// Schema is an opaque document compared by value.
type Details struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Polarity    Polarity `json:"polarity"`
	Schema      string   `json:"schema,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// New returns Details with a normalized tag set.
func New(name, description string, polarity Polarity, schema string, tagList ...string) Details {
	return Details{
		Name:        name,
		Description: description,
		Polarity:    polarity,
		Schema:      schema,
		Tags:        tags.Normalize(tagList),
	}
}

// Validate checks the fields a registry requires.
func (d Details) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("endpoint name cannot be empty")
	}
	if !d.Polarity.Valid() {
		return fmt.Errorf("endpoint %q: polarity must be SOURCE or SINK", d.Name)
	}
	return nil
}

// Equal compares all fields, ignoring tag order.
func (d Details) Equal(o Details) bool {
	return d.Name == o.Name &&
		d.Description == o.Description &&
		d.Polarity == o.Polarity &&
		d.Schema == o.Schema &&
		tags.Equal(d.Tags, o.Tags)
}

// HasTag reports whether the endpoint carries tag t.
func (d Details) HasTag(t string) bool {
	for _, have := range d.Tags {
		if have == t {
			return true
		}
	}
	return false
}

// Attributes returns the endpoint fields as a CEL-friendly attribute map.
func (d Details) Attributes() map[string]any {
	tagList := make([]string, len(d.Tags))
	copy(tagList, d.Tags)
	return map[string]any{
		"name":        d.Name,
		"description": d.Description,
		"polarity":    d.Polarity.String(),
		"schema":      d.Schema,
		"tags":        tagList,
	}
}

// Clone returns a copy with its own tag slice.
func (d Details) Clone() Details {
	c := d
	c.Tags = append([]string(nil), d.Tags...)
	return c
}
