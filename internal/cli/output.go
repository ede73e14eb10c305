// Package cli holds the plumbing shared by the mw and mw-rdc client
// commands: output rendering and the per-command connection setup.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses a format string, defaulting to text.
func ParseFormat(s string) Format {
	switch s {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	case "markdown", "md":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Meta heads every structured document: what kind of result it is, which
// instance or RDC answered, and when.
type Meta struct {
	Type      string    `json:"type" yaml:"type"`
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"`
	Generated time.Time `json:"generated" yaml:"generated"`
}

// Renderable can render itself in multiple formats.
type Renderable interface {
	Meta() Meta
	RenderText(w io.Writer) error
	RenderJSON() any
	RenderMarkdown(w io.Writer) error
}

// Output handles formatted rendering with automatic envelope/frontmatter.
type Output struct {
	format Format
	source string
	w      io.Writer
}

// NewOutput creates an output renderer for the given format.
func NewOutput(format Format, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// ViperGetter is the subset of viper.Viper we need.
type ViperGetter interface {
	GetString(key string) string
}

// NewOutputFromViper reads the "output" key for the format and writes to stdout.
func NewOutputFromViper(v ViperGetter) *Output {
	return NewOutput(ParseFormat(v.GetString("output")), os.Stdout)
}

// WithSource records which instance or RDC produced the results.
func (o *Output) WithSource(source string) *Output {
	o.source = source
	return o
}

// Format returns the configured output format.
func (o *Output) Format() Format {
	return o.format
}

func (o *Output) meta(resultType string) Meta {
	return Meta{Type: resultType, Source: o.source, Generated: time.Now().UTC()}
}

func (o *Output) Table(resultType string, headers ...string) *Table {
	return &Table{out: o, meta: o.meta(resultType), headers: headers}
}

func (o *Output) KV(resultType string) *KV {
	return &KV{out: o, meta: o.meta(resultType)}
}

func (o *Output) StringList(resultType string) *StringList {
	return &StringList{out: o, meta: o.meta(resultType)}
}

// Result reports the outcome of a command that changed something.
func (o *Output) Result(resultType, message string) *Result {
	return &Result{out: o, meta: o.meta(resultType), message: message}
}

// Error wraps a failed command so scripts reading json or yaml still get a
// document.
func (o *Output) Error(resultType string, err error) *Error {
	return &Error{out: o, meta: o.meta(resultType + "-error"), err: err}
}

// Render outputs the renderable in the configured format.
func (o *Output) Render(r Renderable) error {
	switch o.format {
	case FormatJSON:
		return o.renderJSON(r)
	case FormatYAML:
		return o.renderYAML(r)
	case FormatMarkdown:
		return o.renderMarkdown(r)
	default:
		return r.RenderText(o.w)
	}
}

type envelope struct {
	Meta Meta `json:"meta" yaml:"meta"`
	Data any  `json:"data" yaml:"data"`
}

func (o *Output) renderJSON(r Renderable) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope{Meta: r.Meta(), Data: r.RenderJSON()})
}

func (o *Output) renderYAML(r Renderable) error {
	enc := yaml.NewEncoder(o.w)
	enc.SetIndent(2)
	if err := enc.Encode(envelope{Meta: r.Meta(), Data: r.RenderJSON()}); err != nil {
		return err
	}
	return enc.Close()
}

func (o *Output) renderMarkdown(r Renderable) error {
	if _, err := fmt.Fprintln(o.w, "---"); err != nil {
		return err
	}

	enc := yaml.NewEncoder(o.w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Meta()); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	if _, err := fmt.Fprint(o.w, "---\n\n"); err != nil {
		return err
	}
	return r.RenderMarkdown(o.w)
}
