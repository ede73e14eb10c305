package cli

import (
	"fmt"
	"io"
	"strings"
)

type detail struct {
	key   string
	value any
}

// details keeps key/value pairs in insertion order; a repeated key
// overwrites in place.
type details []detail

func (d *details) set(key string, value any) {
	for i := range *d {
		if (*d)[i].key == key {
			(*d)[i].value = value
			return
		}
	}
	*d = append(*d, detail{key, value})
}

func (d details) width() int {
	w := 0
	for _, kv := range d {
		w = max(w, len(kv.key))
	}
	return w
}

func (d details) into(m map[string]any) map[string]any {
	for _, kv := range d {
		m[toJSONKey(kv.key)] = kv.value
	}
	return m
}

// Result is a one-line outcome with optional details, such as the reply to
// a forced command. Created via Output.Result().
type Result struct {
	out     *Output
	meta    Meta
	message string
	details details
}

// With adds a detail.
func (r *Result) With(key string, value any) *Result {
	r.details.set(key, value)
	return r
}

func (r *Result) Render() error { return r.out.Render(r) }

func (r *Result) Meta() Meta { return r.meta }

func (r *Result) RenderText(w io.Writer) error {
	var b strings.Builder
	b.WriteString(r.message + "\n")
	width := r.details.width() + 1
	for _, kv := range r.details {
		fmt.Fprintf(&b, "  %-*s  %v\n", width, kv.key+":", kv.value)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Result) RenderJSON() any {
	return r.details.into(map[string]any{"message": r.message})
}

func (r *Result) RenderMarkdown(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n", r.message)
	if len(r.details) > 0 {
		b.WriteString("\n")
	}
	for _, kv := range r.details {
		fmt.Fprintf(&b, "- **%s:** %s\n", kv.key, formatMarkdownValue(kv.value))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Error is a failed command rendered in the output format, so scripts
// reading JSON get a parseable failure. Created via Output.Error().
type Error struct {
	out     *Output
	meta    Meta
	err     error
	code    string
	details details
}

// WithCode sets a machine-readable error code.
func (e *Error) WithCode(code string) *Error {
	e.code = code
	return e
}

// With adds a detail.
func (e *Error) With(key string, value any) *Error {
	e.details.set(key, value)
	return e
}

func (e *Error) Render() error { return e.out.Render(e) }

func (e *Error) Meta() Meta { return e.meta }

func (e *Error) heading() string {
	if e.code == "" {
		return "Error"
	}
	return "Error [" + e.code + "]"
}

func (e *Error) RenderText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %v\n", e.heading(), e.err)
	for _, kv := range e.details {
		fmt.Fprintf(&b, "  %s: %v\n", kv.key, kv.value)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (e *Error) RenderJSON() any {
	m := map[string]any{"error": e.err.Error()}
	if e.code != "" {
		m["code"] = e.code
	}
	return e.details.into(m)
}

func (e *Error) RenderMarkdown(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "> **%s:** %v\n", e.heading(), e.err)
	if len(e.details) > 0 {
		b.WriteString("\n")
	}
	for _, kv := range e.details {
		fmt.Fprintf(&b, "- %s: %v\n", kv.key, kv.value)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
