package cli

import (
	"io"

	"github.com/jedib0t/go-pretty/v6/list"
)

// StringList renders a flat list of values, such as tag sets.
type StringList struct {
	out   *Output
	meta  Meta
	items []string
}

func (l *StringList) Add(items ...string) *StringList {
	l.items = append(l.items, items...)
	return l
}

func (l *StringList) Render() error { return l.out.Render(l) }

func (l *StringList) Meta() Meta { return l.meta }

// RenderText writes one bullet per item, or "-" for an empty list.
func (l *StringList) RenderText(w io.Writer) error {
	if len(l.items) == 0 {
		_, err := io.WriteString(w, "-\n")
		return err
	}
	lw := l.writer(list.StyleBulletCircle)
	_, err := io.WriteString(w, lw.Render()+"\n")
	return err
}

// RenderJSON never returns null so consumers can always iterate.
func (l *StringList) RenderJSON() any {
	if l.items == nil {
		return []string{}
	}
	return l.items
}

func (l *StringList) RenderMarkdown(w io.Writer) error {
	lw := l.writer(list.StyleMarkdown)
	_, err := io.WriteString(w, lw.RenderMarkdown()+"\n")
	return err
}

func (l *StringList) writer(style list.Style) list.Writer {
	lw := list.NewWriter()
	lw.SetStyle(style)
	for _, item := range l.items {
		lw.AppendItem(item)
	}
	return lw
}
