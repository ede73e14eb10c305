// Package logging wraps slog with the attribute helpers middleware components
// share, and formats instance ids and locations for log lines.
package logging

import (
	"log/slog"

	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
)

// Logger is a slog.Logger with middleware-specific With helpers. The zero
// value is not usable; build one with New.
type Logger struct {
	*slog.Logger
}

// New wraps base. A nil base uses slog.Default().
func New(base *slog.Logger) *Logger {
	if base == nil {
		base = slog.Default()
	}
	return &Logger{Logger: base}
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithComponent tags every record with the owning component. The pretty
// handler renders it as a [component] prefix.
func (l *Logger) WithComponent(name string) *Logger {
	return l.with("component", name)
}

// WithInstance adds the instance id and its petname.
func (l *Logger) WithInstance(id string) *Logger {
	return l.with("instance", FormatID(id), "petname", location.Location{ID: id}.Petname())
}

// WithEndpoint adds the endpoint name and polarity.
func (l *Logger) WithEndpoint(d endpoint.Details) *Logger {
	return l.with("endpoint", d.Name, "polarity", d.Polarity.String())
}

// WithLocation adds loc under key, formatted by FormatLocation.
func (l *Logger) WithLocation(key string, loc location.Location) *Logger {
	return l.with(key, FormatLocation(loc))
}

// Slog returns the underlying logger, attributes included.
func (l *Logger) Slog() *slog.Logger {
	return l.Logger
}

// FormatID shortens an instance or mapping id for display.
func FormatID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// FormatLocation renders a location as "petname(id...)@first-address", or
// just the address when the id is unknown.
func FormatLocation(loc location.Location) string {
	addr := "-"
	if len(loc.Addresses) > 0 {
		addr = loc.Addresses[0].Target()
	}
	if loc.ID == "" {
		return addr
	}
	return loc.Petname() + "(" + FormatID(loc.ID) + ")@" + addr
}
