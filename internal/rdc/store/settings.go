package store

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ConfigError reports an unusable setting of a store backend.
type ConfigError struct {
	Backend string
	Key     string
	Value   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Key == "":
		return fmt.Sprintf("%s: %s", e.Backend, e.Message)
	case e.Value == "":
		return fmt.Sprintf("%s: %s: %s", e.Backend, e.Key, e.Message)
	default:
		return fmt.Sprintf("%s: %s=%q: %s", e.Backend, e.Key, e.Value, e.Message)
	}
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// Settings is the string-keyed configuration handed to a backend factory.
// Accessors treat an empty value as absent and report errors against the
// owning backend.
type Settings struct {
	backend string
	values  map[string]string
}

// NewSettings layers overrides over defaults for backend.
func NewSettings(backend string, defaults, overrides map[string]string) Settings {
	values := make(map[string]string, len(defaults)+len(overrides))
	maps.Copy(values, defaults)
	maps.Copy(values, overrides)
	return Settings{backend: backend, values: values}
}

// Backend names the backend the settings belong to.
func (s Settings) Backend() string { return s.backend }

// Raw returns the value of key as configured.
func (s Settings) Raw(key string) string { return s.values[key] }

// Err builds a ConfigError for key carrying its current value.
func (s Settings) Err(key, message string, cause error) *ConfigError {
	return &ConfigError{Backend: s.backend, Key: key, Value: s.values[key], Message: message, Cause: cause}
}

// String returns key or def when unset.
func (s Settings) String(key, def string) string {
	if v := s.values[key]; v != "" {
		return v
	}
	return def
}

// Require returns key and fails when it is unset.
func (s Settings) Require(key string) (string, error) {
	v := s.values[key]
	if v == "" {
		return "", &ConfigError{Backend: s.backend, Key: key, Message: "cannot be empty"}
	}
	return v, nil
}

// Path returns the required path at key with a leading ~/ expanded.
func (s Settings) Path(key string) (string, error) {
	p, err := s.Require(key)
	if err != nil {
		return "", err
	}
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		if home, herr := os.UserHomeDir(); herr == nil {
			return filepath.Join(home, rest), nil
		}
	}
	return filepath.Clean(p), nil
}

// Bool accepts true/false, 1/0 and yes/no in any case.
func (s Settings) Bool(key string, def bool) (bool, error) {
	v := s.values[key]
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, nil
	case "false", "0", "no":
		return false, nil
	}
	return false, s.Err(key, "must be a boolean (true/false, 1/0, yes/no)", nil)
}

// Int parses key as a base 10 integer.
func (s Settings) Int(key string, def int) (int, error) {
	v := s.values[key]
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, s.Err(key, "must be an integer", err)
	}
	return i, nil
}

// NonNegativeInt is Int rejecting values below zero.
func (s Settings) NonNegativeInt(key string, def int) (int, error) {
	i, err := s.Int(key, def)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, s.Err(key, "must be non-negative", nil)
	}
	return i, nil
}

// Duration accepts Go duration strings or plain integers as seconds.
func (s Settings) Duration(key string, def time.Duration) (time.Duration, error) {
	v := s.values[key]
	if v == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, s.Err(key, "must be a duration (e.g. '5s', '1m30s') or integer seconds", nil)
}
