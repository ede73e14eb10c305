// Package location describes where a middleware instance can be reached.
//
// A Location is an opaque instance id plus an ordered list of transport
// addresses. Locations are returned by the RDC and used as mapping targets.
package location

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"

	"github.com/Homlet/middleware-android-sub001/internal/names"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
)

// DefaultScheme is applied to addresses given without a scheme.
const DefaultScheme = "tcp"

var schemes = []string{"tcp", "grpc"}

// Address is a normalized transport connection string, "scheme://host:port".
type Address string

// ParseAddress validates s and normalizes it to "scheme://host:port".
// Accepted forms are "host:port", "tcp://host:port" and "grpc://host:port".
func ParseAddress(s string) (Address, error) {
	raw := strings.TrimSpace(s)
	scheme := DefaultScheme
	if i := strings.Index(raw, "://"); i >= 0 {
		scheme = strings.ToLower(raw[:i])
		raw = raw[i+3:]
		if !slices.Contains(schemes, scheme) {
			return "", fmt.Errorf("%w: unsupported scheme %q in %q", mwerrors.ErrMalformedAddress, scheme, s)
		}
	}
	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", mwerrors.ErrMalformedAddress, s, err)
	}
	if host == "" {
		return "", fmt.Errorf("%w: %q: empty host", mwerrors.ErrMalformedAddress, s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", fmt.Errorf("%w: %q: invalid port", mwerrors.ErrMalformedAddress, s)
	}
	return Address(scheme + "://" + net.JoinHostPort(host, portStr)), nil
}

// Scheme returns the address scheme.
func (a Address) Scheme() string {
	s, _, _ := strings.Cut(string(a), "://")
	return s
}

// Target returns the dialable "host:port" part.
func (a Address) Target() string {
	_, t, found := strings.Cut(string(a), "://")
	if !found {
		return string(a)
	}
	return t
}

func (a Address) String() string { return string(a) }

// Location is a host identity plus its reachable addresses, in preference order.
type Location struct {
	ID        string    `json:"id,omitempty"`
	Addresses []Address `json:"addresses"`
}

// New builds a Location, parsing each address. Malformed addresses are an error.
func New(id string, addrs ...string) (Location, error) {
	loc := Location{ID: id}
	for _, a := range addrs {
		parsed, err := ParseAddress(a)
		if err != nil {
			return Location{}, err
		}
		if !slices.Contains(loc.Addresses, parsed) {
			loc.Addresses = append(loc.Addresses, parsed)
		}
	}
	return loc, nil
}

// ParseHost resolves a user supplied host string (one address or a
// comma-separated list) into a Location without an id. Any failure is
// reported as ErrBadHost.
func ParseHost(host string) (Location, error) {
	parts := strings.Split(host, ",")
	var addrs []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			addrs = append(addrs, p)
		}
	}
	if len(addrs) == 0 {
		return Location{}, fmt.Errorf("%w: empty host", mwerrors.ErrBadHost)
	}
	loc, err := New("", addrs...)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %w", mwerrors.ErrBadHost, err)
	}
	return loc, nil
}

// Target returns the first dialable address, or ErrNoValidAddress.
func (l Location) Target() (string, error) {
	for _, a := range l.Addresses {
		if parsed, err := ParseAddress(string(a)); err == nil {
			return parsed.Target(), nil
		}
	}
	return "", fmt.Errorf("%w: location %s", mwerrors.ErrNoValidAddress, l.Key())
}

// Validate checks that the location has at least one usable address.
func (l Location) Validate() error {
	_, err := l.Target()
	return err
}

// Key identifies the location: its id, or its first address when anonymous.
func (l Location) Key() string {
	if l.ID != "" {
		return l.ID
	}
	if len(l.Addresses) > 0 {
		return string(l.Addresses[0])
	}
	return ""
}

// IsZero reports whether the location carries neither id nor addresses.
func (l Location) IsZero() bool {
	return l.ID == "" && len(l.Addresses) == 0
}

// SameHost reports whether l and o denote the same instance: equal ids when
// both are known, otherwise any shared address.
func (l Location) SameHost(o Location) bool {
	if l.ID != "" && o.ID != "" {
		return l.ID == o.ID
	}
	for _, a := range l.Addresses {
		if slices.Contains(o.Addresses, a) {
			return true
		}
	}
	return false
}

// Petname returns a human-friendly name for the instance id.
func (l Location) Petname() string {
	return names.ForInstance(l.ID)
}

// Clone returns a copy with its own address slice.
func (l Location) Clone() Location {
	return Location{ID: l.ID, Addresses: slices.Clone(l.Addresses)}
}

func (l Location) String() string {
	addrs := make([]string, len(l.Addresses))
	for i, a := range l.Addresses {
		addrs[i] = string(a)
	}
	id := l.ID
	if id == "" {
		id = "?"
	}
	return id + "@[" + strings.Join(addrs, ",") + "]"
}
