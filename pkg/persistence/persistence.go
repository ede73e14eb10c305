// Package persistence defines the reconnection policies a mapping can carry.
package persistence

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Policy selects how a mapping recovers after link failure.
type Policy int

const (
	// None takes no action.
	None Policy = iota
	// ResendQuery re-runs the original query once every link has closed.
	ResendQuery
	// ResendQueryIndividual re-runs the query for exactly as many links as closed.
	ResendQueryIndividual
	// Exact reconnects each closed link to its former location. Experimental.
	Exact
)

var names = map[Policy]string{
	None:                  "NONE",
	ResendQuery:           "RESEND_QUERY",
	ResendQueryIndividual: "RESEND_QUERY_INDIVIDUAL",
	Exact:                 "EXACT",
}

func (p Policy) String() string {
	if s, ok := names[p]; ok {
		return s
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// Parse accepts the wire names, case-insensitively, with '-' or '_' separators.
func Parse(s string) (Policy, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	if norm == "" {
		return None, nil
	}
	for p, name := range names {
		if name == norm {
			return p, nil
		}
	}
	return None, fmt.Errorf("unknown persistence %q", s)
}

func (p Policy) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Policy) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
