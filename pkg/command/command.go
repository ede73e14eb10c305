// Package command defines the remote commands a forceable instance accepts.
//
// Command is a closed sum type: Map, MapTo, UnmapAll, CloseAll and
// SetRDCAddress. Dispatchers switch on the concrete type.
package command

import (
	"encoding/json"
	"fmt"

	"github.com/Homlet/middleware-android-sub001/pkg/persistence"
	"github.com/Homlet/middleware-android-sub001/pkg/query"
)

// Kind tags a command variant on the wire.
type Kind string

const (
	KindMap           Kind = "MAP"
	KindMapTo         Kind = "MAP_TO"
	KindUnmapAll      Kind = "UNMAP_ALL"
	KindCloseAll      Kind = "CLOSE_ALL"
	KindSetRDCAddress Kind = "SET_RDC_ADDRESS"
)

// Command is one remote operation.
type Command interface {
	Kind() Kind
	// Endpoint returns the targeted endpoint, or "" for instance-wide commands.
	Endpoint() string
	isCommand()
}

// Map runs an indirect (RDC-mediated) mapping from Target.
type Map struct {
	Target      string             `json:"endpoint"`
	Query       query.Spec         `json:"query"`
	Persistence persistence.Policy `json:"persistence"`
}

// MapTo runs a direct mapping from Target to Host.
type MapTo struct {
	Target      string             `json:"endpoint"`
	Host        string             `json:"host"`
	Query       query.Spec         `json:"query"`
	Persistence persistence.Policy `json:"persistence"`
}

// UnmapAll gracefully drops every link of Target.
type UnmapAll struct {
	Target string `json:"endpoint"`
}

// CloseAll forcibly drops every link of Target.
type CloseAll struct {
	Target string `json:"endpoint"`
}

// SetRDCAddress points the instance at a different RDC.
type SetRDCAddress struct {
	Address string `json:"address"`
}

func (Map) Kind() Kind           { return KindMap }
func (MapTo) Kind() Kind         { return KindMapTo }
func (UnmapAll) Kind() Kind      { return KindUnmapAll }
func (CloseAll) Kind() Kind      { return KindCloseAll }
func (SetRDCAddress) Kind() Kind { return KindSetRDCAddress }

func (c Map) Endpoint() string         { return c.Target }
func (c MapTo) Endpoint() string       { return c.Target }
func (c UnmapAll) Endpoint() string    { return c.Target }
func (c CloseAll) Endpoint() string    { return c.Target }
func (SetRDCAddress) Endpoint() string { return "" }

func (Map) isCommand()           {}
func (MapTo) isCommand()         {}
func (UnmapAll) isCommand()      {}
func (CloseAll) isCommand()      {}
func (SetRDCAddress) isCommand() {}

// Envelope is the serialized form of a Command.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps a command in an Envelope.
func Encode(c Command) (Envelope, error) {
	if c == nil {
		return Envelope{}, fmt.Errorf("nil command")
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", c.Kind(), err)
	}
	return Envelope{Kind: c.Kind(), Payload: payload}, nil
}

// Decode unwraps an Envelope into its concrete Command.
func Decode(env Envelope) (Command, error) {
	var c Command
	switch env.Kind {
	case KindMap:
		c = &Map{Query: query.Spec{Matches: query.Unlimited}}
	case KindMapTo:
		c = &MapTo{Query: query.Spec{Matches: query.Unlimited}}
	case KindUnmapAll:
		c = &UnmapAll{}
	case KindCloseAll:
		c = &CloseAll{}
	case KindSetRDCAddress:
		c = &SetRDCAddress{}
	default:
		return nil, fmt.Errorf("unknown command kind %q", env.Kind)
	}
	if err := json.Unmarshal(env.Payload, c); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Kind, err)
	}
	return deref(c), nil
}

func deref(c Command) Command {
	switch v := c.(type) {
	case *Map:
		return *v
	case *MapTo:
		return *v
	case *UnmapAll:
		return *v
	case *CloseAll:
		return *v
	case *SetRDCAddress:
		return *v
	}
	return c
}
