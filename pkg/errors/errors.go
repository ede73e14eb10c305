// Package errors provides the sentinel errors shared by the middleware, the
// RDC and their wire protocols.
package errors

import stderrors "errors"

var (
	// ErrEndpointCollision indicates an endpoint with the same name is already active.
	ErrEndpointCollision = stderrors.New("endpoint collision")

	// ErrEndpointNotFound indicates no active endpoint has the requested name.
	ErrEndpointNotFound = stderrors.New("endpoint not found")

	// ErrBadQuery indicates a query sets fields that the operation owns.
	ErrBadQuery = stderrors.New("bad query")

	// ErrBadHost indicates a malformed or unreachable host or RDC address.
	ErrBadHost = stderrors.New("bad host")

	// ErrBadSchema indicates a received message failed schema validation.
	ErrBadSchema = stderrors.New("bad schema")

	// ErrSchemaMismatch indicates an outgoing message does not match its endpoint schema.
	ErrSchemaMismatch = stderrors.New("schema mismatch")

	// ErrWrongPolarity indicates the operation is forbidden for the endpoint polarity.
	ErrWrongPolarity = stderrors.New("wrong polarity")

	// ErrListenerNotFound indicates the listener is not registered on the endpoint.
	ErrListenerNotFound = stderrors.New("listener not found")

	// ErrMappingNotFound indicates the mapping handle is stale or unknown.
	ErrMappingNotFound = stderrors.New("mapping not found")

	// ErrConnectionFailed indicates a peer was unreachable or timed out.
	ErrConnectionFailed = stderrors.New("connection failed")

	// ErrProtocol indicates a peer response was malformed or out of sequence.
	ErrProtocol = stderrors.New("protocol violation")

	// ErrMalformedAddress indicates an address string could not be parsed.
	ErrMalformedAddress = stderrors.New("malformed address")

	// ErrNoValidAddress indicates a location has no usable address.
	ErrNoValidAddress = stderrors.New("no valid address")

	// ErrAuthorizationDenied indicates a forced command was rejected.
	ErrAuthorizationDenied = stderrors.New("authorization denied")

	// ErrDisconnected indicates no link came up before the wait bound elapsed.
	ErrDisconnected = stderrors.New("disconnected")

	// ErrClosed indicates the resource has been closed.
	ErrClosed = stderrors.New("closed")
)

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

var kinds = []struct {
	err  error
	kind string
}{
	{ErrEndpointCollision, "endpoint_collision"},
	{ErrEndpointNotFound, "endpoint_not_found"},
	{ErrBadQuery, "bad_query"},
	{ErrBadHost, "bad_host"},
	{ErrBadSchema, "bad_schema"},
	{ErrSchemaMismatch, "schema_mismatch"},
	{ErrWrongPolarity, "wrong_polarity"},
	{ErrListenerNotFound, "listener_not_found"},
	{ErrMappingNotFound, "mapping_not_found"},
	{ErrConnectionFailed, "connection_failed"},
	{ErrProtocol, "protocol"},
	{ErrMalformedAddress, "malformed_address"},
	{ErrNoValidAddress, "no_valid_address"},
	{ErrAuthorizationDenied, "authorization_denied"},
	{ErrDisconnected, "disconnected"},
	{ErrClosed, "closed"},
}

// Kind names the taxonomy class of err for metric labels. Errors outside the
// taxonomy are "internal"; nil is "".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if stderrors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}
