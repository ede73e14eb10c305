package transport

import (
	"time"

	"github.com/Homlet/middleware-android-sub001/pkg/command"
	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
	"github.com/Homlet/middleware-android-sub001/pkg/query"
)

// MapRequest asks a peer to link its matching endpoints to the requester.
// Query already carries the polarity and schema derived from Endpoint.
// Indirect requests follow a discovery answer and only see exposed endpoints.
type MapRequest struct {
	Query    query.Spec        `json:"query"`
	From     location.Location `json:"from"`
	Endpoint endpoint.Details  `json:"endpoint"`
	Indirect bool              `json:"indirect,omitempty"`
}

// MapResponse lists the endpoints the peer agreed to link.
type MapResponse struct {
	Location  location.Location  `json:"location"`
	Endpoints []endpoint.Details `json:"endpoints"`
}

// UnlinkRequest tells a peer that the requester dropped links gracefully.
// An empty Remote list means every link between the two endpoints' owners.
type UnlinkRequest struct {
	From     location.Location `json:"from"`
	Endpoint string            `json:"endpoint"`
	Remote   []string          `json:"remote,omitempty"`
}

type UnlinkResponse struct {
	Removed int `json:"removed"`
}

// DeliverRequest carries one message over a link.
type DeliverRequest struct {
	From         location.Location `json:"from"`
	FromEndpoint string            `json:"from_endpoint"`
	Endpoint     string            `json:"endpoint"`
	Payload      []byte            `json:"payload"`
}

type DeliverResponse struct {
	Listeners int `json:"listeners"`
}

type PingRequest struct {
	From location.Location `json:"from"`
}

type PingResponse struct {
	Location location.Location `json:"location"`
	Time     time.Time         `json:"time"`
}

// ForceRequest carries a remote command.
type ForceRequest struct {
	Command command.Envelope  `json:"command"`
	From    location.Location `json:"from"`
}

// ForceResponse reports what the command did: mapped endpoints for MAP and
// MAP_TO, unmapped endpoints for UNMAP_ALL, a closed-link count for CLOSE_ALL.
type ForceResponse struct {
	Endpoints []endpoint.Details `json:"endpoints,omitempty"`
	Closed    int                `json:"closed,omitempty"`
}

type EndpointsRequest struct {
	ExposedOnly bool `json:"exposed_only"`
}

// EndpointStatus is one endpoint as seen by introspection.
type EndpointStatus struct {
	Details   endpoint.Details `json:"details"`
	Exposed   bool             `json:"exposed"`
	Forceable bool             `json:"forceable"`
	Links     int              `json:"links"`
}

type EndpointsResponse struct {
	Location  location.Location `json:"location"`
	Forceable bool              `json:"forceable"`
	Endpoints []EndpointStatus  `json:"endpoints"`
}

// AnnounceRequest replaces the RDC entry for Location.
type AnnounceRequest struct {
	Location  location.Location  `json:"location"`
	Endpoints []endpoint.Details `json:"endpoints"`
}

type AnnounceResponse struct{}

type WithdrawRequest struct {
	Location location.Location `json:"location"`
}

type WithdrawResponse struct {
	Removed bool `json:"removed"`
}

type DiscoverRequest struct {
	Query query.Spec `json:"query"`
}

type DiscoverResponse struct {
	Locations []location.Location `json:"locations"`
}

// ReportFailedRequest lists locations a reporter could not reach.
type ReportFailedRequest struct {
	Reporter location.Location   `json:"reporter"`
	Failed   []location.Location `json:"failed"`
}

type ReportFailedResponse struct {
	Withdrawn int `json:"withdrawn"`
}

type HostsRequest struct{}

// Host is one RDC index entry.
type Host struct {
	Location  location.Location  `json:"location"`
	Endpoints []endpoint.Details `json:"endpoints"`
	Updated   time.Time          `json:"updated"`
}

type HostsResponse struct {
	Hosts []Host `json:"hosts"`
}
