// Package mapping establishes and tracks links between local endpoints and
// endpoints on other middleware instances.
package mapping

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Homlet/middleware-android-sub001/internal/observability"
	"github.com/Homlet/middleware-android-sub001/internal/registry"
	"github.com/Homlet/middleware-android-sub001/internal/transport"
	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
	"github.com/Homlet/middleware-android-sub001/pkg/logging"
	"github.com/Homlet/middleware-android-sub001/pkg/persistence"
	"github.com/Homlet/middleware-android-sub001/pkg/query"
)

// DefaultCallTimeout bounds every network call made by the coordinator.
const DefaultCallTimeout = 5 * time.Second

// Peers reaches the mapping entry point of other middleware instances.
type Peers interface {
	Map(ctx context.Context, target location.Location, req *transport.MapRequest) (*transport.MapResponse, error)
	Unlink(ctx context.Context, target location.Location, req *transport.UnlinkRequest) error
}

// Discovery is the Resource Discovery Center as seen by the coordinator.
type Discovery interface {
	Discover(ctx context.Context, q query.Spec) ([]location.Location, error)
	ReportFailed(ctx context.Context, failed []location.Location) error
}

// Event reports links that went from OPEN to CLOSED in one mapping.
type Event struct {
	Mapping     Handle
	Endpoint    string
	Persistence persistence.Policy
	Query       *query.Query
	Closed      []Link
	WasComplete bool
}

// Options configures a Coordinator.
type Options struct {
	Registry *registry.Registry
	Store    *Store
	Peers    Peers
	// Discovery resolves the currently configured RDC. It returns ErrBadHost
	// when none is configured.
	Discovery   func() (Discovery, error)
	Self        func() location.Location
	CallTimeout time.Duration
	Metrics     *observability.Metrics
	Logger      *logging.Logger
}

// Coordinator runs the indirect and direct mapping protocols and owns link
// bookkeeping for one instance.
type Coordinator struct {
	registry  *registry.Registry
	store     *Store
	peers     Peers
	discovery func() (Discovery, error)
	self      func() location.Location
	timeout   time.Duration
	metrics   *observability.Metrics
	log       *logging.Logger

	acceptLocks sync.Map

	hookMu    sync.RWMutex
	onFailure func(Event)
}

// NewCoordinator creates a coordinator.
func NewCoordinator(opts Options) *Coordinator {
	c := &Coordinator{
		registry:  opts.Registry,
		store:     opts.Store,
		peers:     opts.Peers,
		discovery: opts.Discovery,
		self:      opts.Self,
		timeout:   opts.CallTimeout,
		metrics:   opts.Metrics,
		log:       opts.Logger,
	}
	if c.store == nil {
		c.store = NewStore()
	}
	if c.timeout <= 0 {
		c.timeout = DefaultCallTimeout
	}
	if c.self == nil {
		c.self = func() location.Location { return location.Location{} }
	}
	if c.discovery == nil {
		c.discovery = func() (Discovery, error) {
			return nil, fmt.Errorf("%w: no rdc configured", mwerrors.ErrBadHost)
		}
	}
	if c.log == nil {
		c.log = logging.New(nil)
	}
	c.log = c.log.WithComponent("mapping")
	return c
}

// Store returns the link store.
func (c *Coordinator) Store() *Store { return c.store }

// OnFailure installs the handler that receives link-closed events. It is
// called on the goroutine that observed the failure and must not block.
func (c *Coordinator) OnFailure(fn func(Event)) {
	c.hookMu.Lock()
	defer c.hookMu.Unlock()
	c.onFailure = fn
}

// deriveQuery fills polarity and schema from the owning endpoint. Queries
// that set either field themselves are rejected.
func deriveQuery(owner endpoint.Details, q *query.Query) (*query.Query, error) {
	if q == nil {
		q = query.All()
	}
	if q.HasSchema() || q.HasPolarity() {
		return nil, fmt.Errorf("%w: schema and polarity are taken from endpoint %q", mwerrors.ErrBadQuery, owner.Name)
	}
	return q.WithPolarity(owner.Polarity.Opposite()).WithSchema(owner.Schema), nil
}

// MapIndirect discovers candidate hosts through the RDC and maps to them in
// discovery order until the query's quota is used up. Per-host failures are
// collected and reported to the RDC instead of failing the call.
func (c *Coordinator) MapIndirect(ctx context.Context, name string, q *query.Query, policy persistence.Policy) ([]endpoint.Details, error) {
	op, ctx := observability.StartOperation(ctx, c.metrics, "map_indirect",
		attribute.String("endpoint", name),
		attribute.String("persistence", policy.String()),
	)
	mapped, err := c.mapIndirect(ctx, name, q, policy)
	op.End(err)
	return mapped, err
}

func (c *Coordinator) mapIndirect(ctx context.Context, name string, q *query.Query, policy persistence.Policy) ([]endpoint.Details, error) {
	ep, err := c.registry.Get(name)
	if err != nil {
		return nil, err
	}
	owner := ep.Details()
	full, err := deriveQuery(owner, q)
	if err != nil {
		return nil, err
	}
	if q == nil {
		q = query.All()
	}

	rdc, err := c.discovery()
	if err != nil {
		return nil, err
	}
	dctx, cancel := context.WithTimeout(ctx, c.timeout)
	candidates, err := rdc.Discover(dctx, full.WithMatches(query.Unlimited).Spec())
	cancel()
	if err != nil {
		if errors.Is(err, mwerrors.ErrConnectionFailed) {
			return nil, fmt.Errorf("%w: rdc unreachable: %w", mwerrors.ErrBadHost, err)
		}
		return nil, fmt.Errorf("discover: %w", err)
	}

	remaining := full.Matches()
	var mapped []endpoint.Details
	var failed []location.Location
	for _, target := range candidates {
		if remaining == 0 || ctx.Err() != nil {
			break
		}
		got, err := c.link(ctx, ep, target, full.WithMatches(remaining), q, policy, true)
		if err != nil {
			if isHostFailure(err) {
				failed = append(failed, target)
			}
			c.log.WarnContext(ctx, "candidate host skipped",
				"endpoint", name,
				"host", logging.FormatLocation(target),
				"error", err,
			)
			continue
		}
		mapped = append(mapped, got...)
		if remaining != query.Unlimited {
			remaining = max(remaining-len(got), 0)
		}
	}

	if len(failed) > 0 {
		c.reportFailed(ctx, rdc, failed)
	}
	return mapped, nil
}

func isHostFailure(err error) bool {
	return errors.Is(err, mwerrors.ErrConnectionFailed) ||
		errors.Is(err, mwerrors.ErrProtocol) ||
		errors.Is(err, mwerrors.ErrNoValidAddress) ||
		errors.Is(err, mwerrors.ErrBadHost)
}

func (c *Coordinator) reportFailed(ctx context.Context, rdc Discovery, failed []location.Location) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if err := rdc.ReportFailed(rctx, failed); err != nil {
		c.log.WarnContext(ctx, "report failed hosts", "count", len(failed), "error", err)
		return
	}
	c.log.DebugContext(ctx, "reported failed hosts", "count", len(failed))
}

// MapDirect maps to one host given as a host string (a comma-separated
// address list). Failures propagate to the caller.
func (c *Coordinator) MapDirect(ctx context.Context, name, host string, q *query.Query, policy persistence.Policy) ([]endpoint.Details, error) {
	target, err := location.ParseHost(host)
	if err != nil {
		return nil, err
	}
	return c.MapDirectTo(ctx, name, target, q, policy)
}

// MapDirectTo maps to a known location.
func (c *Coordinator) MapDirectTo(ctx context.Context, name string, target location.Location, q *query.Query, policy persistence.Policy) ([]endpoint.Details, error) {
	op, ctx := observability.StartOperation(ctx, c.metrics, "map_direct",
		attribute.String("endpoint", name),
		attribute.String("host", target.Key()),
	)
	mapped, err := c.mapDirect(ctx, name, target, q, policy)
	op.End(err)
	return mapped, err
}

func (c *Coordinator) mapDirect(ctx context.Context, name string, target location.Location, q *query.Query, policy persistence.Policy) ([]endpoint.Details, error) {
	ep, err := c.registry.Get(name)
	if err != nil {
		return nil, err
	}
	owner := ep.Details()
	full, err := deriveQuery(owner, q)
	if err != nil {
		return nil, err
	}
	if q == nil {
		q = query.All()
	}
	return c.link(ctx, ep, target, full, q, policy, false)
}

// link sends one Map request and merges the agreed endpoints as links.
func (c *Coordinator) link(ctx context.Context, ep *registry.Endpoint, target location.Location, full, stored *query.Query, policy persistence.Policy, indirect bool) ([]endpoint.Details, error) {
	owner := ep.Details()
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", mwerrors.ErrBadHost, err)
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	resp, err := c.peers.Map(cctx, target, &transport.MapRequest{
		Query:    full.Spec(),
		From:     c.self(),
		Endpoint: owner,
		Indirect: indirect,
	})
	expired := cctx.Err() != nil
	cancel()
	if err != nil {
		return nil, connectionError(err)
	}

	remote := resp.Location
	if len(remote.Addresses) == 0 {
		remote.Addresses = target.Addresses
	}
	if remote.ID == "" {
		remote.ID = target.ID
	}

	if expired {
		c.unlinkQuietly(ctx, remote, owner.Name, names(resp.Endpoints))
		return nil, fmt.Errorf("%w: map %s: answer arrived after deadline", mwerrors.ErrConnectionFailed, target.Key())
	}

	if err := checkAnswer(owner, full, resp.Endpoints); err != nil {
		c.unlinkQuietly(ctx, remote, owner.Name, names(resp.Endpoints))
		return nil, fmt.Errorf("map %s: %w", target.Key(), err)
	}

	links := make([]Link, len(resp.Endpoints))
	for i, d := range resp.Endpoints {
		links[i] = Link{Remote: d, Location: remote}
	}
	m, added := c.store.Merge(owner.Name, policy, stored, links)

	// The endpoint may have been destroyed, and its name reused, while the
	// call was in flight.
	if orphaned, ok := c.disown(ep, m, added); !ok {
		c.unlinkQuietly(ctx, remote, owner.Name, names(remoteDetails(orphaned)))
		return nil, fmt.Errorf("%w: %q destroyed while mapping", mwerrors.ErrEndpointNotFound, owner.Name)
	}

	c.metrics.LinkEvent("opened", len(added))
	c.metrics.SetLinksOpen(c.store.OpenCount())
	c.log.InfoContext(ctx, "mapped",
		"endpoint", owner.Name,
		"host", logging.FormatLocation(remote),
		"links", len(added),
		"persistence", policy.String(),
	)
	return remoteDetails(added), nil
}

// disown checks that ep is still the registered endpoint of its name. When
// it is not, the links just added to m are removed again and returned with
// ok false. Destroy unregisters before tearing down, so a merge that lands
// after teardown always fails this check.
func (c *Coordinator) disown(ep *registry.Endpoint, m *Mapping, added []Link) (orphaned []Link, ok bool) {
	if cur, err := c.registry.Get(ep.Name()); err == nil && cur == ep {
		return nil, true
	}
	ids := make(map[string]bool, len(added))
	for _, l := range added {
		ids[l.ID] = true
	}
	orphaned = m.remove(func(l Link) bool { return ids[l.ID] })
	c.store.RemoveIfEmpty(m)
	c.metrics.SetLinksOpen(c.store.OpenCount())
	return orphaned, false
}

func connectionError(err error) error {
	if errors.Is(err, mwerrors.ErrConnectionFailed) || errors.Is(err, mwerrors.ErrProtocol) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", mwerrors.ErrConnectionFailed, err)
	}
	return err
}

// checkAnswer rejects peer answers that exceed the quota, repeat an
// endpoint, or contain endpoints the query would not accept.
func checkAnswer(owner endpoint.Details, full *query.Query, got []endpoint.Details) error {
	if n := full.Matches(); n != query.Unlimited && len(got) > n {
		return fmt.Errorf("%w: peer returned %d endpoints for quota %d", mwerrors.ErrProtocol, len(got), n)
	}
	seen := make(map[string]bool, len(got))
	for _, d := range got {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%w: %w", mwerrors.ErrProtocol, err)
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: endpoint %q returned twice", mwerrors.ErrProtocol, d.Name)
		}
		seen[d.Name] = true
		if d.Polarity != owner.Polarity.Opposite() || d.Schema != owner.Schema || !full.Match(d) {
			return fmt.Errorf("%w: endpoint %q does not satisfy the query", mwerrors.ErrProtocol, d.Name)
		}
	}
	return nil
}

func (c *Coordinator) unlinkQuietly(ctx context.Context, target location.Location, local string, remote []string) {
	if len(remote) == 0 {
		return
	}
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	err := c.peers.Unlink(uctx, target, &transport.UnlinkRequest{
		From:     c.self(),
		Endpoint: local,
		Remote:   remote,
	})
	if err != nil {
		c.log.DebugContext(ctx, "unlink notification failed", "host", logging.FormatLocation(target), "error", err)
	}
}

func names(ds []endpoint.Details) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

func remoteDetails(links []Link) []endpoint.Details {
	out := make([]endpoint.Details, len(links))
	for i, l := range links {
		out[i] = l.Remote
	}
	return out
}

// Accept is the peer side of the mapping protocol: it selects local
// endpoints for a remote requester and records reverse links to it.
func (c *Coordinator) Accept(ctx context.Context, req *transport.MapRequest) (*transport.MapResponse, error) {
	q, err := query.FromSpec(req.Query)
	if err != nil {
		return nil, err
	}
	if err := req.Endpoint.Validate(); err != nil {
		return nil, fmt.Errorf("%w: requesting endpoint: %w", mwerrors.ErrBadQuery, err)
	}
	if err := req.From.Validate(); err != nil {
		return nil, fmt.Errorf("%w: requester: %w", mwerrors.ErrBadHost, err)
	}

	unlock := c.lockRequester(req.From.Key())
	defer unlock()

	want := req.Endpoint.Polarity.Opposite()
	accept := q.Filter()
	local := c.registry.List()
	slices.SortFunc(local, func(a, b *registry.Endpoint) int { return strings.Compare(a.Name(), b.Name()) })
	var agreed []endpoint.Details
	owners := make(map[string]*registry.Endpoint)
	for _, ep := range local {
		d := ep.Details()
		if req.Indirect && !ep.Exposed() {
			continue
		}
		if d.Polarity != want || d.Schema != req.Endpoint.Schema {
			continue
		}
		if c.linked(d.Name, req.From, req.Endpoint.Name) {
			continue
		}
		if accept(d) {
			agreed = append(agreed, d)
			owners[d.Name] = ep
		}
	}

	from := req.From.Clone()
	kept := agreed[:0]
	for _, d := range agreed {
		m, added := c.store.Merge(d.Name, persistence.None, nil, []Link{{
			Remote:   req.Endpoint,
			Location: from,
			Inbound:  true,
		}})
		if _, ok := c.disown(owners[d.Name], m, added); ok {
			kept = append(kept, d)
		}
	}
	agreed = kept
	if len(agreed) > 0 {
		c.metrics.LinkEvent("opened", len(agreed))
		c.metrics.SetLinksOpen(c.store.OpenCount())
		c.log.InfoContext(ctx, "accepted mapping",
			"requester", logging.FormatLocation(from),
			"endpoint", req.Endpoint.Name,
			"links", len(agreed),
		)
	}
	return &transport.MapResponse{Location: c.self(), Endpoints: agreed}, nil
}

func (c *Coordinator) lockRequester(key string) func() {
	v, _ := c.acceptLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// linked reports whether local already has an open link to remote at loc.
func (c *Coordinator) linked(local string, loc location.Location, remote string) bool {
	for _, m := range c.store.ForEndpoint(local) {
		for _, l := range m.Links() {
			if l.State == Open && l.Remote.Name == remote && l.Location.SameHost(loc) {
				return true
			}
		}
	}
	return false
}

// HandleUnlink closes the links a peer dropped gracefully. The closure is
// reported like any other failure so persistence policies can react.
func (c *Coordinator) HandleUnlink(ctx context.Context, req *transport.UnlinkRequest) int {
	targets := c.store.All()
	if len(req.Remote) > 0 {
		targets = slices.DeleteFunc(targets, func(m *Mapping) bool {
			return !slices.Contains(req.Remote, m.Endpoint())
		})
	}
	n := c.fail(ctx, targets, func(l Link) bool {
		return l.Remote.Name == req.Endpoint && l.Location.SameHost(req.From)
	})
	if n > 0 {
		c.log.InfoContext(ctx, "peer unlinked", "peer", logging.FormatLocation(req.From), "endpoint", req.Endpoint, "links", n)
	}
	return n
}

// Unmap gracefully removes links of endpoint name whose remote endpoint
// matches q, notifying the peers. It returns the unmapped remote endpoints.
func (c *Coordinator) Unmap(ctx context.Context, name string, q *query.Query) ([]endpoint.Details, error) {
	return c.unmap(ctx, name, q, nil)
}

// UnmapFrom is Unmap restricted to links to one host.
func (c *Coordinator) UnmapFrom(ctx context.Context, host, name string, q *query.Query) ([]endpoint.Details, error) {
	target, err := location.ParseHost(host)
	if err != nil {
		return nil, err
	}
	return c.unmap(ctx, name, q, &target)
}

func (c *Coordinator) unmap(ctx context.Context, name string, q *query.Query, host *location.Location) ([]endpoint.Details, error) {
	if _, err := c.registry.Get(name); err != nil {
		return nil, err
	}
	if q == nil {
		q = query.All()
	}
	accept := q.Filter()
	var removed []Link
	for _, m := range c.store.ForEndpoint(name) {
		removed = append(removed, m.remove(func(l Link) bool {
			if host != nil && !l.Location.SameHost(*host) {
				return false
			}
			return accept(l.Remote)
		})...)
		c.store.RemoveIfEmpty(m)
	}
	c.notifyUnlinked(ctx, name, removed)
	c.metrics.LinkEvent("removed", len(removed))
	c.metrics.SetLinksOpen(c.store.OpenCount())
	return remoteDetails(removed), nil
}

// UnmapAll gracefully drops every mapping of endpoint name.
func (c *Coordinator) UnmapAll(ctx context.Context, name string) ([]endpoint.Details, error) {
	if _, err := c.registry.Get(name); err != nil {
		return nil, err
	}
	removed := c.dropAll(name)
	c.notifyUnlinked(ctx, name, removed)
	c.metrics.LinkEvent("removed", len(removed))
	c.metrics.SetLinksOpen(c.store.OpenCount())
	return remoteDetails(removed), nil
}

// Close removes links matching q without notifying peers and returns how
// many open links were closed.
func (c *Coordinator) Close(name string, q *query.Query) (int, error) {
	if _, err := c.registry.Get(name); err != nil {
		return 0, err
	}
	if q == nil {
		q = query.All()
	}
	accept := q.Filter()
	n := 0
	for _, m := range c.store.ForEndpoint(name) {
		n += countOpen(m.remove(func(l Link) bool { return accept(l.Remote) }))
		c.store.RemoveIfEmpty(m)
	}
	c.metrics.LinkEvent("closed", n)
	c.metrics.SetLinksOpen(c.store.OpenCount())
	return n, nil
}

// CloseAll drops every mapping of endpoint name without notifying peers and
// returns how many open links were closed.
func (c *Coordinator) CloseAll(name string) (int, error) {
	if _, err := c.registry.Get(name); err != nil {
		return 0, err
	}
	n := countOpen(c.dropAll(name))
	c.metrics.LinkEvent("closed", n)
	c.metrics.SetLinksOpen(c.store.OpenCount())
	return n, nil
}

// Teardown is the registry hook run when an endpoint is destroyed.
func (c *Coordinator) Teardown(ctx context.Context, name string) error {
	removed := c.dropAll(name)
	c.notifyUnlinked(ctx, name, removed)
	c.metrics.LinkEvent("removed", len(removed))
	c.metrics.SetLinksOpen(c.store.OpenCount())
	return nil
}

func (c *Coordinator) dropAll(name string) []Link {
	var removed []Link
	for _, m := range c.store.ForEndpoint(name) {
		removed = append(removed, c.store.Remove(m)...)
	}
	return removed
}

func countOpen(links []Link) int {
	n := 0
	for _, l := range links {
		if l.State == Open {
			n++
		}
	}
	return n
}

// notifyUnlinked tells each peer which of its endpoints were unlinked.
func (c *Coordinator) notifyUnlinked(ctx context.Context, local string, removed []Link) {
	byHost := make(map[string][]Link)
	var order []string
	for _, l := range removed {
		if l.State != Open {
			continue
		}
		k := l.Location.Key()
		if _, ok := byHost[k]; !ok {
			order = append(order, k)
		}
		byHost[k] = append(byHost[k], l)
	}
	for _, k := range order {
		links := byHost[k]
		c.unlinkQuietly(ctx, links[0].Location, local, names(remoteDetails(links)))
	}
}

// FailLocation closes every open link to loc, typically after a failed
// delivery or liveness probe.
func (c *Coordinator) FailLocation(ctx context.Context, loc location.Location) int {
	return c.fail(ctx, c.store.All(), func(l Link) bool { return l.Location.SameHost(loc) })
}

// FailLink closes one link of endpoint name.
func (c *Coordinator) FailLink(ctx context.Context, name, linkID string) int {
	return c.fail(ctx, c.store.ForEndpoint(name), func(l Link) bool { return l.ID == linkID })
}

func (c *Coordinator) fail(ctx context.Context, mappings []*Mapping, match func(Link) bool) int {
	c.hookMu.RLock()
	handler := c.onFailure
	c.hookMu.RUnlock()

	total := 0
	for _, m := range mappings {
		closed, complete := m.close(match)
		if len(closed) == 0 {
			continue
		}
		total += len(closed)
		ev := Event{
			Mapping:     m.Handle(),
			Endpoint:    m.Endpoint(),
			Persistence: m.Persistence(),
			Query:       m.Query(),
			Closed:      closed,
			WasComplete: complete,
		}
		c.log.InfoContext(ctx, "links closed",
			"endpoint", ev.Endpoint,
			"closed", len(closed),
			"complete", complete,
			"persistence", ev.Persistence.String(),
		)
		if handler != nil {
			handler(ev)
		} else if _, err := c.PruneClosed(m.Handle()); err != nil {
			c.log.DebugContext(ctx, "prune closed links", "error", err)
		}
	}
	c.metrics.LinkEvent("closed", total)
	c.metrics.SetLinksOpen(c.store.OpenCount())
	return total
}

// PruneClosed removes the CLOSED links of a mapping, dropping the mapping
// once empty.
func (c *Coordinator) PruneClosed(h Handle) (int, error) {
	m, err := c.store.Get(h)
	if err != nil {
		return 0, err
	}
	pruned := m.remove(func(l Link) bool { return l.State == Closed })
	c.store.RemoveIfEmpty(m)
	c.metrics.LinkEvent("pruned", len(pruned))
	return len(pruned), nil
}

// OpenLinks returns the open links of endpoint name, one per remote endpoint.
func (c *Coordinator) OpenLinks(name string) []Link {
	seen := make(map[string]bool)
	var out []Link
	for _, m := range c.store.ForEndpoint(name) {
		for _, l := range m.Links() {
			if l.State != Open || seen[l.pairKey()] {
				continue
			}
			seen[l.pairKey()] = true
			out = append(out, l)
		}
	}
	return out
}

// Locations returns each distinct remote location holding an open link.
func (c *Coordinator) Locations() []location.Location {
	seen := make(map[string]bool)
	var out []location.Location
	for _, m := range c.store.All() {
		for _, l := range m.Links() {
			if l.State != Open || seen[l.Location.Key()] {
				continue
			}
			seen[l.Location.Key()] = true
			out = append(out, l.Location)
		}
	}
	return out
}

// Info describes a mapping for introspection.
type Info struct {
	ID          string             `json:"id"`
	Endpoint    string             `json:"endpoint"`
	Persistence persistence.Policy `json:"persistence"`
	Query       string             `json:"query,omitempty"`
	Links       []Link             `json:"links"`
}

// Mappings describes the mappings of endpoint name.
func (c *Coordinator) Mappings(name string) []Info {
	var out []Info
	for _, m := range c.store.ForEndpoint(name) {
		info := Info{
			ID:          m.ID(),
			Endpoint:    m.Endpoint(),
			Persistence: m.Persistence(),
			Links:       m.Links(),
		}
		if q := m.Query(); q != nil {
			info.Query = q.String()
		}
		out = append(out, info)
	}
	return out
}

// WaitForLink blocks until endpoint name has an open link or ctx ends.
func (c *Coordinator) WaitForLink(ctx context.Context, name string) error {
	if _, err := c.registry.Get(name); err != nil {
		return err
	}
	return c.store.WaitForLink(ctx, name)
}
