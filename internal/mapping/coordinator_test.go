package mapping

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Homlet/middleware-android-sub001/internal/registry"
	"github.com/Homlet/middleware-android-sub001/internal/transport"
	"github.com/Homlet/middleware-android-sub001/pkg/endpoint"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
	"github.com/Homlet/middleware-android-sub001/pkg/persistence"
	"github.com/Homlet/middleware-android-sub001/pkg/query"
)

const schemaDoc = `{"type":"object"}`

type fakeHost struct {
	loc       location.Location
	endpoints []endpoint.Details
	err       error
	// ignoreQuota makes the host answer with every match, quota or not.
	ignoreQuota bool
	// delay holds every answer back, ignoring the caller's deadline.
	delay time.Duration
	// entered and gate, when set, park each Map call until gate is closed.
	entered chan struct{}
	gate    chan struct{}
}

type fakePeers struct {
	mu       sync.Mutex
	hosts    map[string]*fakeHost
	calls    []string
	unlinked map[string][]string
}

func newFakePeers(hosts ...*fakeHost) *fakePeers {
	p := &fakePeers{hosts: make(map[string]*fakeHost), unlinked: make(map[string][]string)}
	for _, h := range hosts {
		p.hosts[h.loc.Key()] = h
	}
	return p
}

func (p *fakePeers) Map(_ context.Context, target location.Location, req *transport.MapRequest) (*transport.MapResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, target.Key())
	h, ok := p.hosts[target.Key()]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown host %s", mwerrors.ErrConnectionFailed, target.Key())
	}
	if h.gate != nil {
		h.entered <- struct{}{}
		<-h.gate
	}
	time.Sleep(h.delay)
	if h.err != nil {
		return nil, h.err
	}
	q, err := query.FromSpec(req.Query)
	if err != nil {
		return nil, err
	}
	if h.ignoreQuota {
		q = q.WithMatches(query.Unlimited)
	}
	return &transport.MapResponse{Location: h.loc, Endpoints: q.Apply(h.endpoints)}, nil
}

func (p *fakePeers) Unlink(_ context.Context, target location.Location, req *transport.UnlinkRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unlinked[target.Key()] = append(p.unlinked[target.Key()], req.Remote...)
	return nil
}

type fakeRDC struct {
	order    []location.Location
	err      error
	reported []location.Location
}

func (r *fakeRDC) Discover(context.Context, query.Spec) ([]location.Location, error) {
	return r.order, r.err
}

func (r *fakeRDC) ReportFailed(_ context.Context, failed []location.Location) error {
	r.reported = append(r.reported, failed...)
	return nil
}

func host(t *testing.T, id string, port int, sinks ...string) *fakeHost {
	t.Helper()
	loc, err := location.New(id, fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	h := &fakeHost{loc: loc}
	for _, name := range sinks {
		h.endpoints = append(h.endpoints, endpoint.New(name, "", endpoint.Sink, schemaDoc))
	}
	return h
}

type harness struct {
	reg   *registry.Registry
	peers *fakePeers
	rdc   *fakeRDC
	c     *Coordinator
}

func newHarness(t *testing.T, hosts ...*fakeHost) *harness {
	t.Helper()
	return newHarnessWith(t, time.Second, hosts...)
}

func newHarnessWith(t *testing.T, timeout time.Duration, hosts ...*fakeHost) *harness {
	t.Helper()
	reg := registry.New()
	if _, err := reg.Create(endpoint.New("src", "", endpoint.Source, schemaDoc), true, true); err != nil {
		t.Fatalf("create: %v", err)
	}
	h := &harness{reg: reg, peers: newFakePeers(hosts...), rdc: &fakeRDC{}}
	for _, fh := range hosts {
		h.rdc.order = append(h.rdc.order, fh.loc)
	}
	self, _ := location.New("self", "127.0.0.1:7000")
	h.c = NewCoordinator(Options{
		Registry:    reg,
		Peers:       h.peers,
		Discovery:   func() (Discovery, error) { return h.rdc, nil },
		Self:        func() location.Location { return self },
		CallTimeout: timeout,
	})
	reg.SetTeardown(h.c.Teardown)
	return h
}

func TestMapIndirectDistributesQuotaInDiscoveryOrder(t *testing.T) {
	a := host(t, "a", 7001, "a1", "a2")
	b := host(t, "b", 7002, "b1", "b2")
	c := host(t, "c", 7003, "c1")
	h := newHarness(t, a, b, c)

	got, err := h.c.MapIndirect(context.Background(), "src", query.New().Matches(3).MustBuild(), persistence.None)
	if err != nil {
		t.Fatalf("MapIndirect: %v", err)
	}
	if len(got) != 3 || got[0].Name != "a1" || got[1].Name != "a2" || got[2].Name != "b1" {
		t.Fatalf("mapped %v, want [a1 a2 b1]", names(got))
	}
	if len(h.peers.calls) != 2 {
		t.Fatalf("quota exhausted after b, calls = %v", h.peers.calls)
	}
	if n := len(h.c.OpenLinks("src")); n != 3 {
		t.Fatalf("open links = %d, want 3", n)
	}
}

func TestMapIndirectZeroQuotaMapsNothing(t *testing.T) {
	h := newHarness(t, host(t, "a", 7001, "a1"))
	got, err := h.c.MapIndirect(context.Background(), "src", query.New().Matches(0).MustBuild(), persistence.None)
	if err != nil || len(got) != 0 || len(h.peers.calls) != 0 {
		t.Fatalf("got %v, %v, calls %v", got, err, h.peers.calls)
	}
}

func TestMapIndirectCollectsHostFailures(t *testing.T) {
	down := host(t, "down", 7001, "x")
	down.err = fmt.Errorf("%w: timeout", mwerrors.ErrConnectionFailed)
	greedy := host(t, "greedy", 7002, "g1", "g2", "g3")
	greedy.ignoreQuota = true
	good := host(t, "good", 7003, "ok1", "ok2")
	h := newHarness(t, down, greedy, good)

	got, err := h.c.MapIndirect(context.Background(), "src", query.New().Matches(2).MustBuild(), persistence.ResendQuery)
	if err != nil {
		t.Fatalf("MapIndirect: %v", err)
	}
	if len(got) != 2 || got[0].Name != "ok1" {
		t.Fatalf("mapped %v, want [ok1 ok2]", names(got))
	}
	if len(h.rdc.reported) != 2 || h.rdc.reported[0].ID != "down" || h.rdc.reported[1].ID != "greedy" {
		t.Fatalf("reported %v", h.rdc.reported)
	}
	if len(h.peers.unlinked["greedy"]) != 3 {
		t.Fatalf("over-quota answer should be unlinked, got %v", h.peers.unlinked)
	}
}

func TestMapRejectsOwnerFields(t *testing.T) {
	h := newHarness(t, host(t, "a", 7001, "a1"))
	ctx := context.Background()

	_, err := h.c.MapIndirect(ctx, "src", query.New().Schema(schemaDoc).MustBuild(), persistence.None)
	if !errors.Is(err, mwerrors.ErrBadQuery) {
		t.Fatalf("schema set: %v, want ErrBadQuery", err)
	}
	_, err = h.c.MapDirect(ctx, "src", "127.0.0.1:7001", query.New().Polarity(endpoint.Sink).MustBuild(), persistence.None)
	if !errors.Is(err, mwerrors.ErrBadQuery) {
		t.Fatalf("polarity set: %v, want ErrBadQuery", err)
	}
	if len(h.peers.calls) != 0 {
		t.Fatalf("no peer should be contacted, calls %v", h.peers.calls)
	}
}

func TestMapIndirectWithoutRDCIsBadHost(t *testing.T) {
	reg := registry.New()
	_, _ = reg.Create(endpoint.New("src", "", endpoint.Source, schemaDoc), true, false)
	c := NewCoordinator(Options{Registry: reg, Peers: newFakePeers()})

	_, err := c.MapIndirect(context.Background(), "src", nil, persistence.None)
	if !errors.Is(err, mwerrors.ErrBadHost) {
		t.Fatalf("err = %v, want ErrBadHost", err)
	}

	h := newHarness(t)
	h.rdc.err = fmt.Errorf("%w: rdc down", mwerrors.ErrConnectionFailed)
	_, err = h.c.MapIndirect(context.Background(), "src", nil, persistence.None)
	if !errors.Is(err, mwerrors.ErrBadHost) {
		t.Fatalf("unreachable rdc: %v, want ErrBadHost", err)
	}
}

func TestMapDirectFailuresPropagate(t *testing.T) {
	down := host(t, "", 7001, "x")
	down.err = fmt.Errorf("%w: refused", mwerrors.ErrConnectionFailed)
	greedy := host(t, "", 7002, "g1", "g2")
	greedy.ignoreQuota = true
	h := newHarness(t, down, greedy)
	ctx := context.Background()

	if _, err := h.c.MapDirect(ctx, "src", "127.0.0.1:7001", nil, persistence.None); !errors.Is(err, mwerrors.ErrConnectionFailed) {
		t.Fatalf("down host: %v, want ErrConnectionFailed", err)
	}
	if _, err := h.c.MapDirect(ctx, "src", "127.0.0.1:7002", query.New().Matches(1).MustBuild(), persistence.None); !errors.Is(err, mwerrors.ErrProtocol) {
		t.Fatalf("greedy host: %v, want ErrProtocol", err)
	}
	if _, err := h.c.MapDirect(ctx, "src", "not a host", nil, persistence.None); !errors.Is(err, mwerrors.ErrBadHost) {
		t.Fatalf("bad host string: %v, want ErrBadHost", err)
	}
	if _, err := h.c.MapDirect(ctx, "missing", "127.0.0.1:7001", nil, persistence.None); !errors.Is(err, mwerrors.ErrEndpointNotFound) {
		t.Fatalf("missing endpoint: %v, want ErrEndpointNotFound", err)
	}
	if n := len(h.c.OpenLinks("src")); n != 0 {
		t.Fatalf("failed calls must not leave links, have %d", n)
	}
}

func TestMappingPerEndpointAndPersistence(t *testing.T) {
	h := newHarness(t, host(t, "", 7001, "a1", "a2"))
	ctx := context.Background()

	first := query.New().Name("a1").MustBuild()
	if _, err := h.c.MapDirect(ctx, "src", "127.0.0.1:7001", first, persistence.ResendQuery); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := h.c.MapDirect(ctx, "src", "127.0.0.1:7001", query.New().Name("a2").MustBuild(), persistence.ResendQuery); err != nil {
		t.Fatalf("second: %v", err)
	}
	again, err := h.c.MapDirect(ctx, "src", "127.0.0.1:7001", first, persistence.ResendQuery)
	if err != nil || len(again) != 0 {
		t.Fatalf("duplicate link should not be added: %v, %v", again, err)
	}

	infos := h.c.Mappings("src")
	if len(infos) != 1 || len(infos[0].Links) != 2 {
		t.Fatalf("want one mapping with two links, got %+v", infos)
	}
	m, _ := h.c.Store().Lookup("src", persistence.ResendQuery)
	if m.Query() != first {
		t.Fatal("mapping must keep the query it was created with")
	}
}

func TestAcceptRecordsReverseLinksOnce(t *testing.T) {
	h := newHarness(t)
	_, _ = h.reg.Create(endpoint.New("sink-a", "", endpoint.Sink, schemaDoc), true, false)
	_, _ = h.reg.Create(endpoint.New("sink-b", "", endpoint.Sink, schemaDoc), false, false)
	_, _ = h.reg.Create(endpoint.New("sink-other", "", endpoint.Sink, `{"type":"string"}`), true, false)

	from, _ := location.New("remote", "127.0.0.1:9000")
	req := &transport.MapRequest{
		Query:    query.New().Polarity(endpoint.Sink).Schema(schemaDoc).MustBuild().Spec(),
		From:     from,
		Endpoint: endpoint.New("their-src", "", endpoint.Source, schemaDoc),
	}

	resp, err := h.c.Accept(context.Background(), req)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(resp.Endpoints) != 2 || resp.Endpoints[0].Name != "sink-a" || resp.Endpoints[1].Name != "sink-b" {
		t.Fatalf("agreed %v", names(resp.Endpoints))
	}
	if resp.Location.ID != "self" {
		t.Fatalf("response location = %v", resp.Location)
	}
	if links := h.c.OpenLinks("sink-a"); len(links) != 1 || !links[0].Inbound || links[0].Remote.Name != "their-src" {
		t.Fatalf("reverse link = %+v", links)
	}

	resp, err = h.c.Accept(context.Background(), req)
	if err != nil || len(resp.Endpoints) != 0 {
		t.Fatalf("second accept should link nothing: %v, %v", names(resp.Endpoints), err)
	}

	req.Indirect = true
	req.Endpoint.Name = "their-other-src"
	resp, _ = h.c.Accept(context.Background(), req)
	if len(resp.Endpoints) != 1 || resp.Endpoints[0].Name != "sink-a" {
		t.Fatalf("indirect request must skip unexposed endpoints, got %v", names(resp.Endpoints))
	}
}

func TestUnmapNotifiesPeers(t *testing.T) {
	a := host(t, "a", 7001, "a1", "a2")
	b := host(t, "b", 7002, "b1")
	h := newHarness(t, a, b)
	ctx := context.Background()
	if _, err := h.c.MapIndirect(ctx, "src", nil, persistence.None); err != nil {
		t.Fatalf("map: %v", err)
	}

	got, err := h.c.Unmap(ctx, "src", query.New().Name("a.").Matches(1).MustBuild())
	if err != nil || len(got) != 1 || got[0].Name != "a1" {
		t.Fatalf("Unmap = %v, %v", names(got), err)
	}
	if u := h.peers.unlinked["a"]; len(u) != 1 || u[0] != "a1" {
		t.Fatalf("unlinked = %v", h.peers.unlinked)
	}

	got, err = h.c.UnmapFrom(ctx, "127.0.0.1:7002", "src", nil)
	if err != nil || len(got) != 1 || got[0].Name != "b1" {
		t.Fatalf("UnmapFrom = %v, %v", names(got), err)
	}
	if n := len(h.c.OpenLinks("src")); n != 1 {
		t.Fatalf("remaining links = %d, want 1", n)
	}

	got, err = h.c.UnmapAll(ctx, "src")
	if err != nil || len(got) != 1 || got[0].Name != "a2" {
		t.Fatalf("UnmapAll = %v, %v", names(got), err)
	}
	if len(h.c.Mappings("src")) != 0 {
		t.Fatal("UnmapAll must drop the mappings")
	}
}

func TestCloseAllIsSilent(t *testing.T) {
	h := newHarness(t, host(t, "a", 7001, "a1", "a2", "a3"))
	ctx := context.Background()
	_, _ = h.c.MapIndirect(ctx, "src", nil, persistence.None)

	n, err := h.c.Close("src", query.New().Name("a1").MustBuild())
	if err != nil || n != 1 {
		t.Fatalf("Close = %d, %v", n, err)
	}
	n, err = h.c.CloseAll("src")
	if err != nil || n != 2 {
		t.Fatalf("CloseAll = %d, %v, want 2", n, err)
	}
	if len(h.peers.unlinked) != 0 {
		t.Fatalf("close must not notify peers: %v", h.peers.unlinked)
	}
	if _, err := h.c.CloseAll("missing"); !errors.Is(err, mwerrors.ErrEndpointNotFound) {
		t.Fatalf("missing endpoint: %v", err)
	}
}

func TestFailLocationReportsCompleteness(t *testing.T) {
	a := host(t, "a", 7001, "a1")
	b := host(t, "b", 7002, "b1")
	h := newHarness(t, a, b)
	ctx := context.Background()

	var events []Event
	h.c.OnFailure(func(ev Event) { events = append(events, ev) })
	_, _ = h.c.MapIndirect(ctx, "src", nil, persistence.ResendQuery)

	if n := h.c.FailLocation(ctx, a.loc); n != 1 {
		t.Fatalf("closed %d, want 1", n)
	}
	if len(events) != 1 || events[0].WasComplete || len(events[0].Closed) != 1 {
		t.Fatalf("partial failure event = %+v", events)
	}
	if n := h.c.FailLocation(ctx, a.loc); n != 0 {
		t.Fatalf("closing twice closed %d", n)
	}

	h.c.FailLocation(ctx, b.loc)
	if len(events) != 2 || !events[1].WasComplete || events[1].Persistence != persistence.ResendQuery {
		t.Fatalf("complete failure event = %+v", events[1])
	}

	pruned, err := h.c.PruneClosed(events[1].Mapping)
	if err != nil || pruned != 2 {
		t.Fatalf("PruneClosed = %d, %v", pruned, err)
	}
	if _, err := h.c.PruneClosed(events[1].Mapping); !errors.Is(err, mwerrors.ErrMappingNotFound) {
		t.Fatalf("stale handle: %v, want ErrMappingNotFound", err)
	}
}

func TestHandleUnlinkClosesMatchingLinks(t *testing.T) {
	h := newHarness(t, host(t, "a", 7001, "a1", "a2"))
	ctx := context.Background()
	_, _ = h.c.MapIndirect(ctx, "src", nil, persistence.None)

	from, _ := location.New("a", "127.0.0.1:7001")
	n := h.c.HandleUnlink(ctx, &transport.UnlinkRequest{From: from, Endpoint: "a1", Remote: []string{"src"}})
	if n != 1 {
		t.Fatalf("closed %d, want 1", n)
	}
	links := h.c.OpenLinks("src")
	if len(links) != 1 || links[0].Remote.Name != "a2" {
		t.Fatalf("remaining = %+v", links)
	}
}

func TestDestroyLeavesNoLinks(t *testing.T) {
	h := newHarness(t, host(t, "a", 7001, "a1", "a2"))
	ctx := context.Background()
	_, _ = h.c.MapIndirect(ctx, "src", nil, persistence.ResendQueryIndividual)

	if err := h.reg.Destroy(ctx, "src"); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if n := h.c.Store().OpenCount(); n != 0 {
		t.Fatalf("residual open links: %d", n)
	}
	if len(h.c.Store().All()) != 0 {
		t.Fatal("residual mappings")
	}
	if len(h.peers.unlinked["a"]) != 2 {
		t.Fatalf("peers should be told, got %v", h.peers.unlinked)
	}
	if _, err := h.reg.Create(endpoint.New("src", "", endpoint.Source, schemaDoc), false, false); err != nil {
		t.Fatalf("name not freed: %v", err)
	}
}

func TestDestroyDuringMapLeavesNoLinks(t *testing.T) {
	a := host(t, "a", 7001, "a1", "a2")
	a.entered = make(chan struct{}, 1)
	a.gate = make(chan struct{})
	h := newHarness(t, a)
	ctx := context.Background()

	mapped := make(chan error, 1)
	go func() {
		_, err := h.c.MapDirectTo(ctx, "src", a.loc, nil, persistence.None)
		mapped <- err
	}()
	<-a.entered

	// Let the peer answer only once teardown has run, so the answer lands
	// after the endpoint is gone.
	h.reg.SetTeardown(func(ctx context.Context, name string) error {
		err := h.c.Teardown(ctx, name)
		close(a.gate)
		if mapErr := <-mapped; !errors.Is(mapErr, mwerrors.ErrEndpointNotFound) {
			t.Errorf("in-flight map: %v, want ErrEndpointNotFound", mapErr)
		}
		return err
	})
	if err := h.reg.Destroy(ctx, "src"); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if n := h.c.Store().OpenCount(); n != 0 {
		t.Fatalf("residual open links: %d", n)
	}
	if len(h.c.Store().All()) != 0 {
		t.Fatal("residual mappings")
	}
	h.peers.mu.Lock()
	unlinked := h.peers.unlinked["a"]
	h.peers.mu.Unlock()
	if len(unlinked) != 2 {
		t.Fatalf("peer should be told about the orphaned links, got %v", unlinked)
	}

	if _, err := h.reg.Create(endpoint.New("src", "", endpoint.Source, schemaDoc), false, false); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if n := len(h.c.OpenLinks("src")); n != 0 {
		t.Fatalf("recreated endpoint inherited %d links", n)
	}
}

func TestLateAnswerIsUnlinked(t *testing.T) {
	slow := host(t, "slow", 7001, "s1", "s2")
	slow.delay = 50 * time.Millisecond
	h := newHarnessWith(t, 10*time.Millisecond, slow)

	_, err := h.c.MapDirectTo(context.Background(), "src", slow.loc, nil, persistence.None)
	if !errors.Is(err, mwerrors.ErrConnectionFailed) {
		t.Fatalf("late answer: %v, want ErrConnectionFailed", err)
	}
	if u := h.peers.unlinked["slow"]; len(u) != 2 || u[0] != "s1" || u[1] != "s2" {
		t.Fatalf("late answer must be unlinked at the peer, got %v", h.peers.unlinked)
	}
	if n := h.c.Store().OpenCount(); n != 0 {
		t.Fatalf("late answer left %d links", n)
	}
}

func TestWaitForLink(t *testing.T) {
	h := newHarness(t, host(t, "a", 7001, "a1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.c.WaitForLink(ctx, "src"); !errors.Is(err, mwerrors.ErrDisconnected) {
		t.Fatalf("err = %v, want ErrDisconnected", err)
	}

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- h.c.WaitForLink(ctx, "src")
	}()
	time.Sleep(10 * time.Millisecond)
	if _, err := h.c.MapIndirect(context.Background(), "src", nil, persistence.None); err != nil {
		t.Fatalf("map: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("WaitForLink: %v", err)
	}
}
