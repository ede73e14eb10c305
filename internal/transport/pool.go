package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Homlet/middleware-android-sub001/internal/observability"
	mwerrors "github.com/Homlet/middleware-android-sub001/pkg/errors"
	"github.com/Homlet/middleware-android-sub001/pkg/location"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dial opens a client connection that speaks the JSON codec by default.
// Transport security is left to the deployment; the default is plaintext.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(CallOption()),
		grpc.WithChainUnaryInterceptor(observability.UnaryClientInterceptor()),
	}
	conn, err := grpc.NewClient(target, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", mwerrors.ErrBadHost, target, err)
	}
	return conn, nil
}

// Pool caches one client connection per dial target.
type Pool struct {
	mu     sync.Mutex
	conns  map[string]*grpc.ClientConn
	opts   []grpc.DialOption
	closed bool
}

// NewPool creates a pool whose connections are dialled with opts.
func NewPool(opts ...grpc.DialOption) *Pool {
	return &Pool{conns: make(map[string]*grpc.ClientConn), opts: opts}
}

// Conn returns the cached connection for target, dialling on first use.
func (p *Pool) Conn(target string) (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, mwerrors.ErrClosed
	}
	if c, ok := p.conns[target]; ok {
		return c, nil
	}
	c, err := Dial(target, p.opts...)
	if err != nil {
		return nil, err
	}
	p.conns[target] = c
	return c, nil
}

// Peer returns a PeerService client for loc's first valid address.
func (p *Pool) Peer(loc location.Location) (*PeerClient, error) {
	target, err := loc.Target()
	if err != nil {
		return nil, err
	}
	c, err := p.Conn(target)
	if err != nil {
		return nil, err
	}
	return NewPeerClient(c), nil
}

// RDC returns an RDCService client for an RDC address.
func (p *Pool) RDC(addr location.Address) (*RDCClient, error) {
	c, err := p.Conn(addr.Target())
	if err != nil {
		return nil, err
	}
	return NewRDCClient(c), nil
}

// Forget closes and drops the connection for loc so the next call redials.
func (p *Pool) Forget(loc location.Location) {
	target, err := loc.Target()
	if err != nil {
		return
	}
	p.mu.Lock()
	c, ok := p.conns[target]
	delete(p.conns, target)
	p.mu.Unlock()
	if ok {
		_ = c.Close()
	}
}

// Len reports the number of cached connections.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Close closes every cached connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*grpc.ClientConn)
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for target, c := range conns {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
		}
	}
	return errors.Join(errs...)
}
