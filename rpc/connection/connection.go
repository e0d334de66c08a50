package connection

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dStream/lib/credentials"
	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/ValentinKolb/dStream/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/time/rate"
)

var Logger = logger.GetLogger(common.LoggerConnection)

// attachment is a started transport together with the signal that detaches its watcher
type attachment struct {
	transport transport.ITransport
	detach    chan struct{}
	release   func() bool // unregisters the close-on-context hook (optional)
}

// Connection owns the current transport and re-establishes it on demand
type Connection struct {
	handler     transport.RequestHandler
	dialer      transport.IDialer
	credentials credentials.IProvider
	limiter     *rate.Limiter // nil = unlimited

	current    atomic.Pointer[attachment]
	serviceURL atomic.Pointer[string]
	permanent  atomic.Pointer[error] // sticky reconnect failure

	mu        sync.Mutex // serializes swaps and the connected flag
	connected bool

	reconnectGate chan struct{} // capacity 1, single reconnect attempt at a time

	ctx    context.Context // lifetime of all attached transports
	cancel context.CancelFunc
}

// Option configures a Connection
type Option func(*Connection)

// WithDialer sets the dialer used to re-establish socket connections
func WithDialer(d transport.IDialer) Option {
	return func(c *Connection) {
		c.dialer = d
	}
}

// WithCredentials sets the provider of reconnect tokens
func WithCredentials(p credentials.IProvider) Option {
	return func(c *Connection) {
		c.credentials = p
	}
}

// WithReconnectLimit throttles reconnect attempts (PerMinute <= 0 disables the limit)
func WithReconnectLimit(config common.ReconnectConfig) Option {
	return func(c *Connection) {
		if config.PerMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.PerMinute)), max(config.Burst, 1))
	}
}

// NewConnection creates a connection without transport. Inbound requests of all
// attached transports are handled by handler.
func NewConnection(handler transport.RequestHandler, opts ...Option) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		handler:       handler,
		reconnectGate: make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
	}
	WithReconnectLimit(common.ReconnectConfig{PerMinute: 6, Burst: common.DefaultReconnectBurst})(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// --------------------------------------------------------------------------
// Transport management
// --------------------------------------------------------------------------

// Attach starts t with the connection's handler and makes it the current transport.
// A previous transport is closed and its watcher detached. The transport is closed
// when ctx is done.
func (c *Connection) Attach(ctx context.Context, t transport.ITransport) error {
	if err := t.Start(c.ctx, c.handler); err != nil {
		return fmt.Errorf("failed to start %s transport: %w", t.Name(), err)
	}

	release := context.AfterFunc(ctx, func() { t.Close() })
	c.swap(t, release)
	c.permanent.Store(nil)
	return nil
}

// swap makes the started transport t the current one
func (c *Connection) swap(t transport.ITransport, release func() bool) {
	a := &attachment{transport: t, detach: make(chan struct{}), release: release}

	c.mu.Lock()
	old := c.current.Swap(a)
	c.connected = true
	c.mu.Unlock()

	if old != nil {
		close(old.detach)
		if old.release != nil {
			old.release()
		}
		old.transport.Close()
	}

	go c.watch(a)
}

// watch marks the connection as disconnected when the transport of a drops
func (c *Connection) watch(a *attachment) {
	select {
	case <-a.transport.Disconnected():
	case <-a.detach:
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current.Load() == a {
		c.connected = false
		Logger.Warningf("%s transport disconnected, the next send will reconnect", a.transport.Name())
	}
}

// IsConnected reports whether the current transport is usable
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.current.Load()
	return c.connected && a != nil && a.transport.IsConnected()
}

// Transport returns the current transport or nil
func (c *Connection) Transport() transport.ITransport {
	if a := c.current.Load(); a != nil {
		return a.transport
	}
	return nil
}

// Close closes the current transport. The connection cannot be used afterward.
func (c *Connection) Close() error {
	c.cancel()
	if a := c.current.Load(); a != nil {
		return a.transport.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Service endpoint identity
// --------------------------------------------------------------------------

// RecordServiceURL records the service endpoint identity if none is known yet.
// It returns true if url was recorded.
func (c *Connection) RecordServiceURL(url string) bool {
	if url == "" {
		return false
	}
	if c.serviceURL.CompareAndSwap(nil, &url) {
		Logger.Infof("Recorded service endpoint %s", url)
		return true
	}
	return false
}

// ServiceURL returns the recorded service endpoint identity or ""
func (c *Connection) ServiceURL() string {
	if u := c.serviceURL.Load(); u != nil {
		return *u
	}
	return ""
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

// Send sends req on the current transport and re-establishes the transport first
// if it is disconnected. authHeader is used for the reconnect handshake, if it is
// empty a token is requested from the credential provider.
func (c *Connection) Send(ctx context.Context, req *common.Request, authHeader string) (*common.Response, error) {
	if c.ctx.Err() != nil {
		return nil, fmt.Errorf("%w: connection is closed", common.ErrTransport)
	}

	a := c.current.Load()
	if a == nil || !a.transport.IsConnected() {
		var err error
		if a, err = c.reconnect(ctx, a, authHeader); err != nil {
			return nil, err
		}
	}
	return a.transport.Send(ctx, req)
}

// reconnect replaces the stale attachment with a new websocket transport
func (c *Connection) reconnect(ctx context.Context, stale *attachment, authHeader string) (*attachment, error) {
	// waiting for a running attempt must honour the caller's context
	select {
	case c.reconnectGate <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-c.reconnectGate }()

	if c.ctx.Err() != nil {
		return nil, fmt.Errorf("%w: connection is closed", common.ErrTransport)
	}

	// another caller may have replaced the transport while we waited
	if a := c.current.Load(); a != nil && a != stale && a.transport.IsConnected() {
		return a, nil
	}

	if err := c.permanent.Load(); err != nil {
		return nil, *err
	}

	raw := c.ServiceURL()
	if raw == "" {
		if stale == nil {
			return nil, fmt.Errorf("%w: no transport attached", common.ErrTransport)
		}
		return nil, fmt.Errorf("%w: no service endpoint identity recorded", common.ErrConnectionLost)
	}

	identity, err := ParseEndpointIdentity(raw)
	if err == nil && !identity.Reconnectable() {
		err = fmt.Errorf("%w: %s connections cannot be re-established (%s)", common.ErrUnsupportedReconnect, identity.Protocol, raw)
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", common.ErrConnectionLost, err)
		c.permanent.CompareAndSwap(nil, &err)
		common.CountReconnect("rejected")
		Logger.Errorf("Giving up on connection: %v", err)
		return nil, err
	}

	if c.dialer == nil {
		return nil, fmt.Errorf("%w: no dialer configured", common.ErrConnectionLost)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			common.CountReconnect("throttled")
			return nil, fmt.Errorf("%w: reconnect throttled: %v", common.ErrConnectionLost, err)
		}
	}

	if authHeader == "" {
		token, err := credentials.Token(ctx, c.credentials)
		if err != nil {
			common.CountReconnect("failed")
			Logger.Errorf("Reconnect aborted: %v", err)
			return nil, err
		}
		authHeader = "Bearer " + token
	}

	header := http.Header{}
	header.Set("Authorization", authHeader)

	url := identity.ReconnectURL()
	Logger.Infof("Reconnecting to %s", url)

	t, err := c.dialer.Dial(ctx, url, header)
	if err != nil {
		common.CountReconnect("failed")
		return nil, fmt.Errorf("%w: reconnect to %s failed: %w", common.ErrConnectionLost, url, err)
	}

	if err := t.Start(c.ctx, c.handler); err != nil || c.ctx.Err() != nil {
		t.Close()
		if err == nil {
			return nil, fmt.Errorf("%w: connection closed during reconnect", common.ErrTransport)
		}
		common.CountReconnect("failed")
		return nil, fmt.Errorf("%w: failed to start reconnected transport: %w", common.ErrConnectionLost, err)
	}

	c.swap(t, nil)
	common.CountReconnect("ok")
	Logger.Infof("Reconnected to %s", url)

	return c.current.Load(), nil
}
