package connection

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dStream/lib/credentials"
	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/ValentinKolb/dStream/rpc/transport"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

// fakeTransport answers every request with 200 and the transport name as body
type fakeTransport struct {
	name         string
	started      atomic.Bool
	connected    atomic.Bool
	sends        atomic.Int32
	disconnected chan struct{}
	dropOnce     sync.Once
}

func newFakeTransport(name string) *fakeTransport {
	return &fakeTransport{name: name, disconnected: make(chan struct{})}
}

func (f *fakeTransport) Start(_ context.Context, handler transport.RequestHandler) error {
	if handler == nil {
		return errors.New("no handler")
	}
	if !f.started.CompareAndSwap(false, true) {
		return errors.New("already started")
	}
	f.connected.Store(true)
	return nil
}

func (f *fakeTransport) Send(_ context.Context, req *common.Request) (*common.Response, error) {
	if !f.connected.Load() {
		return nil, common.ErrTransport
	}
	f.sends.Add(1)
	return common.NewTextResponse(200, f.name), nil
}

func (f *fakeTransport) Disconnected() <-chan struct{} { return f.disconnected }
func (f *fakeTransport) IsConnected() bool             { return f.connected.Load() }
func (f *fakeTransport) Name() string                  { return "fake" }
func (f *fakeTransport) Close() error                  { f.drop(); return nil }

// drop simulates a lost connection
func (f *fakeTransport) drop() {
	f.dropOnce.Do(func() {
		f.connected.Store(false)
		close(f.disconnected)
	})
}

// fakeDialer records every dial and hands out new fake transports
type fakeDialer struct {
	mu      sync.Mutex
	urls    []string
	headers []http.Header
	err     error
	dialed  []*fakeTransport
}

func (d *fakeDialer) Dial(_ context.Context, url string, header http.Header) (transport.ITransport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	d.headers = append(d.headers, header.Clone())
	if d.err != nil {
		return nil, d.err
	}
	t := newFakeTransport("reconnected")
	d.dialed = append(d.dialed, t)
	return t, nil
}

func (d *fakeDialer) calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

var nopHandler = transport.RequestHandlerFunc(func(context.Context, *common.Request) *common.Response {
	return nil
})

func testRequest() *common.Request {
	return &common.Request{Verb: common.VerbPost, Path: "/v3/conversations/c1/activities"}
}

func body(resp *common.Response) string {
	b, _ := resp.Body()
	return string(b.Data)
}

// newDisconnected returns a connection whose attached transport has dropped
func newDisconnected(t *testing.T, serviceURL string, opts ...Option) (*Connection, *fakeDialer) {
	t.Helper()

	dialer := &fakeDialer{}
	c := NewConnection(nopHandler, append([]Option{WithDialer(dialer)}, opts...)...)
	t.Cleanup(func() { c.Close() })

	initial := newFakeTransport("initial")
	if err := c.Attach(context.Background(), initial); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	c.RecordServiceURL(serviceURL)

	initial.drop()
	waitFor(t, func() bool { return !c.IsConnected() })
	return c, dialer
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestParseEndpointIdentity tests the urn:<channel>:<protocol>:<host> format
func TestParseEndpointIdentity(t *testing.T) {
	tests := []struct {
		input         string
		wantErr       bool
		want          EndpointIdentity
		reconnectable bool
	}{
		{input: "urn:test:websocket:contoso.com", want: EndpointIdentity{"test", "websocket", "contoso.com"}, reconnectable: true},
		{input: "urn:msteams:WebSocket:teams.example", want: EndpointIdentity{"msteams", "WebSocket", "teams.example"}, reconnectable: true},
		{input: "urn:test:pipe:contoso.com", want: EndpointIdentity{"test", "pipe", "contoso.com"}},
		{input: "https://contoso.com", wantErr: true},
		{input: "urn:test:websocket", wantErr: true},
		{input: "urn:test:websocket:contoso.com:443", wantErr: true},
		{input: "urn::websocket:contoso.com", wantErr: true},
		{input: "urx:test:websocket:contoso.com", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEndpointIdentity(tt.input)
			if tt.wantErr {
				if !errors.Is(err, common.ErrUnsupportedReconnect) {
					t.Errorf("Expected ErrUnsupportedReconnect, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEndpointIdentity failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Got %+v, want %+v", got, tt.want)
			}
			if got.Reconnectable() != tt.reconnectable {
				t.Errorf("Reconnectable() = %v, want %v", got.Reconnectable(), tt.reconnectable)
			}
		})
	}

	id, _ := ParseEndpointIdentity("urn:test:websocket:contoso.com")
	if id.ReconnectURL() != "wss://contoso.com/api/reconnect" {
		t.Errorf("ReconnectURL() = %q", id.ReconnectURL())
	}
	if id.String() != "urn:test:websocket:contoso.com" {
		t.Errorf("String() = %q", id.String())
	}
}

// TestSendOnConnectedTransport tests that no reconnect happens while connected
func TestSendOnConnectedTransport(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewConnection(nopHandler, WithDialer(dialer))
	defer c.Close()

	initial := newFakeTransport("initial")
	if err := c.Attach(context.Background(), initial); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if !initial.started.Load() {
		t.Error("Attach should start the transport")
	}

	resp, err := c.Send(context.Background(), testRequest(), "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if body(resp) != "initial" {
		t.Errorf("Request was sent on %q", body(resp))
	}
	if dialer.calls() != 0 {
		t.Errorf("Dialer was called %d times", dialer.calls())
	}
}

// TestReconnect tests that a send after a disconnect re-establishes the socket transport
func TestReconnect(t *testing.T) {
	c, dialer := newDisconnected(t, "urn:test:websocket:contoso.com", WithCredentials(credentials.Static("secret")))

	resp, err := c.Send(context.Background(), testRequest(), "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if body(resp) != "reconnected" {
		t.Errorf("Request was sent on %q, want the reconnected transport", body(resp))
	}

	if dialer.calls() != 1 {
		t.Fatalf("Dialer called %d times, want 1", dialer.calls())
	}
	if dialer.urls[0] != "wss://contoso.com/api/reconnect" {
		t.Errorf("Dialed %q", dialer.urls[0])
	}
	if got := dialer.headers[0].Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization header = %q, want %q", got, "Bearer secret")
	}
	if !dialer.dialed[0].started.Load() {
		t.Error("Reconnected transport was not started")
	}
	if !c.IsConnected() {
		t.Error("Connection should be connected after reconnect")
	}
	if c.Transport() != transport.ITransport(dialer.dialed[0]) {
		t.Error("Reconnected transport should be the current transport")
	}
}

// TestReconnectUsesCallerHeader tests that an explicit authorization header wins over the provider
func TestReconnectUsesCallerHeader(t *testing.T) {
	failing := credentials.ProviderFunc(func(context.Context) (string, error) {
		t.Error("Credential provider must not be consulted")
		return "", errors.New("unexpected")
	})
	c, dialer := newDisconnected(t, "urn:test:websocket:contoso.com", WithCredentials(failing))

	if _, err := c.Send(context.Background(), testRequest(), "Bearer caller"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := dialer.headers[0].Get("Authorization"); got != "Bearer caller" {
		t.Errorf("Authorization header = %q", got)
	}
}

// TestReconnectRejectedForPipe tests that pipe connections fail permanently without network operations
func TestReconnectRejectedForPipe(t *testing.T) {
	c, dialer := newDisconnected(t, "urn:test:pipe:contoso.com", WithCredentials(credentials.Static("secret")))

	for i := 0; i < 3; i++ {
		_, err := c.Send(context.Background(), testRequest(), "")
		if !errors.Is(err, common.ErrUnsupportedReconnect) {
			t.Errorf("Attempt %d: expected ErrUnsupportedReconnect, got %v", i, err)
		}
		if !errors.Is(err, common.ErrConnectionLost) {
			t.Errorf("Attempt %d: expected ErrConnectionLost, got %v", i, err)
		}
	}
	if dialer.calls() != 0 {
		t.Errorf("Dialer was called %d times, want 0", dialer.calls())
	}
}

// TestMalformedIdentityIsPermanent tests that unparsable identities are not retried
func TestMalformedIdentityIsPermanent(t *testing.T) {
	c, dialer := newDisconnected(t, "https://contoso.com", WithCredentials(credentials.Static("secret")))

	for i := 0; i < 2; i++ {
		if _, err := c.Send(context.Background(), testRequest(), ""); !errors.Is(err, common.ErrUnsupportedReconnect) {
			t.Errorf("Expected ErrUnsupportedReconnect, got %v", err)
		}
	}
	if dialer.calls() != 0 {
		t.Errorf("Dialer was called %d times, want 0", dialer.calls())
	}

	// attaching a new transport clears the failure
	if err := c.Attach(context.Background(), newFakeTransport("fresh")); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	resp, err := c.Send(context.Background(), testRequest(), "")
	if err != nil {
		t.Fatalf("Send after Attach failed: %v", err)
	}
	if body(resp) != "fresh" {
		t.Errorf("Request was sent on %q", body(resp))
	}
}

// TestCredentialFailureAbortsReconnect tests that token failures propagate and no dial happens
func TestCredentialFailureAbortsReconnect(t *testing.T) {
	failing := credentials.ProviderFunc(func(context.Context) (string, error) {
		return "", errors.New("token service down")
	})
	c, dialer := newDisconnected(t, "urn:test:websocket:contoso.com", WithCredentials(failing))

	if _, err := c.Send(context.Background(), testRequest(), ""); !errors.Is(err, common.ErrCredentialFailure) {
		t.Errorf("Expected ErrCredentialFailure, got %v", err)
	}
	if dialer.calls() != 0 {
		t.Errorf("Dialer was called %d times, want 0", dialer.calls())
	}
}

// TestDialFailureIsRetried tests that a failed dial is not permanent
func TestDialFailureIsRetried(t *testing.T) {
	c, dialer := newDisconnected(t, "urn:test:websocket:contoso.com", WithCredentials(credentials.Static("secret")))
	dialer.err = errors.New("connection refused")

	if _, err := c.Send(context.Background(), testRequest(), ""); !errors.Is(err, common.ErrConnectionLost) {
		t.Errorf("Expected ErrConnectionLost, got %v", err)
	}

	dialer.mu.Lock()
	dialer.err = nil
	dialer.mu.Unlock()

	if _, err := c.Send(context.Background(), testRequest(), ""); err != nil {
		t.Errorf("Second Send failed: %v", err)
	}
	if dialer.calls() != 2 {
		t.Errorf("Dialer called %d times, want 2", dialer.calls())
	}
}

// TestReconnectThrottled tests the reconnect rate limit
func TestReconnectThrottled(t *testing.T) {
	c, dialer := newDisconnected(t, "urn:test:websocket:contoso.com",
		WithCredentials(credentials.Static("secret")),
		WithReconnectLimit(common.ReconnectConfig{PerMinute: 1, Burst: 1}),
	)
	dialer.err = errors.New("connection refused")

	if _, err := c.Send(context.Background(), testRequest(), ""); err == nil {
		t.Fatal("Expected error from failing dial")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.Send(ctx, testRequest(), ""); !errors.Is(err, common.ErrConnectionLost) {
		t.Errorf("Expected throttled ErrConnectionLost, got %v", err)
	}
	if dialer.calls() != 1 {
		t.Errorf("Dialer called %d times, want 1", dialer.calls())
	}
}

// TestConcurrentSendsShareReconnect tests that concurrent senders trigger a single dial
func TestConcurrentSendsShareReconnect(t *testing.T) {
	c, dialer := newDisconnected(t, "urn:test:websocket:contoso.com", WithCredentials(credentials.Static("secret")))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Send(context.Background(), testRequest(), ""); err != nil {
				t.Errorf("Send failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if dialer.calls() != 1 {
		t.Errorf("Dialer called %d times, want 1", dialer.calls())
	}
}

// TestSwapDetachesOldTransport tests that a replaced transport no longer affects the connection
func TestSwapDetachesOldTransport(t *testing.T) {
	c := NewConnection(nopHandler)
	defer c.Close()

	first := newFakeTransport("first")
	second := newFakeTransport("second")
	if err := c.Attach(context.Background(), first); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if err := c.Attach(context.Background(), second); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	// the replaced transport is closed, its disconnect must not be observed
	if first.IsConnected() {
		t.Error("Replaced transport should be closed")
	}
	time.Sleep(10 * time.Millisecond)
	if !c.IsConnected() {
		t.Error("Connection should still be connected")
	}
}

// TestAttachContext tests that the transport is closed with the attach context
func TestAttachContext(t *testing.T) {
	c := NewConnection(nopHandler)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	tr := newFakeTransport("scoped")
	if err := c.Attach(ctx, tr); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	cancel()
	waitFor(t, func() bool { return !c.IsConnected() })
}

// TestSendWithoutTransport tests the error before anything was attached
func TestSendWithoutTransport(t *testing.T) {
	c := NewConnection(nopHandler, WithDialer(&fakeDialer{}))
	defer c.Close()

	if _, err := c.Send(context.Background(), testRequest(), ""); !errors.Is(err, common.ErrTransport) {
		t.Errorf("Expected ErrTransport, got %v", err)
	}
}

// TestRecordServiceURL tests that the first recorded identity wins
func TestRecordServiceURL(t *testing.T) {
	c := NewConnection(nopHandler)
	defer c.Close()

	if c.RecordServiceURL("") {
		t.Error("Empty url should not be recorded")
	}
	if !c.RecordServiceURL("urn:test:websocket:a.com") {
		t.Error("First url should be recorded")
	}
	if c.RecordServiceURL("urn:test:websocket:b.com") {
		t.Error("Second url should not overwrite the first")
	}
	if c.ServiceURL() != "urn:test:websocket:a.com" {
		t.Errorf("ServiceURL() = %q", c.ServiceURL())
	}
}

// TestWaitingForReconnectHonoursContext tests that a sender queued behind a throttled
// reconnect gives up when its own context ends
func TestWaitingForReconnectHonoursContext(t *testing.T) {
	c, dialer := newDisconnected(t, "urn:test:websocket:contoso.com",
		WithCredentials(credentials.Static("secret")),
		WithReconnectLimit(common.ReconnectConfig{PerMinute: 1, Burst: 1}),
	)

	// the first reconnect uses the only token
	if _, err := c.Send(context.Background(), testRequest(), ""); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	dialer.mu.Lock()
	dialer.dialed[0].drop()
	dialer.mu.Unlock()
	waitFor(t, func() bool { return !c.IsConnected() })

	// this sender holds the reconnect slot while it waits for the limiter
	blockedCtx, cancelBlocked := context.WithCancel(context.Background())
	blockedDone := make(chan struct{})
	go func() {
		defer close(blockedDone)
		c.Send(blockedCtx, testRequest(), "")
	}()
	t.Cleanup(func() {
		cancelBlocked()
		<-blockedDone
	})
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Send(ctx, testRequest(), "")
	if err == nil {
		t.Fatal("Expected an error while the reconnect is throttled")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Send returned after %v, want it bounded by its deadline", elapsed)
	}
	if dialer.calls() != 1 {
		t.Errorf("Dialer called %d times, want 1", dialer.calls())
	}
}

// TestSendAfterClose tests that a closed connection never dials again
func TestSendAfterClose(t *testing.T) {
	dialer := &fakeDialer{}
	c := NewConnection(nopHandler, WithDialer(dialer), WithCredentials(credentials.Static("secret")))

	if err := c.Attach(context.Background(), newFakeTransport("initial")); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	c.RecordServiceURL("urn:test:websocket:contoso.com")

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := c.Send(context.Background(), testRequest(), ""); !errors.Is(err, common.ErrTransport) {
		t.Errorf("Expected ErrTransport after Close, got %v", err)
	}
	if dialer.calls() != 0 {
		t.Errorf("Dialer called %d times after Close, want 0", dialer.calls())
	}
	if c.IsConnected() {
		t.Error("Connection should not report connected after Close")
	}
}
