package base

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dStream/rpc/codec"
	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/ValentinKolb/dStream/rpc/transport"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// echoHandler answers every request with its path as text body
var echoHandler = transport.RequestHandlerFunc(func(_ context.Context, req *common.Request) *common.Response {
	return common.NewTextResponse(200, req.Path)
})

// newPair creates two started transports connected by an in-memory pipe
func newPair(t *testing.T, config common.TransportConfig, a, b transport.RequestHandler) (transport.ITransport, transport.ITransport) {
	t.Helper()

	connA, connB := net.Pipe()
	ta := NewTransport("test", NewStreamConn(connA, config.FrameLimit()), config)
	tb := NewTransport("test", NewStreamConn(connB, config.FrameLimit()), config)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		ta.Close()
		tb.Close()
	})

	if err := ta.Start(ctx, a); err != nil {
		t.Fatalf("Failed to start transport a: %v", err)
	}
	if err := tb.Start(ctx, b); err != nil {
		t.Fatalf("Failed to start transport b: %v", err)
	}
	return ta, tb
}

func textBody(resp *common.Response) string {
	body, ok := resp.Body()
	if !ok {
		return ""
	}
	return string(body.Data)
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for channel to close")
	}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// TestDuplexSend tests that both ends can send requests over the same connection
func TestDuplexSend(t *testing.T) {
	ta, tb := newPair(t, common.TransportConfig{TimeoutSecond: 5}, echoHandler, echoHandler)

	for _, tc := range []struct {
		name   string
		sender transport.ITransport
	}{
		{"a to b", ta},
		{"b to a", tb},
	} {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := tc.sender.Send(context.Background(), &common.Request{Verb: "GET", Path: "/hello"})
			if err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			if resp.StatusCode != 200 || textBody(resp) != "/hello" {
				t.Errorf("Unexpected response: status=%d body=%q", resp.StatusCode, textBody(resp))
			}
		})
	}
}

// TestConcurrentOutOfOrder tests that concurrent requests are matched by id
// even if the responses arrive in a different order
func TestConcurrentOutOfOrder(t *testing.T) {
	slowFirst := transport.RequestHandlerFunc(func(ctx context.Context, req *common.Request) *common.Response {
		var n int
		fmt.Sscanf(req.Path, "/%d", &n)
		time.Sleep(time.Duration(20-n) * time.Millisecond)
		return common.NewTextResponse(200, req.Path)
	})
	ta, _ := newPair(t, common.TransportConfig{TimeoutSecond: 5}, echoHandler, slowFirst)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/%d", i)
			resp, err := ta.Send(context.Background(), &common.Request{Verb: "GET", Path: path})
			if err != nil {
				t.Errorf("Send %s failed: %v", path, err)
				return
			}
			if textBody(resp) != path {
				t.Errorf("Request %s got response for %s", path, textBody(resp))
			}
		}(i)
	}
	wg.Wait()
}

// TestInboundRequestsDoNotBlockEachOther tests that a slow handler does not delay other requests
func TestInboundRequestsDoNotBlockEachOther(t *testing.T) {
	release := make(chan struct{})
	handler := transport.RequestHandlerFunc(func(ctx context.Context, req *common.Request) *common.Response {
		if req.Path == "/block" {
			<-release
		}
		return common.NewStatusResponse(200)
	})
	ta, _ := newPair(t, common.TransportConfig{TimeoutSecond: 5}, echoHandler, handler)
	defer close(release)

	go ta.Send(context.Background(), &common.Request{Verb: "GET", Path: "/block"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := ta.Send(ctx, &common.Request{Verb: "GET", Path: "/fast"}); err != nil {
		t.Fatalf("Fast request was blocked: %v", err)
	}
}

// TestDisconnectSweep tests that all outstanding calls fail with ErrConnectionLost
// when the peer goes away
func TestDisconnectSweep(t *testing.T) {
	started := make(chan struct{}, 16)
	blocking := transport.RequestHandlerFunc(func(ctx context.Context, req *common.Request) *common.Response {
		started <- struct{}{}
		<-ctx.Done()
		return nil
	})
	ta, tb := newPair(t, common.TransportConfig{}, echoHandler, blocking)

	const k = 8
	errs := make(chan error, k)
	for i := 0; i < k; i++ {
		go func() {
			_, err := ta.Send(context.Background(), &common.Request{Verb: "POST", Path: "/"})
			errs <- err
		}()
	}
	for i := 0; i < k; i++ {
		<-started
	}

	tb.Close()

	for i := 0; i < k; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, common.ErrConnectionLost) {
				t.Errorf("Expected ErrConnectionLost, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Outstanding call was not failed by disconnect")
		}
	}

	waitClosed(t, ta.Disconnected())
	if ta.IsConnected() {
		t.Error("Transport should report disconnected")
	}

	_, err := ta.Send(context.Background(), &common.Request{Verb: "GET", Path: "/"})
	if !errors.Is(err, common.ErrTransport) {
		t.Errorf("Expected ErrTransport after disconnect, got %v", err)
	}
}

// TestCancelPropagation tests that a cancelled outbound call cancels the inbound handler
// of the peer and that no response is sent for it
func TestCancelPropagation(t *testing.T) {
	handlerStarted := make(chan struct{})
	handlerCancelled := make(chan struct{})
	handler := transport.RequestHandlerFunc(func(ctx context.Context, req *common.Request) *common.Response {
		close(handlerStarted)
		<-ctx.Done()
		close(handlerCancelled)
		return common.NewStatusResponse(200)
	})
	ta, _ := newPair(t, common.TransportConfig{}, echoHandler, handler)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := ta.Send(ctx, &common.Request{Verb: "POST", Path: "/"})
		errCh <- err
	}()

	waitClosed(t, handlerStarted)
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	waitClosed(t, handlerCancelled)

	if !ta.IsConnected() {
		t.Error("Cancelling a call must not close the transport")
	}
}

// TestNilResponseSendsNothing tests that a nil handler result produces no response frame
func TestNilResponseSendsNothing(t *testing.T) {
	silent := transport.RequestHandlerFunc(func(context.Context, *common.Request) *common.Response {
		return nil
	})
	ta, _ := newPair(t, common.TransportConfig{}, echoHandler, silent)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ta.Send(ctx, &common.Request{Verb: "POST", Path: "/"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

// TestOversizedResponse tests that a response exceeding the frame limit is replaced by an error response
func TestOversizedResponse(t *testing.T) {
	config := common.TransportConfig{TimeoutSecond: 5, MaxFrameBytes: 1024}
	big := transport.RequestHandlerFunc(func(context.Context, *common.Request) *common.Response {
		return &common.Response{StatusCode: 200, Streams: []common.ContentStream{{ContentType: "x", Data: make([]byte, 4096)}}}
	})
	ta, _ := newPair(t, config, echoHandler, big)

	resp, err := ta.Send(context.Background(), &common.Request{Verb: "GET", Path: "/"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
}

// TestSendOversizedRequest tests that oversized requests fail locally without closing the transport
func TestSendOversizedRequest(t *testing.T) {
	config := common.TransportConfig{MaxFrameBytes: 256}
	ta, _ := newPair(t, config, echoHandler, echoHandler)

	req := &common.Request{Verb: "POST", Path: "/", Streams: []common.ContentStream{{Data: make([]byte, 512)}}}
	if _, err := ta.Send(context.Background(), req); !errors.Is(err, codec.ErrFrameTooLarge) {
		t.Errorf("Expected ErrFrameTooLarge, got %v", err)
	}
	if !ta.IsConnected() {
		t.Error("Transport should still be connected")
	}
}

// TestLifecycle tests Start/Close edge cases
func TestLifecycle(t *testing.T) {
	connA, connB := net.Pipe()
	defer connB.Close()
	tr := NewTransport("test", NewStreamConn(connA, 0), common.TransportConfig{})

	if tr.IsConnected() {
		t.Error("Transport must not be connected before Start")
	}
	if _, err := tr.Send(context.Background(), &common.Request{Verb: "GET", Path: "/"}); !errors.Is(err, common.ErrTransport) {
		t.Errorf("Expected ErrTransport before Start, got %v", err)
	}
	if err := tr.Start(context.Background(), nil); err == nil {
		t.Error("Expected error for nil handler")
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := tr.Start(ctx, echoHandler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := tr.Start(ctx, echoHandler); err == nil {
		t.Error("Expected error when starting twice")
	}
	if !tr.IsConnected() {
		t.Error("Transport should be connected after Start")
	}

	// cancelling the owning context closes the transport
	cancel()
	waitClosed(t, tr.Disconnected())

	// closing again is a no-op
	if err := tr.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
	if tr.Name() != "test" {
		t.Errorf("Name() = %q, want test", tr.Name())
	}
}

// TestStreamConnRejectsOversizedMessage tests the read limit of the length prefixed connection
func TestStreamConnRejectsOversizedMessage(t *testing.T) {
	connA, connB := net.Pipe()
	defer connA.Close()
	defer connB.Close()

	writer := NewStreamConn(connA, 0)
	reader := NewStreamConn(connB, 8)

	go writer.WriteMessage(make([]byte, 16))

	if _, err := reader.ReadMessage(); !errors.Is(err, codec.ErrFrameTooLarge) {
		t.Errorf("Expected ErrFrameTooLarge, got %v", err)
	}
}

// TestInvalidStatusCodeResponse tests that a status code outside the wire range is
// answered with an error response instead of a wrapped value
func TestInvalidStatusCodeResponse(t *testing.T) {
	negative := transport.RequestHandlerFunc(func(context.Context, *common.Request) *common.Response {
		return common.NewStatusResponse(-1)
	})
	ta, _ := newPair(t, common.TransportConfig{TimeoutSecond: 5}, echoHandler, negative)

	resp, err := ta.Send(context.Background(), &common.Request{Verb: "GET", Path: "/"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if resp.StatusCode != 500 {
		t.Errorf("StatusCode = %d, want 500", resp.StatusCode)
	}
}
