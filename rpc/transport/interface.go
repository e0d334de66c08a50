package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/ValentinKolb/dStream/rpc/common"
)

// --------------------------------------------------------------------------
// Request Handling
// --------------------------------------------------------------------------

// RequestHandler processes inbound requests of a transport.
// ProcessRequest is called concurrently, once per inbound request. The context is
// cancelled when the peer cancels the request or the transport disconnects.
// A nil response means that nothing is sent back.
type RequestHandler interface {
	ProcessRequest(ctx context.Context, req *common.Request) *common.Response
}

// RequestHandlerFunc adapts an ordinary function to a RequestHandler
type RequestHandlerFunc func(ctx context.Context, req *common.Request) *common.Response

// ProcessRequest calls f(ctx, req)
func (f RequestHandlerFunc) ProcessRequest(ctx context.Context, req *common.Request) *common.Response {
	return f(ctx, req)
}

// --------------------------------------------------------------------------
// Transport
// --------------------------------------------------------------------------

// ITransport is one physical duplex connection. Both peers can send requests
// over the same transport, responses are correlated by request id.
type ITransport interface {
	// Start begins reading frames in the background and dispatches inbound requests
	// to handler. It does not block. The transport is closed when ctx is done.
	Start(ctx context.Context, handler RequestHandler) error
	// Send transmits a request and waits for the correlated response. It fails with
	// common.ErrTransport if the transport is not connected and with
	// common.ErrConnectionLost if the connection drops while waiting.
	Send(ctx context.Context, req *common.Request) (*common.Response, error)
	// Disconnected returns a channel that is closed exactly once when the connection is lost
	Disconnected() <-chan struct{}
	// IsConnected reports whether the transport is started and not yet disconnected
	IsConnected() bool
	// Name returns the name of the transport variant (e.g. "websocket", "pipe")
	Name() string
	// Close closes the connection. Calling Close more than once is a no-op.
	Close() error
}

// IDialer opens a client side transport to the given url.
// The returned transport is not started yet.
type IDialer interface {
	Dial(ctx context.Context, url string, header http.Header) (ITransport, error)
}

// --------------------------------------------------------------------------
// Message Connection
// --------------------------------------------------------------------------

// IMessageConn is a connection that preserves message boundaries.
// ReadMessage is only called by a single reader goroutine, WriteMessage and
// SetWriteDeadline are serialized by the caller.
type IMessageConn interface {
	// ReadMessage blocks until the next complete message is received
	ReadMessage() ([]byte, error)
	// WriteMessage writes one complete message
	WriteMessage(data []byte) error
	// SetWriteDeadline sets the deadline for the following writes (zero = none)
	SetWriteDeadline(t time.Time) error
	// RemoteAddr returns the address of the peer
	RemoteAddr() string
	// Close closes the connection and unblocks a pending ReadMessage
	Close() error
}
