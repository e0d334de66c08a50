package websocket

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/ValentinKolb/dStream/rpc/transport"
	gws "github.com/gorilla/websocket"
)

const (
	defaultBufferSize       = 32 * 1024 // 32 KB
	defaultHandshakeTimeout = 10 * time.Second
)

// upgrader accepts connections from any origin, peers are services, not browsers
var upgrader = gws.Upgrader{
	ReadBufferSize:  defaultBufferSize,
	WriteBufferSize: defaultBufferSize,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// --------------------------------------------------------------------------
// Server Side
// --------------------------------------------------------------------------

// Accept upgrades the HTTP request to a websocket connection and returns the
// transport for it. The transport must be started by the caller. If the upgrade
// fails an HTTP error has already been written to w.
func Accept(w http.ResponseWriter, r *http.Request, config common.TransportConfig) (transport.ITransport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade websocket connection from %s: %w", r.RemoteAddr, err)
	}
	return newTransport(conn, config), nil
}

// IsUpgradeRequest reports whether r asks for a websocket upgrade
func IsUpgradeRequest(r *http.Request) bool {
	return gws.IsWebSocketUpgrade(r)
}

// --------------------------------------------------------------------------
// Client Side
// --------------------------------------------------------------------------

// Dialer opens client side websocket transports
type Dialer struct {
	// Config is applied to every dialed transport
	Config common.TransportConfig
	// HandshakeTimeout bounds the opening handshake (0 = 10 seconds)
	HandshakeTimeout time.Duration
}

// NewDialer creates a dialer with the given transport configuration
func NewDialer(config common.TransportConfig) *Dialer {
	return &Dialer{Config: config}
}

// Dial implements transport.IDialer
func (d *Dialer) Dial(ctx context.Context, url string, header http.Header) (transport.ITransport, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	dialer := gws.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: timeout,
		ReadBufferSize:   defaultBufferSize,
		WriteBufferSize:  defaultBufferSize,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake with %s failed (%s): %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	Logger.Infof("Connected to %s", url)
	return newTransport(conn, d.Config), nil
}
