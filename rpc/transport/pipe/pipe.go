package pipe

import (
	"context"
	"fmt"
	"net"

	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/ValentinKolb/dStream/rpc/transport"
	"github.com/ValentinKolb/dStream/rpc/transport/base"
	"github.com/lni/dragonboat/v4/logger"
)

// Name is the name of the pipe transport variant
const Name = "pipe"

var Logger = logger.GetLogger(common.LoggerTransport)

// Listener accepts pipe connections
type Listener struct {
	listener net.Listener
	path     string
	config   common.TransportConfig
}

// Listen creates a pipe with the given name. Transports accepted by the listener
// use config.
func Listen(name string, config common.TransportConfig) (*Listener, error) {
	path := Path(name)

	l, err := listen(path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on pipe %s: %w", path, err)
	}

	Logger.Infof("Listening on pipe %s", path)
	return &Listener{listener: l, path: path, config: config}, nil
}

// Accept waits for the next client. The returned transport is not started yet.
// If ctx is done the listener is closed.
func (l *Listener) Accept(ctx context.Context) (transport.ITransport, error) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-done:
		}
	}()

	conn, err := l.listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to accept pipe connection: %w", err)
	}

	Logger.Debugf("Accepted connection on pipe %s", l.path)
	return base.NewTransport(Name, base.NewStreamConn(conn, l.config.FrameLimit()), l.config), nil
}

// Path returns the platform specific address of the pipe
func (l *Listener) Path() string {
	return l.path
}

// Close stops listening
func (l *Listener) Close() error {
	return l.listener.Close()
}

// Dial connects to the pipe with the given name. The returned transport is not started yet.
func Dial(ctx context.Context, name string, config common.TransportConfig) (transport.ITransport, error) {
	path := Path(name)

	conn, err := dial(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to pipe %s: %w", path, err)
	}

	Logger.Infof("Connected to pipe %s", path)
	return base.NewTransport(Name, base.NewStreamConn(conn, config.FrameLimit()), config), nil
}
