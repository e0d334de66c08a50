package base

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/dStream/rpc/codec"
	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/ValentinKolb/dStream/rpc/pending"
	"github.com/ValentinKolb/dStream/rpc/transport"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger(common.LoggerTransport)

// errClosed is the disconnect cause if the transport was closed locally
var errClosed = errors.New("transport closed")

// duplexTransport implements transport.ITransport over a message connection,
// independent of the specific medium (websocket, pipe, etc.)
type duplexTransport struct {
	name   string
	id     string // connection instance id, used for log correlation
	conn   transport.IMessageConn
	config common.TransportConfig

	handler transport.RequestHandler
	pending *pending.Table
	// cancel functions of the inbound requests currently processed
	inbound *xsync.MapOf[uint64, context.CancelFunc]
	// counting semaphore that limits concurrently processed inbound requests (nil = unlimited)
	workers chan struct{}
	wg      sync.WaitGroup

	writeMu sync.Mutex // Protects writes to the connection

	ctx    context.Context // parent of all inbound handler contexts
	cancel context.CancelFunc

	started      atomic.Bool
	connected    atomic.Bool
	disconnected chan struct{}
	shutdownOnce sync.Once
}

// -----------------------------------------------------------
// Transport Factory Method (used for websocket, pipe, etc.)
// -----------------------------------------------------------

// NewTransport creates a duplex transport on an established message connection.
// The transport takes ownership of conn and closes it on disconnect.
func NewTransport(name string, conn transport.IMessageConn, config common.TransportConfig) transport.ITransport {
	ctx, cancel := context.WithCancel(context.Background())

	t := &duplexTransport{
		name:         name,
		id:           uuid.NewString(),
		conn:         conn,
		config:       config,
		pending:      pending.NewTable(),
		inbound:      xsync.NewMapOf[uint64, context.CancelFunc](),
		ctx:          ctx,
		cancel:       cancel,
		disconnected: make(chan struct{}),
	}

	if config.MaxConcurrentRequests > 0 {
		t.workers = make(chan struct{}, config.MaxConcurrentRequests)
	}

	return t
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.ITransport)
// --------------------------------------------------------------------------

func (t *duplexTransport) Start(ctx context.Context, handler transport.RequestHandler) error {
	if handler == nil {
		return fmt.Errorf("no request handler provided")
	}
	if !t.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%s transport %s already started", t.name, t.id)
	}

	select {
	case <-t.disconnected:
		return fmt.Errorf("%w: %s transport %s is closed", common.ErrTransport, t.name, t.id)
	default:
	}

	t.handler = handler
	t.connected.Store(true)

	Logger.Infof("Started %s transport %s (peer %s)", t.name, t.id, t.conn.RemoteAddr())

	go t.readFrames()

	// close the transport together with the owning context
	go func() {
		select {
		case <-ctx.Done():
			t.shutdown(ctx.Err())
		case <-t.disconnected:
		}
	}()

	return nil
}

func (t *duplexTransport) Send(ctx context.Context, req *common.Request) (*common.Response, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("%w: %s transport %s is not connected", common.ErrTransport, t.name, t.id)
	}

	id, call := t.pending.Register()

	// a disconnect between the check above and Register would not sweep this call
	if !t.connected.Load() {
		t.pending.Fail(id, common.ErrConnectionLost)
		return nil, fmt.Errorf("%w: %s transport %s disconnected", common.ErrConnectionLost, t.name, t.id)
	}

	frame := codec.RequestFrame(req)
	frame.ID = id

	if err := t.writeFrame(frame); err != nil {
		t.pending.Fail(id, err)
		common.CountOutboundRequest("error")
		common.Stats.MarkFailure()
		return nil, fmt.Errorf("failed to send request %s %s: %w", req.Verb, req.Path, err)
	}

	waitCtx := ctx
	if timeout := t.config.RequestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	common.Stats.MarkOutbound()
	resp, err := call.Wait(waitCtx)
	if err != nil {
		common.CountOutboundRequest("error")
		common.Stats.MarkFailure()

		// the caller gave up, tell the peer to stop processing
		if waitCtx.Err() != nil && t.connected.Load() {
			if cerr := t.writeFrame(codec.CancelFrame(id)); cerr != nil {
				Logger.Debugf("Failed to send cancel for request ID %d: %v", id, cerr)
			}
		}
		return nil, err
	}

	common.CountOutboundRequest("ok")
	return resp, nil
}

func (t *duplexTransport) Disconnected() <-chan struct{} {
	return t.disconnected
}

func (t *duplexTransport) IsConnected() bool {
	return t.connected.Load()
}

func (t *duplexTransport) Name() string {
	return t.name
}

func (t *duplexTransport) Close() error {
	t.shutdown(errClosed)
	return nil
}

// String returns the name and the connection instance id
func (t *duplexTransport) String() string {
	return t.name + "/" + t.id
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// readFrames reads frames in a loop until the connection fails. Responses are
// handed to the pending table, requests are processed in worker goroutines.
func (t *duplexTransport) readFrames() {
	defer func() {
		// wait for all workers before reporting the transport as finished
		t.wg.Wait()
		Logger.Debugf("Reader of %s transport %s finished", t.name, t.id)
	}()

	for {
		data, err := t.conn.ReadMessage()
		if err != nil {
			t.shutdown(err)
			return
		}

		frame, err := codec.UnmarshalFrame(data, t.config.FrameLimit())
		if err != nil {
			// message boundaries are intact, only this frame is lost
			Logger.Errorf("Dropping invalid frame on %s transport %s: %v", t.name, t.id, err)
			continue
		}

		switch frame.Type {
		case codec.FrameTResponse:
			t.pending.Resolve(frame.ID, frame.Response())
		case codec.FrameTRequest:
			t.dispatch(frame.Request())
		case codec.FrameTCancel:
			if cancel, ok := t.inbound.Load(frame.ID); ok {
				Logger.Debugf("Peer cancelled request ID %d", frame.ID)
				cancel()
			}
		}
	}
}

// dispatch processes one inbound request in its own goroutine
func (t *duplexTransport) dispatch(req *common.Request) {
	ctx, cancel := context.WithCancel(t.ctx)
	t.inbound.Store(req.ID, cancel)
	t.wg.Add(1)

	go func() {
		defer func() {
			t.inbound.Delete(req.ID)
			cancel()
			t.wg.Done()
		}()

		// acquire the slot inside the worker so that the reader keeps resolving responses
		if t.workers != nil {
			select {
			case t.workers <- struct{}{}:
				defer func() { <-t.workers }()
			case <-ctx.Done():
				return
			}
		}

		start := time.Now()
		resp := t.handler.ProcessRequest(ctx, req)
		Logger.Debugf("Processed %s with request ID %d on %s took %s", req, req.ID, t.id, time.Since(start))

		if resp == nil || ctx.Err() != nil {
			return
		}

		resp.ID = req.ID
		err := t.writeFrame(codec.ResponseFrame(resp))
		if errors.Is(err, codec.ErrFrameTooLarge) || errors.Is(err, codec.ErrFieldTooLong) {
			fallback := common.NewTextResponse(500, err.Error())
			fallback.ID = req.ID
			err = t.writeFrame(codec.ResponseFrame(fallback))
		}
		if err != nil {
			Logger.Errorf("Failed to write response for request ID %d: %v", req.ID, err)
		}
	}()
}

// writeFrame encodes and writes a single frame, writes are serialized
func (t *duplexTransport) writeFrame(f codec.Frame) error {
	data, err := codec.MarshalFrame(f, t.config.FrameLimit())
	if err != nil {
		return err
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if timeout := t.config.WriteTimeout(); timeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %v", err)
		}
	}

	return t.conn.WriteMessage(data)
}

// shutdown tears down the connection exactly once: pending calls fail with
// common.ErrConnectionLost, inbound handlers are cancelled and the disconnect
// channel is closed.
func (t *duplexTransport) shutdown(cause error) {
	t.shutdownOnce.Do(func() {
		wasConnected := t.connected.Swap(false)
		t.cancel()

		if err := t.conn.Close(); err != nil {
			Logger.Debugf("Error closing %s transport %s: %v", t.name, t.id, err)
		}

		failed := t.pending.FailAll(fmt.Errorf("%w: %v", common.ErrConnectionLost, cause))

		switch {
		case errors.Is(cause, errClosed), errors.Is(cause, context.Canceled):
			Logger.Infof("Closed %s transport %s", t.name, t.id)
		case errors.Is(cause, io.EOF):
			Logger.Infof("Connection %s closed by peer", t.id)
		default:
			Logger.Warningf("Lost %s transport %s: %v (%d pending calls failed)", t.name, t.id, cause, failed)
		}

		if wasConnected {
			common.CountDisconnect(t.name)
		}
		close(t.disconnected)
	})
}
