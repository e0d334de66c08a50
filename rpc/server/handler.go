package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ValentinKolb/dStream/lib/credentials"
	"github.com/ValentinKolb/dStream/lib/session"
	"github.com/ValentinKolb/dStream/rpc/codec"
	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/ValentinKolb/dStream/rpc/connection"
	"github.com/ValentinKolb/dStream/rpc/serializer"
	"github.com/ValentinKolb/dStream/rpc/transport"
	"github.com/ValentinKolb/dStream/rpc/transport/pipe"
	"github.com/ValentinKolb/dStream/rpc/transport/websocket"
)

// handlerOptions collects the optional collaborators of a StreamingHandler
type handlerOptions struct {
	onTurn      TurnCallback
	credentials credentials.IProvider
	sessions    session.IRegistry
	serializer  serializer.IRPCSerializer
	dialer      transport.IDialer
	now         func() time.Time
}

// Option configures a StreamingHandler
type Option func(*handlerOptions)

// WithTurnCallback sets the callback passed to the processor with every activity
func WithTurnCallback(onTurn TurnCallback) Option {
	return func(o *handlerOptions) { o.onTurn = onTurn }
}

// WithCredentials sets the provider of reconnect and version tokens
func WithCredentials(p credentials.IProvider) Option {
	return func(o *handlerOptions) { o.credentials = p }
}

// WithSessionRegistry shares a session registry between handlers
func WithSessionRegistry(r session.IRegistry) Option {
	return func(o *handlerOptions) { o.sessions = r }
}

// WithSerializer overrides the serializer of outbound activities
func WithSerializer(s serializer.IRPCSerializer) Option {
	return func(o *handlerOptions) { o.serializer = s }
}

// WithDialer overrides the dialer used to re-establish socket connections
func WithDialer(d transport.IDialer) Option {
	return func(o *handlerOptions) { o.dialer = d }
}

// WithClock sets the clock of the session registry created by the handler
func WithClock(now func() time.Time) Option {
	return func(o *handlerOptions) { o.now = now }
}

// StreamingHandler ties a Router, a Connection and a session registry together.
// It accepts websocket and pipe connections, routes inbound requests to the
// processor and sends outbound activities over the current connection.
type StreamingHandler struct {
	config     common.StreamConfig
	router     *Router
	conn       *connection.Connection
	sessions   session.IRegistry
	serializer serializer.IRPCSerializer
}

// NewStreamingHandler creates a handler for config that dispatches activities to processor
func NewStreamingHandler(config common.StreamConfig, processor IProcessor, opts ...Option) (*StreamingHandler, error) {
	if processor == nil {
		return nil, fmt.Errorf("no processor provided")
	}

	o := handlerOptions{
		credentials: credentials.None(),
		dialer:      websocket.NewDialer(config.Transport),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.serializer == nil {
		s, err := serializer.ByName(config.Serializer)
		if err != nil {
			return nil, err
		}
		o.serializer = s
	}
	if o.sessions == nil {
		var registryOpts []session.Option
		if o.now != nil {
			registryOpts = append(registryOpts, session.WithClock(o.now))
		}
		o.sessions = session.NewRegistry(registryOpts...)
	}

	h := &StreamingHandler{
		config:     config,
		sessions:   o.sessions,
		serializer: o.serializer,
	}

	h.router = NewRouter(processor, RouterConfig{
		UserAgent:   config.UserAgent,
		Sessions:    o.sessions,
		Credentials: o.credentials,
		OnTurn:      o.onTurn,
	})
	h.conn = connection.NewConnection(h.router,
		connection.WithDialer(o.dialer),
		connection.WithCredentials(o.credentials),
		connection.WithReconnectLimit(config.Reconnect),
	)
	h.router.config.Recorder = h.conn

	Logger.Infof("Created streaming handler")
	Logger.Debugf("%s", config.String())

	return h, nil
}

// --------------------------------------------------------------------------
// Attach points
// --------------------------------------------------------------------------

// ServeHTTP upgrades the request to a websocket connection and serves it until the
// connection is closed. Requests without upgrade are rejected.
func (h *StreamingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsUpgradeRequest(r) {
		http.Error(w, "websocket upgrade required", http.StatusUpgradeRequired)
		return
	}

	t, err := websocket.Accept(w, r, h.config.Transport)
	if err != nil {
		Logger.Errorf("%v", err)
		return
	}

	// the request context ends when ServeHTTP returns, so block until the connection is gone
	if err := h.Attach(r.Context(), t); err != nil {
		Logger.Errorf("Failed to attach websocket connection: %v", err)
		t.Close()
		return
	}
	<-t.Disconnected()
}

// ListenPipe serves clients of the named pipe one after another until ctx is done
func (h *StreamingHandler) ListenPipe(ctx context.Context, name string) error {
	l, err := pipe.Listen(name, h.config.Transport)
	if err != nil {
		return err
	}
	defer l.Close()

	for {
		t, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := h.Attach(ctx, t); err != nil {
			Logger.Errorf("Failed to attach pipe connection: %v", err)
			t.Close()
			continue
		}

		select {
		case <-t.Disconnected():
			Logger.Infof("Pipe client disconnected, waiting for the next one")
		case <-ctx.Done():
			return nil
		}
	}
}

// Attach makes t the current transport of the handler and starts it. A previously
// attached transport is closed, a handler serves one peer at a time.
func (h *StreamingHandler) Attach(ctx context.Context, t transport.ITransport) error {
	return h.conn.Attach(ctx, t)
}

// IsConnected reports whether the handler currently has a usable connection
func (h *StreamingHandler) IsConnected() bool {
	return h.conn.IsConnected()
}

// Close closes the current connection
func (h *StreamingHandler) Close() error {
	return h.conn.Close()
}

// --------------------------------------------------------------------------
// Outbound
// --------------------------------------------------------------------------

// SendActivity posts the activity to its conversation and returns the id assigned by the peer
func (h *StreamingHandler) SendActivity(ctx context.Context, activity *common.Activity, attachments ...common.ContentStream) (*common.ResourceResponse, error) {
	conversationID := activity.ConversationID()
	if conversationID == "" {
		return nil, fmt.Errorf("activity has no conversation id")
	}

	req, err := codec.EncodeRequest(h.serializer, common.VerbPost, common.ActivitiesPath(conversationID, activity.ReplyToID), activity, attachments...)
	if err != nil {
		return nil, err
	}

	resp, err := h.SendRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		body, _ := resp.Body()
		return nil, fmt.Errorf("peer rejected activity with status %d: %s", resp.StatusCode, body.Data)
	}

	var rr common.ResourceResponse
	if _, ok := resp.Body(); !ok {
		return &rr, nil
	}
	if _, err := codec.DecodeStreams(serializer.ByContentType(resp.Streams[0].ContentType), resp.Streams, &rr); err != nil {
		return nil, err
	}
	return &rr, nil
}

// SendRequest sends a raw request over the current connection, reconnecting first if needed
func (h *StreamingHandler) SendRequest(ctx context.Context, req *common.Request) (*common.Response, error) {
	return h.conn.Send(ctx, req, "")
}

// SendRequestWithAuth is SendRequest with an explicit authorization header for a reconnect
func (h *StreamingHandler) SendRequestWithAuth(ctx context.Context, req *common.Request, authHeader string) (*common.Response, error) {
	return h.conn.Send(ctx, req, authHeader)
}

// --------------------------------------------------------------------------
// Sessions
// --------------------------------------------------------------------------

// HasConversation reports whether the conversation is known to this handler
func (h *StreamingHandler) HasConversation(conversationID string) bool {
	return h.sessions.Has(conversationID)
}

// ConversationAddedTime returns the time the conversation was first seen
func (h *StreamingHandler) ConversationAddedTime(conversationID string) (time.Time, bool) {
	return h.sessions.LastSeen(conversationID)
}

// ForgetConversation removes the conversation from the registry
func (h *StreamingHandler) ForgetConversation(conversationID string) bool {
	return h.sessions.Forget(conversationID)
}

// ServiceURL returns the recorded service endpoint identity
func (h *StreamingHandler) ServiceURL() string {
	return h.conn.ServiceURL()
}
