package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ValentinKolb/dStream/lib/credentials"
	"github.com/ValentinKolb/dStream/lib/session"
	"github.com/ValentinKolb/dStream/rpc/codec"
	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/ValentinKolb/dStream/rpc/serializer"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger(common.LoggerRouter)

// diagnosticHandler serves a built-in endpoint
type diagnosticHandler func(ctx context.Context, req *common.Request) *common.Response

// RouterConfig holds the collaborators of a Router. Only Sessions is required.
type RouterConfig struct {
	// UserAgent is reported by the version endpoint
	UserAgent string
	// Sessions receives every conversation seen on the activity path
	Sessions session.IRegistry
	// Recorder receives the service url of the first decoded activity (optional)
	Recorder IServiceURLRecorder
	// Credentials provides the token reported by the version endpoint (optional)
	Credentials credentials.IProvider
	// OnTurn is passed to the processor with every activity (optional)
	OnTurn TurnCallback
}

// Router is the server side entry point of a connection. POST requests carry
// activities for the processor, every other request is served by a small table of
// built-in diagnostic endpoints. Per-request failures never escape the router,
// they are answered with a status code.
type Router struct {
	processor   IProcessor
	config      RouterConfig
	diagnostics map[string]diagnosticHandler
}

// NewRouter creates a router that dispatches activities to processor
func NewRouter(processor IProcessor, config RouterConfig) *Router {
	if config.UserAgent == "" {
		config.UserAgent = common.DefaultUserAgent
	}
	if config.Sessions == nil {
		config.Sessions = session.NewRegistry()
	}

	r := &Router{
		processor: processor,
		config:    config,
	}
	r.diagnostics = map[string]diagnosticHandler{
		routeKey(common.VerbGet, common.PathVersion): r.handleVersion,
		routeKey(common.VerbGet, common.PathStats):   r.handleStats,
	}
	return r
}

// routeKey builds the lookup key of the diagnostic table
func routeKey(verb, path string) string {
	return strings.ToUpper(verb) + " " + strings.ToLower(strings.TrimRight(path, "/"))
}

// ProcessRequest implements transport.RequestHandler
func (r *Router) ProcessRequest(ctx context.Context, req *common.Request) *common.Response {
	start := time.Now()
	common.Stats.MarkInbound()

	resp := r.route(ctx, req)

	common.ObserveDispatch(start)
	if resp != nil {
		common.CountInboundRequest(req.Verb, resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError {
			common.Stats.MarkFailure()
		}
	}
	return resp
}

// route classifies the request and converts every panic into a 500 response
func (r *Router) route(ctx context.Context, req *common.Request) (resp *common.Response) {
	defer func() {
		if p := recover(); p != nil {
			Logger.Errorf("Recovered from panic while handling %s: %v", req, p)
			resp = common.NewTextResponse(http.StatusInternalServerError, fmt.Sprint(p))
		}
	}()

	if !strings.EqualFold(req.Verb, common.VerbPost) {
		if handler, ok := r.diagnostics[routeKey(req.Verb, req.Path)]; ok {
			return handler(ctx, req)
		}
		// unmatched custom paths are legitimate and answered without body
		Logger.Debugf("No handler for %s: %v", req, common.ErrUnroutablePath)
		return common.NewStatusResponse(http.StatusNotFound)
	}

	return r.handleActivity(ctx, req)
}

// handleActivity decodes the activity, updates the session registry and hands
// the activity to the processor
func (r *Router) handleActivity(ctx context.Context, req *common.Request) *common.Response {
	body, ok := req.Body()
	if !ok || len(body.Data) == 0 {
		err := fmt.Errorf("%w: request body is missing", common.ErrMalformedPayload)
		Logger.Warningf("Rejecting %s: %v", req, err)
		return common.NewTextResponse(http.StatusBadRequest, err.Error())
	}

	s := serializer.ByContentType(body.ContentType)

	var activity common.Activity
	attachments, err := codec.DecodeRequest(s, req, &activity)
	if err != nil {
		Logger.Warningf("Failed to decode activity of %s: %v", req, err)
		return common.NewTextResponse(http.StatusInternalServerError, err.Error())
	}

	if r.config.Recorder != nil {
		r.config.Recorder.RecordServiceURL(activity.ServiceURL)
	}

	conversationID := activity.ConversationID()
	if activity.IsEndOfConversation() {
		if r.config.Sessions.Forget(conversationID) {
			Logger.Infof("Conversation %s ended", conversationID)
		}
	} else if conversationID != "" && !r.config.Sessions.Has(conversationID) {
		r.config.Sessions.Touch(conversationID)
	}

	for _, a := range attachments {
		activity.Attachments = append(activity.Attachments, common.Attachment{
			ContentType: a.ContentType,
			Content:     a.Data,
		})
	}

	result, err := r.processor.ProcessActivity(ctx, &activity, r.config.OnTurn)

	// the peer gave up on this request or the connection is gone, nothing is sent
	if ctx.Err() != nil {
		Logger.Debugf("Dropping response of cancelled %s", req)
		return nil
	}

	if err != nil {
		err = fmt.Errorf("%w: %w", common.ErrProcessorFault, err)
		Logger.Errorf("Processing activity %s of conversation %s failed: %v", activity.ID, conversationID, err)
		return common.NewTextResponse(http.StatusInternalServerError, err.Error())
	}

	if result == nil {
		return common.NewStatusResponse(http.StatusOK)
	}

	resp, err := codec.EncodeResponse(s, result.Status, result.Body)
	if err != nil {
		Logger.Errorf("Failed to encode processor result: %v", err)
		return common.NewTextResponse(http.StatusInternalServerError, err.Error())
	}
	return resp
}

// --------------------------------------------------------------------------
// Diagnostic endpoints
// --------------------------------------------------------------------------

// handleVersion reports the user agent and the current token. Credential failures
// are reported as an empty token, never as an error status.
func (r *Router) handleVersion(ctx context.Context, _ *common.Request) *common.Response {
	token, err := credentials.Token(ctx, r.config.Credentials)
	if err != nil {
		Logger.Warningf("Version endpoint reports empty token: %v", err)
		token = ""
	}

	return r.encodeDiagnostic(common.VersionInfo{
		UserAgent: r.config.UserAgent,
		Token:     token,
	})
}

// handleStats reports the in-process statistics
func (r *Router) handleStats(_ context.Context, _ *common.Request) *common.Response {
	return r.encodeDiagnostic(map[string]any{
		"sessions": r.config.Sessions.Len(),
		"metrics":  common.Stats.Snapshot(),
	})
}

// encodeDiagnostic encodes body with the canonical serializer
func (r *Router) encodeDiagnostic(body any) *common.Response {
	resp, err := codec.EncodeResponse(serializer.Canonical(), http.StatusOK, body)
	if err != nil {
		Logger.Errorf("Failed to encode diagnostic response: %v", err)
		return common.NewTextResponse(http.StatusInternalServerError, err.Error())
	}
	return resp
}
