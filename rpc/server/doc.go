// Package server implements the server side of a streaming connection: the request
// router that classifies inbound requests and the StreamingHandler that ties the
// router, the session registry and the reconnecting connection together.
//
// The package focuses on:
//   - Routing inbound requests to the application processor or to built-in
//     diagnostic endpoints
//   - Tracking conversations (sessions) seen on a connection
//   - Sending activities to the peer over the same connection
//   - Accepting websocket and pipe connections
//
// Key Components:
//
//   - Router: implements transport.RequestHandler. POST requests carry activities,
//     which are decoded, recorded in the session registry and handed to the
//     IProcessor together with their attachment streams. GET /api/version and
//     GET /api/stats are answered by the router itself, every other request is
//     answered with 404. Processor errors and panics become a 500 response.
//
//   - StreamingHandler: an http.Handler for websocket upgrades that can also
//     listen on a named pipe. Outbound activities are sent with SendActivity, the
//     underlying connection is re-established on demand if the peer supplied a
//     websocket service endpoint identity.
//
// Usage Example:
//
//	processor := server.ProcessorFunc(func(ctx context.Context, a *common.Activity, _ server.TurnCallback) (*common.InvokeResponse, error) {
//	  return &common.InvokeResponse{Status: 200}, nil
//	})
//
//	h, err := server.NewStreamingHandler(common.DefaultStreamConfig(), processor,
//	  server.WithCredentials(credentials.Static("token")),
//	)
//	if err != nil {
//	  log.Fatal(err)
//	}
//
//	http.Handle("/api/messages", h)
//	log.Fatal(http.ListenAndServe(":3978", nil))
//
// Status Codes:
//
//	400 is returned for an activity request without body, 500 for a body that
//	cannot be decoded, a failing or panicking processor and an unencodable result.
//	If the request is cancelled while the processor runs no response is sent.
//
// Thread Safety:
//
//	Router and StreamingHandler are safe for concurrent use. The processor is
//	called concurrently for activities of the same connection.
package server
