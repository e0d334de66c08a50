// Package transport defines the contract of a duplex streaming connection.
// A transport carries requests in both directions over one physical connection:
// inbound requests are handed to a RequestHandler, outbound requests are sent with
// Send and matched with their response by id.
//
// The package focuses on:
//   - A single capability surface for all connection variants (websocket, pipe)
//   - Exactly-once disconnect notification
//   - Message oriented connections (IMessageConn) that the shared base
//     implementation builds on
//
// Key Components:
//
//   - ITransport: one physical connection in the client and server role at once.
//
//   - RequestHandler: callback for inbound requests, usually the request router.
//
//   - IDialer: creates client side transports, used to re-establish dropped
//     socket connections.
//
//   - IMessageConn: a connection that preserves message boundaries. The websocket
//     package maps one frame to one binary message, the pipe package adds a length
//     prefix on top of a byte stream.
package transport
