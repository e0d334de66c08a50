// Package rpc provides a duplex streaming framework in which both ends of one
// connection issue http-like requests to each other and receive correlated
// responses asynchronously.
//
// The package is organized into several subpackages:
//
//   - common: Request and response model, activities, configuration, errors,
//     logging and metrics shared by all other packages.
//
//   - serializer: Structured payload serialization (JSON, CBOR).
//
//   - codec: The binary frame format and the mapping of bodies and attachments
//     to content streams.
//
//   - pending: The table of outbound calls waiting for their response.
//
//   - transport: The duplex transport contract with a shared base implementation
//     and websocket and pipe variants.
//
//   - connection: Owns the current transport and re-establishes dropped socket
//     connections.
//
//   - server: The request router and the StreamingHandler entry point.
package rpc
