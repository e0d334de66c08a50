// Package base provides the foundation of all duplex transports, implementing the
// request/response multiplexing independent of the specific medium (websocket,
// pipe, etc.). Variants only provide a transport.IMessageConn.
//
// The package focuses on:
//   - One reader goroutine per connection that distributes incoming frames
//   - Concurrent processing of inbound requests, optionally bounded per connection
//   - Response correlation through the pending call table
//   - Propagation of cancelled outbound calls to the peer (cancel frames)
//   - A clean, exactly-once disconnect
//
// Key Components:
//
//   - duplexTransport: implements transport.ITransport. Every inbound request is
//     processed in its own goroutine with a context that is cancelled when the
//     peer sends a cancel frame or the connection is lost. Outbound requests are
//     registered in a pending.Table, written as request frames and completed by
//     the reader when the response frame arrives.
//
//   - streamConn: adapts a byte stream (unix socket, named pipe) to
//     transport.IMessageConn by prefixing every message with its length.
//
// Disconnect Handling:
//
//	A read error or Close marks the transport as disconnected, cancels all inbound
//	handler contexts, fails every pending call with common.ErrConnectionLost and
//	closes the channel returned by Disconnected. Send on a disconnected transport
//	fails immediately with common.ErrTransport.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes to the connection are serialized
//	with a mutex, the pending table and the inbound cancel map are concurrent maps.
package base
