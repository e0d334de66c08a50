// Package connection implements the reconnect controller. A Connection owns exactly
// one transport at a time and replaces it when the underlying socket drops.
//
// The connection does not reconnect eagerly. A disconnect only marks it as not
// connected, the next outbound Send re-establishes the transport:
//
//  1. The recorded service endpoint identity (urn:<channel>:<protocol>:<host>) is
//     parsed. Only the websocket protocol can reconnect, every other protocol
//     (e.g. pipe) or a malformed identity fails with common.ErrUnsupportedReconnect.
//     This failure is permanent for the connection until a new transport is attached.
//  2. The authorization header is the one passed by the caller or "Bearer <token>"
//     with a token from the credential provider. Credential failures abort.
//  3. A new transport is dialed to wss://<host>/api/reconnect, started with the
//     connection's request handler and swapped in atomically. The watcher of the
//     old transport is detached.
//
// Reconnect attempts are throttled by a token bucket limiter.
//
// Thread Safety:
//
//	Send may be called concurrently. Concurrent callers that observe a disconnect
//	share a single reconnect attempt. A send either uses the old or the new
//	transport, never a partially replaced one.
package connection
