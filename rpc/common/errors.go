package common

import "errors"

// --------------------------------------------------------------------------
// Error Taxonomy
// --------------------------------------------------------------------------

// Per-request failures (ErrMalformedPayload, ErrUnroutablePath, ErrProcessorFault)
// never leave the router, they are converted into response status codes.
// Connection level failures are returned to callers of an outbound send.
var (
	// ErrMalformedPayload is returned if a body stream is missing or cannot be deserialized
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnroutablePath is used if no handler matches verb and path
	ErrUnroutablePath = errors.New("unroutable path")
	// ErrProcessorFault wraps failures of the injected processor
	ErrProcessorFault = errors.New("processor fault")
	// ErrConnectionLost is returned to all outstanding calls when the transport disconnects
	ErrConnectionLost = errors.New("connection lost")
	// ErrUnsupportedReconnect is returned if the connection cannot be re-established
	// (pipe connection or malformed endpoint identity). It is permanent.
	ErrUnsupportedReconnect = errors.New("unsupported reconnect")
	// ErrCredentialFailure is returned if no token could be acquired
	ErrCredentialFailure = errors.New("credential failure")
	// ErrTransport is returned when sending on a transport that is not connected
	ErrTransport = errors.New("transport error")
)
