package connection

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dStream/rpc/common"
)

// ReconnectProtocol is the only protocol segment for which a connection can be re-established
const ReconnectProtocol = "websocket"

// EndpointIdentity is the parsed form of a service endpoint identity
// "urn:<channel>:<protocol>:<host>"
type EndpointIdentity struct {
	Channel  string
	Protocol string
	Host     string
}

// ParseEndpointIdentity parses a service endpoint identity. The value must consist of
// exactly four non-empty colon separated segments, the first one being "urn".
// Errors match common.ErrUnsupportedReconnect.
func ParseEndpointIdentity(s string) (EndpointIdentity, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return EndpointIdentity{}, fmt.Errorf("%w: endpoint identity %q must have the form urn:<channel>:<protocol>:<host>", common.ErrUnsupportedReconnect, s)
	}
	if !strings.EqualFold(parts[0], "urn") {
		return EndpointIdentity{}, fmt.Errorf("%w: endpoint identity %q does not start with urn", common.ErrUnsupportedReconnect, s)
	}
	for _, p := range parts[1:] {
		if p == "" {
			return EndpointIdentity{}, fmt.Errorf("%w: endpoint identity %q has an empty segment", common.ErrUnsupportedReconnect, s)
		}
	}

	return EndpointIdentity{
		Channel:  parts[1],
		Protocol: parts[2],
		Host:     parts[3],
	}, nil
}

// Reconnectable reports whether a connection to this endpoint can be re-established
func (e EndpointIdentity) Reconnectable() bool {
	return strings.EqualFold(e.Protocol, ReconnectProtocol)
}

// ReconnectURL returns the url used to re-establish the connection
func (e EndpointIdentity) ReconnectURL() string {
	return "wss://" + e.Host + "/" + common.PathReconnect
}

// String returns the identity in its urn form
func (e EndpointIdentity) String() string {
	return "urn:" + e.Channel + ":" + e.Protocol + ":" + e.Host
}
