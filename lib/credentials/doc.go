// Package credentials defines the credential provider capability. Token
// acquisition itself is outside of dStream, a provider is consulted for the
// authorization header of reconnect handshakes and for the token reported by the
// version diagnostic endpoint.
package credentials
