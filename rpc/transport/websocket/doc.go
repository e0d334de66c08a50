// Package websocket implements the socket based transport variant on top of
// github.com/gorilla/websocket. Every frame is sent as one binary websocket
// message, the multiplexing itself is provided by the base package.
//
// Key Components:
//
//   - Accept: upgrades an inbound HTTP request and returns the (not yet started)
//     transport for the new connection.
//
//   - Dialer: opens a client connection to a ws:// or wss:// url. It implements
//     transport.IDialer and is used to re-establish dropped connections.
package websocket
