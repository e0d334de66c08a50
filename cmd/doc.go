// Package cmd implements the command-line interface of dStream. It provides a
// small command structure for running a streaming endpoint and talking to one.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a streaming endpoint (websocket, optional pipe, metrics)
//   - send: Connects to an endpoint and posts one message activity
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See dstream -help for a list of all commands.
package cmd
