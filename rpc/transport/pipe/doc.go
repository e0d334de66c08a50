// Package pipe implements the pipe based transport variant for local inter-process
// communication. On Unix systems a pipe is a Unix domain socket, on Windows a named
// pipe (\\.\pipe\<name>) opened with github.com/Microsoft/go-winio.
//
// Frames are written with a 4 byte length prefix (see base.NewStreamConn). Pipe
// connections cannot be re-established by the connecting peer, a lost pipe
// connection is final.
//
// Key Components:
//
//   - Listen/Listener: accepts pipe clients, each connection becomes a transport.
//
//   - Dial: connects to a listening pipe.
//
//   - Path: maps a pipe name to the platform specific address.
package pipe
