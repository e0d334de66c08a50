// Package pending correlates outbound requests with their responses.
//
// Every outbound request registers a Call in the Table and receives a unique id
// that is written into the request frame. The reader of the connection resolves
// the call when the response frame with the same id arrives. Responses may
// arrive in any order, they are matched by id only.
//
// A call completes exactly once: with the response, with the error passed to
// Fail/FailAll (e.g. common.ErrConnectionLost on disconnect), or with the
// context error of the waiting caller. Late responses for calls that already
// completed are logged and dropped.
//
// Thread Safety:
//
//	The Table is backed by a concurrent map and an atomic id counter and needs
//	no external locking.
package pending
