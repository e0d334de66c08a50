// Package session implements the session registry: a mapping from a logical
// session (conversation) id to the time it was first seen.
//
// The registry is authoritative for which sessions are known. It is not tied to
// a connection and survives reconnects. Sessions enter the registry on the first
// inbound request that references them and leave it on an explicit Forget (e.g.
// an end-of-conversation activity) or an explicit EvictBefore sweep. The registry
// itself imposes no expiry policy.
//
// Touch is insert-or-ignore: touching a known session never changes its timestamp.
//
// Thread Safety:
//
//	Has, LastSeen, Len and Range are lock free reads on a concurrent map. Touch,
//	Forget and EvictBefore are serialized with a mutex that also guards the age
//	index used for eviction.
package session
