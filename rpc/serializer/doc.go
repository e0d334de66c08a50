// Package serializer provides structured payload serialization for the dStream
// frame codec. It defines a common interface and multiple implementations for
// serializing the body stream (stream 0) of requests and responses.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Tagging every serialized stream with a content type
//   - Keeping a single canonical format (JSON) for interoperability
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: The canonical implementation using JSON encoding.
//     Unknown activity fields survive a round trip (see common.Activity).
//
//   - cborSerializerImpl: Implementation using CBOR (fxamacker/cbor). Produces
//     smaller payloads for binary heavy activities. Struct fields fall back to
//     their json tags, so the same types can be used with both serializers.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewJSONSerializer()
//	data, err := s.Serialize(activity)
//	// ... send data tagged with s.ContentType() ...
//	var received common.Activity
//	err = s.Deserialize(receivedData, &received)
package serializer
