// Package codec implements the frame codec of dStream. It converts logical
// requests and responses into an ordered set of content streams and encodes
// one frame into the bytes of a single transport message.
//
// Stream layout:
//
//   - Stream 0 is the serialized structured object (activity, invoke response, ...),
//     tagged with the content type of the serializer that produced it.
//   - Streams 1..N are raw attachments with their own content type. They are
//     passed through without being interpreted.
//
// Wire format (one frame per transport message, integers big endian):
//
//	+------+----+--------+------+------+-------+-----------------------------+
//	| type | id | status | verb | path | count | count x (ctype, data)       |
//	|  1   | 8  |   4    | 2+N  | 2+N  |   2   | 2+N content type, 4+N data  |
//	+------+----+--------+------+------+-------+-----------------------------+
//
// Frames larger than the configured limit are rejected on both encode and decode.
package codec
