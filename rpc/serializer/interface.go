package serializer

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dStream/rpc/common"
)

// IRPCSerializer is the interface for all structured payload serializers.
// The serializer is used for stream 0 of every frame, its content type is
// sent along with the serialized bytes.
type IRPCSerializer interface {
	// Serialize serializes a value into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(v any) ([]byte, error)
	// Deserialize deserializes a byte array into the value pointed to by v
	// It returns an error if any
	Deserialize(b []byte, v any) error
	// ContentType returns the content type tag written next to serialized streams
	ContentType() string
	// Name returns the short name of the serializer (e.g. "json")
	Name() string
}

// ByName returns the serializer with the given short name
func ByName(name string) (IRPCSerializer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return NewJSONSerializer(), nil
	case "cbor":
		return NewCBORSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s (expected one of: json, cbor)", name)
	}
}

// Canonical returns the serializer used when nothing else is configured
func Canonical() IRPCSerializer {
	return NewJSONSerializer()
}

// ByContentType returns the serializer for the content type tag of a stream.
// Unknown or empty tags map to the canonical serializer.
func ByContentType(contentType string) IRPCSerializer {
	mediaType, _, _ := strings.Cut(contentType, ";")
	if strings.EqualFold(strings.TrimSpace(mediaType), common.ContentTypeCBOR) {
		return NewCBORSerializer()
	}
	return Canonical()
}
