package serializer

import (
	"errors"

	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/fxamacker/cbor/v2"
)

// NewCBORSerializer creates a new serializer using the CBOR binary format (RFC 8949).
// Struct fields are mapped using their cbor tags, falling back to the json tags.
func NewCBORSerializer() IRPCSerializer {
	return &cborSerializerImpl{}
}

// cborSerializerImpl implements the IRPCSerializer interface using cbor encoding
type cborSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (c cborSerializerImpl) Serialize(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (c cborSerializerImpl) Deserialize(b []byte, v any) error {
	if len(b) == 0 {
		return errors.New("empty cbor document")
	}
	return cbor.Unmarshal(b, v)
}

func (c cborSerializerImpl) ContentType() string {
	return common.ContentTypeCBOR
}

func (c cborSerializerImpl) Name() string {
	return "cbor"
}
