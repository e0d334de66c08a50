package serializer

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/ValentinKolb/dStream/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// This is the canonical serializer of dStream.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (j jsonSerializerImpl) Deserialize(b []byte, v any) error {
	if len(bytes.TrimSpace(b)) == 0 {
		return errors.New("empty json document")
	}
	return json.Unmarshal(b, v)
}

func (j jsonSerializerImpl) ContentType() string {
	return common.ContentTypeJSON
}

func (j jsonSerializerImpl) Name() string {
	return "json"
}
