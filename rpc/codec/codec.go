package codec

import (
	"fmt"

	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/ValentinKolb/dStream/rpc/serializer"
)

// EncodeRequest creates a request whose first stream is the serialized body.
// The attachments are appended unchanged and in order. A nil body is not allowed
// since stream 0 of a request always carries the structured payload.
func EncodeRequest(s serializer.IRPCSerializer, verb, path string, body any, attachments ...common.ContentStream) (*common.Request, error) {
	if body == nil {
		return nil, fmt.Errorf("codec: request %s %s has no body", verb, path)
	}

	streams, err := encodeStreams(s, body, attachments)
	if err != nil {
		return nil, err
	}

	return &common.Request{
		Verb:    verb,
		Path:    path,
		Streams: streams,
	}, nil
}

// EncodeResponse creates a response with the given status code.
// If body is nil the response has no body stream and attachments are not allowed.
func EncodeResponse(s serializer.IRPCSerializer, status int, body any, attachments ...common.ContentStream) (*common.Response, error) {
	if body == nil {
		if len(attachments) > 0 {
			return nil, fmt.Errorf("codec: response attachments require a body")
		}
		return common.NewStatusResponse(status), nil
	}

	streams, err := encodeStreams(s, body, attachments)
	if err != nil {
		return nil, err
	}

	return &common.Response{
		StatusCode: status,
		Streams:    streams,
	}, nil
}

// DecodeStreams deserializes stream 0 into target and returns the remaining
// streams without interpreting them. It fails with common.ErrMalformedPayload
// if stream 0 is absent or cannot be deserialized.
func DecodeStreams(s serializer.IRPCSerializer, streams []common.ContentStream, target any) ([]common.ContentStream, error) {
	if len(streams) == 0 {
		return nil, fmt.Errorf("%w: body stream is missing", common.ErrMalformedPayload)
	}

	if err := s.Deserialize(streams[0].Data, target); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedPayload, err)
	}

	if len(streams) == 1 {
		return nil, nil
	}
	return streams[1:], nil
}

// DecodeRequest is DecodeStreams for the streams of a request
func DecodeRequest(s serializer.IRPCSerializer, req *common.Request, target any) ([]common.ContentStream, error) {
	return DecodeStreams(s, req.Streams, target)
}

// DecodeResponse is DecodeStreams for the streams of a response
func DecodeResponse(s serializer.IRPCSerializer, resp *common.Response, target any) ([]common.ContentStream, error) {
	return DecodeStreams(s, resp.Streams, target)
}

// encodeStreams serializes the body into stream 0 and appends the attachments
func encodeStreams(s serializer.IRPCSerializer, body any, attachments []common.ContentStream) ([]common.ContentStream, error) {
	data, err := s.Serialize(body)
	if err != nil {
		return nil, fmt.Errorf("codec: failed to serialize body: %w", err)
	}

	streams := make([]common.ContentStream, 0, 1+len(attachments))
	streams = append(streams, common.ContentStream{ContentType: s.ContentType(), Data: data})
	for _, a := range attachments {
		if a.ContentType == "" {
			a.ContentType = common.ContentTypeBinary
		}
		streams = append(streams, a)
	}
	return streams, nil
}
