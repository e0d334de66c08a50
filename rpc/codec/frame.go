package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/ValentinKolb/dStream/rpc/common"
)

// FrameType is the first byte of every frame on the wire
type FrameType uint8

const (
	FrameTUnknown  FrameType = iota
	FrameTRequest            // A request, answered by a response with the same id
	FrameTResponse           // The response to a request
	FrameTCancel             // Cancels the processing of the inbound request with the same id
)

// String returns the string representation of a FrameType.
func (t FrameType) String() string {
	switch t {
	case FrameTRequest:
		return "request"
	case FrameTResponse:
		return "response"
	case FrameTCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

var (
	ErrShortFrame       = errors.New("codec: short frame")
	ErrFrameTooLarge    = errors.New("codec: frame too large")
	ErrUnknownFrameType = errors.New("codec: unknown frame type")
	ErrFieldTooLong     = errors.New("codec: field too long")
)

// Frame is one complete message on the wire.
// Which fields are used depends on the type of the frame.
type Frame struct {
	Type       FrameType
	ID         uint64
	StatusCode int    // Used for: response
	Verb       string // Used for: request
	Path       string // Used for: request
	Streams    []common.ContentStream
}

// fixedHeaderLen is type (1) + id (8) + status (4)
const fixedHeaderLen = 1 + 8 + 4

// RequestFrame creates the frame for a request
func RequestFrame(req *common.Request) Frame {
	return Frame{Type: FrameTRequest, ID: req.ID, Verb: req.Verb, Path: req.Path, Streams: req.Streams}
}

// ResponseFrame creates the frame for a response
func ResponseFrame(resp *common.Response) Frame {
	return Frame{Type: FrameTResponse, ID: resp.ID, StatusCode: resp.StatusCode, Streams: resp.Streams}
}

// CancelFrame creates the frame that cancels the request with the given id
func CancelFrame(id uint64) Frame {
	return Frame{Type: FrameTCancel, ID: id}
}

// Request converts a request frame back into a request
func (f Frame) Request() *common.Request {
	return &common.Request{ID: f.ID, Verb: f.Verb, Path: f.Path, Streams: f.Streams}
}

// Response converts a response frame back into a response
func (f Frame) Response() *common.Response {
	return &common.Response{ID: f.ID, StatusCode: f.StatusCode, Streams: f.Streams}
}

// SizeBytes returns the number of bytes needed to encode the frame
func (f Frame) SizeBytes() int {
	size := fixedHeaderLen
	size += 2 + len(f.Verb)
	size += 2 + len(f.Path)
	size += 2
	for _, s := range f.Streams {
		size += 2 + len(s.ContentType) + 4 + len(s.Data)
	}
	return size
}

// MarshalFrame encodes a frame with the format (all integers big endian):
//   - 1 byte: frame type
//   - 8 bytes: id (uint64)
//   - 4 bytes: status code (uint32, responses only)
//   - 2 bytes + N: verb
//   - 2 bytes + N: path
//   - 2 bytes: stream count
//   - per stream: 2 bytes + N content type, 4 bytes + N data
func MarshalFrame(f Frame, maxBytes int) ([]byte, error) {
	if f.Type == FrameTUnknown || f.Type > FrameTCancel {
		return nil, ErrUnknownFrameType
	}
	if len(f.Verb) > math.MaxUint16 || len(f.Path) > math.MaxUint16 || len(f.Streams) > math.MaxUint16 {
		return nil, ErrFieldTooLong
	}
	if f.StatusCode < 0 || int64(f.StatusCode) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: status code %d", ErrFieldTooLong, f.StatusCode)
	}

	size := f.SizeBytes()
	if maxBytes > 0 && size > maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, size, maxBytes)
	}

	buf := make([]byte, size)
	buf[0] = byte(f.Type)
	binary.BigEndian.PutUint64(buf[1:9], f.ID)
	binary.BigEndian.PutUint32(buf[9:13], uint32(f.StatusCode))
	pos := fixedHeaderLen

	pos = putString(buf, pos, f.Verb)
	pos = putString(buf, pos, f.Path)

	binary.BigEndian.PutUint16(buf[pos:pos+2], uint16(len(f.Streams)))
	pos += 2

	for _, s := range f.Streams {
		if len(s.ContentType) > math.MaxUint16 || uint64(len(s.Data)) > math.MaxUint32 {
			return nil, ErrFieldTooLong
		}
		pos = putString(buf, pos, s.ContentType)
		binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(s.Data)))
		pos += 4
		pos += copy(buf[pos:], s.Data)
	}

	return buf, nil
}

// UnmarshalFrame decodes a frame encoded with MarshalFrame.
// The returned stream data does not alias b.
func UnmarshalFrame(b []byte, maxBytes int) (Frame, error) {
	if maxBytes > 0 && len(b) > maxBytes {
		return Frame{}, fmt.Errorf("%w: %d > %d bytes", ErrFrameTooLarge, len(b), maxBytes)
	}
	if len(b) < fixedHeaderLen {
		return Frame{}, ErrShortFrame
	}

	f := Frame{
		Type:       FrameType(b[0]),
		ID:         binary.BigEndian.Uint64(b[1:9]),
		StatusCode: int(binary.BigEndian.Uint32(b[9:13])),
	}
	if f.Type == FrameTUnknown || f.Type > FrameTCancel {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnknownFrameType, b[0])
	}

	pos := fixedHeaderLen
	var err error

	if f.Verb, pos, err = readString(b, pos); err != nil {
		return Frame{}, err
	}
	if f.Path, pos, err = readString(b, pos); err != nil {
		return Frame{}, err
	}

	if pos+2 > len(b) {
		return Frame{}, ErrShortFrame
	}
	count := int(binary.BigEndian.Uint16(b[pos : pos+2]))
	pos += 2

	if count > 0 {
		f.Streams = make([]common.ContentStream, 0, count)
	}
	for i := 0; i < count; i++ {
		var ct string
		if ct, pos, err = readString(b, pos); err != nil {
			return Frame{}, err
		}
		if pos+4 > len(b) {
			return Frame{}, ErrShortFrame
		}
		dataLen := int(binary.BigEndian.Uint32(b[pos : pos+4]))
		pos += 4
		if dataLen < 0 || pos+dataLen > len(b) {
			return Frame{}, ErrShortFrame
		}
		data := make([]byte, dataLen)
		copy(data, b[pos:pos+dataLen])
		pos += dataLen

		f.Streams = append(f.Streams, common.ContentStream{ContentType: ct, Data: data})
	}

	if pos != len(b) {
		return Frame{}, fmt.Errorf("codec: %d bytes of trailing data", len(b)-pos)
	}

	return f, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// putString writes a uint16 length prefixed string and returns the new position
func putString(buf []byte, pos int, s string) int {
	binary.BigEndian.PutUint16(buf[pos:pos+2], uint16(len(s)))
	pos += 2
	return pos + copy(buf[pos:], s)
}

// readString reads a uint16 length prefixed string and returns the new position
func readString(b []byte, pos int) (string, int, error) {
	if pos+2 > len(b) {
		return "", 0, ErrShortFrame
	}
	n := int(binary.BigEndian.Uint16(b[pos : pos+2]))
	pos += 2
	if pos+n > len(b) {
		return "", 0, ErrShortFrame
	}
	return string(b[pos : pos+n]), pos + n, nil
}
