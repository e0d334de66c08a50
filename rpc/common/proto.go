package common

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// --------------------------------------------------------------------------
// Frame Structures
// --------------------------------------------------------------------------

// ContentStream is one stream of a frame. Streams are opaque to the transport,
// only the content type tag travels with the raw bytes.
type ContentStream struct {
	ContentType string
	Data        []byte
}

// Request is a single request travelling in either direction of a connection.
// Streams[0] carries the structured body, Streams[1:] are attachments.
type Request struct {
	// ID is the correlation id assigned by the sending side. It is only unique
	// per connection and per direction.
	ID      uint64
	Verb    string
	Path    string
	Streams []ContentStream
}

// Body returns the first stream of the request or false if there is none
func (r *Request) Body() (ContentStream, bool) {
	if r == nil || len(r.Streams) == 0 {
		return ContentStream{}, false
	}
	return r.Streams[0], true
}

// Attachments returns all streams after the body stream
func (r *Request) Attachments() []ContentStream {
	if r == nil || len(r.Streams) < 2 {
		return nil
	}
	return r.Streams[1:]
}

// String returns a short description of the request used for logging
func (r *Request) String() string {
	return fmt.Sprintf("%s %s (id=%d, streams=%d)", r.Verb, r.Path, r.ID, len(r.Streams))
}

// Response is the answer to a Request with the same ID.
// A response carries at most one structured body in Streams[0].
type Response struct {
	ID         uint64
	StatusCode int
	Streams    []ContentStream
}

// Body returns the structured body of the response or false if there is none
func (r *Response) Body() (ContentStream, bool) {
	if r == nil || len(r.Streams) == 0 {
		return ContentStream{}, false
	}
	return r.Streams[0], true
}

// IsSuccess reports whether the status code is in the 2xx range
func (r *Response) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// NewStatusResponse creates a response without a body
func NewStatusResponse(status int) *Response {
	return &Response{StatusCode: status}
}

// NewTextResponse creates a response with a plain text body
func NewTextResponse(status int, text string) *Response {
	return &Response{
		StatusCode: status,
		Streams: []ContentStream{{
			ContentType: ContentTypeText,
			Data:        []byte(text),
		}},
	}
}

// --------------------------------------------------------------------------
// Verbs, Paths and Content Types
// --------------------------------------------------------------------------

const (
	VerbGet    = http.MethodGet
	VerbPost   = http.MethodPost
	VerbPut    = http.MethodPut
	VerbDelete = http.MethodDelete
)

const (
	PathVersion   = "/api/version"
	PathStats     = "/api/stats"
	PathMessages  = "/api/messages"
	PathReconnect = "api/reconnect"
)

const (
	ContentTypeJSON   = "application/json; charset=utf-8"
	ContentTypeCBOR   = "application/cbor"
	ContentTypeText   = "text/plain; charset=utf-8"
	ContentTypeBinary = "application/octet-stream"
)

// ActivitiesPath returns the path used to post an activity into a conversation.
// If replyToID is empty the activity is appended to the conversation.
func ActivitiesPath(conversationID, replyToID string) string {
	if replyToID == "" {
		return fmt.Sprintf("/v3/conversations/%s/activities", conversationID)
	}
	return fmt.Sprintf("/v3/conversations/%s/activities/%s", conversationID, replyToID)
}

// --------------------------------------------------------------------------
// Activity (application payload)
// --------------------------------------------------------------------------

// ActivityType is the type of an activity. The router only interprets
// ActivityTypeEndOfConversation; everything else is passed to the processor.
type ActivityType string

const (
	ActivityTypeMessage            ActivityType = "message"
	ActivityTypeEvent              ActivityType = "event"
	ActivityTypeInvoke             ActivityType = "invoke"
	ActivityTypeTyping             ActivityType = "typing"
	ActivityTypeConversationUpdate ActivityType = "conversationUpdate"
	ActivityTypeEndOfConversation  ActivityType = "endOfConversation"
)

// ConversationAccount identifies the conversation (session) an activity belongs to
type ConversationAccount struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	IsGroup bool   `json:"isGroup,omitempty"`
}

// ChannelAccount identifies a participant of a conversation
type ChannelAccount struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

// Attachment is a file or card attached to an activity.
// Attachments received as separate content streams carry their raw bytes in Content.
type Attachment struct {
	ContentType string `json:"contentType"`
	ContentURL  string `json:"contentUrl,omitempty"`
	Name        string `json:"name,omitempty"`
	Content     any    `json:"content,omitempty"`
}

// Activity is the structured payload exchanged on the POST path.
// Only the fields needed for routing are typed, every other field is kept in
// Properties so that no information is lost on the way to the processor.
type Activity struct {
	Type         ActivityType         `json:"type"`
	ID           string               `json:"id,omitempty"`
	ServiceURL   string               `json:"serviceUrl,omitempty"`
	ChannelID    string               `json:"channelId,omitempty"`
	Conversation *ConversationAccount `json:"conversation,omitempty"`
	From         *ChannelAccount      `json:"from,omitempty"`
	Recipient    *ChannelAccount      `json:"recipient,omitempty"`
	ReplyToID    string               `json:"replyToId,omitempty"`
	Text         string               `json:"text,omitempty"`
	Name         string               `json:"name,omitempty"`
	Value        any                  `json:"value,omitempty"`
	Attachments  []Attachment         `json:"attachments,omitempty"`

	// Properties holds all fields not listed above (JSON only keeps them at the top level)
	Properties map[string]any `json:"-" cbor:"properties,omitempty"`
}

// ConversationID returns the id of the conversation or an empty string
func (a *Activity) ConversationID() string {
	if a == nil || a.Conversation == nil {
		return ""
	}
	return a.Conversation.ID
}

// IsEndOfConversation reports whether the activity terminates its conversation
func (a *Activity) IsEndOfConversation() bool {
	return a != nil && strings.EqualFold(string(a.Type), string(ActivityTypeEndOfConversation))
}

// activityFields is an alias without the json methods of Activity
type activityFields Activity

// knownActivityFields are the json keys that map to typed fields of Activity
var knownActivityFields = map[string]struct{}{
	"type": {}, "id": {}, "serviceUrl": {}, "channelId": {}, "conversation": {}, "from": {},
	"recipient": {}, "replyToId": {}, "text": {}, "name": {}, "value": {}, "attachments": {},
}

// MarshalJSON implements the json.Marshaler interface for Activity.
// Properties are written as top level fields, typed fields take precedence.
func (a Activity) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(activityFields(a))
	if err != nil {
		return nil, err
	}
	if len(a.Properties) == 0 {
		return typed, nil
	}

	merged := make(map[string]json.RawMessage, len(a.Properties)+len(knownActivityFields))
	for k, v := range a.Properties {
		if _, ok := knownActivityFields[k]; ok {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal activity property %q: %w", k, err)
		}
		merged[k] = raw
	}
	if err := json.Unmarshal(typed, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(merged)
}

// UnmarshalJSON implements the json.Unmarshaler interface for Activity.
func (a *Activity) UnmarshalJSON(data []byte) error {
	var typed activityFields
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	for k, raw := range all {
		if _, ok := knownActivityFields[k]; ok {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		if typed.Properties == nil {
			typed.Properties = make(map[string]any)
		}
		typed.Properties[k] = v
	}

	*a = Activity(typed)
	return nil
}

// --------------------------------------------------------------------------
// Processor and Diagnostic Results
// --------------------------------------------------------------------------

// InvokeResponse is the result of processing an activity.
// Status is copied verbatim into the response, Body is serialized if non-nil.
type InvokeResponse struct {
	Status int `json:"status"`
	Body   any `json:"body,omitempty"`
}

// ResourceResponse is returned by the peer when an activity was accepted
type ResourceResponse struct {
	ID string `json:"id"`
}

// VersionInfo is the body of the version diagnostic endpoint.
// Token is empty if it could not be acquired.
type VersionInfo struct {
	UserAgent string `json:"userAgent"`
	Token     string `json:"token"`
}
