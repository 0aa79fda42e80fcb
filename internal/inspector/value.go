package inspector

import (
	"encoding/json"
	"time"
	"unicode/utf8"
)

// Kind classifies a payload.
type Kind string

// Payload kinds, in the order classification tries them.
const (
	KindJSON   Kind = "json"
	KindString Kind = "string"
	KindBytes  Kind = "bytes"
)

// Value is the last message seen on a topic.
type Value struct {
	Topic    string    `json:"topic"`
	Kind     Kind      `json:"kind"`
	Payload  []byte    `json:"-"`
	Retained bool      `json:"retained"`
	Received time.Time `json:"received"`
}

// NewValue classifies payload and stamps the value with received.
func NewValue(topic string, payload []byte, retained bool, received time.Time) Value {
	return Value{
		Topic:    topic,
		Kind:     Classify(payload),
		Payload:  append([]byte(nil), payload...),
		Retained: retained,
		Received: received,
	}
}

// Classify reports whether payload is a JSON document, UTF-8 text or
// neither. Homie values such as "21.3" and "true" are valid JSON.
func Classify(payload []byte) Kind {
	switch {
	case len(payload) > 0 && json.Valid(payload):
		return KindJSON
	case utf8.Valid(payload):
		return KindString
	default:
		return KindBytes
	}
}

// Text renders the payload for display: JSON and strings verbatim, bytes
// as nothing.
func (v Value) Text() string {
	if v.Kind == KindBytes {
		return ""
	}
	return string(v.Payload)
}

type wireValue struct {
	Topic    string          `json:"topic"`
	Kind     Kind            `json:"kind"`
	JSON     json.RawMessage `json:"json,omitempty"`
	Text     *string         `json:"text,omitempty"`
	Bytes    []byte          `json:"bytes,omitempty"`
	Retained bool            `json:"retained"`
	Received time.Time       `json:"received"`
}

// MarshalJSON embeds JSON payloads as documents, text as a string and
// anything else as base64.
func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{
		Topic:    v.Topic,
		Kind:     v.Kind,
		Retained: v.Retained,
		Received: v.Received,
	}
	switch v.Kind {
	case KindJSON:
		w.JSON = json.RawMessage(v.Payload)
	case KindString:
		s := string(v.Payload)
		w.Text = &s
	default:
		w.Bytes = v.Payload
	}
	return json.Marshal(w)
}
