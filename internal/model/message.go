package model

import (
	"encoding/json"
	"errors"
	"math"
)

var ErrUnencodableMessage = errors.New("message has a non-finite tolerance")

// MessageType tags every record crossing the processor boundary
type MessageType string

const (
	MsgPing    MessageType = "ping"
	MsgProcess MessageType = "process"
	MsgReady   MessageType = "ready"
	MsgResult  MessageType = "result"
	MsgError   MessageType = "error"
)

// Message - the only thing that travels between the bridge and the raster processor.
// ID correlates a reply with the request that caused it; zero means "no operation".
type Message struct {
	Type      MessageType `json:"type"`
	ID        uint64      `json:"id,omitempty"`
	Data      string      `json:"data,omitempty"`
	Tolerance *float64    `json:"tolerance,omitempty"`
	Message   string      `json:"message,omitempty"`

	// filled by the processor on result
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Erased     int    `json:"erased,omitempty"`
	Background string `json:"background,omitempty"`
}

// Encode serializes m; a NaN or infinite tolerance cannot cross the boundary
func (m Message) Encode() ([]byte, error) {
	if m.Tolerance != nil && (math.IsNaN(*m.Tolerance) || math.IsInf(*m.Tolerance, 0)) {
		return nil, ErrUnencodableMessage
	}
	return json.Marshal(m)
}

// Marshal is Encode for messages built in code. An unencodable message turns into an error reply for the same id.
func (m Message) Marshal() []byte {
	b, err := m.Encode()
	if err != nil {
		b, _ = json.Marshal(Message{Type: MsgError, ID: m.ID, Message: err.Error()})
	}
	return b
}

// ParseMessage decodes a boundary payload; a payload without type is malformed
func ParseMessage(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, err
	}
	if m.Type == "" {
		return Message{}, ErrMalformedMessage
	}
	return m, nil
}
