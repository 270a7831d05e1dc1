package channel

import "encoding/json"

// MessageType identifies a frame on the wire
type MessageType string

const (
	// MessageSyn opens the handshake and carries the sender's method names.
	MessageSyn MessageType = "syn"
	// MessageAck completes the handshake and carries the receiver's method names.
	MessageAck MessageType = "ack"
	// MessageCall invokes a method on the other side.
	MessageCall MessageType = "call"
	// MessageReply answers a call.
	MessageReply MessageType = "reply"
)

// Message is a single frame exchanged between widget and host.
type Message struct {
	Type      MessageType     `json:"type"`
	ChannelID string          `json:"channelId,omitempty"`
	ID        string          `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *ErrorPayload   `json:"error,omitempty"`
	Methods   []string        `json:"methods,omitempty"`
}

// ErrorPayload is the error half of a reply or a refused handshake
type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

const (
	codeMethodNotFound = "method_not_found"
	codeHandlerFailed  = "handler_failed"
)
