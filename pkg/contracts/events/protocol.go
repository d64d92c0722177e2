package events

import (
	"encoding/json"
	"time"
)

// Protocol version
const (
	ProtocolVersion = "1.0"
	ProtocolName    = "benchmd-websocket-protocol"
)

// ChannelType identifies a logical event channel
type ChannelType string

const (
	ChannelTypeGlobal ChannelType = "global"
	ChannelTypeScans  ChannelType = "scans"
	ChannelTypeData   ChannelType = "data"
	ChannelTypeSystem ChannelType = "system"
)

// Frame represents a WebSocket protocol frame
type Frame struct {
	Version   string          `json:"version"`
	ID        string          `json:"id"`
	Type      MessageType     `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence,omitempty"`
	TraceID   string          `json:"trace_id,omitempty"`
}

// ProtocolError represents a protocol-level error
type ProtocolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// Protocol error codes
const (
	ErrCodeInvalidFrame    = "INVALID_FRAME"
	ErrCodeInvalidChannel  = "INVALID_CHANNEL"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeMessageTooLarge = "MESSAGE_TOO_LARGE"
	ErrCodeUnsupportedType = "UNSUPPORTED_TYPE"
	ErrCodeServerError     = "SERVER_ERROR"
)

// ConnectionLimits represents limits advertised to a connecting client
type ConnectionLimits struct {
	MaxMessageSize    int64 `json:"max_message_size"`
	MaxMessagesPerSec int   `json:"max_messages_per_sec"`
	IdleTimeout       int   `json:"idle_timeout"` // seconds
}

// HeartbeatMessage represents a heartbeat message
type HeartbeatMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Sequence  int64     `json:"sequence"`
}
