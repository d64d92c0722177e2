// Package events contains event contract definitions for WebSocket
// communication in the BenchMD survey benchmarking service.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Scan progress - emitted while a survey directory scan runs
	MessageTypeScanSnapshot MessageType = "scan:snapshot"

	// Data lifecycle messages
	MessageTypeDataRefreshed  MessageType = "data:refreshed"
	MessageTypeMappingChanged MessageType = "mapping:changed"

	// System messages
	MessageTypeSystemStatus MessageType = "system:status"

	// Connection messages
	MessageTypeConnect    MessageType = "connect"
	MessageTypeDisconnect MessageType = "disconnect"
	MessageTypeError      MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// ScanSnapshot is the message type for all scan progress updates. A new
// snapshot replaces any earlier one for the same job; clients never need
// to merge deltas.
type ScanSnapshot struct {
	JobID       string         `json:"job_id"`
	Status      string         `json:"status"`   // pending|running|completed|failed
	Progress    int            `json:"progress"` // 0-100
	CurrentFile string         `json:"current_file,omitempty"`
	Files       []FileSnapshot `json:"files,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// FileSnapshot represents the state of a single file within a scan
type FileSnapshot struct {
	Source   string `json:"source"`
	Path     string `json:"path"`
	Status   string `json:"status"` // pending|ingesting|completed|failed|skipped
	RowCount int    `json:"row_count,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DataRefreshedEvent announces that a source's rows were replaced and any
// cached query results are stale
type DataRefreshedEvent struct {
	BaseMessage
	Data struct {
		Source      string `json:"source"`
		Format      string `json:"format"`
		RowCount    int    `json:"row_count"`
		Fingerprint string `json:"fingerprint"`
	} `json:"data"`
}

// MappingChangedEvent announces that a taxonomy mapping was created,
// replaced, or deleted
type MappingChangedEvent struct {
	BaseMessage
	Data struct {
		MappingID        string `json:"mapping_id"`
		Type             string `json:"type"`
		StandardizedName string `json:"standardized_name"`
		Deleted          bool   `json:"deleted,omitempty"`
	} `json:"data"`
}

// ErrorMessage represents an error message
type ErrorMessage struct {
	BaseMessage
	Data struct {
		Code    string      `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
		Retry   bool        `json:"retry"`
		Fatal   bool        `json:"fatal"`
	} `json:"data"`
}

// SystemStatusEvent represents a system status event
type SystemStatusEvent struct {
	BaseMessage
	Data struct {
		Status     string            `json:"status"` // healthy|degraded|unhealthy
		Components map[string]string `json:"components"`
		Uptime     string            `json:"uptime"`
		Version    string            `json:"version"`
	} `json:"data"`
}
