package websocket

import (
	"encoding/json"
	"time"

	"yeenote-sync-server/internal/domain"
)

type MessageType string

const (
	TypePendingRequest    MessageType = "pending_request"
	TypePendingResponse   MessageType = "pending_response"
	TypeEntityChanged     MessageType = "entity_changed"
	TypeSyncCompleted     MessageType = "sync_completed"
	TypeConflictsResolved MessageType = "conflicts_resolved"
	TypeError             MessageType = "error"
	TypePing              MessageType = "ping"
	TypePong              MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type PendingRequestPayload struct {
	Kind  domain.EntityKind `json:"kind"`
	Since int64             `json:"since"`
}

// EntityChangedPayload is a hint only; devices fetch the content through a
// pending query.
type EntityChangedPayload struct {
	Kind        domain.EntityKind `json:"kind"`
	ID          string            `json:"id"`
	SyncVersion int64             `json:"sync_version"`
	Deleted     bool              `json:"deleted"`
	DeviceID    string            `json:"device_id,omitempty"`
}

type SyncCompletedPayload struct {
	RecordID    string             `json:"record_id"`
	SyncType    domain.SyncType    `json:"sync_type"`
	SyncDetails domain.SyncDetails `json:"sync_details"`
	DeviceID    string             `json:"device_id,omitempty"`
}

type ConflictsResolvedPayload struct {
	Results  []domain.ConflictResult `json:"results"`
	DeviceID string                  `json:"device_id,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
