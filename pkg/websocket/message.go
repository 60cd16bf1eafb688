package websocket

import (
	"encoding/json"
	"time"
)

// Envelope — "конверт" для сообщений канала. Тип позволяет клиенту
// понять, что лежит в Payload.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Типы сообщений канала.
const (
	MessageTypeNotification = "notification"
	MessageTypePing         = "ping"
)
