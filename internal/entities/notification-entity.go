package entities

import (
	"encoding/json"
	"time"
)

// Notification — запись в хранилище уведомлений. После создания
// меняется только флаг Read.
type Notification struct {
	ID        string
	UserID    uint64
	Type      string
	Title     string
	Message   string
	Priority  string
	Data      json.RawMessage
	Read      bool
	CreatedAt time.Time
}
