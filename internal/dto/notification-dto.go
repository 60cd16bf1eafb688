package dto

import (
	"encoding/json"
	"time"
)

// CreateNotificationDTO — тело POST /api/notifications (write-through от
// клиентского конвейера). ID опционален: если его нет, сервер выдаст свой.
type CreateNotificationDTO struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type" validate:"required,oneof=success warning error order delivery invoice system"`
	Title     string                 `json:"title" validate:"required,max=255"`
	Message   string                 `json:"message" validate:"required"`
	Priority  string                 `json:"priority" validate:"required,oneof=low medium high urgent"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NotificationDTO — уведомление в том виде, в котором его видит клиент:
// и в websocket-конверте, и в ответе recent.
type NotificationDTO struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Priority  string          `json:"priority"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
	Read      bool            `json:"read"`
}
