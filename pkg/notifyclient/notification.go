package notifyclient

import (
	"fmt"
	"time"
)

// Priority определяет время показа уведомления и визуальный акцент.
// На порядок доставки приоритет не влияет.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Категории уведомлений. Категория выбирает иконку и цвет, бизнес-логики
// за ней нет.
const (
	TypeSuccess  = "success"
	TypeWarning  = "warning"
	TypeError    = "error"
	TypeOrder    = "order"
	TypeDelivery = "delivery"
	TypeInvoice  = "invoice"
	TypeSystem   = "system"
)

// Notification — единица доставки. После диспетчеризации объект
// неизменяем, кроме флага Read.
type Notification struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Priority  Priority               `json:"priority"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Read      bool                   `json:"read"`
}

// DataString достаёт строковое значение из свободного payload.
func (n *Notification) DataString(key string) string {
	if n.Data == nil {
		return ""
	}
	switch v := n.Data[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

// synthesizeID — запасной идентификатор вида "<unix-ms>-<type>",
// когда backend его не прислал.
func synthesizeID(n *Notification) string {
	ts := n.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return fmt.Sprintf("%d-%s", ts.UnixMilli(), n.Type)
}
