package events

// Доменные события, из которых собираются уведомления. Полезная
// нагрузка для конвейера непрозрачна: слушатель лишь переносит её в
// data уведомления.

type OrderStatusChangedEvent struct {
	OrderID    uint64
	UserID     uint64
	OldStatus  string
	NewStatus  string
	TxID       string
	ActorName  string
	Commentary string
}

func (e OrderStatusChangedEvent) Name() string { return "order.status.changed" }

type InvoiceIssuedEvent struct {
	InvoiceID uint64
	OrderID   uint64
	UserID    uint64
	Amount    string
}

func (e InvoiceIssuedEvent) Name() string { return "invoice.issued" }

type DeliveryScheduledEvent struct {
	OrderID     uint64
	UserID      uint64
	ScheduledAt string
}

func (e DeliveryScheduledEvent) Name() string { return "delivery.scheduled" }
