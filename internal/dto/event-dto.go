package dto

// IngestEventDTO — тело POST /api/events: доменное событие от
// бэкофиса (смена статуса заказа, счёт, доставка). Поля сверх
// общих заполняются в зависимости от event.
type IngestEventDTO struct {
	Event   string `json:"event" validate:"required,oneof=order.status.changed invoice.issued delivery.scheduled"`
	OrderID uint64 `json:"orderId" validate:"required"`
	UserID  uint64 `json:"userId" validate:"required"`

	// order.status.changed
	OldStatus  string `json:"oldStatus"`
	NewStatus  string `json:"newStatus"`
	TxID       string `json:"txId"`
	ActorName  string `json:"actorName"`
	Commentary string `json:"commentary"`

	// invoice.issued
	InvoiceID uint64 `json:"invoiceId"`
	Amount    string `json:"amount"`

	// delivery.scheduled
	ScheduledAt string `json:"scheduledAt"`
}
