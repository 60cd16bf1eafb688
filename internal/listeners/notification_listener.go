package listeners

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"notification-system/internal/dto"
	"notification-system/internal/events"
	"notification-system/internal/services"
	"notification-system/pkg/eventbus"
)

// Ключ группировки: изменения одной заявки в рамках одной транзакции
// склеиваются в одно уведомление, чтобы не заспамить пользователя.
type eventGroupKey struct {
	OrderID uint64
	TxID    string
}

type eventGroup struct {
	events []events.OrderStatusChangedEvent
	timer  *time.Timer
}

// NotificationListener переводит доменные события в уведомления и
// отдаёт их сервису доставки.
type NotificationListener struct {
	notificationService services.NotificationServiceInterface
	groupingDelay       time.Duration
	logger              *zap.Logger

	groups   map[eventGroupKey]*eventGroup
	groupsMu sync.Mutex
}

func NewNotificationListener(
	notificationService services.NotificationServiceInterface,
	groupingDelay time.Duration,
	logger *zap.Logger,
) *NotificationListener {
	if groupingDelay <= 0 {
		groupingDelay = 2 * time.Second
	}
	return &NotificationListener{
		notificationService: notificationService,
		groupingDelay:       groupingDelay,
		logger:              logger,
		groups:              make(map[eventGroupKey]*eventGroup),
	}
}

func (l *NotificationListener) Register(bus *eventbus.Bus) {
	bus.Subscribe("order.status.changed", l.handleOrderStatusChanged)
	bus.Subscribe("invoice.issued", l.handleInvoiceIssued)
	bus.Subscribe("delivery.scheduled", l.handleDeliveryScheduled)
	l.logger.Info("NotificationListener подписан на доменные события")
}

// handleOrderStatusChanged собирает события в группы и взводит таймер
// слива группы. Таймер группы всегда гасится при сливе.
func (l *NotificationListener) handleOrderStatusChanged(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.OrderStatusChangedEvent)
	if !ok {
		return fmt.Errorf("неожиданный тип события: %T", event)
	}

	key := eventGroupKey{OrderID: e.OrderID, TxID: e.TxID}

	l.groupsMu.Lock()
	defer l.groupsMu.Unlock()

	group, exists := l.groups[key]
	if !exists {
		group = &eventGroup{}
		l.groups[key] = group
		group.timer = time.AfterFunc(l.groupingDelay, func() { l.flushGroup(key) })
	}
	group.events = append(group.events, e)
	return nil
}

// flushGroup сливает накопленную группу в одно уведомление.
func (l *NotificationListener) flushGroup(key eventGroupKey) {
	l.groupsMu.Lock()
	group, exists := l.groups[key]
	if exists {
		delete(l.groups, key)
		group.timer.Stop()
	}
	l.groupsMu.Unlock()

	if !exists || len(group.events) == 0 {
		return
	}

	last := group.events[len(group.events)-1]
	title := fmt.Sprintf("Заявка #%d обновлена", key.OrderID)
	message := fmt.Sprintf("Статус изменён: %s → %s", last.OldStatus, last.NewStatus)
	if len(group.events) > 1 {
		message = fmt.Sprintf("%d изменений, текущий статус: %s", len(group.events), last.NewStatus)
	}

	priority := "medium"
	if last.NewStatus == "REJECTED" || last.NewStatus == "OVERDUE" {
		priority = "urgent"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := l.notificationService.Dispatch(ctx, last.UserID, dto.CreateNotificationDTO{
		Type:     "order",
		Title:    title,
		Message:  message,
		Priority: priority,
		Data: map[string]interface{}{
			"entityType": "order",
			"entityId":   strconv.FormatUint(key.OrderID, 10),
			"orderId":    strconv.FormatUint(key.OrderID, 10),
			"action":     "status_changed",
		},
	})
	if err != nil {
		l.logger.Error("уведомление по заявке не доставлено",
			zap.Uint64("orderID", key.OrderID),
			zap.Error(err),
		)
	}
}

func (l *NotificationListener) handleInvoiceIssued(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.InvoiceIssuedEvent)
	if !ok {
		return fmt.Errorf("неожиданный тип события: %T", event)
	}

	_, err := l.notificationService.Dispatch(ctx, e.UserID, dto.CreateNotificationDTO{
		Type:     "invoice",
		Title:    fmt.Sprintf("Счёт #%d выставлен", e.InvoiceID),
		Message:  fmt.Sprintf("По заявке #%d выставлен счёт на %s", e.OrderID, e.Amount),
		Priority: "high",
		Data: map[string]interface{}{
			"entityType": "invoice",
			"entityId":   strconv.FormatUint(e.InvoiceID, 10),
			"orderId":    strconv.FormatUint(e.OrderID, 10),
		},
	})
	return err
}

func (l *NotificationListener) handleDeliveryScheduled(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.DeliveryScheduledEvent)
	if !ok {
		return fmt.Errorf("неожиданный тип события: %T", event)
	}

	_, err := l.notificationService.Dispatch(ctx, e.UserID, dto.CreateNotificationDTO{
		Type:     "delivery",
		Title:    "Доставка назначена",
		Message:  fmt.Sprintf("Доставка по заявке #%d назначена на %s", e.OrderID, e.ScheduledAt),
		Priority: "medium",
		Data: map[string]interface{}{
			"entityType": "order",
			"orderId":    strconv.FormatUint(e.OrderID, 10),
		},
	})
	return err
}
