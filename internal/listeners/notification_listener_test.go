package listeners

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notification-system/internal/dto"
	"notification-system/internal/events"
	"notification-system/pkg/eventbus"
)

// capturingService записывает всё, что слушатель отправил в доставку.
type capturingService struct {
	mu         sync.Mutex
	dispatched []dto.CreateNotificationDTO
	users      []uint64
}

func (s *capturingService) Dispatch(ctx context.Context, userID uint64, in dto.CreateNotificationDTO) (*dto.NotificationDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatched = append(s.dispatched, in)
	s.users = append(s.users, userID)
	return &dto.NotificationDTO{ID: "dispatched"}, nil
}

func (s *capturingService) Record(ctx context.Context, userID uint64, in dto.CreateNotificationDTO) (*dto.NotificationDTO, error) {
	return &dto.NotificationDTO{}, nil
}

func (s *capturingService) Recent(ctx context.Context, userID uint64, limit int) ([]dto.NotificationDTO, error) {
	return nil, nil
}

func (s *capturingService) MarkRead(ctx context.Context, userID uint64, id string) error {
	return nil
}

func (s *capturingService) snapshot() []dto.CreateNotificationDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dto.CreateNotificationDTO, len(s.dispatched))
	copy(out, s.dispatched)
	return out
}

func (s *capturingService) waitForCount(t *testing.T, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(s.snapshot()) >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("дождались только %d уведомлений из %d", len(s.snapshot()), want)
}

func newTestListener(delay time.Duration) (*NotificationListener, *capturingService) {
	svc := &capturingService{}
	return NewNotificationListener(svc, delay, zap.NewNop()), svc
}

func TestOrderStatusChanged_GroupedIntoSingleNotification(t *testing.T) {
	l, svc := newTestListener(50 * time.Millisecond)

	base := events.OrderStatusChangedEvent{OrderID: 42, UserID: 7, TxID: "tx-1"}
	for _, status := range [][2]string{{"NEW", "CONFIRMED"}, {"CONFIRMED", "IN_PROGRESS"}, {"IN_PROGRESS", "DONE"}} {
		e := base
		e.OldStatus, e.NewStatus = status[0], status[1]
		require.NoError(t, l.handleOrderStatusChanged(context.Background(), e))
	}

	svc.waitForCount(t, 1)
	time.Sleep(100 * time.Millisecond)

	got := svc.snapshot()
	require.Len(t, got, 1, "серия изменений в одной транзакции склеивается в одно уведомление")
	assert.Equal(t, "order", got[0].Type)
	assert.Contains(t, got[0].Message, "3 изменений")
	assert.Contains(t, got[0].Message, "DONE")
	assert.Equal(t, "medium", got[0].Priority)
	assert.Equal(t, "42", got[0].Data["orderId"])
}

func TestOrderStatusChanged_DifferentTransactionsNotGrouped(t *testing.T) {
	l, svc := newTestListener(50 * time.Millisecond)

	first := events.OrderStatusChangedEvent{OrderID: 42, UserID: 7, TxID: "tx-1", NewStatus: "CONFIRMED"}
	second := events.OrderStatusChangedEvent{OrderID: 42, UserID: 7, TxID: "tx-2", NewStatus: "DONE"}
	require.NoError(t, l.handleOrderStatusChanged(context.Background(), first))
	require.NoError(t, l.handleOrderStatusChanged(context.Background(), second))

	svc.waitForCount(t, 2)
}

func TestOrderStatusChanged_RejectedIsUrgent(t *testing.T) {
	l, svc := newTestListener(20 * time.Millisecond)

	e := events.OrderStatusChangedEvent{OrderID: 5, UserID: 7, TxID: "tx-r", OldStatus: "NEW", NewStatus: "REJECTED"}
	require.NoError(t, l.handleOrderStatusChanged(context.Background(), e))

	svc.waitForCount(t, 1)
	assert.Equal(t, "urgent", svc.snapshot()[0].Priority)
}

func TestInvoiceIssued_DirectDispatch(t *testing.T) {
	l, svc := newTestListener(time.Second)

	e := events.InvoiceIssuedEvent{InvoiceID: 9, OrderID: 42, UserID: 7, Amount: "1500.00"}
	require.NoError(t, l.handleInvoiceIssued(context.Background(), e))

	got := svc.snapshot()
	require.Len(t, got, 1, "счета не группируются, уходят сразу")
	assert.Equal(t, "invoice", got[0].Type)
	assert.Equal(t, "high", got[0].Priority)
	assert.Contains(t, got[0].Message, "1500.00")
}

func TestDeliveryScheduled_DirectDispatch(t *testing.T) {
	l, svc := newTestListener(time.Second)

	e := events.DeliveryScheduledEvent{OrderID: 42, UserID: 7, ScheduledAt: "2026-09-01 10:00"}
	require.NoError(t, l.handleDeliveryScheduled(context.Background(), e))

	got := svc.snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "delivery", got[0].Type)
	assert.Equal(t, "42", got[0].Data["orderId"])
}

func TestListener_WrongEventTypeReturnsError(t *testing.T) {
	l, _ := newTestListener(time.Second)

	err := l.handleOrderStatusChanged(context.Background(), events.InvoiceIssuedEvent{})
	assert.Error(t, err)
}

func TestListener_DeliversThroughEventBus(t *testing.T) {
	l, svc := newTestListener(20 * time.Millisecond)
	bus := eventbus.New(zap.NewNop())
	l.Register(bus)

	bus.Publish(context.Background(), events.OrderStatusChangedEvent{
		OrderID: 1, UserID: 3, TxID: "tx-bus", OldStatus: "NEW", NewStatus: "CONFIRMED",
	})

	svc.waitForCount(t, 1)
	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.EqualValues(t, 3, svc.users[0])
}
