package notifyclient

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultHistorySize — ёмкость буфера последних уведомлений.
const DefaultHistorySize = 10

// Listener получает каждое диспетчеризованное уведомление.
type Listener func(n Notification)

type subscription struct {
	fn     Listener
	active atomic.Bool
}

// Dispatcher — единая точка fan-out уведомлений на подписчиков с
// дедупликацией по id и ограниченной историей (новые в начале).
type Dispatcher struct {
	mu            sync.Mutex
	subscriptions []*subscription
	history       []Notification
	capacity      int
	logger        *zap.Logger
}

func NewDispatcher(capacity int, logger *zap.Logger) *Dispatcher {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &Dispatcher{
		capacity: capacity,
		logger:   logger,
	}
}

// Subscribe регистрирует слушателя и возвращает функцию отписки,
// снимающую ровно эту регистрацию. Отписка действует немедленно:
// после её возврата слушатель не получит ни одного вызова.
func (d *Dispatcher) Subscribe(fn Listener) (unsubscribe func()) {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	d.mu.Lock()
	d.subscriptions = append(d.subscriptions, sub)
	d.mu.Unlock()

	return func() {
		sub.active.Store(false)
		d.mu.Lock()
		for i, s := range d.subscriptions {
			if s == sub {
				d.subscriptions = append(d.subscriptions[:i], d.subscriptions[i+1:]...)
				break
			}
		}
		d.mu.Unlock()
	}
}

// Dispatch доставляет уведомление всем подписчикам в порядке регистрации.
// Повторное уведомление с тем же id отбрасывается. История обновляется
// даже при нуле подписчиков, чтобы GetRecent работал после реконнекта.
func (d *Dispatcher) Dispatch(n Notification) {
	d.mu.Lock()
	if n.ID == "" {
		n.ID = synthesizeID(&n)
	}
	for _, existing := range d.history {
		if existing.ID == n.ID {
			d.mu.Unlock()
			return
		}
	}
	d.prependLocked(n)
	snapshot := make([]*subscription, len(d.subscriptions))
	copy(snapshot, d.subscriptions)
	d.mu.Unlock()

	for _, sub := range snapshot {
		if !sub.active.Load() {
			continue
		}
		d.invoke(sub.fn, n)
	}
}

// invoke изолирует панику одного слушателя от остальных.
func (d *Dispatcher) invoke(fn Listener, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatcher: паника в слушателе",
				zap.String("notificationID", n.ID),
				zap.Any("panic", r),
			)
		}
	}()
	fn(n)
}

// Seed наполняет историю без fan-out. Используется при холодном старте,
// чтобы не показывать тосты повторно.
func (d *Dispatcher) Seed(notifications []Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
outer:
	for _, n := range notifications {
		if n.ID == "" {
			n.ID = synthesizeID(&n)
		}
		for _, existing := range d.history {
			if existing.ID == n.ID {
				continue outer
			}
		}
		d.prependLocked(n)
	}
}

func (d *Dispatcher) prependLocked(n Notification) {
	d.history = append([]Notification{n}, d.history...)
	if len(d.history) > d.capacity {
		d.history = d.history[:d.capacity]
	}
}

// GetRecent возвращает копии до n последних уведомлений, новые первыми.
func (d *Dispatcher) GetRecent(n int) []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n < 0 {
		n = 0
	}
	if n > len(d.history) {
		n = len(d.history)
	}
	out := make([]Notification, n)
	copy(out, d.history[:n])
	return out
}

// MarkRead выставляет флаг Read в локальной истории. Сам диспетчер флаг
// никогда не трогает.
func (d *Dispatcher) MarkRead(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.history {
		if d.history[i].ID == id {
			d.history[i].Read = true
			return true
		}
	}
	return false
}
