package notifyclient

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Role — роль аутентифицированного пользователя. Выбирает вариант
// отображения, границей безопасности не является.
type Role string

const (
	RoleGeneric  Role = "generic"
	RoleManager  Role = "manager"
	RoleCustomer Role = "customer"
)

// Пути навигации по клику.
const (
	RouteNotifications         = "/notifications"
	RouteCustomerNotifications = "/customer/notifications"
	RouteOrderPrefix           = "/orders/"
)

// ToastState — фазы жизни одного тоста.
type ToastState string

const (
	ToastEntering ToastState = "entering"
	ToastVisible  ToastState = "visible"
	ToastLeaving  ToastState = "leaving"
	ToastRemoved  ToastState = "removed"
)

// Variant — размеченный вариант отображения по роли. Выбирается один
// раз на уведомление по снимку роли.
type Variant struct {
	Kind Role
	// ShowCategory — показывать категорию уведомления (менеджерский popup).
	ShowCategory bool
	// ManualUrgent — urgent закрывается только вручную.
	ManualUrgent bool
}

func VariantFor(role Role) Variant {
	switch role {
	case RoleManager:
		return Variant{Kind: RoleManager, ShowCategory: true, ManualUrgent: true}
	case RoleCustomer:
		return Variant{Kind: RoleCustomer}
	default:
		return Variant{Kind: RoleGeneric}
	}
}

// ResolveClickTarget — маршрут перехода по клику. Клиенты (customer)
// всегда уходят в свой список уведомлений, независимо от payload.
func ResolveClickTarget(n Notification, role Role) string {
	if role == RoleCustomer {
		return RouteCustomerNotifications
	}
	if orderID := n.DataString("orderId"); orderID != "" {
		return RouteOrderPrefix + orderID
	}
	if target := n.DataString("url"); target != "" {
		return target
	}
	return RouteNotifications
}

// ToastConfig — тайминги показа. Длительность задаёт приоритет.
type ToastConfig struct {
	Durations  map[Priority]time.Duration
	EnterDelay time.Duration
	LeaveDelay time.Duration
	Role       Role
}

func (c ToastConfig) withDefaults() ToastConfig {
	if c.Durations == nil {
		c.Durations = map[Priority]time.Duration{
			PriorityLow:    5 * time.Second,
			PriorityMedium: 5 * time.Second,
			PriorityHigh:   10 * time.Second,
			PriorityUrgent: 60 * time.Second,
		}
	}
	if c.EnterDelay <= 0 {
		c.EnterDelay = 50 * time.Millisecond
	}
	if c.LeaveDelay <= 0 {
		c.LeaveDelay = 300 * time.Millisecond
	}
	if c.Role == "" {
		c.Role = RoleGeneric
	}
	return c
}

// ToastView — снимок тоста для отрисовки. Remaining вычисляется от
// одного дедлайна, поэтому несколько тостов не "разъезжаются".
type ToastView struct {
	ID           string
	Notification Notification
	State        ToastState
	Variant      Variant
	Remaining    time.Duration
}

type toastEntry struct {
	view     ToastView
	deadline time.Time
	// Таймеры — явные ручки, всегда гасятся при teardown.
	enterTimer   *time.Timer
	dismissTimer *time.Timer
	leaveTimer   *time.Timer
}

func (t *toastEntry) stopTimers() {
	for _, timer := range []*time.Timer{t.enterTimer, t.dismissTimer, t.leaveTimer} {
		if timer != nil {
			timer.Stop()
		}
	}
}

// ToastManager — presentation adapter: подписывается на диспетчер при
// старте, отписывается при остановке, ведёт очередь тостов с
// авто-скрытием по приоритету.
type ToastManager struct {
	cfg        ToastConfig
	dispatcher *Dispatcher
	logger     *zap.Logger

	mu          sync.Mutex
	toasts      map[string]*toastEntry
	order       []string
	unsubscribe func()
	onChange    func([]ToastView)
	changes     chan []ToastView
}

func NewToastManager(cfg ToastConfig, dispatcher *Dispatcher, logger *zap.Logger) *ToastManager {
	t := &ToastManager{
		cfg:        cfg.withDefaults(),
		dispatcher: dispatcher,
		logger:     logger,
		toasts:     make(map[string]*toastEntry),
		changes:    make(chan []ToastView, 16),
	}
	go t.deliverChanges()
	return t
}

// deliverChanges отдаёт снимки колбэку отрисовки по одному, в порядке
// изменений. Колбэки никогда не пересекаются во времени.
func (t *ToastManager) deliverChanges() {
	for snapshot := range t.changes {
		t.mu.Lock()
		fn := t.onChange
		t.mu.Unlock()
		if fn != nil {
			fn(snapshot)
		}
	}
}

// OnChange регистрирует колбэк отрисовки, получающий снимок очереди.
func (t *ToastManager) OnChange(fn func([]ToastView)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// Start подписывает менеджера на диспетчер. Повторный Start — no-op.
func (t *ToastManager) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.unsubscribe != nil {
		return
	}
	t.unsubscribe = t.dispatcher.Subscribe(t.handle)
}

// Stop отписывается и гасит все таймеры, чтобы ничего не стреляло в
// уже размонтированный UI.
func (t *ToastManager) Stop() {
	t.mu.Lock()
	unsub := t.unsubscribe
	t.unsubscribe = nil
	for _, entry := range t.toasts {
		entry.stopTimers()
		entry.view.State = ToastRemoved
	}
	t.toasts = make(map[string]*toastEntry)
	t.order = nil
	t.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (t *ToastManager) handle(n Notification) {
	variant := VariantFor(t.cfg.Role)

	t.mu.Lock()
	if t.unsubscribe == nil {
		t.mu.Unlock()
		return
	}
	// Id, вытесненный из истории диспетчера, может прийти повторно.
	// Уже показанный тост не дублируется, его таймеры продолжают идти.
	if _, ok := t.toasts[n.ID]; ok {
		t.mu.Unlock()
		return
	}
	entry := &toastEntry{
		view: ToastView{
			ID:           n.ID,
			Notification: n,
			State:        ToastEntering,
			Variant:      variant,
		},
	}
	t.toasts[n.ID] = entry
	t.order = append(t.order, n.ID)
	entry.enterTimer = time.AfterFunc(t.cfg.EnterDelay, func() { t.show(n.ID) })
	t.notifyLocked()
	t.mu.Unlock()
}

// show — переход entering → visible, запуск обратного отсчёта.
func (t *ToastManager) show(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.toasts[id]
	if !ok || entry.view.State != ToastEntering {
		return
	}
	entry.view.State = ToastVisible

	duration := t.durationFor(entry.view.Notification.Priority, entry.view.Variant)
	if duration > 0 {
		entry.deadline = time.Now().Add(duration)
		entry.dismissTimer = time.AfterFunc(duration, func() { t.dismiss(id) })
	}
	t.notifyLocked()
}

// durationFor — авто-скрытие по приоритету; ноль означает "только вручную".
func (t *ToastManager) durationFor(p Priority, v Variant) time.Duration {
	if p == PriorityUrgent && v.ManualUrgent {
		return 0
	}
	if d, ok := t.cfg.Durations[p]; ok {
		return d
	}
	return t.cfg.Durations[PriorityMedium]
}

// Close — ручное закрытие: visible → leaving немедленно.
func (t *ToastManager) Close(id string) {
	t.dismiss(id)
}

func (t *ToastManager) dismiss(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.toasts[id]
	if !ok || entry.view.State == ToastLeaving || entry.view.State == ToastRemoved {
		return
	}
	entry.stopTimers()
	entry.view.State = ToastLeaving
	entry.leaveTimer = time.AfterFunc(t.cfg.LeaveDelay, func() { t.remove(id) })
	t.notifyLocked()
}

func (t *ToastManager) remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.toasts[id]
	if !ok {
		return
	}
	entry.stopTimers()
	entry.view.State = ToastRemoved
	delete(t.toasts, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.notifyLocked()
}

// Snapshot — активные тосты в порядке появления, с актуальным Remaining.
func (t *ToastManager) Snapshot() []ToastView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *ToastManager) snapshotLocked() []ToastView {
	now := time.Now()
	views := make([]ToastView, 0, len(t.order))
	for _, id := range t.order {
		entry, ok := t.toasts[id]
		if !ok {
			continue
		}
		view := entry.view
		if view.State == ToastVisible && !entry.deadline.IsZero() {
			view.Remaining = entry.deadline.Sub(now)
			if view.Remaining < 0 {
				view.Remaining = 0
			}
		}
		views = append(views, view)
	}
	return views
}

func (t *ToastManager) notifyLocked() {
	if t.onChange == nil {
		return
	}
	snapshot := t.snapshotLocked()
	for {
		select {
		case t.changes <- snapshot:
			return
		default:
		}
		// Буфер полон: устаревший снимок вытесняется свежим.
		select {
		case <-t.changes:
		default:
		}
	}
}
