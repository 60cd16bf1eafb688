package notifyclient

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestToastManager(cfg ToastConfig) (*ToastManager, *Dispatcher) {
	d := newTestDispatcher(10)
	return NewToastManager(cfg, d, zap.NewNop()), d
}

// waitForState подождёт, пока тост не перейдёт в нужную фазу. Таймеры в
// менеджере настоящие, поэтому тесты работают на миллисекундных длительностях.
func waitForState(t *testing.T, tm *ToastManager, id string, want ToastState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, v := range tm.Snapshot() {
			if v.ID == id && v.State == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("тост %s не дошёл до состояния %s", id, want)
}

func waitForGone(t *testing.T, tm *ToastManager, id string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		found := false
		for _, v := range tm.Snapshot() {
			if v.ID == id {
				found = true
			}
		}
		if !found {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("тост %s не был удалён из очереди", id)
}

func TestToast_LifecycleEnteringVisibleLeavingRemoved(t *testing.T) {
	tm, d := newTestToastManager(ToastConfig{
		Durations: map[Priority]time.Duration{
			PriorityLow:    30 * time.Millisecond,
			PriorityMedium: 30 * time.Millisecond,
			PriorityHigh:   60 * time.Millisecond,
			PriorityUrgent: 120 * time.Millisecond,
		},
		EnterDelay: 5 * time.Millisecond,
		LeaveDelay: 10 * time.Millisecond,
	})
	tm.Start()
	defer tm.Stop()

	d.Dispatch(Notification{ID: "life", Priority: PriorityMedium})

	waitForState(t, tm, "life", ToastVisible)
	waitForGone(t, tm, "life")
}

func TestToast_ManualCloseSkipsCountdown(t *testing.T) {
	tm, d := newTestToastManager(ToastConfig{
		Durations: map[Priority]time.Duration{
			PriorityLow:    time.Hour,
			PriorityMedium: time.Hour,
			PriorityHigh:   time.Hour,
			PriorityUrgent: time.Hour,
		},
		EnterDelay: 5 * time.Millisecond,
		LeaveDelay: 10 * time.Millisecond,
	})
	tm.Start()
	defer tm.Stop()

	d.Dispatch(Notification{ID: "manual", Priority: PriorityHigh})
	waitForState(t, tm, "manual", ToastVisible)

	tm.Close("manual")
	waitForGone(t, tm, "manual")
}

func TestToast_DefaultDurationsByPriority(t *testing.T) {
	cfg := ToastConfig{}.withDefaults()

	assert.Equal(t, 5*time.Second, cfg.Durations[PriorityLow])
	assert.Equal(t, 5*time.Second, cfg.Durations[PriorityMedium])
	assert.Equal(t, 10*time.Second, cfg.Durations[PriorityHigh])
	assert.Equal(t, 60*time.Second, cfg.Durations[PriorityUrgent])
	assert.GreaterOrEqual(t, cfg.Durations[PriorityUrgent], cfg.Durations[PriorityLow])
}

func TestToast_ManagerUrgentIsManualOnly(t *testing.T) {
	tm, _ := newTestToastManager(ToastConfig{Role: RoleManager})

	duration := tm.durationFor(PriorityUrgent, VariantFor(RoleManager))
	assert.Equal(t, time.Duration(0), duration, "urgent у менеджера закрывается только вручную")

	assert.Positive(t, tm.durationFor(PriorityUrgent, VariantFor(RoleGeneric)))
}

func TestToast_VariantFixedAtDisplayTime(t *testing.T) {
	tm, d := newTestToastManager(ToastConfig{
		Role:       RoleManager,
		EnterDelay: 5 * time.Millisecond,
	})
	tm.Start()
	defer tm.Stop()

	d.Dispatch(Notification{ID: "v", Priority: PriorityMedium})
	waitForState(t, tm, "v", ToastVisible)

	views := tm.Snapshot()
	require.Len(t, views, 1)
	assert.Equal(t, RoleManager, views[0].Variant.Kind)
	assert.True(t, views[0].Variant.ShowCategory)
}

func TestToast_StopClearsQueueAndUnsubscribes(t *testing.T) {
	tm, d := newTestToastManager(ToastConfig{EnterDelay: 5 * time.Millisecond})
	tm.Start()

	d.Dispatch(Notification{ID: "pre-stop", Priority: PriorityLow})
	tm.Stop()

	assert.Empty(t, tm.Snapshot())

	d.Dispatch(Notification{ID: "post-stop", Priority: PriorityLow})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, tm.Snapshot(), "после Stop новые уведомления не создают тостов")
}

func TestToast_RemainingComputedFromDeadline(t *testing.T) {
	tm, d := newTestToastManager(ToastConfig{
		Durations: map[Priority]time.Duration{
			PriorityLow:    time.Hour,
			PriorityMedium: time.Hour,
			PriorityHigh:   time.Hour,
			PriorityUrgent: time.Hour,
		},
		EnterDelay: 5 * time.Millisecond,
	})
	tm.Start()
	defer tm.Stop()

	d.Dispatch(Notification{ID: "rem", Priority: PriorityMedium})
	waitForState(t, tm, "rem", ToastVisible)

	views := tm.Snapshot()
	require.Len(t, views, 1)
	assert.Positive(t, views[0].Remaining)
	assert.LessOrEqual(t, views[0].Remaining, time.Hour)
}

func TestToast_RedeliveredEvictedIDNotDuplicated(t *testing.T) {
	// История диспетчера на одну запись: id вытесняется и может быть
	// доставлен повторно.
	d := NewDispatcher(1, zap.NewNop())
	tm := NewToastManager(ToastConfig{
		Durations: map[Priority]time.Duration{
			PriorityLow:    time.Hour,
			PriorityMedium: time.Hour,
			PriorityHigh:   time.Hour,
			PriorityUrgent: time.Hour,
		},
		EnterDelay: 5 * time.Millisecond,
	}, d, zap.NewNop())
	tm.Start()
	defer tm.Stop()

	d.Dispatch(Notification{ID: "a", Priority: PriorityMedium})
	d.Dispatch(Notification{ID: "b", Priority: PriorityMedium})
	waitForState(t, tm, "a", ToastVisible)
	d.Dispatch(Notification{ID: "a", Priority: PriorityMedium})
	time.Sleep(30 * time.Millisecond)

	seen := make(map[string]int)
	for _, v := range tm.Snapshot() {
		seen[v.ID]++
	}
	assert.Equal(t, 1, seen["a"], "повторная доставка не дублирует тост")
	assert.Equal(t, 1, seen["b"])

	views := tm.Snapshot()
	require.Len(t, views, 2)
	for _, v := range views {
		if v.ID == "a" {
			assert.Equal(t, ToastVisible, v.State, "старый тост переживает повторную доставку")
		}
	}
}

func TestToast_ChangeCallbacksSerializedInOrder(t *testing.T) {
	tm, d := newTestToastManager(ToastConfig{
		Durations: map[Priority]time.Duration{
			PriorityLow:    time.Hour,
			PriorityMedium: time.Hour,
			PriorityHigh:   time.Hour,
			PriorityUrgent: time.Hour,
		},
		EnterDelay: time.Millisecond,
	})

	var inFlight, overlapped, calls int32
	tm.OnChange(func(views []ToastView) {
		if atomic.AddInt32(&inFlight, 1) > 1 {
			atomic.StoreInt32(&overlapped, 1)
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		atomic.AddInt32(&calls, 1)
	})
	tm.Start()
	defer tm.Stop()

	for i := 0; i < 10; i++ {
		d.Dispatch(Notification{ID: fmt.Sprintf("cb-%d", i), Priority: PriorityMedium})
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Positive(t, atomic.LoadInt32(&calls), "колбэк отрисовки не был вызван")
	time.Sleep(100 * time.Millisecond)

	assert.Zero(t, atomic.LoadInt32(&overlapped), "колбэки отрисовки не должны пересекаться")
}

func TestResolveClickTarget(t *testing.T) {
	withOrder := Notification{Data: map[string]interface{}{"orderId": "42"}}
	withURL := Notification{Data: map[string]interface{}{"url": "/reports/7"}}
	plain := Notification{}

	assert.Equal(t, "/orders/42", ResolveClickTarget(withOrder, RoleManager))
	assert.Equal(t, "/reports/7", ResolveClickTarget(withURL, RoleManager))
	assert.Equal(t, RouteNotifications, ResolveClickTarget(plain, RoleGeneric))

	// Клиент всегда попадает в свой список, даже если payload ведёт к заказу.
	assert.Equal(t, RouteCustomerNotifications, ResolveClickTarget(withOrder, RoleCustomer))
	assert.Equal(t, RouteCustomerNotifications, ResolveClickTarget(plain, RoleCustomer))
}

func TestResolveClickTarget_NumericOrderID(t *testing.T) {
	n := Notification{Data: map[string]interface{}{"orderId": float64(105)}}
	assert.Equal(t, "/orders/105", ResolveClickTarget(n, RoleManager))
}
