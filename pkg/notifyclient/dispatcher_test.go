package notifyclient

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDispatcher(capacity int) *Dispatcher {
	return NewDispatcher(capacity, zap.NewNop())
}

func TestDispatch_FanOutInRegistrationOrder(t *testing.T) {
	d := newTestDispatcher(10)

	var order []string
	d.Subscribe(func(n Notification) { order = append(order, "first") })
	d.Subscribe(func(n Notification) { order = append(order, "second") })
	d.Subscribe(func(n Notification) { order = append(order, "third") })

	d.Dispatch(Notification{ID: "n-1", Type: TypeSystem, Title: "t"})

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestDispatch_DuplicateIDDropped(t *testing.T) {
	d := newTestDispatcher(10)

	calls := 0
	d.Subscribe(func(n Notification) { calls++ })

	n := Notification{ID: "dup", Type: TypeOrder}
	d.Dispatch(n)
	d.Dispatch(n)
	d.Dispatch(n)

	assert.Equal(t, 1, calls, "повтор с тем же id не доставляется")
	assert.Len(t, d.GetRecent(10), 1)
}

func TestDispatch_SynthesizesMissingID(t *testing.T) {
	d := newTestDispatcher(10)

	var got Notification
	d.Subscribe(func(n Notification) { got = n })

	d.Dispatch(Notification{Type: TypeWarning, Timestamp: time.UnixMilli(1700000000000)})

	require.NotEmpty(t, got.ID)
	assert.Equal(t, "1700000000000-warning", got.ID)
}

func TestDispatch_HistoryBoundedNewestFirst(t *testing.T) {
	d := newTestDispatcher(3)

	for i := 0; i < 5; i++ {
		d.Dispatch(Notification{ID: fmt.Sprintf("n-%d", i), Type: TypeSystem})
	}

	recent := d.GetRecent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, "n-4", recent[0].ID)
	assert.Equal(t, "n-3", recent[1].ID)
	assert.Equal(t, "n-2", recent[2].ID)
}

func TestDispatch_HistoryUpdatedWithoutSubscribers(t *testing.T) {
	d := newTestDispatcher(10)

	d.Dispatch(Notification{ID: "lonely", Type: TypeSystem})

	recent := d.GetRecent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "lonely", recent[0].ID)
}

func TestUnsubscribe_RemovesExactlyOneListener(t *testing.T) {
	d := newTestDispatcher(10)

	first, second := 0, 0
	unsubFirst := d.Subscribe(func(n Notification) { first++ })
	d.Subscribe(func(n Notification) { second++ })

	d.Dispatch(Notification{ID: "a"})
	unsubFirst()
	d.Dispatch(Notification{ID: "b"})

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestUnsubscribe_DuringDispatchTakesImmediateEffect(t *testing.T) {
	d := newTestDispatcher(10)

	var unsubSecond func()
	secondCalls := 0

	d.Subscribe(func(n Notification) { unsubSecond() })
	unsubSecond = d.Subscribe(func(n Notification) { secondCalls++ })

	d.Dispatch(Notification{ID: "x"})

	assert.Equal(t, 0, secondCalls, "отписанный в ходе fan-out слушатель не должен быть вызван")
}

func TestDispatch_PanicInListenerIsolated(t *testing.T) {
	d := newTestDispatcher(10)

	afterPanic := 0
	d.Subscribe(func(n Notification) { panic("сломанный слушатель") })
	d.Subscribe(func(n Notification) { afterPanic++ })

	assert.NotPanics(t, func() {
		d.Dispatch(Notification{ID: "p"})
	})
	assert.Equal(t, 1, afterPanic, "паника одного слушателя не трогает остальных")
}

func TestSeed_NoFanOutAndDedup(t *testing.T) {
	d := newTestDispatcher(10)

	calls := 0
	d.Subscribe(func(n Notification) { calls++ })

	d.Dispatch(Notification{ID: "live"})
	d.Seed([]Notification{
		{ID: "seeded-1"},
		{ID: "live"},
		{ID: "seeded-2"},
	})

	assert.Equal(t, 1, calls, "Seed не вызывает слушателей")
	assert.Len(t, d.GetRecent(10), 3)
}

func TestGetRecent_ReturnsCopies(t *testing.T) {
	d := newTestDispatcher(10)
	d.Dispatch(Notification{ID: "orig", Title: "до"})

	recent := d.GetRecent(1)
	recent[0].Title = "после"

	assert.Equal(t, "до", d.GetRecent(1)[0].Title)
}

func TestGetRecent_NonPositiveCountReturnsEmpty(t *testing.T) {
	d := newTestDispatcher(10)
	d.Dispatch(Notification{ID: "n"})

	assert.NotPanics(t, func() {
		assert.Empty(t, d.GetRecent(-1))
	})
	assert.Empty(t, d.GetRecent(0))
}

func TestMarkRead(t *testing.T) {
	d := newTestDispatcher(10)
	d.Dispatch(Notification{ID: "r"})

	assert.True(t, d.MarkRead("r"))
	assert.True(t, d.GetRecent(1)[0].Read)
	assert.False(t, d.MarkRead("нет такого"))
}
