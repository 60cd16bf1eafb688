package notifyclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStoreWriter_WritesDispatchedNotifications(t *testing.T) {
	var mu sync.Mutex
	var received []Notification
	var authHeaders []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/notifications", r.URL.Path)

		var n Notification
		require.NoError(t, json.NewDecoder(r.Body).Decode(&n))

		mu.Lock()
		received = append(received, n)
		authHeaders = append(authHeaders, r.Header.Get("Authorization"))
		mu.Unlock()
	}))
	defer server.Close()

	creds := NewMemoryCredentialStore()
	creds.Set("token-1", "7", "manager")

	d := newTestDispatcher(10)
	w := NewStoreWriter(server.URL, creds, time.Second, zap.NewNop())
	w.Attach(d)
	defer w.Detach()

	d.Dispatch(Notification{ID: "w-1", Type: TypeOrder, Title: "Запись"})
	w.Flush()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "w-1", received[0].ID)
	assert.Equal(t, "Bearer token-1", authHeaders[0])
}

func TestStoreWriter_FailuresDoNotBlockDelivery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := newTestDispatcher(10)
	delivered := 0
	d.Subscribe(func(n Notification) { delivered++ })

	w := NewStoreWriter(server.URL, NewMemoryCredentialStore(), time.Second, zap.NewNop())
	w.Attach(d)
	defer w.Detach()

	d.Dispatch(Notification{ID: "f-1"})
	d.Dispatch(Notification{ID: "f-2"})
	w.Flush()

	assert.Equal(t, 2, delivered, "сбой записи не мешает остальным подписчикам")
}

func TestStoreWriter_UnreachableBackendSwallowed(t *testing.T) {
	d := newTestDispatcher(10)
	w := NewStoreWriter("http://127.0.0.1:1", NewMemoryCredentialStore(), 100*time.Millisecond, zap.NewNop())
	w.Attach(d)
	defer w.Detach()

	assert.NotPanics(t, func() {
		d.Dispatch(Notification{ID: "dead"})
		w.Flush()
	})
}

func TestStoreWriter_DetachStopsWrites(t *testing.T) {
	var mu sync.Mutex
	writes := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		writes++
		mu.Unlock()
	}))
	defer server.Close()

	d := newTestDispatcher(10)
	w := NewStoreWriter(server.URL, NewMemoryCredentialStore(), time.Second, zap.NewNop())
	w.Attach(d)

	d.Dispatch(Notification{ID: "before"})
	w.Flush()
	w.Detach()

	d.Dispatch(Notification{ID: "after"})
	w.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, writes)
}

func TestStoreWriter_AttachIdempotent(t *testing.T) {
	var mu sync.Mutex
	writes := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		writes++
		mu.Unlock()
	}))
	defer server.Close()

	d := newTestDispatcher(10)
	w := NewStoreWriter(server.URL, NewMemoryCredentialStore(), time.Second, zap.NewNop())
	w.Attach(d)
	w.Attach(d)
	defer w.Detach()

	d.Dispatch(Notification{ID: "once"})
	w.Flush()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, writes, "повторный Attach не удваивает записи")
}
