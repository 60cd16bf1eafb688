package notifyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StoreWriter — persistence adapter: слушает диспетчер и в фоне пишет
// показанные уведомления в хранилище backend-а. Сбой записи никогда не
// задерживает и не блокирует доставку; очереди повторов нет — источником
// истины при реконнекте остаётся сам поток событий.
type StoreWriter struct {
	baseURL string
	creds   CredentialStore
	client  *http.Client
	logger  *zap.Logger

	mu          sync.Mutex
	unsubscribe func()
	inflight    sync.WaitGroup
}

func NewStoreWriter(baseURL string, creds CredentialStore, timeout time.Duration, logger *zap.Logger) *StoreWriter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StoreWriter{
		baseURL: baseURL,
		creds:   creds,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Attach подписывает writer на диспетчер. Повторный Attach — no-op.
func (w *StoreWriter) Attach(dispatcher *Dispatcher) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.unsubscribe != nil {
		return
	}
	w.unsubscribe = dispatcher.Subscribe(func(n Notification) {
		w.inflight.Add(1)
		go func() {
			defer w.inflight.Done()
			w.write(n)
		}()
	})
}

// Detach отписывает writer от диспетчера.
func (w *StoreWriter) Detach() {
	w.mu.Lock()
	unsub := w.unsubscribe
	w.unsubscribe = nil
	w.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Flush дожидается завершения начатых записей. Нужен в тестах и при
// остановке процесса.
func (w *StoreWriter) Flush() {
	w.inflight.Wait()
}

// write — одна попытка записи. Не-2xx и сетевые ошибки логируются и
// проглатываются.
func (w *StoreWriter) write(n Notification) {
	body, err := json.Marshal(n)
	if err != nil {
		w.logger.Warn("store: ошибка сериализации уведомления", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/api/notifications", bytes.NewReader(body))
	if err != nil {
		w.logger.Warn("store: ошибка формирования запроса", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if w.creds != nil && w.creds.Token() != "" {
		req.Header.Set("Authorization", "Bearer "+w.creds.Token())
	}

	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("store: запись уведомления не прошла", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		w.logger.Warn("store: хранилище вернуло ошибку",
			zap.Int("status", resp.StatusCode),
			zap.String("notificationID", n.ID),
		)
	}
}
