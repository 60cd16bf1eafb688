package notifyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"notification-system/pkg/backoff"
)

// Options — сборка клиента.
type Options struct {
	// BaseURL HTTP API backend-а (хранилище, push-реестр, recent).
	BaseURL string
	// StreamURL источника событий (ws:// или wss://).
	StreamURL string
	// Browser может быть nil: push тогда считается неподдерживаемым.
	Browser Browser
	// Credentials обязателен: отсюда берутся token/userId/userType.
	Credentials CredentialStore
	// Role — снимок роли для варианта отображения.
	Role Role

	HistorySize      int
	HandshakeTimeout time.Duration
	RequestTimeout   time.Duration
	Backoff          backoff.Policy
	Toast            ToastConfig
	Logger           *zap.Logger
}

// Client — единственный экземпляр конвейера уведомлений на процесс:
// один живой канал, один буфер истории. Создаётся один раз при старте
// и передаётся потребителям явно, а не через глобальную переменную.
type Client struct {
	dispatcher *Dispatcher
	connection *ConnectionManager
	push       *PushManager
	toasts     *ToastManager
	store      *StoreWriter
	creds      CredentialStore
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func New(opts Options) (*Client, error) {
	if opts.Credentials == nil {
		return nil, fmt.Errorf("notifyclient: Credentials обязателен")
	}
	if opts.BaseURL == "" || opts.StreamURL == "" {
		return nil, fmt.Errorf("notifyclient: BaseURL и StreamURL обязательны")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.Toast.Role == "" {
		opts.Toast.Role = opts.Role
	}

	dispatcher := NewDispatcher(opts.HistorySize, logger)
	connection := NewConnectionManager(ConnConfig{
		URL:              opts.StreamURL,
		HandshakeTimeout: opts.HandshakeTimeout,
		Backoff:          opts.Backoff,
	}, dispatcher, logger)
	push := NewPushManager(PushConfig{
		BaseURL: opts.BaseURL,
		Timeout: opts.RequestTimeout,
	}, opts.Browser, opts.Credentials, logger)
	toasts := NewToastManager(opts.Toast, dispatcher, logger)
	store := NewStoreWriter(opts.BaseURL, opts.Credentials, opts.RequestTimeout, logger)

	return &Client{
		dispatcher: dispatcher,
		connection: connection,
		push:       push,
		toasts:     toasts,
		store:      store,
		creds:      opts.Credentials,
		baseURL:    opts.BaseURL,
		httpClient: &http.Client{Timeout: opts.RequestTimeout},
		logger:     logger,
	}, nil
}

// Start поднимает подписчиков и живой канал из текущих учётных данных.
func (c *Client) Start() {
	c.toasts.Start()
	c.store.Attach(c.dispatcher)
	c.UpdateAuth()
}

// Stop гасит канал и отписывает адаптеры.
func (c *Client) Stop() {
	c.connection.Disconnect()
	c.toasts.Stop()
	c.store.Detach()
	c.store.Flush()
}

// UpdateAuth перечитывает хранилище сессии. Вызывается на логин/логаут.
func (c *Client) UpdateAuth() {
	c.connection.UpdateAuth(c.creds.Token(), c.creds.UserType(), c.creds.UserID())
}

func (c *Client) Dispatcher() *Dispatcher        { return c.dispatcher }
func (c *Client) Connection() *ConnectionManager { return c.connection }
func (c *Client) Push() *PushManager             { return c.push }
func (c *Client) Toasts() *ToastManager          { return c.toasts }
func (c *Client) ConnectionState() State         { return c.connection.State() }

// PushBannerNeeded — показывать ли ненавязчивый баннер "включить
// уведомления". Модальных ошибок конвейер не порождает.
func (c *Client) PushBannerNeeded() bool {
	if !c.push.IsSupported() {
		return false
	}
	return c.push.browser.Permission() != PermissionGranted
}

// SeedRecent подтягивает последние N уведомлений для холодного старта.
// История наполняется без fan-out, тосты повторно не показываются.
func (c *Client) SeedRecent(ctx context.Context, limit int) error {
	url := fmt.Sprintf("%s/api/notifications/recent?limit=%d", c.baseURL, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if c.creds.Token() != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.Token())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notifyclient: recent вернул статус %d", resp.StatusCode)
	}

	var body struct {
		Body []Notification `json:"body"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	c.dispatcher.Seed(body.Body)
	return nil
}

// MarkRead помечает уведомление прочитанным локально и синхронизирует
// флаг с хранилищем backend-а.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	c.dispatcher.MarkRead(id)

	url := fmt.Sprintf("%s/api/notifications/%s/read", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	if c.creds.Token() != "" {
		req.Header.Set("Authorization", "Bearer "+c.creds.Token())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notifyclient: mark-read вернул статус %d", resp.StatusCode)
	}
	return nil
}
