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

// Permission — состояние разрешения на показ уведомлений.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// PushKeys — ключи шифрования подписки.
type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// PushSubscription — учётные данные, выданные push-сервисом браузера.
type PushSubscription struct {
	Endpoint string   `json:"endpoint"`
	Keys     PushKeys `json:"keys"`
}

// Browser абстрагирует браузерные возможности: permission API,
// регистрацию service worker и push manager. Библиотека не владеет ими
// и переживает их отсутствие.
type Browser interface {
	PushSupported() bool
	Permission() Permission
	RequestPermission() (Permission, error)
	RegisterServiceWorker() (ServiceWorkerRegistration, error)
}

// ServiceWorkerRegistration — зарегистрированный service worker.
type ServiceWorkerRegistration interface {
	Subscribe(vapidPublicKey string) (*PushSubscription, error)
	Unsubscribe() error
	ShowNotification(title, message string) error
}

// PushConfig — настройки менеджера push-подписки.
type PushConfig struct {
	// BaseURL backend-а: /api/push/key и /api/push/subscriptions.
	BaseURL string
	// Timeout на обмен ключами и регистрацию подписки.
	Timeout time.Duration
}

// PushManager связывает push-возможности браузера с реестром подписок
// backend-а. Работает независимо от живого канала. Любой сбой —
// это false/nil для вызывающего, push всегда остаётся опциональным.
type PushManager struct {
	cfg     PushConfig
	browser Browser
	creds   CredentialStore
	client  *http.Client
	logger  *zap.Logger

	mu           sync.Mutex
	registration ServiceWorkerRegistration
	subscription *PushSubscription
	prompted     bool
}

func NewPushManager(cfg PushConfig, browser Browser, creds CredentialStore, logger *zap.Logger) *PushManager {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PushManager{
		cfg:     cfg,
		browser: browser,
		creds:   creds,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// IsSupported — проба возможностей. Все остальные операции при false
// сразу возвращают нулевые результаты.
func (p *PushManager) IsSupported() bool {
	return p.browser != nil && p.browser.PushSupported()
}

// RegisterServiceWorker регистрирует worker ровно один раз; повторные
// вызовы возвращают существующую регистрацию.
func (p *PushManager) RegisterServiceWorker() ServiceWorkerRegistration {
	if !p.IsSupported() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.registration != nil {
		return p.registration
	}

	reg, err := p.browser.RegisterServiceWorker()
	if err != nil {
		p.logger.Warn("push: не удалось зарегистрировать service worker", zap.Error(err))
		return nil
	}
	p.registration = reg
	return reg
}

// RequestPermission показывает системный запрос разрешения. Повторно в
// рамках сессии запрос не показывается: браузеры наказывают за спам
// промптами, поэтому возвращается текущее состояние.
func (p *PushManager) RequestPermission() Permission {
	if !p.IsSupported() {
		return PermissionDenied
	}

	p.mu.Lock()
	alreadyPrompted := p.prompted
	p.prompted = true
	p.mu.Unlock()

	if alreadyPrompted || p.browser.Permission() != PermissionDefault {
		return p.browser.Permission()
	}

	perm, err := p.browser.RequestPermission()
	if err != nil {
		p.logger.Warn("push: запрос разрешения завершился ошибкой", zap.Error(err))
		return p.browser.Permission()
	}
	return perm
}

// SubscribeToPush создаёт подписку и сохраняет её на backend-е.
// Возвращает nil (не ошибку), если push недоступен или разрешение не
// выдано. Без granted сетевых вызовов не делается.
func (p *PushManager) SubscribeToPush(ctx context.Context) *PushSubscription {
	if !p.IsSupported() {
		return nil
	}
	if p.browser.Permission() != PermissionGranted {
		return nil
	}

	reg := p.RegisterServiceWorker()
	if reg == nil {
		return nil
	}

	publicKey, ok := p.fetchVAPIDKey(ctx)
	if !ok {
		return nil
	}

	sub, err := reg.Subscribe(publicKey)
	if err != nil || sub == nil {
		p.logger.Warn("push: браузер не выдал подписку", zap.Error(err))
		return nil
	}

	if !p.persistSubscription(ctx, sub) {
		return nil
	}

	p.mu.Lock()
	p.subscription = sub
	p.mu.Unlock()
	return sub
}

// UnsubscribeFromPush снимает подписку в браузере и сообщает backend-у
// об инвалидации.
func (p *PushManager) UnsubscribeFromPush(ctx context.Context) bool {
	p.mu.Lock()
	reg := p.registration
	sub := p.subscription
	p.subscription = nil
	p.mu.Unlock()

	if reg == nil || sub == nil {
		return false
	}

	if err := reg.Unsubscribe(); err != nil {
		p.logger.Warn("push: ошибка отписки в браузере", zap.Error(err))
	}

	ok := p.doJSON(ctx, http.MethodDelete, p.cfg.BaseURL+"/api/push/subscriptions", sub, nil)
	if !ok {
		p.logger.Warn("push: backend не уведомлён об отписке")
	}
	return ok
}

// GetSubscriptionInfo — снимок текущей подписки только для чтения.
func (p *PushManager) GetSubscriptionInfo() *PushSubscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subscription == nil {
		return nil
	}
	copied := *p.subscription
	return &copied
}

// ShowTestNotification показывает локальное уведомление через service
// worker в обход backend-а. Диагностический инструмент.
func (p *PushManager) ShowTestNotification(title, message string) bool {
	reg := p.RegisterServiceWorker()
	if reg == nil {
		return false
	}
	if err := reg.ShowNotification(title, message); err != nil {
		p.logger.Warn("push: тестовое уведомление не показано", zap.Error(err))
		return false
	}
	return true
}

func (p *PushManager) fetchVAPIDKey(ctx context.Context) (string, bool) {
	var body struct {
		PublicKey string `json:"publicKey"`
	}
	if !p.doJSON(ctx, http.MethodGet, p.cfg.BaseURL+"/api/push/key", nil, &body) {
		return "", false
	}
	if body.PublicKey == "" {
		p.logger.Warn("push: backend вернул пустой VAPID-ключ")
		return "", false
	}
	return body.PublicKey, true
}

func (p *PushManager) persistSubscription(ctx context.Context, sub *PushSubscription) bool {
	if !p.doJSON(ctx, http.MethodPost, p.cfg.BaseURL+"/api/push/subscriptions", sub, nil) {
		p.logger.Warn("push: подписка не сохранена на backend-е")
		return false
	}
	return true
}

// doJSON — один обмен с backend-ом. Никогда не паникует; любой сбой —
// это false.
func (p *PushManager) doJSON(ctx context.Context, method, url string, in, out interface{}) bool {
	var reqBody *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			p.logger.Warn("push: ошибка сериализации запроса", zap.Error(err))
			return false
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		p.logger.Warn("push: ошибка формирования запроса", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if p.creds != nil && p.creds.Token() != "" {
		req.Header.Set("Authorization", "Bearer "+p.creds.Token())
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("push: запрос к backend-у не прошёл", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		p.logger.Warn("push: backend вернул ошибку", zap.Int("status", resp.StatusCode))
		return false
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			p.logger.Warn("push: нечитаемый ответ backend-а", zap.Error(err))
			return false
		}
	}
	return true
}
