package notifyclient

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"notification-system/pkg/backoff"
)

// State — состояние живого канала. Владеет им только ConnectionManager,
// все остальные — наблюдатели.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Коды закрытия, которыми сервер сообщает об отвергнутой аутентификации.
// Такие закрытия не ретраятся с тем же токеном.
const (
	CloseAuthExpired  = 4001
	CloseAuthRejected = 4003
)

// Credentials — параметры подключения к источнику событий.
type Credentials struct {
	Token    string
	UserType string
	UserID   string
}

func (c Credentials) complete() bool {
	return c.Token != "" && c.UserType != "" && c.UserID != ""
}

// ConnConfig — настройки канала.
type ConnConfig struct {
	// URL источника событий, схема ws:// или wss://.
	URL              string
	HandshakeTimeout time.Duration
	Backoff          backoff.Policy
}

func (c ConnConfig) withDefaults() ConnConfig {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.Backoff.MaxAttempts == 0 {
		c.Backoff = backoff.Default()
	}
	return c
}

// ConnectionManager держит единственный websocket-канал к источнику
// событий и переподключается с ограниченным экспоненциальным backoff.
// Любая ошибка гасится на этой границе и никогда не роняет хост.
type ConnectionManager struct {
	cfg        ConnConfig
	dispatcher *Dispatcher
	logger     *zap.Logger

	mu         sync.Mutex
	creds      Credentials
	state      State
	gen        uint64
	conn       *websocket.Conn
	retryTimer *time.Timer
	attempt    int
	onState    func(State)
}

func NewConnectionManager(cfg ConnConfig, dispatcher *Dispatcher, logger *zap.Logger) *ConnectionManager {
	return &ConnectionManager{
		cfg:        cfg.withDefaults(),
		dispatcher: dispatcher,
		logger:     logger,
		state:      StateDisconnected,
	}
}

// OnStateChange регистрирует наблюдателя переходов состояния.
// Вызывается вне внутренней блокировки.
func (m *ConnectionManager) OnStateChange(fn func(State)) {
	m.mu.Lock()
	m.onState = fn
	m.mu.Unlock()
}

func (m *ConnectionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect идемпотентен: повторный вызов с теми же учётными данными при
// живом канале — no-op; с новыми — канал пересоздаётся. Неполные
// учётные данные оставляют менеджера отключённым без ретраев.
func (m *ConnectionManager) Connect(creds Credentials) {
	m.mu.Lock()
	if !creds.complete() {
		m.logger.Warn("connection: неполные учётные данные, канал не поднимается")
		m.teardownLocked()
		m.creds = creds
		m.setStateLocked(StateDisconnected)
		return
	}
	if m.creds == creds && m.state != StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	m.creds = creds
	m.attempt = 0
	gen := m.gen
	m.setStateLocked(StateConnecting)

	go m.run(gen, creds)
}

// UpdateAuth подменяет учётные данные, например после логина или логаута.
func (m *ConnectionManager) UpdateAuth(token, userType, userID string) {
	m.Connect(Credentials{Token: token, UserType: userType, UserID: userID})
}

// Disconnect освобождает канал. Повторные вызовы безопасны.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	m.teardownLocked()
	m.setStateLocked(StateDisconnected)
}

// setStateLocked меняет состояние и зовёт наблюдателя уже без блокировки.
// Вызывающий должен держать m.mu; после возврата блокировка снята.
func (m *ConnectionManager) setStateLocked(s State) {
	changed := m.state != s
	m.state = s
	cb := m.onState
	m.mu.Unlock()
	if changed && cb != nil {
		cb(s)
	}
}

// teardownLocked обесценивает все запущенные горутины и таймеры текущего
// поколения и закрывает соединение.
func (m *ConnectionManager) teardownLocked() {
	m.gen++
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}

func (m *ConnectionManager) stale(gen uint64) bool {
	return m.gen != gen
}

func (m *ConnectionManager) streamURL(creds Credentials) (string, error) {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", creds.Token)
	q.Set("userType", creds.UserType)
	q.Set("userId", creds.UserID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// run устанавливает соединение и вычитывает события до первой ошибки.
func (m *ConnectionManager) run(gen uint64, creds Credentials) {
	target, err := m.streamURL(creds)
	if err != nil {
		m.logger.Error("connection: некорректный URL источника событий", zap.Error(err))
		m.mu.Lock()
		if m.stale(gen) {
			m.mu.Unlock()
			return
		}
		m.setStateLocked(StateDisconnected)
		return
	}

	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}
	conn, resp, err := dialer.Dial(target, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			m.failAuth(gen, err)
			return
		}
		m.scheduleRetry(gen, creds, err)
		return
	}

	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		_ = conn.Close()
		return
	}
	m.conn = conn
	m.attempt = 0
	m.setStateLocked(StateConnected)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, CloseAuthExpired, CloseAuthRejected) {
				m.failAuth(gen, err)
				return
			}
			m.scheduleRetry(gen, creds, err)
			return
		}
		m.handleMessage(data)
	}
}

// failAuth — терминальный отказ: с тем же токеном не ретраимся,
// восстановление только через UpdateAuth.
func (m *ConnectionManager) failAuth(gen uint64, cause error) {
	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		return
	}
	m.logger.Warn("connection: аутентификация отвергнута, ретраев не будет", zap.Error(cause))
	m.teardownLocked()
	m.setStateLocked(StateDisconnected)
}

// scheduleRetry планирует переподключение либо фиксирует терминальный
// disconnected после исчерпания попыток.
func (m *ConnectionManager) scheduleRetry(gen uint64, creds Credentials, cause error) {
	m.mu.Lock()
	if m.stale(gen) {
		m.mu.Unlock()
		return
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.attempt++
	if m.cfg.Backoff.Exhausted(m.attempt) {
		m.logger.Warn("connection: попытки переподключения исчерпаны",
			zap.Int("attempts", m.attempt-1),
			zap.Error(cause),
		)
		m.setStateLocked(StateDisconnected)
		return
	}

	delay := m.cfg.Backoff.DelayWithJitter(m.attempt)
	m.logger.Info("connection: переподключение",
		zap.Int("attempt", m.attempt),
		zap.Duration("delay", delay),
		zap.Error(cause),
	)
	m.retryTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.stale(gen) {
			m.mu.Unlock()
			return
		}
		m.retryTimer = nil
		m.mu.Unlock()
		m.run(gen, creds)
	})
	m.setStateLocked(StateReconnecting)
}

// handleMessage разбирает входящий кадр. Сломанный payload просто
// логируется и отбрасывается.
func (m *ConnectionManager) handleMessage(data []byte) {
	var envelope struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		m.logger.Warn("connection: нечитаемый кадр отброшен", zap.Error(err))
		return
	}
	if envelope.Type != "notification" {
		return
	}

	var n Notification
	if err := json.Unmarshal(envelope.Payload, &n); err != nil {
		m.logger.Warn("connection: нечитаемое уведомление отброшено", zap.Error(err))
		return
	}
	m.dispatcher.Dispatch(n)
}
