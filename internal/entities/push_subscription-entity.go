package entities

import (
	"time"

	"github.com/aarondl/null/v8"
)

// PushSubscription — учётные данные push-сервиса браузера,
// зарегистрированные за пользователем. RevokedAt выставляется при
// отписке или ротации подписки браузером.
type PushSubscription struct {
	ID        uint64
	UserID    uint64
	Endpoint  string
	P256dh    string
	Auth      string
	UserAgent null.String
	CreatedAt time.Time
	RevokedAt null.Time
}

// Active сообщает, можно ли доставлять по этой подписке.
func (s *PushSubscription) Active() bool {
	return !s.RevokedAt.Valid
}
