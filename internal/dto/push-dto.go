package dto

// PushKeysDTO — ключи шифрования подписки.
type PushKeysDTO struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}

// RegisterPushSubscriptionDTO — тело POST/DELETE /api/push/subscriptions.
type RegisterPushSubscriptionDTO struct {
	Endpoint string      `json:"endpoint" validate:"required,url"`
	Keys     PushKeysDTO `json:"keys" validate:"required"`
}

// PushKeyDTO — ответ GET /api/push/key.
type PushKeyDTO struct {
	PublicKey string `json:"publicKey"`
}
