package controllers

import (
	"net/http"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"notification-system/internal/dto"
	"notification-system/internal/entities"
	"notification-system/internal/repositories"
	"notification-system/pkg/config"
	apperrors "notification-system/pkg/errors"
	"notification-system/pkg/utils"
)

type PushController struct {
	pushRepo repositories.PushSubscriptionRepositoryInterface
	pushCfg  config.PushConfig
	logger   *zap.Logger
}

func NewPushController(
	pushRepo repositories.PushSubscriptionRepositoryInterface,
	pushCfg config.PushConfig,
	logger *zap.Logger,
) *PushController {
	return &PushController{
		pushRepo: pushRepo,
		pushCfg:  pushCfg,
		logger:   logger,
	}
}

// GetKey — обмен публичным ключом: клиент подписывается на push с этим
// VAPID-ключом.
func (c *PushController) GetKey(ctx echo.Context) error {
	if c.pushCfg.VAPIDPublicKey == "" {
		return utils.ErrorResponse(ctx, apperrors.ErrNotFound, c.logger)
	}
	return utils.SuccessResponse(ctx, dto.PushKeyDTO{PublicKey: c.pushCfg.VAPIDPublicKey}, "VAPID ключ", http.StatusOK)
}

// Subscribe регистрирует подписку браузера за пользователем.
func (c *PushController) Subscribe(ctx echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.RegisterPushSubscriptionDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return err
	}

	sub := entities.PushSubscription{
		UserID:    userID,
		Endpoint:  payload.Endpoint,
		P256dh:    payload.Keys.P256dh,
		Auth:      payload.Keys.Auth,
		UserAgent: null.StringFrom(ctx.Request().UserAgent()),
		CreatedAt: time.Now().UTC(),
	}
	if err := c.pushRepo.Upsert(ctx.Request().Context(), sub); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	c.logger.Info("push: подписка зарегистрирована", zap.Uint64("userID", userID))
	return utils.SuccessResponse(ctx, struct{}{}, "Подписка сохранена", http.StatusCreated)
}

// Unsubscribe отзывает подписку: браузер ротировал её или пользователь
// отключил уведомления.
func (c *PushController) Unsubscribe(ctx echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.RegisterPushSubscriptionDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	if payload.Endpoint == "" {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}

	if err := c.pushRepo.Revoke(ctx.Request().Context(), userID, payload.Endpoint); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	c.logger.Info("push: подписка отозвана", zap.Uint64("userID", userID))
	return utils.SuccessResponse(ctx, struct{}{}, "Подписка отозвана", http.StatusOK)
}
