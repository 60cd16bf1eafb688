package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"notification-system/internal/dto"
	"notification-system/internal/events"
	"notification-system/pkg/eventbus"
	apperrors "notification-system/pkg/errors"
	"notification-system/pkg/utils"
)

type EventController struct {
	bus    *eventbus.Bus
	logger *zap.Logger
}

func NewEventController(bus *eventbus.Bus, logger *zap.Logger) *EventController {
	return &EventController{bus: bus, logger: logger}
}

// Ingest принимает доменное событие от бэкофиса и публикует его в
// шину. Слушатели отрабатывают асинхронно, поэтому ответ — 202.
func (c *EventController) Ingest(ctx echo.Context) error {
	var payload dto.IngestEventDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return err
	}

	var event eventbus.Event
	switch payload.Event {
	case "order.status.changed":
		if payload.NewStatus == "" {
			return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
		}
		event = events.OrderStatusChangedEvent{
			OrderID:    payload.OrderID,
			UserID:     payload.UserID,
			OldStatus:  payload.OldStatus,
			NewStatus:  payload.NewStatus,
			TxID:       payload.TxID,
			ActorName:  payload.ActorName,
			Commentary: payload.Commentary,
		}
	case "invoice.issued":
		if payload.InvoiceID == 0 || payload.Amount == "" {
			return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
		}
		event = events.InvoiceIssuedEvent{
			InvoiceID: payload.InvoiceID,
			OrderID:   payload.OrderID,
			UserID:    payload.UserID,
			Amount:    payload.Amount,
		}
	case "delivery.scheduled":
		if payload.ScheduledAt == "" {
			return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
		}
		event = events.DeliveryScheduledEvent{
			OrderID:     payload.OrderID,
			UserID:      payload.UserID,
			ScheduledAt: payload.ScheduledAt,
		}
	default:
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}

	c.bus.Publish(ctx.Request().Context(), event)
	return utils.SuccessResponse(ctx, struct{}{}, "Событие принято", http.StatusAccepted)
}
