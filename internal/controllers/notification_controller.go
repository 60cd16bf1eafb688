package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"notification-system/internal/dto"
	"notification-system/internal/services"
	apperrors "notification-system/pkg/errors"
	"notification-system/pkg/utils"
)

type NotificationController struct {
	notificationService services.NotificationServiceInterface
	exportService       services.ExportServiceInterface
	logger              *zap.Logger
}

func NewNotificationController(
	notificationService services.NotificationServiceInterface,
	exportService services.ExportServiceInterface,
	logger *zap.Logger,
) *NotificationController {
	return &NotificationController{
		notificationService: notificationService,
		exportService:       exportService,
		logger:              logger,
	}
}

// GetRecent — холодный старт клиента: последние N уведомлений,
// новые первыми.
func (c *NotificationController) GetRecent(ctx echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))

	result, err := c.notificationService.Recent(ctx.Request().Context(), userID, limit)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, result, "Последние уведомления", http.StatusOK)
}

// Store — write-through от клиентского конвейера: уведомление уже
// показано, здесь только журналируется.
func (c *NotificationController) Store(ctx echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var payload dto.CreateNotificationDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return err
	}

	result, err := c.notificationService.Record(ctx.Request().Context(), userID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, result, "Уведомление сохранено", http.StatusCreated)
}

// MarkRead — синхронизация флага прочтения из клиента.
func (c *NotificationController) MarkRead(ctx echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	id := ctx.Param("id")
	if id == "" {
		return utils.ErrorResponse(ctx, apperrors.ErrBadRequest, c.logger)
	}

	if err := c.notificationService.MarkRead(ctx.Request().Context(), userID, id); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, struct{}{}, "Уведомление прочитано", http.StatusOK)
}

// Export — выгрузка журнала уведомлений пользователя в xlsx.
func (c *NotificationController) Export(ctx echo.Context) error {
	userID, err := utils.GetUserIDFromCtx(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	f, err := c.exportService.BuildReport(ctx.Request().Context(), userID)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	fileName := fmt.Sprintf("notifications_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set("Content-Disposition", "attachment; filename="+fileName)
	ctx.Response().WriteHeader(http.StatusOK)
	return f.Write(ctx.Response().Writer)
}
