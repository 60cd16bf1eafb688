package utils

import (
	"github.com/labstack/echo/v4"

	"notification-system/pkg/contextkeys"
	apperrors "notification-system/pkg/errors"
)

// GetUserIDFromCtx достаёт UserID, положенный auth-middleware.
func GetUserIDFromCtx(ctx echo.Context) (uint64, error) {
	userID, ok := ctx.Request().Context().Value(contextkeys.UserIDKey).(uint64)
	if !ok || userID == 0 {
		return 0, apperrors.ErrUserIDNotFoundInContext
	}
	return userID, nil
}

// GetUserTypeFromCtx достаёт тип пользователя из контекста запроса.
func GetUserTypeFromCtx(ctx echo.Context) string {
	userType, _ := ctx.Request().Context().Value(contextkeys.UserTypeKey).(string)
	return userType
}
