package controllers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"notification-system/pkg/service"
	appwebsocket "notification-system/pkg/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamController — точка подключения клиентского конвейера к
// источнику событий. Токен приходит query-параметром: браузерный
// WebSocket не умеет ставить заголовки.
type StreamController struct {
	hub        *appwebsocket.Hub
	jwtService service.JWTService
	logger     *zap.Logger
}

func NewStreamController(hub *appwebsocket.Hub, jwtService service.JWTService, logger *zap.Logger) *StreamController {
	return &StreamController{
		hub:        hub,
		jwtService: jwtService,
		logger:     logger,
	}
}

func (c *StreamController) ServeWs(ctx echo.Context) error {
	tokenString := ctx.QueryParam("token")
	if tokenString == "" {
		return ctx.String(http.StatusUnauthorized, "Missing token")
	}

	claims, err := c.jwtService.ValidateToken(tokenString)
	if err != nil || claims.IsRefreshToken {
		// 401 до upgrade — клиент понимает это как терминальный отказ
		// аутентификации и не ретраит с тем же токеном.
		return ctx.String(http.StatusUnauthorized, "Invalid token")
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		c.logger.Error("websocket: не удалось улучшить соединение", zap.Error(err))
		return err
	}

	client := appwebsocket.NewClient(c.hub, conn, claims.UserID, c.logger)
	client.Hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	c.logger.Info("websocket: клиент успешно подключен", zap.Uint64("userID", claims.UserID))
	return nil
}
