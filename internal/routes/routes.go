package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"notification-system/internal/controllers"
	"notification-system/internal/repositories"
	"notification-system/internal/services"
	"notification-system/pkg/config"
	"notification-system/pkg/eventbus"
	"notification-system/pkg/middleware"
	"notification-system/pkg/service"
	appwebsocket "notification-system/pkg/websocket"
)

// InitRouter собирает контроллеры и вешает маршруты. Websocket-канал
// открыт без auth-middleware: токен проверяется в самом контроллере,
// потому что приходит query-параметром.
func InitRouter(
	e *echo.Echo,
	hub *appwebsocket.Hub,
	notificationService services.NotificationServiceInterface,
	exportService services.ExportServiceInterface,
	pushRepo repositories.PushSubscriptionRepositoryInterface,
	bus *eventbus.Bus,
	jwtSvc service.JWTService,
	cfg *config.Config,
	logger *zap.Logger,
) {
	authMW := middleware.NewAuthMiddleware(jwtSvc, logger)

	notificationController := controllers.NewNotificationController(notificationService, exportService, logger)
	pushController := controllers.NewPushController(pushRepo, cfg.Push, logger)
	streamController := controllers.NewStreamController(hub, jwtSvc, logger)
	eventController := controllers.NewEventController(bus, logger)

	e.GET("/ws/notifications", streamController.ServeWs)

	api := e.Group("/api", authMW.Auth)
	api.GET("/notifications/recent", notificationController.GetRecent)
	api.POST("/notifications", notificationController.Store)
	api.PATCH("/notifications/:id/read", notificationController.MarkRead)
	api.GET("/notifications/export", notificationController.Export)

	api.GET("/push/key", pushController.GetKey)
	api.POST("/push/subscriptions", pushController.Subscribe)
	api.DELETE("/push/subscriptions", pushController.Unsubscribe)

	api.POST("/events", eventController.Ingest)
}
