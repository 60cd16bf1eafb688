// Файл: main.go

package main

import (
	"context"
	"database/sql"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"notification-system/internal/listeners"
	"notification-system/internal/repositories"
	"notification-system/internal/routes"
	"notification-system/internal/services"
	"notification-system/migrations"
	"notification-system/pkg/config"
	"notification-system/pkg/database/postgresql"
	apperrors "notification-system/pkg/errors"
	"notification-system/pkg/eventbus"
	applogger "notification-system/pkg/logger"
	"notification-system/pkg/service"
	"notification-system/pkg/telegram"
	"notification-system/pkg/utils"
	appwebsocket "notification-system/pkg/websocket"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	e := echo.New()
	logger := applogger.NewLogger()

	// config.New сам подхватывает .env через godotenv
	cfg := config.New()

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("!!! ОБНАРУЖЕНА ПАНИКА (PANIC) !!!",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err)
				utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"http://localhost:5173"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Content-Disposition"},
	}))

	e.Validator = utils.NewValidator(validator.New())

	dbConn, err := postgresql.ConnectDB(cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("не удалось подключиться к PostgreSQL", zap.Error(err))
	}
	defer dbConn.Close()

	// goose работает поверх database/sql, поэтому миграции катим
	// через отдельное соединение stdlib-драйвера pgx.
	migrationDB, err := sql.Open("pgx", cfg.Postgres.DSN)
	if err != nil {
		logger.Fatal("не удалось открыть соединение для миграций", zap.Error(err))
	}
	if err := migrations.Up(migrationDB); err != nil {
		logger.Fatal("ошибка применения миграций", zap.Error(err))
	}
	if err := migrationDB.Close(); err != nil {
		logger.Warn("не удалось закрыть соединение миграций", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Fatal("не удалось подключиться к Redis", zap.Error(err), zap.String("address", cfg.Redis.Address))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := appwebsocket.NewHub(logger)
	go hub.Run(ctx)

	bus := eventbus.New(logger)

	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)

	notificationRepo := repositories.NewNotificationRepository(dbConn, logger)
	pushRepo := repositories.NewPushSubscriptionRepository(dbConn, logger)
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)

	pushSender := services.NewWebPushSender(cfg.Push, logger)
	telegramService := telegram.NewService(cfg.Telegram.BotToken)

	notificationService := services.NewNotificationService(
		notificationRepo,
		pushRepo,
		cacheRepo,
		hub,
		pushSender,
		telegramService,
		cfg.Telegram,
		cfg.Stream.RecentLimit,
		logger,
	)
	exportService := services.NewExportService(notificationRepo, logger)

	listener := listeners.NewNotificationListener(notificationService, cfg.Stream.GroupingDelay, logger)
	listener.Register(bus)

	routes.InitRouter(e, hub, notificationService, exportService, pushRepo, bus, jwtSvc, cfg, logger)

	go func() {
		logger.Info("🚀 Сервер запущен", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Ошибка запуска сервера", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Получен сигнал остановки, завершаем работу")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка при остановке сервера", zap.Error(err))
	}
	if err := redisClient.Close(); err != nil {
		logger.Warn("не удалось закрыть Redis", zap.Error(err))
	}
}
