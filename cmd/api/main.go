package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/kiosco-api/internal/application/inventory"
	"github.com/jhoicas/kiosco-api/internal/application/notification"
	"github.com/jhoicas/kiosco-api/internal/application/realtime"
	"github.com/jhoicas/kiosco-api/internal/application/status"
	"github.com/jhoicas/kiosco-api/internal/infrastructure/mail"
	"github.com/jhoicas/kiosco-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/kiosco-api/internal/interfaces/http"
	"github.com/jhoicas/kiosco-api/pkg/config"
	"github.com/jhoicas/kiosco-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	// Repositorios sobre el pool (los atados a tx los crea TxRunner)
	stockRepo := postgres.NewStockRepository(pool)
	snapshotRepo := postgres.NewSnapshotRepository(pool)
	configRepo := postgres.NewConfigRepository(pool)
	notifRepo := postgres.NewNotificationLogRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Estado del kiosco y capa de broadcast
	statusSvc := status.NewService(configRepo, cfg.Kiosk.Timezone, log)
	hub := realtime.NewHub(statusSvc, nil, realtime.Config{
		PollEvery:      cfg.Kiosk.StatusPollEvery,
		KeepAliveEvery: cfg.Kiosk.KeepAliveEvery,
	}, log)

	// Pipeline de notificaciones y motor de inventario
	notifier := notification.NewPipeline(notifRepo, configRepo, log)
	engine := inventory.NewEngine(txRunner, stockRepo, snapshotRepo, configRepo, notifier, hub, log)
	hub.SetTrackingSource(engine)

	// Worker de entrega: exclusión entre réplicas vía advisory lock
	workerLock := postgres.NewAdvisoryLock(pool, cfg.Kiosk.WorkerLockName)
	senderFactory := func() (notification.Sender, error) {
		return mail.NewSMTPSender(cfg.SMTP)
	}
	worker := notification.NewWorker(notifRepo, senderFactory, workerLock, notification.WorkerConfig{
		PollEvery:  cfg.Kiosk.WorkerPollEvery,
		BatchSize:  cfg.Kiosk.WorkerBatchSize,
		StaleAfter: cfg.Kiosk.LockStaleAfter,
	}, log)
	worker.Start(ctx)

	app := fiber.New(fiber.Config{
		AppName:     cfg.App.Name,
		ReadTimeout: time.Second * 10,
		IdleTimeout: time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Kiosco API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Engine:     engine,
		StatusSvc:  statusSvc,
		ConfigRepo: configRepo,
		Hub:        hub,
		JWTSecret:  cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	// El worker suelta el advisory lock antes de salir; el hub cierra las
	// conexiones abiertas.
	worker.Stop(shutdownCtx)
	hub.Shutdown()

	log.Info().Msg("aplicación detenida")
}
