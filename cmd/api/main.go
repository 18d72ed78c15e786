package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/invoicing-core/internal/bootstrap"
	httpRouter "github.com/jhoicas/invoicing-core/internal/interfaces/http"
	"github.com/jhoicas/invoicing-core/pkg/config"
	"github.com/jhoicas/invoicing-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.Log.Level,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := bootstrap.New(ctx, cfg, log.Zerolog())
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar dependencias")
	}
	defer c.Close()

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Invoicing Core API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})
	app.Get("/metrics", adaptor.HTTPHandler(c.Metrics.Handler()))

	httpRouter.Router(app, httpRouter.RouterDeps{
		InvoiceRepo:   c.InvoiceRepo,
		Finalize:      c.Finalize,
		Lifecycle:     c.Lifecycle,
		Promotion:     c.Promotion,
		PDF:           c.PDF,
		FinanceStatus: c.FinanceStatus,
		JWTSecret:     cfg.JWT.Secret,
		Log:           log.Component("http"),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Listen(cfg.HTTP.Addr())
	})

	if cfg.Billing.SchedulerEnabled {
		for _, task := range c.Tasks() {
			if err := task.Start(gctx); err != nil {
				log.Fatal().Err(err).Msg("arrancar tarea periódica")
			}
			g.Go(func() error {
				<-gctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				return task.Stop(stopCtx)
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("señal de apagado recibida, cerrando servidor...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("apagado con errores")
	}

	log.Info().Msg("aplicación detenida")
}
