// Package bootstrap construye el grafo de dependencias compartido por la API y el CLI.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/jhoicas/invoicing-core/internal/application/auth"
	"github.com/jhoicas/invoicing-core/internal/application/billing"
	"github.com/jhoicas/invoicing-core/internal/application/usecase"
	"github.com/jhoicas/invoicing-core/internal/domain/lifecycle"
	"github.com/jhoicas/invoicing-core/internal/infrastructure/event"
	"github.com/jhoicas/invoicing-core/internal/infrastructure/metrics"
	infrapdf "github.com/jhoicas/invoicing-core/internal/infrastructure/pdf"
	"github.com/jhoicas/invoicing-core/internal/infrastructure/postgres"
	"github.com/jhoicas/invoicing-core/internal/infrastructure/redislock"
	"github.com/jhoicas/invoicing-core/internal/infrastructure/scheduler"
	"github.com/jhoicas/invoicing-core/internal/infrastructure/storage"
	"github.com/jhoicas/invoicing-core/pkg/config"
)

// Nombres de las tareas periódicas (también clave del lock en Redis).
const (
	TaskPromotionSweep = "promotion-sweep"
	TaskPDFSweep       = "pdf-sweep"
)

// Container agrupa repositorios, casos de uso e infraestructura ya conectados.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	Pool        *pgxpool.Pool
	InvoiceRepo *postgres.InvoiceRepo
	Metrics     *metrics.Metrics
	Bus         *event.Bus
	Storage     *storage.S3Storage // nil si S3_BUCKET no está configurado
	Redis       *redis.Client      // nil si REDIS_ADDR no está configurado
	Locker      *redislock.Locker

	Finalize      *billing.FinalizeInvoiceUseCase
	Lifecycle     *billing.LifecycleUseCase
	Promotion     *billing.PromotionUseCase
	PDF           *billing.PDFUseCase
	FinanceStatus *billing.FinanceStatusUseCase
	Companies     *usecase.CompanyUseCase
	Tokens        *auth.TokenUseCase
}

// BillingConfig proyecta la sección Billing a la configuración del núcleo.
func BillingConfig(c config.BillingConfig) billing.Config {
	return billing.Config{
		AutoAdvanceOnErpPaid:       c.AutoAdvanceOnErpPaid,
		PromotionUsesFinanceStatus: c.PromotionUsesFinanceStatus,
		DefaultDueDays:             c.DefaultDueDays,
		PromotionBatchSize:         c.PromotionBatchSize,
		PDFBatchSize:               c.PDFBatchSize,
	}
}

// New abre el pool (y opcionalmente aplica migraciones), S3 y Redis, y conecta los casos de uso.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{Config: cfg, Log: log}

	if cfg.DB.AutoMigrate {
		if err := Migrate(cfg.DB.ConnectionString(), log, true); err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	c.Pool = pool

	if cfg.Storage.Enabled() {
		s3Store, err := storage.NewS3Storage(ctx, cfg.Storage, log)
		if err != nil {
			c.Close()
			return nil, err
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			c.Close()
			return nil, err
		}
		c.Storage = s3Store
	} else {
		log.Warn().Msg("S3_BUCKET vacío: barrido de PDFs desactivado, solo descarga bajo demanda")
	}

	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			c.Close()
			return nil, fmt.Errorf("conexión a Redis: %w", err)
		}
		c.Redis = rdb
		c.Locker = redislock.New(rdb, "")
	}

	c.Metrics = metrics.New()
	c.Bus = event.NewBus(log)
	c.Bus.Subscribe(event.AuditHandler(log))
	c.Bus.Subscribe(c.Metrics)

	c.wire()
	return c, nil
}

func (c *Container) wire() {
	billingCfg := BillingConfig(c.Config.Billing)
	stateMachine := lifecycle.NewStateMachine(c.Bus, time.Now)
	txRunner := postgres.NewTxRunner(c.Pool)
	c.InvoiceRepo = postgres.NewInvoiceRepository(c.Pool)
	companyRepo := postgres.NewCompanyRepository(c.Pool)

	c.Finalize = billing.NewFinalizeInvoiceUseCase(txRunner, c.InvoiceRepo, stateMachine, billingCfg, time.Now, c.Log)
	c.Lifecycle = billing.NewLifecycleUseCase(txRunner, stateMachine, time.Now, c.Log)
	c.FinanceStatus = billing.NewFinanceStatusUseCase(txRunner, stateMachine, billingCfg, time.Now, c.Log)
	c.Promotion = billing.NewPromotionUseCase(c.InvoiceRepo, c.Finalize, billingCfg, c.Metrics, c.Log)

	var artifacts billing.ArtifactStorage
	if c.Storage != nil {
		artifacts = c.Storage
	}
	c.PDF = billing.NewPDFUseCase(
		c.InvoiceRepo, companyRepo, infrapdf.NewMarotoPDFGenerator(""), artifacts,
		billingCfg, time.Now, c.Metrics, c.Log,
	)

	c.Companies = usecase.NewCompanyUseCase(companyRepo)
	c.Tokens = auth.NewTokenUseCase(companyRepo, auth.JWTConfig{
		Secret:     c.Config.JWT.Secret,
		ExpMinutes: c.Config.JWT.Expiration,
		Issuer:     c.Config.JWT.Issuer,
	})
}

// Tasks barridos periódicos con métricas y, si hay Redis, lock distribuido.
func (c *Container) Tasks() []*scheduler.PeriodicTask {
	opts := []scheduler.Option{scheduler.WithObserver(c.Metrics)}
	if c.Locker != nil {
		opts = append(opts, scheduler.WithLocker(c.Locker))
	}
	log := c.Log.With().Str("component", "scheduler").Logger()

	tasks := []*scheduler.PeriodicTask{
		scheduler.NewPeriodicTask(TaskPromotionSweep, c.Config.Billing.PromotionInterval, func(ctx context.Context) error {
			_, err := c.Promotion.RunSweep(ctx)
			return err
		}, log, opts...),
	}
	if c.Storage != nil {
		tasks = append(tasks, scheduler.NewPeriodicTask(TaskPDFSweep, c.Config.Billing.PDFInterval, func(ctx context.Context) error {
			_, err := c.PDF.RunSweep(ctx)
			return err
		}, log, opts...))
	}
	return tasks
}

// Close libera pool y Redis.
func (c *Container) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// Migrate aplica (up=true) o revierte (up=false) las migraciones embebidas.
func Migrate(dsn string, log zerolog.Logger, up bool) error {
	mg, err := postgres.NewMigrator(dsn, log)
	if err != nil {
		return err
	}
	defer func() { _ = mg.Close() }()
	if up {
		return mg.Up()
	}
	return mg.Down()
}
