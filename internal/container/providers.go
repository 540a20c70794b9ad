package container

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldops/field-reports/internal/application/dispatcher"
	"github.com/fieldops/field-reports/internal/application/port"
	"github.com/fieldops/field-reports/internal/application/service"
	"github.com/fieldops/field-reports/internal/domain/event"
	"github.com/fieldops/field-reports/internal/domain/schema"
	"github.com/fieldops/field-reports/internal/form"
	"github.com/fieldops/field-reports/internal/infrastructure/external/lark"
	"github.com/fieldops/field-reports/internal/infrastructure/external/submission"
	"github.com/fieldops/field-reports/internal/infrastructure/persistence/draftstore"
	"github.com/fieldops/field-reports/internal/infrastructure/storage"
	"github.com/fieldops/field-reports/internal/metrics"
	"github.com/fieldops/field-reports/internal/review"
	"github.com/fieldops/field-reports/pkg/database"
	"go.uber.org/zap"
)

// StoreBundle holds the draft store and whatever it must close.
type StoreBundle struct {
	Store *draftstore.Store
	DB    *database.DB
	Close func() error
}

// ProvideDatabase opens the SQLite database and applies pending migrations.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*database.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(ctx, cfg.MigrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// ProvideDraftStore builds the draft store over the configured backend.
func ProvideDraftStore(ctx context.Context, cfg *Config, logger *zap.Logger) (*StoreBundle, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		db, err := ProvideDatabase(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		backend := draftstore.NewSQLiteBackend(db.DB, logger)
		return &StoreBundle{
			Store: draftstore.New(backend, logger),
			DB:    db,
			Close: db.Close,
		}, nil

	case "redis":
		backend := draftstore.NewRedisBackend(draftstore.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Namespace: cfg.Redis.Namespace,
		}, logger)
		if err := backend.Ping(ctx); err != nil {
			backend.Close()
			return nil, err
		}
		return &StoreBundle{
			Store: draftstore.New(backend, logger),
			Close: backend.Close,
		}, nil

	case "memory":
		logger.Warn("Using in-memory draft store; drafts are lost on exit")
		return &StoreBundle{
			Store: draftstore.New(draftstore.NewMemoryBackend(), logger),
			Close: func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// ProvideSchemas returns the built-in catalog plus any definitions in dir.
func ProvideSchemas(dir string, logger *zap.Logger) (*schema.Registry, error) {
	registry := schema.NewDefaultRegistry()
	if dir == "" {
		return registry, nil
	}

	loader, err := schema.NewLoader(logger)
	if err != nil {
		return nil, err
	}
	n, err := loader.LoadDir(dir, registry)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema definitions: %w", err)
	}
	logger.Info("Schema definitions loaded", zap.String("dir", dir), zap.Int("count", n))
	return registry, nil
}

// ProvideSubmissionClient creates the reports API client.
func ProvideSubmissionClient(cfg *SubmissionConfig, logger *zap.Logger) *submission.Client {
	return submission.NewClient(submission.Config{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
	}, submission.StaticToken(cfg.Token), logger)
}

// ProvideNotifier returns the Lark notifier, or a no-op one when disabled.
func ProvideNotifier(cfg *LarkConfig, logger *zap.Logger) (port.SubmissionNotifier, error) {
	if !cfg.Enabled {
		return lark.NopNotifier{}, nil
	}

	client := lark.NewSDKClient(lark.Config{
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		ReceiveIDType: cfg.ReceiveIDType,
		ReceiveID:     cfg.ReceiveID,
	}, logger)
	notifier, err := lark.NewNotifier(lark.NewMessenger(client, logger), cfg.ReceiveIDType, cfg.ReceiveID, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create lark notifier: %w", err)
	}
	return notifier, nil
}

// ProvideStorage creates the export file storage.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if err := os.MkdirAll(cfg.ExportDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return storage.NewLocalFileStorage(cfg.ExportDir, logger), nil
}

// ProvideEvents creates the lifecycle event dispatcher with the audit log and
// metrics subscribers attached.
func ProvideEvents(logger *zap.Logger) dispatcher.Dispatcher {
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(NewLoggerAdapter(logger)))

	d.SubscribeAll("audit-log", func(ctx context.Context, evt *event.Event) error {
		logger.Info("Draft event",
			zap.String("event_id", evt.ID),
			zap.Stringer("event_type", evt.Type),
			zap.String("report_type", evt.ReportType),
			zap.String("draft_id", evt.DraftID),
			zap.Int("version", evt.Version),
			zap.String("report_id", evt.ServerID),
		)
		return nil
	})
	d.SubscribeAll("metrics", func(ctx context.Context, evt *event.Event) error {
		metrics.DraftEvents.WithLabelValues(evt.ReportType, evt.Type.String()).Inc()
		return nil
	})
	return d
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Registry *schema.Registry
	Store    *draftstore.Store
	Client   port.ReportClient
	Notifier port.SubmissionNotifier
	Files    port.FileStorage
	Photos   *form.PhotoIngester
	Events   dispatcher.Dispatcher
	Logger   *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("schema registry is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("draft store is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}
	locks := service.NewKeyLocks()

	newEngine := func(s *schema.Schema) *form.Engine {
		return form.NewEngine(s, deps.Store, deps.Logger, form.WithPhotoIngester(deps.Photos))
	}
	controller := review.NewController(deps.Store, deps.Client, deps.Notifier, deps.Logger)

	var opts []service.Option
	if deps.Events != nil {
		opts = append(opts, service.WithEvents(deps.Events))
	}

	return &ServiceBundle{
		Drafts: service.NewDraftService(deps.Registry, deps.Store, newEngine, locks, serviceLogger, opts...),
		Reviews: service.NewReviewService(
			deps.Registry,
			controller,
			review.NewExcelExporter(deps.Logger),
			deps.Files,
			locks,
			serviceLogger,
			opts...,
		),
	}, nil
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// NewLoggerAdapter exposes the adapter to other wiring code.
func NewLoggerAdapter(logger *zap.Logger) service.Logger {
	return &zapLoggerAdapter{logger: logger}
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
