package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fieldops/field-reports/internal/application/dispatcher"
	"github.com/fieldops/field-reports/internal/application/port"
	"github.com/fieldops/field-reports/internal/application/service"
	"github.com/fieldops/field-reports/internal/domain/schema"
	"github.com/fieldops/field-reports/internal/form"
	"github.com/fieldops/field-reports/internal/infrastructure/external/submission"
	"github.com/fieldops/field-reports/internal/infrastructure/persistence/draftstore"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle. Components
// are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	stores *StoreBundle

	// Infrastructure - External
	client   *submission.Client
	notifier port.SubmissionNotifier

	// Infrastructure - Storage
	fileStorage port.FileStorage

	// Application
	events   dispatcher.Dispatcher
	registry *schema.Registry
	services *ServiceBundle

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Drafts  service.DraftService
	Reviews service.ReviewService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components:
// 1. Schemas
// 2. Draft store
// 3. External clients (reports API, Lark)
// 4. Storage
// 5. Event dispatcher and application services
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	registry, err := ProvideSchemas(c.config.Storage.SchemaDir, c.logger)
	if err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}
	c.registry = registry
	c.logger.Info("Schemas loaded", zap.Int("count", len(registry.List())))

	stores, err := ProvideDraftStore(ctx, c.config, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize draft store: %w", err)
	}
	c.stores = stores
	c.logger.Info("Draft store initialized", zap.String("backend", stores.Store.Backend().Name()))

	c.client = ProvideSubmissionClient(&c.config.Submission, c.logger)
	notifier, err := ProvideNotifier(&c.config.Lark, c.logger)
	if err != nil {
		c.closeStores()
		return err
	}
	c.notifier = notifier
	c.logger.Info("External clients initialized", zap.Bool("lark_enabled", c.config.Lark.Enabled))

	files, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		c.closeStores()
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.fileStorage = files
	c.logger.Info("Storage initialized")

	c.events = ProvideEvents(c.logger)
	services, err := ProvideServices(&ServiceDeps{
		Registry: c.registry,
		Store:    c.stores.Store,
		Client:   c.client,
		Notifier: c.notifier,
		Files:    c.fileStorage,
		Photos:   form.NewPhotoIngester(c.config.Photos.MaxBytes, c.logger),
		Events:   c.events,
		Logger:   c.logger,
	})
	if err != nil {
		c.events.Close()
		c.closeStores()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close drains pending events and releases the draft store.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	if c.events != nil {
		if err := c.events.Close(); err != nil {
			c.logger.Error("Failed to close event dispatcher", zap.Error(err))
		}
	}
	err := c.closeStores()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		return fmt.Errorf("close draft store: %w", err)
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) closeStores() error {
	if c.stores == nil || c.stores.Close == nil {
		return nil
	}
	if err := c.stores.Close(); err != nil {
		c.logger.Error("Failed to close draft store", zap.Error(err))
		return err
	}
	c.stores = nil
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	switch {
	case c.stores == nil:
		status.Components["draft_store"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	default:
		_, err := c.stores.Store.ListAll(ctx, "__health")
		if err != nil {
			status.Components["draft_store"] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
		} else {
			status.Components["draft_store"] = ComponentHealth{Healthy: true, Message: c.stores.Store.Backend().Name()}
		}
	}

	if c.stores != nil && c.stores.DB != nil {
		open, err := c.stores.DB.Check(ctx)
		if err != nil {
			status.Components["database"] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true, Message: fmt.Sprintf("open connections: %d", open)}
		}
	}

	if c.registry != nil {
		status.Components["schemas"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("report types: %d", len(c.registry.List())),
		}
	} else {
		status.Components["schemas"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	return status
}

// Getters for accessing container components

// Registry returns the schema registry.
func (c *Container) Registry() *schema.Registry {
	return c.registry
}

// DraftStore returns the draft store.
func (c *Container) DraftStore() *draftstore.Store {
	if c.stores == nil {
		return nil
	}
	return c.stores.Store
}

// Events returns the lifecycle event dispatcher.
func (c *Container) Events() dispatcher.Dispatcher {
	return c.events
}

// ReportClient returns the reports API client, nil before Start.
func (c *Container) ReportClient() port.ReportClient {
	if c.client == nil {
		return nil
	}
	return c.client
}

// FileStorage returns the export storage.
func (c *Container) FileStorage() port.FileStorage {
	return c.fileStorage
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}
