package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.ApiService/health"
	config "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Config"
	ingestor "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Ingestor"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
	query "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Query"
	implementation "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Repository/Implementation"
	interfaces "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Repository/Interfaces"
	retention "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Retention"
	settings "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Settings"
	units "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Units"
)

// Container manages dependencies and their lifecycle
type Container struct {
	config *config.Config
	logger *logger.Logger
	db     *sqlx.DB

	readingRepo   interfaces.ReadingRepository
	pipeline      *ingestor.Pipeline
	queryEngine   *query.Engine
	settings      *settings.Store
	nodeLabels    *settings.NodeLabels
	sweeper       *retention.Sweeper
	healthChecker *health.HealthChecker

	// Mutex for thread-safe access
	mu sync.RWMutex

	// Cleanup functions, run in reverse order on Shutdown
	cleanupFuncs []func() error
}

// IngestorContainer manages dependencies for the gateway bridge service
type IngestorContainer struct {
	config *config.IngestorConfig
	logger *logger.Logger
}

// NewContainer creates a container from the environment
func NewContainer() (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewContainerWithConfig(cfg, logger.NewLogger(&cfg.Logging)), nil
}

// NewContainerWithConfig creates a container from an already loaded configuration
func NewContainerWithConfig(cfg *config.Config, log *logger.Logger) *Container {
	return &Container{
		config: cfg,
		logger: log.WithService("api"),
	}
}

// NewIngestorContainer creates a new container for the gateway bridge service
func NewIngestorContainer() (*IngestorContainer, error) {
	cfg, err := config.LoadIngestorConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load ingestor configuration: %w", err)
	}

	return &IngestorContainer{
		config: cfg,
		logger: logger.NewLogger(&cfg.Logging).WithService("ingestor"),
	}, nil
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetConfig returns the ingestor configuration
func (c *IngestorContainer) GetConfig() *config.IngestorConfig {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logger.Logger {
	return c.logger
}

// GetLogger returns the logger
func (c *IngestorContainer) GetLogger() *logger.Logger {
	return c.logger
}

// GetDatabase returns the database connection, opening it on first use
func (c *Container) GetDatabase(ctx context.Context) (*sqlx.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
		defer cancel()

		var (
			db  *sqlx.DB
			err error
		)
		switch c.config.Database.Driver {
		case implementation.DriverPostgres:
			db, err = implementation.OpenPostgres(ctx, c.config.GetDatabaseDSN(), c.config.Database.MaxConns)
		default:
			db, err = implementation.OpenSQLite(ctx, c.config.GetDatabaseDSN())
		}
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.db = db
		c.cleanupFuncs = append(c.cleanupFuncs, db.Close)
	}

	return c.db, nil
}

// InitializeDatabase opens the store and creates its tables
func (c *Container) InitializeDatabase(ctx context.Context) error {
	if _, err := c.GetDatabase(ctx); err != nil {
		return err
	}
	c.logger.WithField("driver", c.config.Database.Driver).Info("Database initialized successfully")
	return nil
}

// InitializeServices wires the store, pipeline, settings, query engine and sweeper
func (c *Container) InitializeServices(ctx context.Context) error {
	db, err := c.GetDatabase(ctx)
	if err != nil {
		return err
	}

	storageUnit, err := units.ParseUnit(c.config.Ingest.StorageUnit)
	if err != nil {
		return fmt.Errorf("STORAGE_UNIT: %w", err)
	}
	inputUnit, err := units.ParseUnit(c.config.Ingest.InputUnit)
	if err != nil {
		return fmt.Errorf("INPUT_UNIT: %w", err)
	}

	store, err := settings.Open(c.config.Storage.ConfigDir, c.logger)
	if err != nil {
		return fmt.Errorf("failed to open settings: %w", err)
	}
	labels, err := settings.OpenNodeLabels(c.config.Storage.ConfigDir, c.logger)
	if err != nil {
		return fmt.Errorf("failed to open node labels: %w", err)
	}

	repo := implementation.NewSQLReadingRepository(db,
		implementation.WithRequiredFields(c.config.Ingest.RequiredFields))
	pipeline := ingestor.NewPipeline(repo, ingestor.Options{
		StorageUnit:    storageUnit,
		InputUnit:      inputUnit,
		RequiredFields: c.config.Ingest.RequiredFields,
	}, c.logger)
	engine := query.NewEngine(repo, storageUnit, c.config.Query, c.logger,
		query.WithLabels(labels),
		query.WithTelemetry(pipeline))
	sweeper := retention.NewSweeper(repo, c.config.Retention.Days, c.config.Retention.SweepInterval, c.logger)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.readingRepo = repo
	c.pipeline = pipeline
	c.queryEngine = engine
	c.settings = store
	c.nodeLabels = labels
	c.sweeper = sweeper
	c.healthChecker = health.NewHealthChecker(repo, c.config.Database.Driver, c.config.Storage.ConfigDir)

	c.logger.WithFields(map[string]interface{}{
		"storage_unit":    storageUnit,
		"input_unit":      inputUnit,
		"required_fields": c.config.Ingest.RequiredFields,
	}).Info("Services initialized")
	return nil
}

// StartBackground starts the retention sweeper
func (c *Container) StartBackground() error {
	sweeper := c.GetSweeper()
	if sweeper == nil {
		return fmt.Errorf("services are not initialized")
	}
	if err := sweeper.Start(); err != nil {
		return err
	}
	c.AddCleanupFunc(func() error {
		sweeper.Stop()
		return nil
	})
	return nil
}

// GetReadingRepository returns the Reading Store
func (c *Container) GetReadingRepository() interfaces.ReadingRepository {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.readingRepo
}

// GetPipeline returns the ingestion pipeline
func (c *Container) GetPipeline() *ingestor.Pipeline {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pipeline
}

// GetQueryEngine returns the query engine
func (c *Container) GetQueryEngine() *query.Engine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queryEngine
}

// GetSettings returns the display settings store
func (c *Container) GetSettings() *settings.Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// GetNodeLabels returns the node label document
func (c *Container) GetNodeLabels() *settings.NodeLabels {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nodeLabels
}

// GetSweeper returns the retention sweeper
func (c *Container) GetSweeper() *retention.Sweeper {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sweeper
}

// GetHealthChecker returns the health checker
func (c *Container) GetHealthChecker() *health.HealthChecker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthChecker
}

// HealthCheck performs a comprehensive health check
func (c *Container) HealthCheck(ctx context.Context) map[string]interface{} {
	checker := c.GetHealthChecker()
	if checker == nil {
		return map[string]interface{}{
			"status": "error",
			"error":  "services are not initialized",
		}
	}
	return checker.GetHealthStatus(ctx)
}

// Shutdown gracefully shuts down the container and all its dependencies
func (c *Container) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down container...")

	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.db = nil
	c.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](); err != nil {
			c.logger.ErrorWithError(err, "Error during cleanup")
		}
	}

	c.logger.Info("Container shutdown complete")
	return nil
}

// Shutdown gracefully shuts down the ingestor container
func (c *IngestorContainer) Shutdown(ctx context.Context) error {
	c.logger.Info("Shutting down ingestor container...")
	c.logger.Info("Ingestor container shutdown complete")
	return nil
}

// AddCleanupFunc adds a cleanup function
func (c *Container) AddCleanupFunc(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}
