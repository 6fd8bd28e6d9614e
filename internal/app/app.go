package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"model-deployer/internal/adapters/secondary/kserve"
	"model-deployer/internal/adapters/secondary/metrics"
	"model-deployer/internal/adapters/secondary/objectstore"
	"model-deployer/internal/adapters/secondary/postgres"
	"model-deployer/internal/adapters/secondary/sagemaker"
	"model-deployer/internal/config"
	"model-deployer/internal/core/domain"
	output "model-deployer/internal/core/ports/output"
	"model-deployer/internal/core/services"
)

// App holds the wired services shared by the CLI and the HTTP server
type App struct {
	Classifier  *services.ClassifierService
	KNN         *services.KNNService
	Deployments *services.DeploymentService
	Registry    *prometheus.Registry
	Pool        *pgxpool.Pool
}

// New wires adapters into services.
// ============================================================================
// Hexagonal Architecture Wiring
// ============================================================================
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	// Secondary Adapters
	store, err := objectstore.NewObjectStore(&cfg.Storage)
	if err != nil {
		return nil, err
	}

	sm, err := sagemaker.NewSageMakerClient(ctx, &cfg.SageMaker)
	if err != nil {
		return nil, err
	}

	// Classifier hosting follows HOSTING_PLATFORM; the KNN estimator is a
	// SageMaker built-in and always trains and serves there.
	var classifierPlatform output.HostingPlatform = sm
	if cfg.Deploy.Platform == config.PlatformKServe {
		client, err := kserve.NewKServeClient(&cfg.Kubernetes)
		if err != nil {
			return nil, err
		}
		classifierPlatform = client
		log.Info("KServe hosting selected for classifier deployments")
	}

	// Deployment ledger (Optional - based on config)
	var repo output.DeploymentRepository
	if cfg.Database.Enabled {
		pool, err := newPool(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		a.Pool = pool
		repo = postgres.NewDeploymentRepository(pool)
		log.Info("deployment ledger enabled")
	} else {
		log.Info("deployment ledger disabled")
	}

	// Metrics (Optional - based on config)
	var deployMetrics output.DeploymentMetrics
	if cfg.Metrics.Enabled {
		a.Registry = metrics.NewRegistry()
		deployMetrics = metrics.NewDeploymentMetrics(cfg.Metrics.Namespace, a.Registry)
	}

	// Core Services
	namer := domain.NewEndpointNamer(nil)
	a.Classifier = services.NewClassifierService(store, classifierPlatform, namer, repo, deployMetrics, services.ClassifierOptions{
		Image:         cfg.Deploy.Image,
		Role:          cfg.Deploy.Role,
		InstanceType:  cfg.Deploy.InstanceType,
		StoragePrefix: cfg.Storage.Prefix,
		WorkDir:       cfg.Deploy.WorkDir,
		Preflight:     cfg.RequireClassifier,
	})
	a.KNN = services.NewKNNService(store, sm, sm, namer, repo, deployMetrics, services.KNNOptions{
		TrainingImage:    cfg.Deploy.KNNImage,
		TrainingInstance: cfg.Deploy.TrainingInstance,
		VolumeSizeGB:     int32(cfg.Deploy.VolumeSizeGB),
		Role:             cfg.Deploy.Role,
		InstanceType:     cfg.Deploy.InstanceType,
		Preflight:        cfg.RequireKNN,
	})
	a.Deployments = services.NewDeploymentService(repo)

	return a, nil
}

func newPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("database connection established")
	return pool, nil
}

// Close releases the database pool, if any
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
