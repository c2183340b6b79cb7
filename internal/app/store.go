package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/utafrali/marketplace/internal/config"
	"github.com/utafrali/marketplace/internal/repository"
	mongorepo "github.com/utafrali/marketplace/internal/repository/mongo"
	"github.com/utafrali/marketplace/internal/repository/postgres"
	"github.com/utafrali/marketplace/internal/repository/postgres/migrations"
	"github.com/utafrali/marketplace/pkg/database"
)

// Store bundles the repositories of the configured store driver.
type Store struct {
	Driver     string
	Users      repository.UserRepository
	Categories repository.CategoryRepository
	Products   repository.ProductRepository
	Orders     repository.OrderRepository
	Reviews    repository.ReviewRepository

	pool   *pgxpool.Pool
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// OpenStore connects to the store selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := database.NewMongoClient(ctx, database.MongoConfig{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		db := client.Database(cfg.MongoDatabase)
		return &Store{
			Driver:     config.StoreMongo,
			Users:      mongorepo.NewUserRepository(db),
			Categories: mongorepo.NewCategoryRepository(db),
			Products:   mongorepo.NewProductRepository(db),
			Orders:     mongorepo.NewOrderRepository(db),
			Reviews:    mongorepo.NewReviewRepository(db),
			client:     client,
			db:         db,
			logger:     logger,
		}, nil

	default:
		pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{
			URL:             cfg.DatabaseURL,
			MaxConns:        cfg.DBMaxConns,
			MinConns:        cfg.DBMinConns,
			MaxConnLifetime: cfg.DBMaxConnLifetime,
			MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, "marketplace"); err != nil {
			logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
		}

		db := database.WithTracing(pool, "postgresql")
		return &Store{
			Driver:     config.StorePostgres,
			Users:      postgres.NewUserRepository(db),
			Categories: postgres.NewCategoryRepository(db),
			Products:   postgres.NewProductRepository(db),
			Orders:     postgres.NewOrderRepository(db),
			Reviews:    postgres.NewReviewRepository(db),
			pool:       pool,
			logger:     logger,
		}, nil
	}
}

// Migrate applies pending schema migrations on Postgres and ensures the
// indexes on MongoDB. It returns the names of the applied migrations.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	if s.db != nil {
		if err := mongorepo.EnsureIndexes(ctx, s.db); err != nil {
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return []string{"indexes"}, nil
	}
	applied, err := database.RunMigrations(ctx, s.pool, migrations.FS, s.logger)
	if err != nil {
		return applied, fmt.Errorf("run migrations: %w", err)
	}
	return applied, nil
}

// Ping checks store connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.client != nil {
		return s.client.Ping(ctx, nil)
	}
	return s.pool.Ping(ctx)
}

// Close releases the store connections.
func (s *Store) Close() {
	if s.client != nil {
		if err := s.client.Disconnect(context.Background()); err != nil {
			s.logger.Error("mongo disconnect error", slog.String("error", err.Error()))
		}
		return
	}
	s.pool.Close()
}
