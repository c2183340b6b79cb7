package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoConfig holds MongoDB connection parameters.
type MongoConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// NewMongoClient connects to MongoDB, pings the primary with the same retry
// policy as NewPostgresPool and traces every command through TraceQuery.
func NewMongoClient(ctx context.Context, cfg MongoConfig, logger *slog.Logger) (*mongo.Client, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMonitor(NewCommandTracer())

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	var pingErr error
	for attempt := 0; attempt < defaultRetryAttempts; attempt++ {
		if attempt > 0 {
			wait := retryBackoff(attempt - 1)
			logger.WarnContext(ctx, "mongo ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", wait),
				slog.String("error", pingErr.Error()),
			)
			if err := sleepCtx(ctx, wait); err != nil {
				_ = client.Disconnect(context.Background())
				return nil, fmt.Errorf("ping mongo: %w", err)
			}
		}

		pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		pingErr = client.Ping(pingCtx, readpref.Primary())
		cancel()
		if pingErr == nil {
			logger.InfoContext(ctx, "connected to mongo", slog.String("database", cfg.Database))
			return client, nil
		}
	}

	_ = client.Disconnect(context.Background())
	return nil, fmt.Errorf("ping mongo after %d attempts: %w", defaultRetryAttempts, pingErr)
}

// NewCommandTracer returns a command monitor that opens a TraceQuery span
// per MongoDB command and closes it when the command finishes.
func NewCommandTracer() *event.CommandMonitor {
	var inflight sync.Map // request id -> func(error)

	finish := func(requestID int64, err error) {
		if end, ok := inflight.LoadAndDelete(requestID); ok {
			end.(func(error))(err)
		}
	}

	return &event.CommandMonitor{
		Started: func(ctx context.Context, e *event.CommandStartedEvent) {
			_, end := TraceQuery(ctx, "mongodb", e.CommandName, e.DatabaseName)
			inflight.Store(e.RequestID, end)
		},
		Succeeded: func(_ context.Context, e *event.CommandSucceededEvent) {
			finish(e.RequestID, nil)
		},
		Failed: func(_ context.Context, e *event.CommandFailedEvent) {
			finish(e.RequestID, errors.New(e.Failure))
		},
	}
}
