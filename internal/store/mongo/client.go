// Package mongo is the persistence edge of the realtime core. The document
// store owns users, conversations, messages and statuses; the core reads
// through and writes through, it never caches.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tidechat/realtime/internal/config"
	"github.com/tidechat/realtime/internal/logging"
)

const (
	collUsers       = "users"
	collConnections = "connections"
	collGroups      = "groups"
	collMessages    = "messages"
	collStatuses    = "statuses"
)

type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	opTimeout time.Duration
	logger    *logging.Logger
}

// Connect dials the document store and pings it. An unreachable store at
// startup is fatal for the process.
func Connect(ctx context.Context, cfg config.MongoConfig, logger *logging.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info("connected to mongodb", "database", cfg.Database)

	return &Store{
		client:    client,
		db:        client.Database(cfg.Database),
		opTimeout: cfg.OpTimeout,
		logger:    logger,
	}, nil
}

// Close disconnects from the store with a bounded context.
func (s *Store) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}
