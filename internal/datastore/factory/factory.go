// Package factory constructs the configured datastore backend.
package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cymbal-air/retrieval-service/internal/config"
	"github.com/cymbal-air/retrieval-service/internal/datastore"
	"github.com/cymbal-air/retrieval-service/internal/datastore/memory"
	"github.com/cymbal-air/retrieval-service/internal/datastore/neo4j"
	"github.com/cymbal-air/retrieval-service/internal/datastore/postgres"
	"github.com/cymbal-air/retrieval-service/internal/datastore/redis"
)

// New selects and connects the backend named by cfg.Kind.
func New(ctx context.Context, cfg config.DatastoreConfig, logger *zap.Logger) (datastore.Datastore, error) {
	switch cfg.Kind {
	case config.KindMemory:
		return memory.New(), nil
	case config.KindPostgres, config.KindCloudSQL, config.KindAlloyDB:
		return postgres.New(ctx, cfg, logger)
	case config.KindRedis:
		return redis.New(ctx, cfg, logger)
	case config.KindNeo4j:
		return neo4j.New(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown datastore kind %q", cfg.Kind)
	}
}
