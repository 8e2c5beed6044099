// Package neo4j implements the datastore on a Neo4j graph. Entities are
// nodes; seats hang off flights via SEAT_OF relationships. Similarity
// search uses native vector indexes through db.index.vector.queryNodes.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/cymbal-air/retrieval-service/internal/config"
	"github.com/cymbal-air/retrieval-service/internal/datastore"
)

var _ datastore.Datastore = (*Store)(nil)

// runner executes one Cypher statement and returns its records as maps.
// Production wraps neo4j.ExecuteQuery; tests substitute a fake.
type runner interface {
	Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// Store implements datastore.Datastore via the Neo4j driver.
type Store struct {
	driver neo4j.DriverWithContext
	run    runner
	logger *zap.Logger

	vectorDim int
}

// New connects a driver and verifies connectivity.
func New(ctx context.Context, cfg config.DatastoreConfig, logger *zap.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verifying connectivity: %w", err)
	}

	logger.Info("connected to neo4j", zap.String("uri", cfg.URI))
	return &Store{
		driver: driver,
		run:    &driverRunner{driver: driver},
		logger: logger,
	}, nil
}

// NewWithRunner wraps a statement runner. Used by tests.
func NewWithRunner(r runner, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{run: r, logger: logger}
}

type driverRunner struct {
	driver neo4j.DriverWithContext
}

func (r *driverRunner) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	result, err := neo4j.ExecuteQuery(ctx, r.driver, query, params,
		neo4j.EagerResultTransformer)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(result.Records))
	for _, rec := range result.Records {
		out = append(out, rec.AsMap())
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Store) Close() {
	if s.driver != nil {
		_ = s.driver.Close(context.Background())
	}
}
