// retrieval-load is a one-shot importer: it parses the CSV seed dataset
// and bulk-loads it into the configured datastore.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cymbal-air/retrieval-service/internal/config"
	"github.com/cymbal-air/retrieval-service/internal/dataset"
	"github.com/cymbal-air/retrieval-service/internal/datastore/factory"
	"github.com/cymbal-air/retrieval-service/internal/datastore/postgres"
	logpkg "github.com/cymbal-air/retrieval-service/internal/logger"
)

func main() {
	dataDir := flag.String("data", "data", "directory containing the CSV seed files")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall import timeout")
	maxFlights := flag.Int("max-flights", dataset.DefaultMaxFlights, "cap on flight rows to import")
	maxTickets := flag.Int("max-tickets", dataset.DefaultMaxTickets, "cap on ticket rows to import")
	maxSeats := flag.Int("max-seats", dataset.DefaultMaxSeats, "cap on seat rows to import")
	flag.Parse()

	env := config.GetEnv()
	cfg := config.MustLoad(env)

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	data, err := readDataset(*dataDir, *maxFlights, *maxTickets, *maxSeats)
	if err != nil {
		logger.Fatal("Failed to read dataset", zap.Error(err))
	}
	logger.Info("Dataset parsed",
		zap.Int("airports", len(data.Airports)),
		zap.Int("amenities", len(data.Amenities)),
		zap.Int("flights", len(data.Flights)),
		zap.Int("policies", len(data.Policies)),
		zap.Int("tickets", len(data.Tickets)),
		zap.Int("seats", len(data.Seats)),
	)

	switch cfg.Datastore.Kind {
	case config.KindPostgres, config.KindCloudSQL, config.KindAlloyDB:
		if err := postgres.Migrate(postgres.MigrateURL(cfg.Datastore)); err != nil {
			logger.Fatal("Schema migration failed", zap.Error(err))
		}
	}

	store, err := factory.New(ctx, cfg.Datastore, logger)
	if err != nil {
		logger.Fatal("Failed to create datastore", zap.Error(err))
	}
	defer store.Close()

	start := time.Now()
	if err := store.LoadData(ctx, data); err != nil {
		logger.Fatal("Import failed", zap.Error(err))
	}
	logger.Info("Import complete",
		zap.String("kind", cfg.Datastore.Kind),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// readDataset parses the six CSV files concurrently.
func readDataset(dir string, maxFlights, maxTickets, maxSeats int) (*dataset.Dataset, error) {
	var data dataset.Dataset
	g := new(errgroup.Group)

	g.Go(func() error {
		return readFile(dir, "airport_dataset.csv", func(r io.Reader) (err error) {
			data.Airports, err = dataset.ReadAirports(r)
			return err
		})
	})
	g.Go(func() error {
		return readFile(dir, "amenity_dataset.csv", func(r io.Reader) (err error) {
			data.Amenities, err = dataset.ReadAmenities(r)
			return err
		})
	})
	g.Go(func() error {
		return readFile(dir, "flights_dataset.csv", func(r io.Reader) (err error) {
			data.Flights, err = dataset.ReadFlights(r, maxFlights)
			return err
		})
	})
	g.Go(func() error {
		return readFile(dir, "cymbalair_policy.csv", func(r io.Reader) (err error) {
			data.Policies, err = dataset.ReadPolicies(r)
			return err
		})
	})
	g.Go(func() error {
		return readFile(dir, "tickets_dataset.csv", func(r io.Reader) (err error) {
			data.Tickets, err = dataset.ReadTickets(r, maxTickets)
			return err
		})
	})
	g.Go(func() error {
		return readFile(dir, "seats_dataset.csv", func(r io.Reader) (err error) {
			data.Seats, err = dataset.ReadSeats(r, maxSeats)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &data, nil
}

func readFile(dir, name string, parse func(io.Reader) error) error {
	path := filepath.Join(dir, name)
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			// Optional files (tickets, seats) may be absent in fresh checkouts.
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := parse(f); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
