package redis

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cymbal-air/retrieval-service/internal/dataset"
	"github.com/cymbal-air/retrieval-service/internal/datastore"
	"github.com/cymbal-air/retrieval-service/internal/models"
)

// batchSize is the number of HSETs pipelined per DoMulti round-trip.
const batchSize = 500

const opLoadData = "load"

// LoadData replaces all stored entities with the dataset and rebuilds
// the search indexes.
func (s *Store) LoadData(ctx context.Context, data *dataset.Dataset) error {
	s.vectorDim = embeddingDim(data)

	for _, prefix := range []string{keyAirport, keyAmenity, keyFlight, keyPolicy, keyTicket, keySeat} {
		if err := s.deletePrefix(ctx, prefix); err != nil {
			return &datastore.Error{Op: opLoadData, Err: err}
		}
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return &datastore.Error{Op: opLoadData, Err: err}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loadAirports(ctx, data.Airports) })
	g.Go(func() error { return s.loadAmenities(ctx, data.Amenities) })
	g.Go(func() error { return s.loadFlights(ctx, data.Flights) })
	g.Go(func() error { return s.loadPolicies(ctx, data.Policies) })
	g.Go(func() error { return s.loadTickets(ctx, data.Tickets) })
	g.Go(func() error { return s.loadSeats(ctx, data.Seats) })
	if err := g.Wait(); err != nil {
		return &datastore.Error{Op: opLoadData, Err: err}
	}

	s.logger.Info("dataset loaded",
		zap.Int("airports", len(data.Airports)),
		zap.Int("amenities", len(data.Amenities)),
		zap.Int("flights", len(data.Flights)),
		zap.Int("policies", len(data.Policies)),
		zap.Int("tickets", len(data.Tickets)),
		zap.Int("seats", len(data.Seats)))
	return nil
}

// ensureIndexes drops and recreates every search index. Absent indexes
// are not an error on drop.
func (s *Store) ensureIndexes(ctx context.Context) error {
	dim := s.vectorDim
	if dim <= 0 {
		dim = 768
	}

	indexes := [][]string{
		{idxAirports, "ON", "HASH", "PREFIX", "1", keyAirport, "SCHEMA",
			"iata", "TAG", "name", "TEXT", "city", "TAG", "country", "TAG"},
		{idxAmenity, "ON", "HASH", "PREFIX", "1", keyAmenity, "SCHEMA",
			"embedding", "VECTOR", "HNSW", "6",
			"TYPE", "FLOAT32", "DIM", strconv.Itoa(dim), "DISTANCE_METRIC", "COSINE"},
		{idxFlights, "ON", "HASH", "PREFIX", "1", keyFlight, "SCHEMA",
			"airline", "TAG", "flight_number", "TAG",
			"departure_airport", "TAG", "arrival_airport", "TAG",
			"departure_ts", "NUMERIC"},
		{idxPolicies, "ON", "HASH", "PREFIX", "1", keyPolicy, "SCHEMA",
			"embedding", "VECTOR", "HNSW", "6",
			"TYPE", "FLOAT32", "DIM", strconv.Itoa(dim), "DISTANCE_METRIC", "COSINE"},
		{idxTickets, "ON", "HASH", "PREFIX", "1", keyTicket, "SCHEMA",
			"user_id", "TAG"},
		{idxSeats, "ON", "HASH", "PREFIX", "1", keySeat, "SCHEMA",
			"flight_id", "NUMERIC", "seat_row", "NUMERIC",
			"seat_letter", "TAG", "seat_class", "TAG", "seat_type", "TAG",
			"is_reserved", "TAG"},
	}

	for _, def := range indexes {
		drop := s.b().Arbitrary("FT.DROPINDEX").Args(def[0]).Build()
		if err := s.do(ctx, drop).Error(); err != nil && !isRedisErr(err, "unknown index name") {
			return err
		}
		create := s.b().Arbitrary("FT.CREATE").Args(def...).Build()
		if err := s.do(ctx, create).Error(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadAirports(ctx context.Context, airports []models.Airport) error {
	keys := make([]string, len(airports))
	fields := make([]map[string]string, len(airports))
	for i := range airports {
		keys[i] = keyAirport + strconv.Itoa(airports[i].ID)
		fields[i] = airportToMap(&airports[i])
	}
	return s.hsetChunked(ctx, keys, fields)
}

func (s *Store) loadAmenities(ctx context.Context, amenities []models.Amenity) error {
	keys := make([]string, len(amenities))
	fields := make([]map[string]string, len(amenities))
	for i := range amenities {
		keys[i] = keyAmenity + strconv.Itoa(amenities[i].ID)
		fields[i] = amenityToMap(&amenities[i])
	}
	return s.hsetChunked(ctx, keys, fields)
}

func (s *Store) loadFlights(ctx context.Context, flights []models.Flight) error {
	keys := make([]string, len(flights))
	fields := make([]map[string]string, len(flights))
	for i := range flights {
		keys[i] = keyFlight + strconv.FormatInt(flights[i].ID, 10)
		fields[i] = flightToMap(&flights[i])
	}
	return s.hsetChunked(ctx, keys, fields)
}

func (s *Store) loadPolicies(ctx context.Context, policies []models.Policy) error {
	keys := make([]string, len(policies))
	fields := make([]map[string]string, len(policies))
	for i := range policies {
		keys[i] = keyPolicy + strconv.Itoa(policies[i].ID)
		fields[i] = policyToMap(&policies[i])
	}
	return s.hsetChunked(ctx, keys, fields)
}

func (s *Store) loadTickets(ctx context.Context, tickets []models.Ticket) error {
	keys := make([]string, len(tickets))
	fields := make([]map[string]string, len(tickets))
	for i := range tickets {
		keys[i] = keyTicket + tickets[i].ID
		fields[i] = ticketToMap(&tickets[i])
	}
	return s.hsetChunked(ctx, keys, fields)
}

func (s *Store) loadSeats(ctx context.Context, seats []models.Seat) error {
	keys := make([]string, len(seats))
	fields := make([]map[string]string, len(seats))
	for i := range seats {
		keys[i] = seatKeyFor(seats[i].FlightID, seats[i].SeatRow, seats[i].SeatLetter)
		fields[i] = seatToMap(&seats[i])
	}
	return s.hsetChunked(ctx, keys, fields)
}

func (s *Store) hsetChunked(ctx context.Context, keys []string, fields []map[string]string) error {
	for start := 0; start < len(keys); start += batchSize {
		end := min(start+batchSize, len(keys))
		if err := s.hsetBatch(ctx, keys[start:end], fields[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// embeddingDim reports the vector dimension of the dataset, from the
// first record carrying an embedding.
func embeddingDim(data *dataset.Dataset) int {
	for _, a := range data.Amenities {
		if len(a.Embedding) > 0 {
			return len(a.Embedding)
		}
	}
	for _, p := range data.Policies {
		if len(p.Embedding) > 0 {
			return len(p.Embedding)
		}
	}
	return 0
}
