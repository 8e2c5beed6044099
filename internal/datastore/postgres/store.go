// Package postgres implements the datastore on PostgreSQL with pgvector.
//
// The same adapter backs the plain postgres, cloudsql-postgres, and
// alloydb kinds: managed deployments connect through their auth proxy,
// so only the connection endpoint differs.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cymbal-air/retrieval-service/internal/config"
	"github.com/cymbal-air/retrieval-service/internal/dataset"
	"github.com/cymbal-air/retrieval-service/internal/datastore"
	"github.com/cymbal-air/retrieval-service/internal/models"
)

// Operation labels used in wrapped errors.
const (
	opGetAirport     = "airports.get"
	opSearchAirports = "airports.search"
	opGetAmenity     = "amenities.get"
	opSearchAmenity  = "amenities.search"
	opGetFlight      = "flights.get"
	opSearchFlights  = "flights.search"
	opSearchSeats    = "seats.search"
	opValidateTicket = "tickets.validate"
	opInsertTicket   = "tickets.insert"
	opListTickets    = "tickets.list"
	opSearchPolicies = "policies.search"
	opLoadData       = "load"
)

// Pool is the subset of pgxpool.Pool the store depends on. Declared here
// so tests can substitute a mock pool.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// Store implements datastore.Datastore on a pgx connection pool.
type Store struct {
	pool   Pool
	logger *zap.Logger
}

var _ datastore.Datastore = (*Store)(nil)

// ConnString builds a pgx connection string from datastore settings.
func ConnString(cfg config.DatastoreConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + cfg.Database,
	}
	return u.String()
}

// New connects a pooled store and verifies the connection. Vector types
// are registered on every new connection so embeddings round-trip in
// binary format.
func New(ctx context.Context, cfg config.DatastoreConfig, logger *zap.Logger) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Info("connected to postgres",
		zap.String("kind", cfg.Kind),
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &Store{pool: pool, logger: logger}, nil
}

// NewWithPool wraps an existing pool. Used by tests.
func NewWithPool(pool Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

const airportColumns = "id, iata, name, city, country"

func (s *Store) GetAirport(ctx context.Context, id int) (*models.Airport, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+airportColumns+` FROM airports WHERE id = $1`, id)

	var a models.Airport
	if err := row.Scan(&a.ID, &a.IATA, &a.Name, &a.City, &a.Country); err != nil {
		return nil, wrapRowErr(opGetAirport, err)
	}
	return &a, nil
}

func (s *Store) GetAirportByIATA(ctx context.Context, iata string) (*models.Airport, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+airportColumns+` FROM airports WHERE iata ILIKE $1`, iata)

	var a models.Airport
	if err := row.Scan(&a.ID, &a.IATA, &a.Name, &a.City, &a.Country); err != nil {
		return nil, wrapRowErr(opGetAirport, err)
	}
	return &a, nil
}

func (s *Store) SearchAirports(ctx context.Context, country, city, name string) ([]models.Airport, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+airportColumns+` FROM airports
		 WHERE ($1::text IS NULL OR country ILIKE $1)
		   AND ($2::text IS NULL OR city ILIKE $2)
		   AND ($3::text IS NULL OR name ILIKE '%' || $3 || '%')
		 ORDER BY id`,
		nullable(country), nullable(city), nullable(name))
	if err != nil {
		return nil, &datastore.Error{Op: opSearchAirports, Err: err}
	}
	defer rows.Close()

	var out []models.Airport
	for rows.Next() {
		var a models.Airport
		if err := rows.Scan(&a.ID, &a.IATA, &a.Name, &a.City, &a.Country); err != nil {
			return nil, &datastore.Error{Op: opSearchAirports, Err: err}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &datastore.Error{Op: opSearchAirports, Err: err}
	}
	return out, nil
}

const amenityColumns = "id, name, description, location, terminal, category, hour"

func (s *Store) GetAmenity(ctx context.Context, id int) (*models.Amenity, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+amenityColumns+` FROM amenities WHERE id = $1`, id)

	var a models.Amenity
	err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Location, &a.Terminal, &a.Category, &a.Hour)
	if err != nil {
		return nil, wrapRowErr(opGetAmenity, err)
	}
	return &a, nil
}

func (s *Store) SearchAmenities(ctx context.Context, queryEmbedding []float32, similarityThreshold float64, topK int) ([]models.Amenity, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+amenityColumns+`
		  FROM (
		      SELECT `+amenityColumns+`,
		             1 - (embedding <=> $1) AS similarity
		        FROM amenities
		       WHERE 1 - (embedding <=> $1) > $2
		       ORDER BY similarity DESC
		       LIMIT $3
		  ) AS sorted_amenities`,
		pgvector.NewVector(queryEmbedding), similarityThreshold, topK)
	if err != nil {
		return nil, &datastore.Error{Op: opSearchAmenity, Err: err}
	}
	defer rows.Close()

	var out []models.Amenity
	for rows.Next() {
		var a models.Amenity
		if err := rows.Scan(&a.ID, &a.Name, &a.Description, &a.Location, &a.Terminal, &a.Category, &a.Hour); err != nil {
			return nil, &datastore.Error{Op: opSearchAmenity, Err: err}
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &datastore.Error{Op: opSearchAmenity, Err: err}
	}
	return out, nil
}

const flightColumns = "id, airline, flight_number, departure_airport, arrival_airport, departure_time, arrival_time, departure_gate, arrival_gate"

func (s *Store) GetFlight(ctx context.Context, id int64) (*models.Flight, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+flightColumns+` FROM flights WHERE id = $1`, id)

	f, err := scanFlightRow(row)
	if err != nil {
		return nil, wrapRowErr(opGetFlight, err)
	}
	return f, nil
}

func (s *Store) SearchFlightsByNumber(ctx context.Context, airline, flightNumber string) ([]models.Flight, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+flightColumns+` FROM flights WHERE airline = $1 AND flight_number = $2`,
		airline, flightNumber)
	if err != nil {
		return nil, &datastore.Error{Op: opSearchFlights, Err: err}
	}
	return collectFlights(rows, opSearchFlights)
}

func (s *Store) SearchFlightsByAirports(ctx context.Context, date time.Time, departureAirport, arrivalAirport string) ([]models.Flight, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	rows, err := s.pool.Query(ctx, `
		SELECT `+flightColumns+` FROM flights
		 WHERE ($1::text IS NULL OR departure_airport ILIKE $1)
		   AND ($2::text IS NULL OR arrival_airport ILIKE $2)
		   AND departure_time >= $3
		   AND departure_time < $3 + interval '1 day'
		 ORDER BY departure_time`,
		nullable(departureAirport), nullable(arrivalAirport), dayStart)
	if err != nil {
		return nil, &datastore.Error{Op: opSearchFlights, Err: err}
	}
	return collectFlights(rows, opSearchFlights)
}

func (s *Store) SearchFlightSeats(ctx context.Context, q datastore.SeatQuery) ([]models.Seat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.flight_id, s.seat_row, s.seat_letter, s.seat_type, s.seat_class,
		       s.is_reserved, COALESCE(s.ticket_id::text, '')
		  FROM seats s
		  JOIN flights f ON s.flight_id = f.id
		 WHERE f.airline ILIKE $1
		   AND f.flight_number = $2
		   AND f.departure_airport ILIKE $3
		   AND f.departure_time = $4
		   AND ($5::int IS NULL OR s.seat_row = $5)
		   AND ($6::text IS NULL OR s.seat_letter ILIKE $6)
		   AND ($7::text IS NULL OR s.seat_class ILIKE $7)
		   AND ($8::text IS NULL OR s.seat_type ILIKE $8)
		 ORDER BY s.seat_row, s.seat_letter`,
		q.Airline, q.FlightNumber, q.DepartureAirport, q.DepartureTime,
		nullableInt(q.SeatRow), nullable(q.SeatLetter), nullable(q.SeatClass), nullable(q.SeatType))
	if err != nil {
		return nil, &datastore.Error{Op: opSearchSeats, Err: err}
	}
	defer rows.Close()

	var out []models.Seat
	for rows.Next() {
		var st models.Seat
		err := rows.Scan(&st.FlightID, &st.SeatRow, &st.SeatLetter, &st.SeatType,
			&st.SeatClass, &st.IsReserved, &st.TicketID)
		if err != nil {
			return nil, &datastore.Error{Op: opSearchSeats, Err: err}
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, &datastore.Error{Op: opSearchSeats, Err: err}
	}
	return out, nil
}

func (s *Store) ValidateTicket(ctx context.Context, airline, flightNumber, departureAirport string, departureTime time.Time) (*models.Flight, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+flightColumns+` FROM flights
		 WHERE LOWER(airline) = LOWER($1)
		   AND LOWER(flight_number) = LOWER($2)
		   AND LOWER(departure_airport) = LOWER($3)
		   AND departure_time = $4`,
		airline, flightNumber, departureAirport, departureTime)

	f, err := scanFlightRow(row)
	if err != nil {
		return nil, wrapRowErr(opValidateTicket, err)
	}
	return f, nil
}

func (s *Store) InsertTicket(ctx context.Context, t *models.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &datastore.Error{Op: opInsertTicket, Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO tickets (id, user_id, user_name, user_email, airline,
		                     flight_number, departure_airport, arrival_airport,
		                     departure_time, arrival_time, seat_row, seat_letter)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.UserID, t.UserName, t.UserEmail, t.Airline,
		t.FlightNumber, t.DepartureAirport, t.ArrivalAirport,
		t.DepartureTime, t.ArrivalTime, zeroNullInt(t.SeatRow), nullable(t.SeatLetter))
	if err != nil {
		return &datastore.Error{Op: opInsertTicket, Err: err}
	}

	if t.SeatRow > 0 && t.SeatLetter != "" {
		tag, err := tx.Exec(ctx, `
			UPDATE seats SET is_reserved = TRUE, ticket_id = $1
			 WHERE flight_id = (
			         SELECT id FROM flights
			          WHERE LOWER(airline) = LOWER($2)
			            AND LOWER(flight_number) = LOWER($3)
			            AND LOWER(departure_airport) = LOWER($4)
			            AND departure_time = $5)
			   AND seat_row = $6
			   AND seat_letter ILIKE $7
			   AND NOT is_reserved`,
			t.ID, t.Airline, t.FlightNumber, t.DepartureAirport, t.DepartureTime,
			t.SeatRow, t.SeatLetter)
		if err != nil {
			return &datastore.Error{Op: opInsertTicket, Err: err}
		}
		if tag.RowsAffected() == 0 {
			return &datastore.Error{Op: opInsertTicket, Err: datastore.ErrSeatUnavailable}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &datastore.Error{Op: opInsertTicket, Err: err}
	}
	return nil
}

func (s *Store) ListTickets(ctx context.Context, userID string) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, user_name, user_email, airline, flight_number,
		       departure_airport, arrival_airport, departure_time, arrival_time,
		       COALESCE(seat_row, 0), COALESCE(seat_letter, '')
		  FROM tickets
		 WHERE user_id = $1
		 ORDER BY departure_time`,
		userID)
	if err != nil {
		return nil, &datastore.Error{Op: opListTickets, Err: err}
	}
	defer rows.Close()

	var out []models.Ticket
	for rows.Next() {
		var t models.Ticket
		err := rows.Scan(&t.ID, &t.UserID, &t.UserName, &t.UserEmail, &t.Airline,
			&t.FlightNumber, &t.DepartureAirport, &t.ArrivalAirport,
			&t.DepartureTime, &t.ArrivalTime, &t.SeatRow, &t.SeatLetter)
		if err != nil {
			return nil, &datastore.Error{Op: opListTickets, Err: err}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &datastore.Error{Op: opListTickets, Err: err}
	}
	return out, nil
}

func (s *Store) SearchPolicies(ctx context.Context, queryEmbedding []float32, similarityThreshold float64, topK int) ([]models.Policy, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, content
		  FROM (
		      SELECT id, content,
		             1 - (embedding <=> $1) AS similarity
		        FROM policies
		       WHERE 1 - (embedding <=> $1) > $2
		       ORDER BY similarity DESC
		       LIMIT $3
		  ) AS sorted_policies`,
		pgvector.NewVector(queryEmbedding), similarityThreshold, topK)
	if err != nil {
		return nil, &datastore.Error{Op: opSearchPolicies, Err: err}
	}
	defer rows.Close()

	var out []models.Policy
	for rows.Next() {
		var p models.Policy
		if err := rows.Scan(&p.ID, &p.Content); err != nil {
			return nil, &datastore.Error{Op: opSearchPolicies, Err: err}
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &datastore.Error{Op: opSearchPolicies, Err: err}
	}
	return out, nil
}

// LoadData replaces all table contents with the dataset. Tables are
// truncated together, then bulk-copied in parallel.
func (s *Store) LoadData(ctx context.Context, data *dataset.Dataset) error {
	_, err := s.pool.Exec(ctx,
		`TRUNCATE airports, amenities, flights, policies, tickets, seats`)
	if err != nil {
		return &datastore.Error{Op: opLoadData, Err: err}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.copyAirports(ctx, data.Airports) })
	g.Go(func() error { return s.copyAmenities(ctx, data.Amenities) })
	g.Go(func() error { return s.copyFlights(ctx, data.Flights) })
	g.Go(func() error { return s.copyPolicies(ctx, data.Policies) })
	g.Go(func() error { return s.copyTickets(ctx, data.Tickets) })
	g.Go(func() error { return s.copySeats(ctx, data.Seats) })
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

func (s *Store) copyAirports(ctx context.Context, airports []models.Airport) error {
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"airports"},
		[]string{"id", "iata", "name", "city", "country"},
		pgx.CopyFromSlice(len(airports), func(i int) ([]any, error) {
			a := airports[i]
			return []any{a.ID, a.IATA, a.Name, a.City, a.Country}, nil
		}))
	if err != nil {
		return fmt.Errorf("airports: %w", err)
	}
	return nil
}

func (s *Store) copyAmenities(ctx context.Context, amenities []models.Amenity) error {
	cols := []string{"id", "name", "description", "location", "terminal", "category", "hour"}
	for _, day := range []string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"} {
		cols = append(cols, day+"_start_hour", day+"_end_hour")
	}
	cols = append(cols, "content", "embedding")

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"amenities"},
		cols,
		pgx.CopyFromSlice(len(amenities), func(i int) ([]any, error) {
			a := amenities[i]
			row := []any{a.ID, a.Name, a.Description, a.Location, a.Terminal, a.Category, a.Hour}
			for d := 0; d < 7; d++ {
				row = append(row, hourValue(a.StartHours, d), hourValue(a.EndHours, d))
			}
			return append(row, a.Content, pgvector.NewVector(a.Embedding)), nil
		}))
	if err != nil {
		return fmt.Errorf("amenities: %w", err)
	}
	return nil
}

func (s *Store) copyFlights(ctx context.Context, flights []models.Flight) error {
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"flights"},
		[]string{"id", "airline", "flight_number", "departure_airport", "arrival_airport",
			"departure_time", "arrival_time", "departure_gate", "arrival_gate"},
		pgx.CopyFromSlice(len(flights), func(i int) ([]any, error) {
			f := flights[i]
			return []any{f.ID, f.Airline, f.FlightNumber, f.DepartureAirport, f.ArrivalAirport,
				f.DepartureTime, f.ArrivalTime, f.DepartureGate, f.ArrivalGate}, nil
		}))
	if err != nil {
		return fmt.Errorf("flights: %w", err)
	}
	return nil
}

func (s *Store) copyPolicies(ctx context.Context, policies []models.Policy) error {
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"policies"},
		[]string{"id", "content", "embedding"},
		pgx.CopyFromSlice(len(policies), func(i int) ([]any, error) {
			p := policies[i]
			return []any{p.ID, p.Content, pgvector.NewVector(p.Embedding)}, nil
		}))
	if err != nil {
		return fmt.Errorf("policies: %w", err)
	}
	return nil
}

func (s *Store) copyTickets(ctx context.Context, tickets []models.Ticket) error {
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"tickets"},
		[]string{"id", "user_id", "user_name", "user_email", "airline", "flight_number",
			"departure_airport", "arrival_airport", "departure_time", "arrival_time",
			"seat_row", "seat_letter"},
		pgx.CopyFromSlice(len(tickets), func(i int) ([]any, error) {
			t := tickets[i]
			return []any{t.ID, t.UserID, t.UserName, t.UserEmail, t.Airline, t.FlightNumber,
				t.DepartureAirport, t.ArrivalAirport, t.DepartureTime, t.ArrivalTime,
				zeroNullInt(t.SeatRow), nullable(t.SeatLetter)}, nil
		}))
	if err != nil {
		return fmt.Errorf("tickets: %w", err)
	}
	return nil
}

func (s *Store) copySeats(ctx context.Context, seats []models.Seat) error {
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"seats"},
		[]string{"flight_id", "seat_row", "seat_letter", "seat_type", "seat_class",
			"is_reserved", "ticket_id"},
		pgx.CopyFromSlice(len(seats), func(i int) ([]any, error) {
			st := seats[i]
			return []any{st.FlightID, st.SeatRow, st.SeatLetter, st.SeatType, st.SeatClass,
				st.IsReserved, nullable(st.TicketID)}, nil
		}))
	if err != nil {
		return fmt.Errorf("seats: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlightRow(row rowScanner) (*models.Flight, error) {
	var f models.Flight
	err := row.Scan(&f.ID, &f.Airline, &f.FlightNumber, &f.DepartureAirport, &f.ArrivalAirport,
		&f.DepartureTime, &f.ArrivalTime, &f.DepartureGate, &f.ArrivalGate)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func collectFlights(rows pgx.Rows, op string) ([]models.Flight, error) {
	defer rows.Close()

	var out []models.Flight
	for rows.Next() {
		f, err := scanFlightRow(rows)
		if err != nil {
			return nil, &datastore.Error{Op: op, Err: err}
		}
		out = append(out, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, &datastore.Error{Op: op, Err: err}
	}
	return out, nil
}

func wrapRowErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &datastore.Error{Op: op, Err: datastore.ErrNotFound}
	}
	return &datastore.Error{Op: op, Err: err}
}

// nullable maps the empty string to SQL NULL so optional filters drop out.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func zeroNullInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

// hourValue returns the d-th opening hour or NULL when the day is closed.
func hourValue(hours []string, d int) any {
	if d >= len(hours) || hours[d] == "" {
		return nil
	}
	return hours[d]
}
