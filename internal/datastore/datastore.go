// Package datastore declares the capability set every backend adapter
// implements. The service talks to exactly one Datastore, selected from
// configuration; each provider translates the operations below into
// backend-native queries.
package datastore

import (
	"context"
	"errors"
	"time"

	"github.com/cymbal-air/retrieval-service/internal/dataset"
	"github.com/cymbal-air/retrieval-service/internal/models"
)

// Sentinel errors shared by all providers.
var (
	ErrNotFound        = errors.New("datastore: not found")
	ErrInvalidArgument = errors.New("datastore: invalid argument")
	ErrSeatUnavailable = errors.New("datastore: seat unavailable")
)

// SeatQuery narrows a seat search to a single flight, optionally filtered
// by position, class, or type. Nil/empty fields are ignored.
type SeatQuery struct {
	Airline          string
	FlightNumber     string
	DepartureAirport string
	DepartureTime    time.Time
	SeatRow          *int
	SeatLetter       string
	SeatClass        string
	SeatType         string
}

// Datastore is the pluggable backend abstraction. All blocking operations
// take a context; embeddings are produced by the caller so providers only
// run the similarity query.
type Datastore interface {
	GetAirport(ctx context.Context, id int) (*models.Airport, error)
	GetAirportByIATA(ctx context.Context, iata string) (*models.Airport, error)
	// SearchAirports matches on any combination of country, city, and
	// airport name. Empty filters are ignored; name matches substrings.
	SearchAirports(ctx context.Context, country, city, name string) ([]models.Airport, error)

	GetAmenity(ctx context.Context, id int) (*models.Amenity, error)
	// SearchAmenities returns the topK amenities whose embedding cosine
	// similarity against queryEmbedding exceeds similarityThreshold,
	// most similar first.
	SearchAmenities(ctx context.Context, queryEmbedding []float32, similarityThreshold float64, topK int) ([]models.Amenity, error)

	GetFlight(ctx context.Context, id int64) (*models.Flight, error)
	SearchFlightsByNumber(ctx context.Context, airline, flightNumber string) ([]models.Flight, error)
	// SearchFlightsByAirports returns flights departing within 24 hours of
	// date (midnight-to-midnight), optionally filtered by departure and/or
	// arrival airport code.
	SearchFlightsByAirports(ctx context.Context, date time.Time, departureAirport, arrivalAirport string) ([]models.Flight, error)

	SearchFlightSeats(ctx context.Context, q SeatQuery) ([]models.Seat, error)

	// ValidateTicket confirms a bookable flight exists with exactly the
	// given airline, number, departure airport, and departure time.
	ValidateTicket(ctx context.Context, airline, flightNumber, departureAirport string, departureTime time.Time) (*models.Flight, error)
	// InsertTicket books a ticket; when the ticket names a seat, the seat
	// is reserved atomically and ErrSeatUnavailable is returned if taken.
	InsertTicket(ctx context.Context, t *models.Ticket) error
	ListTickets(ctx context.Context, userID string) ([]models.Ticket, error)

	SearchPolicies(ctx context.Context, queryEmbedding []float32, similarityThreshold float64, topK int) ([]models.Policy, error)

	// LoadData bulk-imports the seed dataset, replacing existing rows.
	LoadData(ctx context.Context, data *dataset.Dataset) error

	Ping(ctx context.Context) error
	Close()
}

// Error wraps a provider failure with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
