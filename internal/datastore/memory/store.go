// Package memory implements the datastore capability set in process.
// It backs tests and local demos: no external dependencies, brute-force
// cosine similarity for the vector searches.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cymbal-air/retrieval-service/internal/dataset"
	"github.com/cymbal-air/retrieval-service/internal/datastore"
	"github.com/cymbal-air/retrieval-service/internal/models"
)

// Compile-time check: Store implements datastore.Datastore.
var _ datastore.Datastore = (*Store)(nil)

// Store holds the whole dataset in memory. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	airports  []models.Airport
	amenities []models.Amenity
	flights   []models.Flight
	policies  []models.Policy
	tickets   []models.Ticket
	seats     []models.Seat
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

// LoadData replaces the store contents with the given dataset.
func (s *Store) LoadData(_ context.Context, data *dataset.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.airports = append([]models.Airport(nil), data.Airports...)
	s.amenities = append([]models.Amenity(nil), data.Amenities...)
	s.flights = append([]models.Flight(nil), data.Flights...)
	s.policies = append([]models.Policy(nil), data.Policies...)
	s.tickets = append([]models.Ticket(nil), data.Tickets...)
	s.seats = append([]models.Seat(nil), data.Seats...)
	return nil
}

func (s *Store) GetAirport(_ context.Context, id int) (*models.Airport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.airports {
		if s.airports[i].ID == id {
			a := s.airports[i]
			return &a, nil
		}
	}
	return nil, datastore.ErrNotFound
}

func (s *Store) GetAirportByIATA(_ context.Context, iata string) (*models.Airport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.airports {
		if strings.EqualFold(s.airports[i].IATA, iata) {
			a := s.airports[i]
			return &a, nil
		}
	}
	return nil, datastore.ErrNotFound
}

func (s *Store) SearchAirports(_ context.Context, country, city, name string) ([]models.Airport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Airport, 0)
	for _, a := range s.airports {
		if country != "" && !strings.EqualFold(a.Country, country) {
			continue
		}
		if city != "" && !strings.EqualFold(a.City, city) {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(a.Name), strings.ToLower(name)) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) GetAmenity(_ context.Context, id int) (*models.Amenity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.amenities {
		if s.amenities[i].ID == id {
			a := s.amenities[i]
			a.Embedding = nil
			return &a, nil
		}
	}
	return nil, datastore.ErrNotFound
}

func (s *Store) SearchAmenities(_ context.Context, queryEmbedding []float32, similarityThreshold float64, topK int) ([]models.Amenity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		amenity    models.Amenity
		similarity float64
	}
	var hits []scored
	for _, a := range s.amenities {
		sim := cosineSimilarity(queryEmbedding, a.Embedding)
		if sim > similarityThreshold {
			a.Embedding = nil
			hits = append(hits, scored{amenity: a, similarity: sim})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].similarity > hits[j].similarity })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]models.Amenity, len(hits))
	for i, h := range hits {
		out[i] = h.amenity
	}
	return out, nil
}

func (s *Store) GetFlight(_ context.Context, id int64) (*models.Flight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.flights {
		if s.flights[i].ID == id {
			f := s.flights[i]
			return &f, nil
		}
	}
	return nil, datastore.ErrNotFound
}

func (s *Store) SearchFlightsByNumber(_ context.Context, airline, flightNumber string) ([]models.Flight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Flight, 0)
	for _, f := range s.flights {
		if strings.EqualFold(f.Airline, airline) && f.FlightNumber == flightNumber {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) SearchFlightsByAirports(_ context.Context, date time.Time, departureAirport, arrivalAirport string) ([]models.Flight, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Flight, 0)
	for _, f := range s.flights {
		if departureAirport != "" && !strings.EqualFold(f.DepartureAirport, departureAirport) {
			continue
		}
		if arrivalAirport != "" && !strings.EqualFold(f.ArrivalAirport, arrivalAirport) {
			continue
		}
		if f.DepartureTime.Before(dayStart) || !f.DepartureTime.Before(dayEnd) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *Store) SearchFlightSeats(_ context.Context, q datastore.SeatQuery) ([]models.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flightID, ok := s.findFlightIDLocked(q.Airline, q.FlightNumber, q.DepartureAirport, q.DepartureTime)
	if !ok {
		return nil, datastore.ErrNotFound
	}

	out := make([]models.Seat, 0)
	for _, seat := range s.seats {
		if seat.FlightID != flightID {
			continue
		}
		if q.SeatRow != nil && seat.SeatRow != *q.SeatRow {
			continue
		}
		if q.SeatLetter != "" && !strings.EqualFold(seat.SeatLetter, q.SeatLetter) {
			continue
		}
		if q.SeatClass != "" && !strings.EqualFold(seat.SeatClass, q.SeatClass) {
			continue
		}
		if q.SeatType != "" && !strings.EqualFold(seat.SeatType, q.SeatType) {
			continue
		}
		out = append(out, seat)
	}
	return out, nil
}

func (s *Store) ValidateTicket(_ context.Context, airline, flightNumber, departureAirport string, departureTime time.Time) (*models.Flight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.flights {
		if strings.EqualFold(f.Airline, airline) &&
			f.FlightNumber == flightNumber &&
			strings.EqualFold(f.DepartureAirport, departureAirport) &&
			f.DepartureTime.Equal(departureTime) {
			out := f
			return &out, nil
		}
	}
	return nil, datastore.ErrNotFound
}

func (s *Store) InsertTicket(_ context.Context, t *models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	if t.SeatRow != 0 && t.SeatLetter != "" {
		flightID, ok := s.findFlightIDLocked(t.Airline, t.FlightNumber, t.DepartureAirport, t.DepartureTime)
		if !ok {
			return datastore.ErrNotFound
		}
		reserved := false
		for i := range s.seats {
			seat := &s.seats[i]
			if seat.FlightID != flightID || seat.SeatRow != t.SeatRow || !strings.EqualFold(seat.SeatLetter, t.SeatLetter) {
				continue
			}
			if seat.IsReserved {
				return datastore.ErrSeatUnavailable
			}
			seat.IsReserved = true
			seat.TicketID = t.ID
			reserved = true
			break
		}
		if !reserved {
			return datastore.ErrSeatUnavailable
		}
	}

	s.tickets = append(s.tickets, *t)
	return nil
}

func (s *Store) ListTickets(_ context.Context, userID string) ([]models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Ticket, 0)
	for _, t := range s.tickets {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) SearchPolicies(_ context.Context, queryEmbedding []float32, similarityThreshold float64, topK int) ([]models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		policy     models.Policy
		similarity float64
	}
	var hits []scored
	for _, p := range s.policies {
		sim := cosineSimilarity(queryEmbedding, p.Embedding)
		if sim > similarityThreshold {
			p.Embedding = nil
			hits = append(hits, scored{policy: p, similarity: sim})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].similarity > hits[j].similarity })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]models.Policy, len(hits))
	for i, h := range hits {
		out[i] = h.policy
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

// findFlightIDLocked resolves a flight by its booking key. Caller holds the lock.
func (s *Store) findFlightIDLocked(airline, flightNumber, departureAirport string, departureTime time.Time) (int64, bool) {
	for _, f := range s.flights {
		if strings.EqualFold(f.Airline, airline) &&
			f.FlightNumber == flightNumber &&
			strings.EqualFold(f.DepartureAirport, departureAirport) &&
			f.DepartureTime.Equal(departureTime) {
			return f.ID, true
		}
	}
	return 0, false
}

// cosineSimilarity returns the cosine similarity of two vectors, or 0 when
// either is empty or the lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
