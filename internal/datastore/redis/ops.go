package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

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
)

func (s *Store) GetAirport(ctx context.Context, id int) (*models.Airport, error) {
	m, err := s.hgetAll(ctx, opGetAirport, keyAirport+strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	return airportFromMap(m), nil
}

func (s *Store) GetAirportByIATA(ctx context.Context, iata string) (*models.Airport, error) {
	hashes, err := s.searchHashes(ctx, opGetAirport, idxAirports, tagFilter("iata", iata), 1)
	if err != nil {
		return nil, err
	}
	if len(hashes) == 0 {
		return nil, &datastore.Error{Op: opGetAirport, Err: datastore.ErrNotFound}
	}
	return airportFromMap(hashes[0]), nil
}

func (s *Store) SearchAirports(ctx context.Context, country, city, name string) ([]models.Airport, error) {
	var parts []string
	if country != "" {
		parts = append(parts, tagFilter("country", country))
	}
	if city != "" {
		parts = append(parts, tagFilter("city", city))
	}
	if name != "" {
		// Dialect 2 infix wildcard for substring matching.
		parts = append(parts, fmt.Sprintf("@name:(w'*%s*')", strings.ToLower(name)))
	}
	query := "*"
	if len(parts) > 0 {
		query = strings.Join(parts, " ")
	}

	hashes, err := s.searchHashes(ctx, opSearchAirports, idxAirports, query, searchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Airport, 0, len(hashes))
	for _, m := range hashes {
		out = append(out, *airportFromMap(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetAmenity(ctx context.Context, id int) (*models.Amenity, error) {
	m, err := s.hgetAll(ctx, opGetAmenity, keyAmenity+strconv.Itoa(id))
	if err != nil {
		return nil, err
	}
	return amenityFromMap(m), nil
}

func (s *Store) SearchAmenities(ctx context.Context, queryEmbedding []float32, similarityThreshold float64, topK int) ([]models.Amenity, error) {
	hashes, err := s.searchKNN(ctx, opSearchAmenity, idxAmenity, queryEmbedding, topK)
	if err != nil {
		return nil, err
	}
	var out []models.Amenity
	for _, h := range hashes {
		if h.similarity <= similarityThreshold {
			continue
		}
		out = append(out, *amenityFromMap(h.fields))
	}
	return out, nil
}

func (s *Store) GetFlight(ctx context.Context, id int64) (*models.Flight, error) {
	m, err := s.hgetAll(ctx, opGetFlight, keyFlight+strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}
	return flightFromMap(m), nil
}

func (s *Store) SearchFlightsByNumber(ctx context.Context, airline, flightNumber string) ([]models.Flight, error) {
	query := tagFilter("airline", airline) + " " + tagFilter("flight_number", flightNumber)
	hashes, err := s.searchHashes(ctx, opSearchFlights, idxFlights, query, searchLimit)
	if err != nil {
		return nil, err
	}
	return flightsFromMaps(hashes), nil
}

func (s *Store) SearchFlightsByAirports(ctx context.Context, date time.Time, departureAirport, arrivalAirport string) ([]models.Flight, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	parts := []string{numericFilter("departure_ts",
		strconv.FormatInt(dayStart.Unix(), 10),
		"("+strconv.FormatInt(dayEnd.Unix(), 10))}
	if departureAirport != "" {
		parts = append(parts, tagFilter("departure_airport", departureAirport))
	}
	if arrivalAirport != "" {
		parts = append(parts, tagFilter("arrival_airport", arrivalAirport))
	}

	hashes, err := s.searchHashes(ctx, opSearchFlights, idxFlights, strings.Join(parts, " "), searchLimit)
	if err != nil {
		return nil, err
	}
	return flightsFromMaps(hashes), nil
}

func (s *Store) SearchFlightSeats(ctx context.Context, q datastore.SeatQuery) ([]models.Seat, error) {
	flight, err := s.findFlight(ctx, opSearchSeats, q.Airline, q.FlightNumber, q.DepartureAirport, q.DepartureTime)
	if err != nil {
		return nil, err
	}

	id := strconv.FormatInt(flight.ID, 10)
	parts := []string{numericFilter("flight_id", id, id)}
	if q.SeatRow != nil {
		row := strconv.Itoa(*q.SeatRow)
		parts = append(parts, numericFilter("seat_row", row, row))
	}
	if q.SeatLetter != "" {
		parts = append(parts, tagFilter("seat_letter", q.SeatLetter))
	}
	if q.SeatClass != "" {
		parts = append(parts, tagFilter("seat_class", q.SeatClass))
	}
	if q.SeatType != "" {
		parts = append(parts, tagFilter("seat_type", q.SeatType))
	}

	hashes, err := s.searchHashes(ctx, opSearchSeats, idxSeats, strings.Join(parts, " "), searchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Seat, 0, len(hashes))
	for _, m := range hashes {
		out = append(out, *seatFromMap(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SeatRow != out[j].SeatRow {
			return out[i].SeatRow < out[j].SeatRow
		}
		return out[i].SeatLetter < out[j].SeatLetter
	})
	return out, nil
}

func (s *Store) ValidateTicket(ctx context.Context, airline, flightNumber, departureAirport string, departureTime time.Time) (*models.Flight, error) {
	return s.findFlight(ctx, opValidateTicket, airline, flightNumber, departureAirport, departureTime)
}

// findFlight matches one flight on airline, number, departure airport,
// and the exact departure timestamp.
func (s *Store) findFlight(ctx context.Context, op, airline, flightNumber, departureAirport string, departureTime time.Time) (*models.Flight, error) {
	ts := strconv.FormatInt(departureTime.Unix(), 10)
	query := strings.Join([]string{
		tagFilter("airline", airline),
		tagFilter("flight_number", flightNumber),
		tagFilter("departure_airport", departureAirport),
		numericFilter("departure_ts", ts, ts),
	}, " ")

	hashes, err := s.searchHashes(ctx, op, idxFlights, query, 1)
	if err != nil {
		return nil, err
	}
	if len(hashes) == 0 {
		return nil, &datastore.Error{Op: op, Err: datastore.ErrNotFound}
	}
	return flightFromMap(hashes[0]), nil
}

func (s *Store) InsertTicket(ctx context.Context, t *models.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	if t.SeatRow > 0 && t.SeatLetter != "" {
		flight, err := s.findFlight(ctx, opInsertTicket, t.Airline, t.FlightNumber, t.DepartureAirport, t.DepartureTime)
		if err != nil {
			return err
		}

		seatKey := seatKeyFor(flight.ID, t.SeatRow, t.SeatLetter)
		seat, err := s.do(ctx, s.b().Hgetall().Key(seatKey).Build()).AsStrMap()
		if err != nil {
			return &datastore.Error{Op: opInsertTicket, Err: err}
		}
		if len(seat) == 0 || seat["is_reserved"] == "1" {
			return &datastore.Error{Op: opInsertTicket, Err: datastore.ErrSeatUnavailable}
		}

		reserve := s.b().Hset().Key(seatKey).FieldValue().
			FieldValue("is_reserved", "1").
			FieldValue("ticket_id", t.ID).
			Build()
		if err := s.do(ctx, reserve).Error(); err != nil {
			return &datastore.Error{Op: opInsertTicket, Err: err}
		}
	}

	write := s.b().Hset().Key(keyTicket + t.ID).FieldValue()
	for k, v := range ticketToMap(t) {
		write = write.FieldValue(k, v)
	}
	if err := s.do(ctx, write.Build()).Error(); err != nil {
		return &datastore.Error{Op: opInsertTicket, Err: err}
	}
	return nil
}

func (s *Store) ListTickets(ctx context.Context, userID string) ([]models.Ticket, error) {
	hashes, err := s.searchHashes(ctx, opListTickets, idxTickets, tagFilter("user_id", userID), searchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]models.Ticket, 0, len(hashes))
	for _, m := range hashes {
		out = append(out, *ticketFromMap(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out, nil
}

func (s *Store) SearchPolicies(ctx context.Context, queryEmbedding []float32, similarityThreshold float64, topK int) ([]models.Policy, error) {
	hashes, err := s.searchKNN(ctx, opSearchPolicies, idxPolicies, queryEmbedding, topK)
	if err != nil {
		return nil, err
	}
	var out []models.Policy
	for _, h := range hashes {
		if h.similarity <= similarityThreshold {
			continue
		}
		out = append(out, *policyFromMap(h.fields))
	}
	return out, nil
}

func seatKeyFor(flightID int64, row int, letter string) string {
	return fmt.Sprintf("%s%d:%d:%s", keySeat, flightID, row, strings.ToUpper(letter))
}
