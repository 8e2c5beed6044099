package neo4j

import (
	"context"
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

const airportReturn = `RETURN a.id AS id, a.iata AS iata, a.name AS name, a.city AS city, a.country AS country`

func (s *Store) GetAirport(ctx context.Context, id int) (*models.Airport, error) {
	records, err := s.run.Run(ctx,
		`MATCH (a:Airport {id: $id}) `+airportReturn,
		map[string]any{"id": id})
	if err != nil {
		return nil, &datastore.Error{Op: opGetAirport, Err: err}
	}
	if len(records) == 0 {
		return nil, &datastore.Error{Op: opGetAirport, Err: datastore.ErrNotFound}
	}
	return airportFromRecord(records[0]), nil
}

func (s *Store) GetAirportByIATA(ctx context.Context, iata string) (*models.Airport, error) {
	records, err := s.run.Run(ctx,
		`MATCH (a:Airport) WHERE toUpper(a.iata) = toUpper($iata) `+airportReturn,
		map[string]any{"iata": iata})
	if err != nil {
		return nil, &datastore.Error{Op: opGetAirport, Err: err}
	}
	if len(records) == 0 {
		return nil, &datastore.Error{Op: opGetAirport, Err: datastore.ErrNotFound}
	}
	return airportFromRecord(records[0]), nil
}

func (s *Store) SearchAirports(ctx context.Context, country, city, name string) ([]models.Airport, error) {
	records, err := s.run.Run(ctx, `
		MATCH (a:Airport)
		WHERE ($country = '' OR toLower(a.country) = toLower($country))
		  AND ($city = '' OR toLower(a.city) = toLower($city))
		  AND ($name = '' OR toLower(a.name) CONTAINS toLower($name))
		`+airportReturn+`
		ORDER BY a.id`,
		map[string]any{"country": country, "city": city, "name": name})
	if err != nil {
		return nil, &datastore.Error{Op: opSearchAirports, Err: err}
	}
	out := make([]models.Airport, 0, len(records))
	for _, rec := range records {
		out = append(out, *airportFromRecord(rec))
	}
	return out, nil
}

const amenityReturn = `RETURN a.id AS id, a.name AS name, a.description AS description,
       a.location AS location, a.terminal AS terminal, a.category AS category, a.hour AS hour`

func (s *Store) GetAmenity(ctx context.Context, id int) (*models.Amenity, error) {
	records, err := s.run.Run(ctx,
		`MATCH (a:Amenity {id: $id}) `+amenityReturn,
		map[string]any{"id": id})
	if err != nil {
		return nil, &datastore.Error{Op: opGetAmenity, Err: err}
	}
	if len(records) == 0 {
		return nil, &datastore.Error{Op: opGetAmenity, Err: datastore.ErrNotFound}
	}
	return amenityFromRecord(records[0]), nil
}

func (s *Store) SearchAmenities(ctx context.Context, queryEmbedding []float32, similarityThreshold float64, topK int) ([]models.Amenity, error) {
	records, err := s.run.Run(ctx, `
		CALL db.index.vector.queryNodes('amenity_embedding', $k, $embedding)
		YIELD node AS a, score
		WHERE score > $threshold
		`+amenityReturn+`
		ORDER BY score DESC`,
		map[string]any{
			"k":         topK,
			"embedding": toFloat64(queryEmbedding),
			"threshold": similarityThreshold,
		})
	if err != nil {
		return nil, &datastore.Error{Op: opSearchAmenity, Err: err}
	}
	out := make([]models.Amenity, 0, len(records))
	for _, rec := range records {
		out = append(out, *amenityFromRecord(rec))
	}
	return out, nil
}

const flightReturn = `RETURN f.id AS id, f.airline AS airline, f.flight_number AS flight_number,
       f.departure_airport AS departure_airport, f.arrival_airport AS arrival_airport,
       f.departure_time AS departure_time, f.arrival_time AS arrival_time,
       f.departure_gate AS departure_gate, f.arrival_gate AS arrival_gate`

func (s *Store) GetFlight(ctx context.Context, id int64) (*models.Flight, error) {
	records, err := s.run.Run(ctx,
		`MATCH (f:Flight {id: $id}) `+flightReturn,
		map[string]any{"id": id})
	if err != nil {
		return nil, &datastore.Error{Op: opGetFlight, Err: err}
	}
	if len(records) == 0 {
		return nil, &datastore.Error{Op: opGetFlight, Err: datastore.ErrNotFound}
	}
	return flightFromRecord(records[0]), nil
}

func (s *Store) SearchFlightsByNumber(ctx context.Context, airline, flightNumber string) ([]models.Flight, error) {
	records, err := s.run.Run(ctx,
		`MATCH (f:Flight {airline: $airline, flight_number: $flight_number}) `+flightReturn,
		map[string]any{"airline": airline, "flight_number": flightNumber})
	if err != nil {
		return nil, &datastore.Error{Op: opSearchFlights, Err: err}
	}
	return flightsFromRecords(records), nil
}

func (s *Store) SearchFlightsByAirports(ctx context.Context, date time.Time, departureAirport, arrivalAirport string) ([]models.Flight, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	records, err := s.run.Run(ctx, `
		MATCH (f:Flight)
		WHERE ($departure_airport = '' OR toUpper(f.departure_airport) = toUpper($departure_airport))
		  AND ($arrival_airport = '' OR toUpper(f.arrival_airport) = toUpper($arrival_airport))
		  AND f.departure_time >= $day_start
		  AND f.departure_time < $day_end
		`+flightReturn+`
		ORDER BY f.departure_time`,
		map[string]any{
			"departure_airport": departureAirport,
			"arrival_airport":   arrivalAirport,
			"day_start":         dayStart,
			"day_end":           dayStart.Add(24 * time.Hour),
		})
	if err != nil {
		return nil, &datastore.Error{Op: opSearchFlights, Err: err}
	}
	return flightsFromRecords(records), nil
}

func (s *Store) SearchFlightSeats(ctx context.Context, q datastore.SeatQuery) ([]models.Seat, error) {
	records, err := s.run.Run(ctx, `
		MATCH (st:Seat)-[:SEAT_OF]->(f:Flight)
		WHERE toUpper(f.airline) = toUpper($airline)
		  AND f.flight_number = $flight_number
		  AND toUpper(f.departure_airport) = toUpper($departure_airport)
		  AND f.departure_time = $departure_time
		  AND ($seat_row = 0 OR st.seat_row = $seat_row)
		  AND ($seat_letter = '' OR toUpper(st.seat_letter) = toUpper($seat_letter))
		  AND ($seat_class = '' OR toLower(st.seat_class) = toLower($seat_class))
		  AND ($seat_type = '' OR toLower(st.seat_type) = toLower($seat_type))
		RETURN f.id AS flight_id, st.seat_row AS seat_row, st.seat_letter AS seat_letter,
		       st.seat_type AS seat_type, st.seat_class AS seat_class,
		       st.is_reserved AS is_reserved, st.ticket_id AS ticket_id
		ORDER BY st.seat_row, st.seat_letter`,
		map[string]any{
			"airline":           q.Airline,
			"flight_number":     q.FlightNumber,
			"departure_airport": q.DepartureAirport,
			"departure_time":    q.DepartureTime,
			"seat_row":          derefInt(q.SeatRow),
			"seat_letter":       q.SeatLetter,
			"seat_class":        q.SeatClass,
			"seat_type":         q.SeatType,
		})
	if err != nil {
		return nil, &datastore.Error{Op: opSearchSeats, Err: err}
	}
	out := make([]models.Seat, 0, len(records))
	for _, rec := range records {
		out = append(out, *seatFromRecord(rec))
	}
	return out, nil
}

func (s *Store) ValidateTicket(ctx context.Context, airline, flightNumber, departureAirport string, departureTime time.Time) (*models.Flight, error) {
	records, err := s.run.Run(ctx, `
		MATCH (f:Flight)
		WHERE toUpper(f.airline) = toUpper($airline)
		  AND toUpper(f.flight_number) = toUpper($flight_number)
		  AND toUpper(f.departure_airport) = toUpper($departure_airport)
		  AND f.departure_time = $departure_time
		`+flightReturn,
		map[string]any{
			"airline":           airline,
			"flight_number":     flightNumber,
			"departure_airport": departureAirport,
			"departure_time":    departureTime,
		})
	if err != nil {
		return nil, &datastore.Error{Op: opValidateTicket, Err: err}
	}
	if len(records) == 0 {
		return nil, &datastore.Error{Op: opValidateTicket, Err: datastore.ErrNotFound}
	}
	return flightFromRecord(records[0]), nil
}

func (s *Store) InsertTicket(ctx context.Context, t *models.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	if t.SeatRow > 0 && t.SeatLetter != "" {
		records, err := s.run.Run(ctx, `
			MATCH (st:Seat)-[:SEAT_OF]->(f:Flight)
			WHERE toUpper(f.airline) = toUpper($airline)
			  AND f.flight_number = $flight_number
			  AND toUpper(f.departure_airport) = toUpper($departure_airport)
			  AND f.departure_time = $departure_time
			  AND st.seat_row = $seat_row
			  AND toUpper(st.seat_letter) = toUpper($seat_letter)
			  AND NOT st.is_reserved
			SET st.is_reserved = true, st.ticket_id = $ticket_id
			RETURN st.seat_row AS seat_row`,
			map[string]any{
				"airline":           t.Airline,
				"flight_number":     t.FlightNumber,
				"departure_airport": t.DepartureAirport,
				"departure_time":    t.DepartureTime,
				"seat_row":          t.SeatRow,
				"seat_letter":       t.SeatLetter,
				"ticket_id":         t.ID,
			})
		if err != nil {
			return &datastore.Error{Op: opInsertTicket, Err: err}
		}
		if len(records) == 0 {
			return &datastore.Error{Op: opInsertTicket, Err: datastore.ErrSeatUnavailable}
		}
	}

	_, err := s.run.Run(ctx, `
		CREATE (t:Ticket {
			id: $id, user_id: $user_id, user_name: $user_name, user_email: $user_email,
			airline: $airline, flight_number: $flight_number,
			departure_airport: $departure_airport, arrival_airport: $arrival_airport,
			departure_time: $departure_time, arrival_time: $arrival_time,
			seat_row: $seat_row, seat_letter: $seat_letter
		})`,
		map[string]any{
			"id":                t.ID,
			"user_id":           t.UserID,
			"user_name":         t.UserName,
			"user_email":        t.UserEmail,
			"airline":           t.Airline,
			"flight_number":     t.FlightNumber,
			"departure_airport": t.DepartureAirport,
			"arrival_airport":   t.ArrivalAirport,
			"departure_time":    t.DepartureTime,
			"arrival_time":      t.ArrivalTime,
			"seat_row":          t.SeatRow,
			"seat_letter":       t.SeatLetter,
		})
	if err != nil {
		return &datastore.Error{Op: opInsertTicket, Err: err}
	}
	return nil
}

func (s *Store) ListTickets(ctx context.Context, userID string) ([]models.Ticket, error) {
	records, err := s.run.Run(ctx, `
		MATCH (t:Ticket {user_id: $user_id})
		RETURN t.id AS id, t.user_id AS user_id, t.user_name AS user_name,
		       t.user_email AS user_email, t.airline AS airline,
		       t.flight_number AS flight_number, t.departure_airport AS departure_airport,
		       t.arrival_airport AS arrival_airport, t.departure_time AS departure_time,
		       t.arrival_time AS arrival_time, t.seat_row AS seat_row,
		       t.seat_letter AS seat_letter
		ORDER BY t.departure_time`,
		map[string]any{"user_id": userID})
	if err != nil {
		return nil, &datastore.Error{Op: opListTickets, Err: err}
	}
	out := make([]models.Ticket, 0, len(records))
	for _, rec := range records {
		out = append(out, *ticketFromRecord(rec))
	}
	return out, nil
}

func (s *Store) SearchPolicies(ctx context.Context, queryEmbedding []float32, similarityThreshold float64, topK int) ([]models.Policy, error) {
	records, err := s.run.Run(ctx, `
		CALL db.index.vector.queryNodes('policy_embedding', $k, $embedding)
		YIELD node AS p, score
		WHERE score > $threshold
		RETURN p.id AS id, p.content AS content
		ORDER BY score DESC`,
		map[string]any{
			"k":         topK,
			"embedding": toFloat64(queryEmbedding),
			"threshold": similarityThreshold,
		})
	if err != nil {
		return nil, &datastore.Error{Op: opSearchPolicies, Err: err}
	}
	out := make([]models.Policy, 0, len(records))
	for _, rec := range records {
		out = append(out, models.Policy{ID: getInt(rec, "id"), Content: getString(rec, "content")})
	}
	return out, nil
}

// --- record mapping ---

func airportFromRecord(rec map[string]any) *models.Airport {
	return &models.Airport{
		ID:      getInt(rec, "id"),
		IATA:    getString(rec, "iata"),
		Name:    getString(rec, "name"),
		City:    getString(rec, "city"),
		Country: getString(rec, "country"),
	}
}

func amenityFromRecord(rec map[string]any) *models.Amenity {
	return &models.Amenity{
		ID:          getInt(rec, "id"),
		Name:        getString(rec, "name"),
		Description: getString(rec, "description"),
		Location:    getString(rec, "location"),
		Terminal:    getString(rec, "terminal"),
		Category:    getString(rec, "category"),
		Hour:        getString(rec, "hour"),
	}
}

func flightFromRecord(rec map[string]any) *models.Flight {
	return &models.Flight{
		ID:               getInt64(rec, "id"),
		Airline:          getString(rec, "airline"),
		FlightNumber:     getString(rec, "flight_number"),
		DepartureAirport: getString(rec, "departure_airport"),
		ArrivalAirport:   getString(rec, "arrival_airport"),
		DepartureTime:    getTime(rec, "departure_time"),
		ArrivalTime:      getTime(rec, "arrival_time"),
		DepartureGate:    getString(rec, "departure_gate"),
		ArrivalGate:      getString(rec, "arrival_gate"),
	}
}

func flightsFromRecords(records []map[string]any) []models.Flight {
	out := make([]models.Flight, 0, len(records))
	for _, rec := range records {
		out = append(out, *flightFromRecord(rec))
	}
	return out
}

func seatFromRecord(rec map[string]any) *models.Seat {
	return &models.Seat{
		FlightID:   getInt64(rec, "flight_id"),
		SeatRow:    getInt(rec, "seat_row"),
		SeatLetter: getString(rec, "seat_letter"),
		SeatType:   getString(rec, "seat_type"),
		SeatClass:  getString(rec, "seat_class"),
		IsReserved: getBool(rec, "is_reserved"),
		TicketID:   getString(rec, "ticket_id"),
	}
}

func ticketFromRecord(rec map[string]any) *models.Ticket {
	return &models.Ticket{
		ID:               getString(rec, "id"),
		UserID:           getString(rec, "user_id"),
		UserName:         getString(rec, "user_name"),
		UserEmail:        getString(rec, "user_email"),
		Airline:          getString(rec, "airline"),
		FlightNumber:     getString(rec, "flight_number"),
		DepartureAirport: getString(rec, "departure_airport"),
		ArrivalAirport:   getString(rec, "arrival_airport"),
		DepartureTime:    getTime(rec, "departure_time"),
		ArrivalTime:      getTime(rec, "arrival_time"),
		SeatRow:          getInt(rec, "seat_row"),
		SeatLetter:       getString(rec, "seat_letter"),
	}
}

func getString(rec map[string]any, key string) string {
	if v, ok := rec[key].(string); ok {
		return v
	}
	return ""
}

func getInt(rec map[string]any, key string) int {
	return int(getInt64(rec, key))
}

func getInt64(rec map[string]any, key string) int64 {
	switch v := rec[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func getBool(rec map[string]any, key string) bool {
	if v, ok := rec[key].(bool); ok {
		return v
	}
	return false
}

func getTime(rec map[string]any, key string) time.Time {
	if v, ok := rec[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
