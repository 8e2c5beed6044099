package neo4j

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cymbal-air/retrieval-service/internal/datastore"
	"github.com/cymbal-air/retrieval-service/internal/models"
)

var depTime = time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)

// fakeRunner records executed statements and plays back canned results.
type fakeRunner struct {
	queries []string
	params  []map[string]any
	results [][]map[string]any
	errs    []error
	calls   int
}

func (f *fakeRunner) Run(_ context.Context, query string, params map[string]any) ([]map[string]any, error) {
	f.queries = append(f.queries, query)
	f.params = append(f.params, params)
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var res []map[string]any
	if i < len(f.results) {
		res = f.results[i]
	}
	return res, err
}

func flightRecord() map[string]any {
	return map[string]any{
		"id":                int64(10),
		"airline":           "UA",
		"flight_number":     "1532",
		"departure_airport": "SFO",
		"arrival_airport":   "SEA",
		"departure_time":    depTime,
		"arrival_time":      depTime.Add(2 * time.Hour),
		"departure_gate":    "B2",
		"arrival_gate":      "C4",
	}
}

func TestGetAirport(t *testing.T) {
	r := &fakeRunner{results: [][]map[string]any{{
		{"id": int64(1), "iata": "SFO", "name": "San Francisco International Airport",
			"city": "San Francisco", "country": "United States"},
	}}}
	s := NewWithRunner(r, nil)

	airport, err := s.GetAirport(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if airport.IATA != "SFO" || airport.City != "San Francisco" {
		t.Errorf("unexpected airport: %+v", airport)
	}
	if !strings.Contains(r.queries[0], "MATCH (a:Airport {id: $id})") {
		t.Errorf("unexpected query: %s", r.queries[0])
	}
}

func TestGetAirportNotFound(t *testing.T) {
	r := &fakeRunner{}
	s := NewWithRunner(r, nil)

	_, err := s.GetAirport(context.Background(), 404)
	if !errors.Is(err, datastore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchAirportsPassesFilters(t *testing.T) {
	r := &fakeRunner{results: [][]map[string]any{{
		{"id": int64(1), "iata": "SFO", "name": "San Francisco International Airport",
			"city": "San Francisco", "country": "United States"},
	}}}
	s := NewWithRunner(r, nil)

	airports, err := s.SearchAirports(context.Background(), "United States", "", "international")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(airports) != 1 {
		t.Fatalf("expected 1 airport, got %d", len(airports))
	}
	if r.params[0]["country"] != "United States" || r.params[0]["name"] != "international" {
		t.Errorf("unexpected params: %v", r.params[0])
	}
}

func TestSearchAmenitiesUsesVectorIndex(t *testing.T) {
	r := &fakeRunner{results: [][]map[string]any{{
		{"id": int64(7), "name": "Coffee Cart", "description": "Espresso and pastries",
			"location": "Near Gate B12", "terminal": "Terminal 3",
			"category": "restaurant", "hour": "Daily 6am-9pm"},
	}}}
	s := NewWithRunner(r, nil)

	amenities, err := s.SearchAmenities(context.Background(), []float32{0.1, 0.2}, 0.5, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(amenities) != 1 || amenities[0].Name != "Coffee Cart" {
		t.Errorf("unexpected amenities: %+v", amenities)
	}
	if !strings.Contains(r.queries[0], "db.index.vector.queryNodes('amenity_embedding'") {
		t.Errorf("unexpected query: %s", r.queries[0])
	}
	emb, ok := r.params[0]["embedding"].([]float64)
	if !ok || len(emb) != 2 {
		t.Errorf("expected float64 embedding param, got %v", r.params[0]["embedding"])
	}
}

func TestSearchFlightsByAirportsWindow(t *testing.T) {
	r := &fakeRunner{results: [][]map[string]any{{flightRecord()}}}
	s := NewWithRunner(r, nil)

	flights, err := s.SearchFlightsByAirports(context.Background(), depTime, "SFO", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flights) != 1 || flights[0].ID != 10 {
		t.Errorf("unexpected flights: %+v", flights)
	}

	dayStart := r.params[0]["day_start"].(time.Time)
	dayEnd := r.params[0]["day_end"].(time.Time)
	if !dayStart.Equal(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected day start %v", dayStart)
	}
	if dayEnd.Sub(dayStart) != 24*time.Hour {
		t.Errorf("expected 24h window, got %v", dayEnd.Sub(dayStart))
	}
}

func TestValidateTicketNotFound(t *testing.T) {
	r := &fakeRunner{}
	s := NewWithRunner(r, nil)

	_, err := s.ValidateTicket(context.Background(), "UA", "9999", "SFO", depTime)
	if !errors.Is(err, datastore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertTicketReservesSeat(t *testing.T) {
	r := &fakeRunner{results: [][]map[string]any{
		{{"seat_row": int64(10)}}, // seat reservation succeeded
		nil,                       // ticket CREATE
	}}
	s := NewWithRunner(r, nil)

	ticket := &models.Ticket{
		UserID:           "user-1",
		Airline:          "UA",
		FlightNumber:     "1532",
		DepartureAirport: "SFO",
		DepartureTime:    depTime,
		SeatRow:          10,
		SeatLetter:       "A",
	}
	if err := s.InsertTicket(context.Background(), ticket); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticket.ID == "" {
		t.Error("expected generated ticket ID")
	}
	if len(r.queries) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(r.queries))
	}
	if !strings.Contains(r.queries[0], "NOT st.is_reserved") {
		t.Errorf("reservation should require a free seat: %s", r.queries[0])
	}
	if !strings.Contains(r.queries[1], "CREATE (t:Ticket") {
		t.Errorf("unexpected second statement: %s", r.queries[1])
	}
}

func TestInsertTicketSeatTaken(t *testing.T) {
	// Empty reservation result means no free matching seat.
	r := &fakeRunner{results: [][]map[string]any{nil}}
	s := NewWithRunner(r, nil)

	ticket := &models.Ticket{
		UserID:        "user-1",
		Airline:       "UA",
		FlightNumber:  "1532",
		DepartureTime: depTime,
		SeatRow:       10,
		SeatLetter:    "B",
	}
	err := s.InsertTicket(context.Background(), ticket)
	if !errors.Is(err, datastore.ErrSeatUnavailable) {
		t.Fatalf("expected ErrSeatUnavailable, got %v", err)
	}
	if len(r.queries) != 1 {
		t.Errorf("ticket must not be created after a failed reservation, got %d statements", len(r.queries))
	}
}

func TestListTickets(t *testing.T) {
	r := &fakeRunner{results: [][]map[string]any{{
		{"id": "t-1", "user_id": "user-1", "airline": "UA", "flight_number": "1532",
			"departure_time": depTime, "arrival_time": depTime.Add(2 * time.Hour),
			"seat_row": int64(10), "seat_letter": "A"},
	}}}
	s := NewWithRunner(r, nil)

	tickets, err := s.ListTickets(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tickets) != 1 || tickets[0].SeatRow != 10 {
		t.Errorf("unexpected tickets: %+v", tickets)
	}
}

func TestLoadDataOrdering(t *testing.T) {
	r := &fakeRunner{}
	s := NewWithRunner(r, nil)

	data := sampleDataset()
	if err := s.LoadData(context.Background(), data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(r.queries[0], "DETACH DELETE") {
		t.Errorf("expected graph wipe first, got: %s", r.queries[0])
	}
	var sawVectorIndex, sawSeats bool
	for _, q := range r.queries {
		if strings.Contains(q, "CREATE VECTOR INDEX amenity_embedding") {
			if !strings.Contains(q, "`vector.dimensions`: 2") { // dataset embeddings are 2-dimensional
				t.Errorf("vector index should use dataset dimension: %s", q)
			}
			sawVectorIndex = true
		}
		if strings.Contains(q, "[:SEAT_OF]") {
			sawSeats = true
		}
	}
	if !sawVectorIndex {
		t.Error("expected amenity vector index creation")
	}
	if !sawSeats {
		t.Error("expected seat relationships")
	}
}

func TestRunErrorWrapped(t *testing.T) {
	r := &fakeRunner{errs: []error{errors.New("connection refused")}}
	s := NewWithRunner(r, nil)

	_, err := s.SearchFlightsByNumber(context.Background(), "UA", "1532")
	var dsErr *datastore.Error
	if !errors.As(err, &dsErr) {
		t.Fatalf("expected datastore.Error, got %T", err)
	}
	if dsErr.Op != "flights.search" {
		t.Errorf("unexpected op %q", dsErr.Op)
	}
}
