package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cymbal-air/retrieval-service/internal/dataset"
	"github.com/cymbal-air/retrieval-service/internal/datastore"
	"github.com/cymbal-air/retrieval-service/internal/models"
)

var depTime = time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	err := s.LoadData(context.Background(), &dataset.Dataset{
		Airports: []models.Airport{
			{ID: 1, IATA: "SFO", Name: "San Francisco International Airport", City: "San Francisco", Country: "United States"},
			{ID: 2, IATA: "SEA", Name: "Seattle-Tacoma International Airport", City: "Seattle", Country: "United States"},
			{ID: 3, IATA: "CDG", Name: "Charles de Gaulle Airport", City: "Paris", Country: "France"},
		},
		Amenities: []models.Amenity{
			{ID: 1, Name: "Coffee Bar", Category: "restaurant", Embedding: []float32{1, 0, 0}},
			{ID: 2, Name: "Spa", Category: "wellness", Embedding: []float32{0, 1, 0}},
			{ID: 3, Name: "Espresso Cart", Category: "restaurant", Embedding: []float32{0.9, 0.1, 0}},
		},
		Flights: []models.Flight{
			{
				ID: 10, Airline: "CY", FlightNumber: "888",
				DepartureAirport: "SFO", ArrivalAirport: "SEA",
				DepartureTime: depTime, ArrivalTime: depTime.Add(2 * time.Hour),
				DepartureGate: "A2", ArrivalGate: "B1",
			},
			{
				ID: 11, Airline: "CY", FlightNumber: "42",
				DepartureAirport: "SFO", ArrivalAirport: "CDG",
				DepartureTime: depTime.Add(26 * time.Hour), ArrivalTime: depTime.Add(37 * time.Hour),
				DepartureGate: "A4", ArrivalGate: "C3",
			},
		},
		Policies: []models.Policy{
			{ID: 1, Content: "Checked bags must weigh under 50 pounds.", Embedding: []float32{1, 0, 0}},
			{ID: 2, Content: "Flights may be cancelled up to 24 hours in advance.", Embedding: []float32{0, 0, 1}},
		},
		Seats: []models.Seat{
			{FlightID: 10, SeatRow: 1, SeatLetter: "A", SeatType: "window", SeatClass: "business"},
			{FlightID: 10, SeatRow: 1, SeatLetter: "B", SeatType: "aisle", SeatClass: "business", IsReserved: true, TicketID: "t-1"},
			{FlightID: 10, SeatRow: 20, SeatLetter: "C", SeatType: "middle", SeatClass: "economy"},
		},
	})
	if err != nil {
		t.Fatalf("LoadData: %v", err)
	}
	return s
}

func TestGetAirport(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	a, err := s.GetAirport(ctx, 1)
	if err != nil {
		t.Fatalf("GetAirport: %v", err)
	}
	if a.IATA != "SFO" {
		t.Errorf("iata = %q, want SFO", a.IATA)
	}

	if _, err := s.GetAirport(ctx, 99); !errors.Is(err, datastore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetAirportByIATA_CaseInsensitive(t *testing.T) {
	s := seededStore(t)

	a, err := s.GetAirportByIATA(context.Background(), "sea")
	if err != nil {
		t.Fatalf("GetAirportByIATA: %v", err)
	}
	if a.ID != 2 {
		t.Errorf("id = %d, want 2", a.ID)
	}
}

func TestSearchAirports(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	tests := []struct {
		name                string
		country, city, q    string
		wantIDs             []int
	}{
		{"by country", "United States", "", "", []int{1, 2}},
		{"by city", "", "Paris", "", []int{3}},
		{"by name substring", "", "", "international", []int{1, 2}},
		{"combined", "United States", "Seattle", "", []int{2}},
		{"no match", "Japan", "", "", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.SearchAirports(ctx, tc.country, tc.city, tc.q)
			if err != nil {
				t.Fatalf("SearchAirports: %v", err)
			}
			if len(got) != len(tc.wantIDs) {
				t.Fatalf("got %d airports, want %d", len(got), len(tc.wantIDs))
			}
			for i, id := range tc.wantIDs {
				if got[i].ID != id {
					t.Errorf("result[%d].ID = %d, want %d", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestSearchAmenities_RanksBySimilarity(t *testing.T) {
	s := seededStore(t)

	got, err := s.SearchAmenities(context.Background(), []float32{1, 0, 0}, 0.5, 5)
	if err != nil {
		t.Fatalf("SearchAmenities: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d amenities, want 2", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("order = [%d %d], want [1 3]", got[0].ID, got[1].ID)
	}
	if got[0].Embedding != nil {
		t.Error("embedding should not be returned to callers")
	}
}

func TestSearchAmenities_TopK(t *testing.T) {
	s := seededStore(t)

	got, err := s.SearchAmenities(context.Background(), []float32{1, 0, 0}, 0.0, 1)
	if err != nil {
		t.Fatalf("SearchAmenities: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d amenities, want 1", len(got))
	}
}

func TestSearchFlightsByAirports(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	// Same calendar day only: flight 11 departs the day after.
	got, err := s.SearchFlightsByAirports(ctx, depTime.Truncate(24*time.Hour), "SFO", "")
	if err != nil {
		t.Fatalf("SearchFlightsByAirports: %v", err)
	}
	if len(got) != 1 || got[0].ID != 10 {
		t.Fatalf("got %v, want flight 10 only", got)
	}

	got, err = s.SearchFlightsByAirports(ctx, depTime.Add(26*time.Hour).Truncate(24*time.Hour), "", "CDG")
	if err != nil {
		t.Fatalf("SearchFlightsByAirports: %v", err)
	}
	if len(got) != 1 || got[0].ID != 11 {
		t.Fatalf("got %v, want flight 11 only", got)
	}
}

func TestValidateTicket(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	f, err := s.ValidateTicket(ctx, "CY", "888", "SFO", depTime)
	if err != nil {
		t.Fatalf("ValidateTicket: %v", err)
	}
	if f.ID != 10 {
		t.Errorf("flight id = %d, want 10", f.ID)
	}

	if _, err := s.ValidateTicket(ctx, "CY", "888", "SFO", depTime.Add(time.Hour)); !errors.Is(err, datastore.ErrNotFound) {
		t.Errorf("expected ErrNotFound for wrong departure time, got %v", err)
	}
}

func TestInsertAndListTickets(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	ticket := &models.Ticket{
		UserID:           "user-1",
		UserName:         "Alex Doe",
		UserEmail:        "alex@example.com",
		Airline:          "CY",
		FlightNumber:     "888",
		DepartureAirport: "SFO",
		ArrivalAirport:   "SEA",
		DepartureTime:    depTime,
		ArrivalTime:      depTime.Add(2 * time.Hour),
	}
	if err := s.InsertTicket(ctx, ticket); err != nil {
		t.Fatalf("InsertTicket: %v", err)
	}
	if ticket.ID == "" {
		t.Error("expected generated ticket ID")
	}

	got, err := s.ListTickets(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(got) != 1 || got[0].FlightNumber != "888" {
		t.Fatalf("unexpected tickets: %v", got)
	}

	got, err = s.ListTickets(ctx, "someone-else")
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no tickets for other user, got %d", len(got))
	}
}

func TestInsertTicket_SeatReservation(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	base := models.Ticket{
		UserID: "user-1", Airline: "CY", FlightNumber: "888",
		DepartureAirport: "SFO", ArrivalAirport: "SEA",
		DepartureTime: depTime, ArrivalTime: depTime.Add(2 * time.Hour),
	}

	free := base
	free.SeatRow = 1
	free.SeatLetter = "A"
	if err := s.InsertTicket(ctx, &free); err != nil {
		t.Fatalf("InsertTicket free seat: %v", err)
	}

	taken := base
	taken.SeatRow = 1
	taken.SeatLetter = "B"
	if err := s.InsertTicket(ctx, &taken); !errors.Is(err, datastore.ErrSeatUnavailable) {
		t.Fatalf("expected ErrSeatUnavailable, got %v", err)
	}

	// Re-booking the now-taken seat A also fails.
	again := base
	again.SeatRow = 1
	again.SeatLetter = "A"
	if err := s.InsertTicket(ctx, &again); !errors.Is(err, datastore.ErrSeatUnavailable) {
		t.Fatalf("expected ErrSeatUnavailable for re-booked seat, got %v", err)
	}
}

func TestSearchFlightSeats(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	got, err := s.SearchFlightSeats(ctx, datastore.SeatQuery{
		Airline: "CY", FlightNumber: "888", DepartureAirport: "SFO", DepartureTime: depTime,
		SeatClass: "business",
	})
	if err != nil {
		t.Fatalf("SearchFlightSeats: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d seats, want 2", len(got))
	}

	row := 20
	got, err = s.SearchFlightSeats(ctx, datastore.SeatQuery{
		Airline: "CY", FlightNumber: "888", DepartureAirport: "SFO", DepartureTime: depTime,
		SeatRow: &row,
	})
	if err != nil {
		t.Fatalf("SearchFlightSeats: %v", err)
	}
	if len(got) != 1 || got[0].SeatLetter != "C" {
		t.Fatalf("unexpected seats: %v", got)
	}

	_, err = s.SearchFlightSeats(ctx, datastore.SeatQuery{
		Airline: "XX", FlightNumber: "1", DepartureAirport: "SFO", DepartureTime: depTime,
	})
	if !errors.Is(err, datastore.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown flight, got %v", err)
	}
}

func TestSearchPolicies(t *testing.T) {
	s := seededStore(t)

	got, err := s.SearchPolicies(context.Background(), []float32{0, 0, 1}, 0.5, 5)
	if err != nil {
		t.Fatalf("SearchPolicies: %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("unexpected policies: %v", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := cosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("cosineSimilarity = %f, want %f", got, tc.want)
			}
		})
	}
}
