package neo4j

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cymbal-air/retrieval-service/internal/dataset"
	"github.com/cymbal-air/retrieval-service/internal/datastore"
	"github.com/cymbal-air/retrieval-service/internal/models"
)

const opLoadData = "load"

// loadBatchSize rows per UNWIND statement.
const loadBatchSize = 1000

// LoadData wipes the graph and recreates all nodes, relationships, and
// vector indexes from the dataset.
func (s *Store) LoadData(ctx context.Context, data *dataset.Dataset) error {
	s.vectorDim = embeddingDim(data)

	if _, err := s.run.Run(ctx, `MATCH (n) DETACH DELETE n`, nil); err != nil {
		return &datastore.Error{Op: opLoadData, Err: err}
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return &datastore.Error{Op: opLoadData, Err: err}
	}

	steps := []func(context.Context, *dataset.Dataset) error{
		s.loadAirports,
		s.loadAmenities,
		s.loadFlights,
		s.loadPolicies,
		s.loadTickets,
		s.loadSeats, // after flights: seats attach via SEAT_OF
	}
	for _, step := range steps {
		if err := step(ctx, data); err != nil {
			return &datastore.Error{Op: opLoadData, Err: err}
		}
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

func (s *Store) ensureIndexes(ctx context.Context) error {
	dim := s.vectorDim
	if dim <= 0 {
		dim = 768
	}

	statements := []string{
		`CREATE CONSTRAINT airport_id IF NOT EXISTS FOR (a:Airport) REQUIRE a.id IS UNIQUE`,
		`CREATE CONSTRAINT amenity_id IF NOT EXISTS FOR (a:Amenity) REQUIRE a.id IS UNIQUE`,
		`CREATE CONSTRAINT flight_id IF NOT EXISTS FOR (f:Flight) REQUIRE f.id IS UNIQUE`,
		`CREATE CONSTRAINT policy_id IF NOT EXISTS FOR (p:Policy) REQUIRE p.id IS UNIQUE`,
		`CREATE CONSTRAINT ticket_id IF NOT EXISTS FOR (t:Ticket) REQUIRE t.id IS UNIQUE`,
		`CREATE INDEX flight_number IF NOT EXISTS FOR (f:Flight) ON (f.airline, f.flight_number)`,
		`CREATE INDEX ticket_user IF NOT EXISTS FOR (t:Ticket) ON (t.user_id)`,
		fmt.Sprintf(`CREATE VECTOR INDEX amenity_embedding IF NOT EXISTS
			FOR (a:Amenity) ON (a.embedding)
			OPTIONS {indexConfig: {`+"`vector.dimensions`"+`: %d, `+"`vector.similarity_function`"+`: 'cosine'}}`, dim),
		fmt.Sprintf(`CREATE VECTOR INDEX policy_embedding IF NOT EXISTS
			FOR (p:Policy) ON (p.embedding)
			OPTIONS {indexConfig: {`+"`vector.dimensions`"+`: %d, `+"`vector.similarity_function`"+`: 'cosine'}}`, dim),
	}
	for _, stmt := range statements {
		if _, err := s.run.Run(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadAirports(ctx context.Context, data *dataset.Dataset) error {
	rows := make([]map[string]any, len(data.Airports))
	for i, a := range data.Airports {
		rows[i] = map[string]any{
			"id": a.ID, "iata": a.IATA, "name": a.Name, "city": a.City, "country": a.Country,
		}
	}
	return s.unwindCreate(ctx, rows, `
		UNWIND $rows AS row
		CREATE (:Airport {id: row.id, iata: row.iata, name: row.name,
		                  city: row.city, country: row.country})`)
}

func (s *Store) loadAmenities(ctx context.Context, data *dataset.Dataset) error {
	rows := make([]map[string]any, len(data.Amenities))
	for i, a := range data.Amenities {
		rows[i] = map[string]any{
			"id": a.ID, "name": a.Name, "description": a.Description,
			"location": a.Location, "terminal": a.Terminal, "category": a.Category,
			"hour": a.Hour, "content": a.Content, "embedding": toFloat64(a.Embedding),
		}
	}
	return s.unwindCreate(ctx, rows, `
		UNWIND $rows AS row
		CREATE (:Amenity {id: row.id, name: row.name, description: row.description,
		                  location: row.location, terminal: row.terminal,
		                  category: row.category, hour: row.hour,
		                  content: row.content, embedding: row.embedding})`)
}

func (s *Store) loadFlights(ctx context.Context, data *dataset.Dataset) error {
	rows := make([]map[string]any, len(data.Flights))
	for i, f := range data.Flights {
		rows[i] = map[string]any{
			"id": f.ID, "airline": f.Airline, "flight_number": f.FlightNumber,
			"departure_airport": f.DepartureAirport, "arrival_airport": f.ArrivalAirport,
			"departure_time": f.DepartureTime, "arrival_time": f.ArrivalTime,
			"departure_gate": f.DepartureGate, "arrival_gate": f.ArrivalGate,
		}
	}
	return s.unwindCreate(ctx, rows, `
		UNWIND $rows AS row
		CREATE (:Flight {id: row.id, airline: row.airline, flight_number: row.flight_number,
		                 departure_airport: row.departure_airport,
		                 arrival_airport: row.arrival_airport,
		                 departure_time: row.departure_time, arrival_time: row.arrival_time,
		                 departure_gate: row.departure_gate, arrival_gate: row.arrival_gate})`)
}

func (s *Store) loadPolicies(ctx context.Context, data *dataset.Dataset) error {
	rows := make([]map[string]any, len(data.Policies))
	for i, p := range data.Policies {
		rows[i] = map[string]any{
			"id": p.ID, "content": p.Content, "embedding": toFloat64(p.Embedding),
		}
	}
	return s.unwindCreate(ctx, rows, `
		UNWIND $rows AS row
		CREATE (:Policy {id: row.id, content: row.content, embedding: row.embedding})`)
}

func (s *Store) loadTickets(ctx context.Context, data *dataset.Dataset) error {
	rows := make([]map[string]any, len(data.Tickets))
	for i, t := range data.Tickets {
		rows[i] = ticketRow(t)
	}
	return s.unwindCreate(ctx, rows, `
		UNWIND $rows AS row
		CREATE (:Ticket {id: row.id, user_id: row.user_id, user_name: row.user_name,
		                 user_email: row.user_email, airline: row.airline,
		                 flight_number: row.flight_number,
		                 departure_airport: row.departure_airport,
		                 arrival_airport: row.arrival_airport,
		                 departure_time: row.departure_time, arrival_time: row.arrival_time,
		                 seat_row: row.seat_row, seat_letter: row.seat_letter})`)
}

func (s *Store) loadSeats(ctx context.Context, data *dataset.Dataset) error {
	rows := make([]map[string]any, len(data.Seats))
	for i, st := range data.Seats {
		rows[i] = map[string]any{
			"flight_id": st.FlightID, "seat_row": st.SeatRow, "seat_letter": st.SeatLetter,
			"seat_type": st.SeatType, "seat_class": st.SeatClass,
			"is_reserved": st.IsReserved, "ticket_id": st.TicketID,
		}
	}
	return s.unwindCreate(ctx, rows, `
		UNWIND $rows AS row
		MATCH (f:Flight {id: row.flight_id})
		CREATE (:Seat {seat_row: row.seat_row, seat_letter: row.seat_letter,
		               seat_type: row.seat_type, seat_class: row.seat_class,
		               is_reserved: row.is_reserved, ticket_id: row.ticket_id})-[:SEAT_OF]->(f)`)
}

func (s *Store) unwindCreate(ctx context.Context, rows []map[string]any, query string) error {
	for start := 0; start < len(rows); start += loadBatchSize {
		end := min(start+loadBatchSize, len(rows))
		if _, err := s.run.Run(ctx, query, map[string]any{"rows": rows[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

func ticketRow(t models.Ticket) map[string]any {
	var seatLetter any
	var seatRow any
	if t.SeatRow > 0 {
		seatRow, seatLetter = t.SeatRow, t.SeatLetter
	}
	return map[string]any{
		"id": t.ID, "user_id": t.UserID, "user_name": t.UserName,
		"user_email": t.UserEmail, "airline": t.Airline,
		"flight_number": t.FlightNumber, "departure_airport": t.DepartureAirport,
		"arrival_airport": t.ArrivalAirport,
		"departure_time":  t.DepartureTime, "arrival_time": t.ArrivalTime,
		"seat_row": seatRow, "seat_letter": seatLetter,
	}
}

// embeddingDim reports the dataset's vector dimension from the first
// embedded record.
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
