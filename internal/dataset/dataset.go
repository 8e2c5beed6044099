// Package dataset parses the CSV seed data used to populate a datastore.
//
// The layout mirrors the export files shipped with the demo: one CSV per
// entity, header row first. Embeddings are serialized as a bracketed list
// of floats in a single column.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cymbal-air/retrieval-service/internal/models"
)

// Default row caps for the streamed files. The full flights dump is large;
// the demo only needs a slice of it.
const (
	DefaultMaxFlights = 70000
	DefaultMaxTickets = 1000
	DefaultMaxSeats   = 1000
)

// weekdays in CSV column order, Sunday first.
var weekdays = []string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

// Dataset is the full seed payload handed to Datastore.LoadData.
type Dataset struct {
	Airports  []models.Airport
	Amenities []models.Amenity
	Flights   []models.Flight
	Policies  []models.Policy
	Tickets   []models.Ticket
	Seats     []models.Seat
}

// ReadAirports parses the airports CSV.
func ReadAirports(r io.Reader) ([]models.Airport, error) {
	rows, err := readRows(r, 0)
	if err != nil {
		return nil, fmt.Errorf("airports: %w", err)
	}
	out := make([]models.Airport, 0, len(rows))
	for _, row := range rows {
		id, err := row.intField("id")
		if err != nil {
			return nil, fmt.Errorf("airports: %w", err)
		}
		out = append(out, models.Airport{
			ID:      id,
			IATA:    row["iata"],
			Name:    row["name"],
			City:    row["city"],
			Country: row["country"],
		})
	}
	return out, nil
}

// ReadAmenities parses the amenities CSV, including the weekly opening
// hours columns and the embedding column.
func ReadAmenities(r io.Reader) ([]models.Amenity, error) {
	rows, err := readRows(r, 0)
	if err != nil {
		return nil, fmt.Errorf("amenities: %w", err)
	}
	out := make([]models.Amenity, 0, len(rows))
	for _, row := range rows {
		id, err := row.intField("id")
		if err != nil {
			return nil, fmt.Errorf("amenities: %w", err)
		}
		emb, err := parseEmbedding(row["embedding"])
		if err != nil {
			return nil, fmt.Errorf("amenities id=%d: %w", id, err)
		}
		a := models.Amenity{
			ID:          id,
			Name:        row["name"],
			Description: row["description"],
			Location:    row["location"],
			Terminal:    row["terminal"],
			Category:    row["category"],
			Hour:        row["hour"],
			Content:     row["content"],
			Embedding:   emb,
		}
		for _, day := range weekdays {
			a.StartHours = append(a.StartHours, row[day+"_start_hour"])
			a.EndHours = append(a.EndHours, row[day+"_end_hour"])
		}
		out = append(out, a)
	}
	return out, nil
}

// ReadFlights parses the flights CSV, keeping at most maxRows rows.
// A maxRows of 0 applies DefaultMaxFlights; negative means unlimited.
func ReadFlights(r io.Reader, maxRows int) ([]models.Flight, error) {
	if maxRows == 0 {
		maxRows = DefaultMaxFlights
	}
	rows, err := readRows(r, maxRows)
	if err != nil {
		return nil, fmt.Errorf("flights: %w", err)
	}
	out := make([]models.Flight, 0, len(rows))
	for _, row := range rows {
		id, err := row.intField("id")
		if err != nil {
			return nil, fmt.Errorf("flights: %w", err)
		}
		dep, err := ParseTime(row["departure_time"])
		if err != nil {
			return nil, fmt.Errorf("flights id=%d: %w", id, err)
		}
		arr, err := ParseTime(row["arrival_time"])
		if err != nil {
			return nil, fmt.Errorf("flights id=%d: %w", id, err)
		}
		out = append(out, models.Flight{
			ID:               int64(id),
			Airline:          row["airline"],
			FlightNumber:     row["flight_number"],
			DepartureAirport: row["departure_airport"],
			ArrivalAirport:   row["arrival_airport"],
			DepartureTime:    dep,
			ArrivalTime:      arr,
			DepartureGate:    row["departure_gate"],
			ArrivalGate:      row["arrival_gate"],
		})
	}
	return out, nil
}

// ReadPolicies parses the policies CSV.
func ReadPolicies(r io.Reader) ([]models.Policy, error) {
	rows, err := readRows(r, 0)
	if err != nil {
		return nil, fmt.Errorf("policies: %w", err)
	}
	out := make([]models.Policy, 0, len(rows))
	for _, row := range rows {
		id, err := row.intField("id")
		if err != nil {
			return nil, fmt.Errorf("policies: %w", err)
		}
		emb, err := parseEmbedding(row["embedding"])
		if err != nil {
			return nil, fmt.Errorf("policies id=%d: %w", id, err)
		}
		out = append(out, models.Policy{ID: id, Content: row["content"], Embedding: emb})
	}
	return out, nil
}

// ReadTickets parses the tickets CSV, keeping at most maxRows rows.
func ReadTickets(r io.Reader, maxRows int) ([]models.Ticket, error) {
	if maxRows == 0 {
		maxRows = DefaultMaxTickets
	}
	rows, err := readRows(r, maxRows)
	if err != nil {
		return nil, fmt.Errorf("tickets: %w", err)
	}
	out := make([]models.Ticket, 0, len(rows))
	for _, row := range rows {
		dep, err := ParseTime(row["departure_time"])
		if err != nil {
			return nil, fmt.Errorf("tickets id=%s: %w", row["id"], err)
		}
		arr, err := ParseTime(row["arrival_time"])
		if err != nil {
			return nil, fmt.Errorf("tickets id=%s: %w", row["id"], err)
		}
		t := models.Ticket{
			ID:               row["id"],
			UserID:           row["user_id"],
			UserName:         row["user_name"],
			UserEmail:        row["user_email"],
			Airline:          row["airline"],
			FlightNumber:     row["flight_number"],
			DepartureAirport: row["departure_airport"],
			ArrivalAirport:   row["arrival_airport"],
			DepartureTime:    dep,
			ArrivalTime:      arr,
			SeatLetter:       row["seat_letter"],
		}
		if v := row["seat_row"]; v != "" {
			t.SeatRow, err = strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("tickets id=%s: seat_row: %w", row["id"], err)
			}
		}
		out = append(out, t)
	}
	return out, nil
}

// ReadSeats parses the seats CSV, keeping at most maxRows rows.
func ReadSeats(r io.Reader, maxRows int) ([]models.Seat, error) {
	if maxRows == 0 {
		maxRows = DefaultMaxSeats
	}
	rows, err := readRows(r, maxRows)
	if err != nil {
		return nil, fmt.Errorf("seats: %w", err)
	}
	out := make([]models.Seat, 0, len(rows))
	for _, row := range rows {
		flightID, err := row.intField("flight_id")
		if err != nil {
			return nil, fmt.Errorf("seats: %w", err)
		}
		seatRow, err := row.intField("seat_row")
		if err != nil {
			return nil, fmt.Errorf("seats flight_id=%d: %w", flightID, err)
		}
		out = append(out, models.Seat{
			FlightID:   int64(flightID),
			SeatRow:    seatRow,
			SeatLetter: row["seat_letter"],
			SeatType:   row["seat_type"],
			SeatClass:  row["seat_class"],
			IsReserved: parseBool(row["is_reserved"]),
			TicketID:   row["ticket_id"],
		})
	}
	return out, nil
}

// ParseTime accepts the timestamp formats shipped in the seed data:
// "2006-01-02 15:04:05" (export format) and RFC 3339.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

type record map[string]string

func (r record) intField(name string) (int, error) {
	v, err := strconv.Atoi(r[name])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// readRows consumes a CSV into header-keyed records, stopping after
// maxRows when maxRows > 0.
func readRows(r io.Reader, maxRows int) ([]record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []record
	for maxRows <= 0 || len(rows) < maxRows {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(rows)+2, err)
		}
		row := make(record, len(header))
		for i, name := range header {
			if i < len(fields) {
				row[name] = fields[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseEmbedding parses "[0.1, 0.2, ...]" into a float32 slice.
// Empty input yields nil.
func parseEmbedding(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		vec = append(vec, float32(f))
	}
	return vec, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "1", "yes":
		return true
	default:
		return false
	}
}
