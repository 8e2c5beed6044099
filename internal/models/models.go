// Package models holds the flat domain records served by the retrieval API.
package models

import "time"

// Airport is a single airport keyed by its numeric ID and IATA code.
type Airport struct {
	ID      int    `json:"id"`
	IATA    string `json:"iata"`
	Name    string `json:"name"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// Amenity is an in-terminal amenity. Content and Embedding back the
// similarity search and are never returned to clients.
type Amenity struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Terminal    string `json:"terminal"`
	Category    string `json:"category"`
	Hour        string `json:"hour"`

	// StartHours/EndHours hold one opening window per weekday,
	// Sunday first. Empty string means closed that day.
	StartHours []string `json:"start_hours,omitempty"`
	EndHours   []string `json:"end_hours,omitempty"`

	Content   string    `json:"content,omitempty"`
	Embedding []float32 `json:"-"`
}

// Flight is a scheduled flight leg.
type Flight struct {
	ID               int64     `json:"id"`
	Airline          string    `json:"airline"`
	FlightNumber     string    `json:"flight_number"`
	DepartureAirport string    `json:"departure_airport"`
	ArrivalAirport   string    `json:"arrival_airport"`
	DepartureTime    time.Time `json:"departure_time"`
	ArrivalTime      time.Time `json:"arrival_time"`
	DepartureGate    string    `json:"departure_gate"`
	ArrivalGate      string    `json:"arrival_gate"`
}

// Ticket is a booked ticket. Flight fields are denormalized onto the
// ticket so a booking survives schedule churn in the flights table.
type Ticket struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	UserName         string    `json:"user_name"`
	UserEmail        string    `json:"user_email"`
	Airline          string    `json:"airline"`
	FlightNumber     string    `json:"flight_number"`
	DepartureAirport string    `json:"departure_airport"`
	ArrivalAirport   string    `json:"arrival_airport"`
	DepartureTime    time.Time `json:"departure_time"`
	ArrivalTime      time.Time `json:"arrival_time"`
	SeatRow          int       `json:"seat_row,omitempty"`
	SeatLetter       string    `json:"seat_letter,omitempty"`
}

// Seat is a single seat on a flight.
type Seat struct {
	FlightID   int64  `json:"flight_id"`
	SeatRow    int    `json:"seat_row"`
	SeatLetter string `json:"seat_letter"`
	SeatType   string `json:"seat_type"`
	SeatClass  string `json:"seat_class"`
	IsReserved bool   `json:"is_reserved"`
	TicketID   string `json:"ticket_id,omitempty"`
}

// Policy is one chunk of the airline policy document with its embedding.
type Policy struct {
	ID        int       `json:"id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
}
