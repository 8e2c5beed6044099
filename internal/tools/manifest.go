// Package tools describes the retrieval API as a set of callable tools
// for an LLM orchestrator. Each tool maps to one REST operation and
// carries a machine-readable parameter schema.
package tools

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is one callable operation in the manifest.
type Tool struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Method      string             `json:"method"`
	Path        string             `json:"path"`
	InputSchema *jsonschema.Schema `json:"input_schema,omitempty"`
}

// Parameter structs for schema generation. Field descriptions are what
// the orchestrator's model sees when deciding how to call a tool.

type AirportSearchParams struct {
	Country string `json:"country,omitempty" jsonschema:"Country of the airport"`
	City    string `json:"city,omitempty" jsonschema:"City of the airport"`
	Name    string `json:"name,omitempty" jsonschema:"Name of the airport, can be a substring"`
}

type AmenitySearchParams struct {
	Query string `json:"query" jsonschema:"Free-text description of the amenity to look for"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"Number of results to return, default 5"`
}

type FlightNumberSearchParams struct {
	Airline      string `json:"airline" jsonschema:"Two-letter airline code, e.g. UA"`
	FlightNumber string `json:"flight_number" jsonschema:"Numeric flight number as a string, e.g. 1532"`
}

type FlightAirportSearchParams struct {
	Date             string `json:"date" jsonschema:"Date of departure in YYYY-MM-DD format"`
	DepartureAirport string `json:"departure_airport,omitempty" jsonschema:"Three-letter departure airport code"`
	ArrivalAirport   string `json:"arrival_airport,omitempty" jsonschema:"Three-letter arrival airport code"`
}

type SeatSearchParams struct {
	Airline          string `json:"airline" jsonschema:"Two-letter airline code"`
	FlightNumber     string `json:"flight_number" jsonschema:"Numeric flight number as a string"`
	DepartureAirport string `json:"departure_airport" jsonschema:"Three-letter departure airport code"`
	DepartureTime    string `json:"departure_time" jsonschema:"Departure timestamp in RFC 3339 format"`
	SeatRow          int    `json:"seat_row,omitempty" jsonschema:"Seat row to filter on"`
	SeatLetter       string `json:"seat_letter,omitempty" jsonschema:"Seat letter to filter on"`
	SeatClass        string `json:"seat_class,omitempty" jsonschema:"Cabin class, e.g. economy or business"`
	SeatType         string `json:"seat_type,omitempty" jsonschema:"Seat position: window, middle, or aisle"`
}

type TicketBookingParams struct {
	Airline          string `json:"airline" jsonschema:"Two-letter airline code"`
	FlightNumber     string `json:"flight_number" jsonschema:"Numeric flight number as a string"`
	DepartureAirport string `json:"departure_airport" jsonschema:"Three-letter departure airport code"`
	ArrivalAirport   string `json:"arrival_airport,omitempty" jsonschema:"Three-letter arrival airport code"`
	DepartureTime    string `json:"departure_time" jsonschema:"Departure timestamp in RFC 3339 format"`
	ArrivalTime      string `json:"arrival_time,omitempty" jsonschema:"Arrival timestamp in RFC 3339 format"`
	SeatRow          int    `json:"seat_row,omitempty" jsonschema:"Seat row to reserve"`
	SeatLetter       string `json:"seat_letter,omitempty" jsonschema:"Seat letter to reserve"`
}

type TicketValidationParams struct {
	Airline          string `json:"airline" jsonschema:"Two-letter airline code"`
	FlightNumber     string `json:"flight_number" jsonschema:"Numeric flight number as a string"`
	DepartureAirport string `json:"departure_airport" jsonschema:"Three-letter departure airport code"`
	DepartureTime    string `json:"departure_time" jsonschema:"Departure timestamp in RFC 3339 format"`
}

type PolicySearchParams struct {
	Query string `json:"query" jsonschema:"Free-text question about airline policies"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"Number of policy snippets to return, default 5"`
}

// Manifest builds the tool list served to orchestrators.
func Manifest() ([]Tool, error) {
	airportSearch, err := jsonschema.For[AirportSearchParams](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for search_airports: %w", err)
	}
	amenitySearch, err := jsonschema.For[AmenitySearchParams](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for search_amenities: %w", err)
	}
	flightNumberSearch, err := jsonschema.For[FlightNumberSearchParams](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for search_flights_by_number: %w", err)
	}
	flightAirportSearch, err := jsonschema.For[FlightAirportSearchParams](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for search_flights_by_airports: %w", err)
	}
	seatSearch, err := jsonschema.For[SeatSearchParams](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for search_flight_seats: %w", err)
	}
	ticketBooking, err := jsonschema.For[TicketBookingParams](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for insert_ticket: %w", err)
	}
	ticketValidation, err := jsonschema.For[TicketValidationParams](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for validate_ticket: %w", err)
	}
	policySearch, err := jsonschema.For[PolicySearchParams](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for search_policies: %w", err)
	}

	return []Tool{
		{
			Name:        "search_airports",
			Description: "Find airports by country, city, or name. Use when the user names a place rather than an airport code.",
			Method:      "GET",
			Path:        "/airports/search",
			InputSchema: airportSearch,
		},
		{
			Name:        "search_amenities",
			Description: "Find airport amenities (shops, restaurants, lounges) similar to a free-text description.",
			Method:      "GET",
			Path:        "/amenities/search",
			InputSchema: amenitySearch,
		},
		{
			Name:        "search_flights_by_number",
			Description: "Look up flights by airline code and flight number.",
			Method:      "GET",
			Path:        "/flights/search",
			InputSchema: flightNumberSearch,
		},
		{
			Name:        "search_flights_by_airports",
			Description: "List flights departing on a date, optionally filtered by departure and arrival airports.",
			Method:      "GET",
			Path:        "/flights/search",
			InputSchema: flightAirportSearch,
		},
		{
			Name:        "search_flight_seats",
			Description: "List seats on a specific flight, optionally filtered by row, letter, class, or type.",
			Method:      "GET",
			Path:        "/flights/seats/search",
			InputSchema: seatSearch,
		},
		{
			Name:        "validate_ticket",
			Description: "Confirm that a flight matching the given details exists before booking.",
			Method:      "GET",
			Path:        "/tickets/validate",
			InputSchema: ticketValidation,
		},
		{
			Name:        "insert_ticket",
			Description: "Book a ticket on a flight for the current user, optionally reserving a seat.",
			Method:      "POST",
			Path:        "/tickets/insert",
			InputSchema: ticketBooking,
		},
		{
			Name:        "list_tickets",
			Description: "List the current user's booked tickets. Takes no parameters.",
			Method:      "GET",
			Path:        "/tickets/list",
		},
		{
			Name:        "search_policies",
			Description: "Find airline policy passages (baggage, cancellation, pets) relevant to a question.",
			Method:      "GET",
			Path:        "/policies/search",
			InputSchema: policySearch,
		},
	}, nil
}
