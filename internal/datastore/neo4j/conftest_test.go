package neo4j

import (
	"time"

	"github.com/cymbal-air/retrieval-service/internal/dataset"
	"github.com/cymbal-air/retrieval-service/internal/models"
)

func sampleDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Airports: []models.Airport{
			{ID: 1, IATA: "SFO", Name: "San Francisco International Airport",
				City: "San Francisco", Country: "United States"},
		},
		Amenities: []models.Amenity{
			{ID: 7, Name: "Coffee Cart", Content: "Coffee Cart serves espresso",
				Embedding: []float32{0.25, -0.5}},
		},
		Flights: []models.Flight{
			{ID: 10, Airline: "UA", FlightNumber: "1532",
				DepartureAirport: "SFO", ArrivalAirport: "SEA",
				DepartureTime: depTime, ArrivalTime: depTime.Add(2 * time.Hour),
				DepartureGate: "B2", ArrivalGate: "C4"},
		},
		Policies: []models.Policy{
			{ID: 1, Content: "Checked bags must weigh less than 50 pounds.",
				Embedding: []float32{0.1, 0.2}},
		},
		Tickets: []models.Ticket{
			{ID: "t-1", UserID: "user-1", Airline: "UA", FlightNumber: "1532",
				DepartureAirport: "SFO", ArrivalAirport: "SEA",
				DepartureTime: depTime, ArrivalTime: depTime.Add(2 * time.Hour),
				SeatRow: 10, SeatLetter: "A"},
		},
		Seats: []models.Seat{
			{FlightID: 10, SeatRow: 10, SeatLetter: "A", SeatType: "window",
				SeatClass: "economy", IsReserved: true, TicketID: "t-1"},
			{FlightID: 10, SeatRow: 10, SeatLetter: "B", SeatType: "middle",
				SeatClass: "economy"},
		},
	}
}
