package redis

import (
	"strconv"
	"time"

	"github.com/cymbal-air/retrieval-service/internal/models"
)

// Weekday hour field suffix order, Sunday first.
var weekdays = []string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

func airportToMap(a *models.Airport) map[string]string {
	return map[string]string{
		"id":      strconv.Itoa(a.ID),
		"iata":    a.IATA,
		"name":    a.Name,
		"city":    a.City,
		"country": a.Country,
	}
}

func airportFromMap(m map[string]string) *models.Airport {
	return &models.Airport{
		ID:      atoi(m["id"]),
		IATA:    m["iata"],
		Name:    m["name"],
		City:    m["city"],
		Country: m["country"],
	}
}

func amenityToMap(a *models.Amenity) map[string]string {
	m := map[string]string{
		"id":          strconv.Itoa(a.ID),
		"name":        a.Name,
		"description": a.Description,
		"location":    a.Location,
		"terminal":    a.Terminal,
		"category":    a.Category,
		"hour":        a.Hour,
		"content":     a.Content,
		"embedding":   vectorToBytes(a.Embedding),
	}
	for i, day := range weekdays {
		if i < len(a.StartHours) {
			m[day+"_start_hour"] = a.StartHours[i]
		}
		if i < len(a.EndHours) {
			m[day+"_end_hour"] = a.EndHours[i]
		}
	}
	return m
}

// amenityFromMap rebuilds an amenity without its embedding: search
// results never carry the vector back to callers.
func amenityFromMap(m map[string]string) *models.Amenity {
	a := &models.Amenity{
		ID:          atoi(m["id"]),
		Name:        m["name"],
		Description: m["description"],
		Location:    m["location"],
		Terminal:    m["terminal"],
		Category:    m["category"],
		Hour:        m["hour"],
	}
	for _, day := range weekdays {
		a.StartHours = append(a.StartHours, m[day+"_start_hour"])
		a.EndHours = append(a.EndHours, m[day+"_end_hour"])
	}
	return a
}

func flightToMap(f *models.Flight) map[string]string {
	return map[string]string{
		"id":                strconv.FormatInt(f.ID, 10),
		"airline":           f.Airline,
		"flight_number":     f.FlightNumber,
		"departure_airport": f.DepartureAirport,
		"arrival_airport":   f.ArrivalAirport,
		"departure_time":    f.DepartureTime.Format(time.RFC3339),
		"arrival_time":      f.ArrivalTime.Format(time.RFC3339),
		"departure_gate":    f.DepartureGate,
		"arrival_gate":      f.ArrivalGate,
		// Numeric mirror of departure_time for range queries.
		"departure_ts": strconv.FormatInt(f.DepartureTime.Unix(), 10),
	}
}

func flightFromMap(m map[string]string) *models.Flight {
	return &models.Flight{
		ID:               int64(atoi(m["id"])),
		Airline:          m["airline"],
		FlightNumber:     m["flight_number"],
		DepartureAirport: m["departure_airport"],
		ArrivalAirport:   m["arrival_airport"],
		DepartureTime:    parseRFC3339(m["departure_time"]),
		ArrivalTime:      parseRFC3339(m["arrival_time"]),
		DepartureGate:    m["departure_gate"],
		ArrivalGate:      m["arrival_gate"],
	}
}

func flightsFromMaps(hashes []map[string]string) []models.Flight {
	out := make([]models.Flight, 0, len(hashes))
	for _, m := range hashes {
		out = append(out, *flightFromMap(m))
	}
	return out
}

func policyToMap(p *models.Policy) map[string]string {
	return map[string]string{
		"id":        strconv.Itoa(p.ID),
		"content":   p.Content,
		"embedding": vectorToBytes(p.Embedding),
	}
}

func policyFromMap(m map[string]string) *models.Policy {
	return &models.Policy{
		ID:      atoi(m["id"]),
		Content: m["content"],
	}
}

func ticketToMap(t *models.Ticket) map[string]string {
	m := map[string]string{
		"id":                t.ID,
		"user_id":           t.UserID,
		"user_name":         t.UserName,
		"user_email":        t.UserEmail,
		"airline":           t.Airline,
		"flight_number":     t.FlightNumber,
		"departure_airport": t.DepartureAirport,
		"arrival_airport":   t.ArrivalAirport,
		"departure_time":    t.DepartureTime.Format(time.RFC3339),
		"arrival_time":      t.ArrivalTime.Format(time.RFC3339),
	}
	if t.SeatRow > 0 {
		m["seat_row"] = strconv.Itoa(t.SeatRow)
		m["seat_letter"] = t.SeatLetter
	}
	return m
}

func ticketFromMap(m map[string]string) *models.Ticket {
	return &models.Ticket{
		ID:               m["id"],
		UserID:           m["user_id"],
		UserName:         m["user_name"],
		UserEmail:        m["user_email"],
		Airline:          m["airline"],
		FlightNumber:     m["flight_number"],
		DepartureAirport: m["departure_airport"],
		ArrivalAirport:   m["arrival_airport"],
		DepartureTime:    parseRFC3339(m["departure_time"]),
		ArrivalTime:      parseRFC3339(m["arrival_time"]),
		SeatRow:          atoi(m["seat_row"]),
		SeatLetter:       m["seat_letter"],
	}
}

func seatToMap(s *models.Seat) map[string]string {
	reserved := "0"
	if s.IsReserved {
		reserved = "1"
	}
	return map[string]string{
		"flight_id":   strconv.FormatInt(s.FlightID, 10),
		"seat_row":    strconv.Itoa(s.SeatRow),
		"seat_letter": s.SeatLetter,
		"seat_type":   s.SeatType,
		"seat_class":  s.SeatClass,
		"is_reserved": reserved,
		"ticket_id":   s.TicketID,
	}
}

func seatFromMap(m map[string]string) *models.Seat {
	return &models.Seat{
		FlightID:   int64(atoi(m["flight_id"])),
		SeatRow:    atoi(m["seat_row"]),
		SeatLetter: m["seat_letter"],
		SeatType:   m["seat_type"],
		SeatClass:  m["seat_class"],
		IsReserved: m["is_reserved"] == "1",
		TicketID:   m["ticket_id"],
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseRFC3339(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
