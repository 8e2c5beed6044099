package dataset

import (
	"strings"
	"testing"
	"time"
)

const airportsCSV = `id,iata,name,city,country
1,SFO,San Francisco International Airport,San Francisco,United States
2,SEA,Seattle-Tacoma International Airport,Seattle,United States
`

const amenitiesCSV = `id,name,description,location,terminal,category,hour,sunday_start_hour,sunday_end_hour,monday_start_hour,monday_end_hour,tuesday_start_hour,tuesday_end_hour,wednesday_start_hour,wednesday_end_hour,thursday_start_hour,thursday_end_hour,friday_start_hour,friday_end_hour,saturday_start_hour,saturday_end_hour,content,embedding
1,Coffee Cart,Espresso and pastries,Near Gate B12,Terminal 3,restaurant,Daily 6am-9pm,06:00:00,21:00:00,06:00:00,21:00:00,06:00:00,21:00:00,06:00:00,21:00:00,06:00:00,21:00:00,06:00:00,21:00:00,06:00:00,21:00:00,Coffee Cart serves espresso,"[0.25, -0.5, 0.125]"
`

const flightsCSV = `id,airline,flight_number,departure_airport,arrival_airport,departure_time,arrival_time,departure_gate,arrival_gate
1,UA,1532,SFO,SEA,2024-01-01 05:00:00,2024-01-01 07:30:00,B2,C4
2,AA,401,SFO,LAX,2024-01-01 06:15:00,2024-01-01 07:45:00,A1,D9
3,DL,77,SEA,SFO,2024-01-02 09:00:00,2024-01-02 11:10:00,C1,B6
`

const policiesCSV = `id,content,embedding
1,Checked bags must weigh less than 50 pounds.,"[0.1, 0.2]"
`

const seatsCSV = `flight_id,seat_row,seat_letter,seat_type,seat_class,is_reserved,ticket_id
1,10,A,window,economy,false,
1,10,B,middle,economy,true,8b2d8f34-1111-4a5a-9d6a-000000000001
`

func TestReadAirports(t *testing.T) {
	airports, err := ReadAirports(strings.NewReader(airportsCSV))
	if err != nil {
		t.Fatalf("ReadAirports: %v", err)
	}
	if len(airports) != 2 {
		t.Fatalf("expected 2 airports, got %d", len(airports))
	}
	if airports[0].IATA != "SFO" || airports[0].City != "San Francisco" {
		t.Errorf("unexpected first airport: %+v", airports[0])
	}
	if airports[1].ID != 2 {
		t.Errorf("expected id 2, got %d", airports[1].ID)
	}
}

func TestReadAirportsBadID(t *testing.T) {
	_, err := ReadAirports(strings.NewReader("id,iata,name,city,country\nx,SFO,,,\n"))
	if err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestReadAmenities(t *testing.T) {
	amenities, err := ReadAmenities(strings.NewReader(amenitiesCSV))
	if err != nil {
		t.Fatalf("ReadAmenities: %v", err)
	}
	if len(amenities) != 1 {
		t.Fatalf("expected 1 amenity, got %d", len(amenities))
	}
	a := amenities[0]
	if a.Name != "Coffee Cart" || a.Terminal != "Terminal 3" {
		t.Errorf("unexpected amenity: %+v", a)
	}
	if len(a.StartHours) != 7 || len(a.EndHours) != 7 {
		t.Fatalf("expected 7 start/end hours, got %d/%d", len(a.StartHours), len(a.EndHours))
	}
	// Weekday columns are ordered Sunday first.
	if a.StartHours[0] != "06:00:00" || a.EndHours[6] != "21:00:00" {
		t.Errorf("unexpected hours: %v %v", a.StartHours, a.EndHours)
	}
	if len(a.Embedding) != 3 || a.Embedding[1] != -0.5 {
		t.Errorf("unexpected embedding: %v", a.Embedding)
	}
}

func TestReadFlights(t *testing.T) {
	flights, err := ReadFlights(strings.NewReader(flightsCSV), -1)
	if err != nil {
		t.Fatalf("ReadFlights: %v", err)
	}
	if len(flights) != 3 {
		t.Fatalf("expected 3 flights, got %d", len(flights))
	}
	want := time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC)
	if !flights[0].DepartureTime.Equal(want) {
		t.Errorf("departure time = %v, want %v", flights[0].DepartureTime, want)
	}
	if flights[2].ArrivalGate != "B6" {
		t.Errorf("unexpected arrival gate %q", flights[2].ArrivalGate)
	}
}

func TestReadFlightsRowCap(t *testing.T) {
	flights, err := ReadFlights(strings.NewReader(flightsCSV), 2)
	if err != nil {
		t.Fatalf("ReadFlights: %v", err)
	}
	if len(flights) != 2 {
		t.Fatalf("expected cap of 2 rows, got %d", len(flights))
	}
}

func TestReadPolicies(t *testing.T) {
	policies, err := ReadPolicies(strings.NewReader(policiesCSV))
	if err != nil {
		t.Fatalf("ReadPolicies: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(policies))
	}
	if !strings.Contains(policies[0].Content, "50 pounds") {
		t.Errorf("unexpected content %q", policies[0].Content)
	}
	if len(policies[0].Embedding) != 2 {
		t.Errorf("unexpected embedding %v", policies[0].Embedding)
	}
}

func TestReadSeats(t *testing.T) {
	seats, err := ReadSeats(strings.NewReader(seatsCSV), 0)
	if err != nil {
		t.Fatalf("ReadSeats: %v", err)
	}
	if len(seats) != 2 {
		t.Fatalf("expected 2 seats, got %d", len(seats))
	}
	if seats[0].IsReserved {
		t.Error("seat 10A should be free")
	}
	if !seats[1].IsReserved || seats[1].TicketID == "" {
		t.Errorf("seat 10B should be reserved with a ticket: %+v", seats[1])
	}
}

func TestParseTime(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-05 14:30:00", time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)},
		{"2024-03-05T14:30:00Z", time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)},
		{"2024-03-05", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseTime(tc.in)
		if err != nil {
			t.Errorf("ParseTime(%q): %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseTime(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}

func TestParseEmbedding(t *testing.T) {
	vec, err := parseEmbedding("[0.5,  -1.25,3]")
	if err != nil {
		t.Fatalf("parseEmbedding: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != -1.25 || vec[2] != 3 {
		t.Errorf("unexpected vector %v", vec)
	}
	if vec, err := parseEmbedding(""); err != nil || vec != nil {
		t.Errorf("empty embedding should be nil, got %v, %v", vec, err)
	}
	if _, err := parseEmbedding("[a,b]"); err == nil {
		t.Error("expected error for non-numeric embedding")
	}
}
