// Package rest exposes the retrieval operations as a JSON HTTP API on a
// chi router. Handlers translate query parameters into datastore calls
// and map sentinel errors onto HTTP statuses.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cymbal-air/retrieval-service/internal/datastore"
	"github.com/cymbal-air/retrieval-service/internal/embedding"
	"github.com/cymbal-air/retrieval-service/internal/models"
	"github.com/cymbal-air/retrieval-service/internal/tools"
)

// Similarity search defaults, matching the seed dataset's scoring.
const (
	defaultTopK                = 5
	defaultSimilarityThreshold = 0.5
	maxTopK                    = 50
)

// Error codes returned in JSON error bodies.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeUnauthorized     = "unauthorized"
	codeNotFound         = "not_found"
	codeSeatUnavailable  = "seat_unavailable"
	codeEmbeddingError   = "embedding_provider_error"
	codeInternalError    = "internal_error"
)

// Embedder vectorizes free-text queries for the similarity endpoints.
type Embedder interface {
	Embed(ctx context.Context, text string) (embedding.Result, error)
}

// EventPublisher emits ticket lifecycle events after successful bookings.
type EventPublisher interface {
	TicketBooked(ctx context.Context, t *models.Ticket) error
}

// errorHandler tries to handle a known error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the handler dependencies.
type Server struct {
	store         datastore.Datastore
	embedder      Embedder
	events        EventPublisher
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates the HTTP API server.
func NewServer(store datastore.Datastore, embedder Embedder, events EventPublisher, logger *zap.Logger) *Server {
	s := &Server{
		store:    store,
		embedder: embedder,
		events:   events,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(datastore.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(datastore.ErrInvalidArgument, http.StatusUnprocessableEntity, codeValidationFailed),
		sentinelHandler(datastore.ErrSeatUnavailable, http.StatusConflict, codeSeatUnavailable),
		sentinelHandler(embedding.ErrProvider, http.StatusBadGateway, codeEmbeddingError),
	}
	return s
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/airports", s.GetAirport)
	r.Get("/airports/search", s.SearchAirports)
	r.Get("/amenities", s.GetAmenity)
	r.Get("/amenities/search", s.SearchAmenities)
	r.Get("/flights", s.GetFlight)
	r.Get("/flights/search", s.SearchFlights)
	r.Get("/flights/seats/search", s.SearchFlightSeats)
	r.Get("/tickets/validate", s.ValidateTicket)
	r.Post("/tickets/insert", s.InsertTicket)
	r.Get("/tickets/list", s.ListTickets)
	r.Get("/policies/search", s.SearchPolicies)
	r.Get("/tools", s.Tools)
	r.Get("/health", s.Health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// GetAirport handles GET /airports?id=|iata=.
func (s *Server) GetAirport(w http.ResponseWriter, r *http.Request) {
	idParam := r.URL.Query().Get("id")
	iata := r.URL.Query().Get("iata")

	switch {
	case idParam != "":
		id, err := strconv.Atoi(idParam)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, codeValidationFailed, "id must be an integer")
			return
		}
		airport, err := s.store.GetAirport(r.Context(), id)
		if err != nil {
			s.handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, airport)
	case iata != "":
		airport, err := s.store.GetAirportByIATA(r.Context(), iata)
		if err != nil {
			s.handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, airport)
	default:
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed, "id or iata is required")
	}
}

// SearchAirports handles GET /airports/search?country=&city=&name=.
func (s *Server) SearchAirports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	country, city, name := q.Get("country"), q.Get("city"), q.Get("name")
	if country == "" && city == "" && name == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed,
			"at least one of country, city, or name is required")
		return
	}

	airports, err := s.store.SearchAirports(r.Context(), country, city, name)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("airports", airports))
}

// GetAmenity handles GET /amenities?id=.
func (s *Server) GetAmenity(w http.ResponseWriter, r *http.Request) {
	id, ok := requireInt(w, r, "id")
	if !ok {
		return
	}
	amenity, err := s.store.GetAmenity(r.Context(), id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, amenity)
}

// SearchAmenities handles GET /amenities/search?query=&top_k=.
func (s *Server) SearchAmenities(w http.ResponseWriter, r *http.Request) {
	query, topK, ok := similarityParams(w, r)
	if !ok {
		return
	}

	vec, err := s.embedder.Embed(r.Context(), query)
	if err != nil {
		s.handleError(w, err)
		return
	}

	amenities, err := s.store.SearchAmenities(r.Context(), vec.Embedding, defaultSimilarityThreshold, topK)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("amenities", amenities))
}

// GetFlight handles GET /flights?flight_id=.
func (s *Server) GetFlight(w http.ResponseWriter, r *http.Request) {
	idParam := r.URL.Query().Get("flight_id")
	if idParam == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed, "flight_id is required")
		return
	}
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed, "flight_id must be an integer")
		return
	}

	flight, err := s.store.GetFlight(r.Context(), id)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flight)
}

// SearchFlights handles GET /flights/search. Two query shapes: by
// airline+flight_number, or by date with optional airport filters.
func (s *Server) SearchFlights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	airline, number := q.Get("airline"), q.Get("flight_number")
	date := q.Get("date")

	switch {
	case airline != "" && number != "":
		flights, err := s.store.SearchFlightsByNumber(r.Context(), airline, number)
		if err != nil {
			s.handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse("flights", flights))
	case date != "":
		day, err := time.Parse("2006-01-02", date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, codeValidationFailed, "date must be YYYY-MM-DD")
			return
		}
		flights, err := s.store.SearchFlightsByAirports(
			r.Context(), day, q.Get("departure_airport"), q.Get("arrival_airport"))
		if err != nil {
			s.handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse("flights", flights))
	default:
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed,
			"provide airline and flight_number, or date")
	}
}

// SearchFlightSeats handles GET /flights/seats/search.
func (s *Server) SearchFlightSeats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	seatQuery := datastore.SeatQuery{
		Airline:          q.Get("airline"),
		FlightNumber:     q.Get("flight_number"),
		DepartureAirport: q.Get("departure_airport"),
		SeatLetter:       q.Get("seat_letter"),
		SeatClass:        q.Get("seat_class"),
		SeatType:         q.Get("seat_type"),
	}
	if seatQuery.Airline == "" || seatQuery.FlightNumber == "" || seatQuery.DepartureAirport == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed,
			"airline, flight_number, and departure_airport are required")
		return
	}

	depTime, ok := requireTime(w, q.Get("departure_time"))
	if !ok {
		return
	}
	seatQuery.DepartureTime = depTime

	if rowParam := q.Get("seat_row"); rowParam != "" {
		row, err := strconv.Atoi(rowParam)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, codeValidationFailed, "seat_row must be an integer")
			return
		}
		seatQuery.SeatRow = &row
	}

	seats, err := s.store.SearchFlightSeats(r.Context(), seatQuery)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("seats", seats))
}

// ValidateTicket handles GET /tickets/validate.
func (s *Server) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	airline, number, depAirport := q.Get("airline"), q.Get("flight_number"), q.Get("departure_airport")
	if airline == "" || number == "" || depAirport == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed,
			"airline, flight_number, and departure_airport are required")
		return
	}
	depTime, ok := requireTime(w, q.Get("departure_time"))
	if !ok {
		return
	}

	flight, err := s.store.ValidateTicket(r.Context(), airline, number, depAirport, depTime)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, flight)
}

// ticketRequest is the POST /tickets/insert body.
type ticketRequest struct {
	Airline          string `json:"airline"`
	FlightNumber     string `json:"flight_number"`
	DepartureAirport string `json:"departure_airport"`
	ArrivalAirport   string `json:"arrival_airport"`
	DepartureTime    string `json:"departure_time"`
	ArrivalTime      string `json:"arrival_time"`
	SeatRow          int    `json:"seat_row"`
	SeatLetter       string `json:"seat_letter"`
}

// InsertTicket handles POST /tickets/insert. The flight is validated
// against the schedule before booking so stale orchestrator state cannot
// create tickets for flights that do not exist.
func (s *Server) InsertTicket(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}

	var req ticketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Airline == "" || req.FlightNumber == "" || req.DepartureAirport == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed,
			"airline, flight_number, and departure_airport are required")
		return
	}
	depTime, ok := requireTime(w, req.DepartureTime)
	if !ok {
		return
	}

	flight, err := s.store.ValidateTicket(r.Context(), req.Airline, req.FlightNumber, req.DepartureAirport, depTime)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			writeError(w, http.StatusUnprocessableEntity, codeValidationFailed, "no matching flight found")
			return
		}
		s.handleError(w, err)
		return
	}

	ticket := models.Ticket{
		UserID:           user.ID,
		UserName:         user.Name,
		UserEmail:        user.Email,
		Airline:          flight.Airline,
		FlightNumber:     flight.FlightNumber,
		DepartureAirport: flight.DepartureAirport,
		ArrivalAirport:   flight.ArrivalAirport,
		DepartureTime:    flight.DepartureTime,
		ArrivalTime:      flight.ArrivalTime,
		SeatRow:          req.SeatRow,
		SeatLetter:       req.SeatLetter,
	}
	if err := s.store.InsertTicket(r.Context(), &ticket); err != nil {
		s.handleError(w, err)
		return
	}

	if s.events != nil {
		if err := s.events.TicketBooked(r.Context(), &ticket); err != nil {
			// The booking succeeded; event delivery is best-effort.
			s.logger.Warn("ticket event not published",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, ticket)
}

// ListTickets handles GET /tickets/list for the requesting user.
func (s *Server) ListTickets(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromRequest(w, r)
	if !ok {
		return
	}

	tickets, err := s.store.ListTickets(r.Context(), user.ID)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("tickets", tickets))
}

// SearchPolicies handles GET /policies/search?query=&top_k=.
func (s *Server) SearchPolicies(w http.ResponseWriter, r *http.Request) {
	query, topK, ok := similarityParams(w, r)
	if !ok {
		return
	}

	vec, err := s.embedder.Embed(r.Context(), query)
	if err != nil {
		s.handleError(w, err)
		return
	}

	policies, err := s.store.SearchPolicies(r.Context(), vec.Embedding, defaultSimilarityThreshold, topK)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("policies", policies))
}

// Tools handles GET /tools. ?format=yaml serves the manifest as YAML.
func (s *Server) Tools(w http.ResponseWriter, r *http.Request) {
	manifest, err := tools.Manifest()
	if err != nil {
		s.handleError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "yaml" {
		out, err := tools.MarshalYAML(manifest)
		if err != nil {
			s.handleError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(out)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tools": manifest})
}

// Health handles GET /health with a datastore ping.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// user identifies the requester. Identity is asserted by the trusted
// orchestrator in front of this service via X-User-* headers.
type user struct {
	ID    string
	Name  string
	Email string
}

func userFromRequest(w http.ResponseWriter, r *http.Request) (user, bool) {
	u := user{
		ID:    r.Header.Get("X-User-Id"),
		Name:  r.Header.Get("X-User-Name"),
		Email: r.Header.Get("X-User-Email"),
	}
	if u.ID == "" {
		writeError(w, http.StatusUnauthorized, codeUnauthorized, "X-User-Id header is required")
		return user{}, false
	}
	return u, true
}

// similarityParams validates the query/top_k pair shared by the two
// similarity endpoints.
func similarityParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed, "query is required")
		return "", 0, false
	}

	topK := defaultTopK
	if param := r.URL.Query().Get("top_k"); param != "" {
		k, err := strconv.Atoi(param)
		if err != nil || k <= 0 || k > maxTopK {
			writeError(w, http.StatusUnprocessableEntity, codeValidationFailed,
				"top_k must be between 1 and "+strconv.Itoa(maxTopK))
			return "", 0, false
		}
		topK = k
	}
	return query, topK, true
}

func requireInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	param := r.URL.Query().Get(name)
	if param == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed, name+" is required")
		return 0, false
	}
	v, err := strconv.Atoi(param)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed, name+" must be an integer")
		return 0, false
	}
	return v, true
}

func requireTime(w http.ResponseWriter, value string) (time.Time, bool) {
	if value == "" {
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed, "departure_time is required")
		return time.Time{}, false
	}
	t, err := parseTimestamp(value)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidationFailed,
			"departure_time must be RFC 3339 or YYYY-MM-DD HH:MM:SS")
		return time.Time{}, false
	}
	return t, true
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// listResponse wraps list results so the payload stays an object.
func listResponse[T any](key string, items []T) map[string][]T {
	if items == nil {
		items = []T{}
	}
	return map[string][]T{key: items}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler matching a single sentinel.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleError(w http.ResponseWriter, err error) {
	for _, h := range s.errorHandlers {
		if h(w, err) {
			s.logger.Warn("request error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
