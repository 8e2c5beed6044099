// Package events publishes ticket lifecycle events to Kafka.
// Publishing is optional: with no brokers configured the publisher is
// a no-op, so booking never depends on the broker being up.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/cymbal-air/retrieval-service/internal/config"
	"github.com/cymbal-air/retrieval-service/internal/models"
)

const EventTicketBooked = "ticket.booked"

// TicketEvent is the wire payload for ticket lifecycle events.
type TicketEvent struct {
	Type             string    `json:"type"`
	TicketID         string    `json:"ticket_id"`
	UserID           string    `json:"user_id"`
	UserEmail        string    `json:"user_email"`
	Airline          string    `json:"airline"`
	FlightNumber     string    `json:"flight_number"`
	DepartureAirport string    `json:"departure_airport"`
	ArrivalAirport   string    `json:"arrival_airport"`
	DepartureTime    time.Time `json:"departure_time"`
	SeatRow          int       `json:"seat_row,omitempty"`
	SeatLetter       string    `json:"seat_letter,omitempty"`
	EmittedAt        time.Time `json:"emitted_at"`
}

// writer is the slice of kafka.Writer the publisher uses.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher emits ticket events. The zero-value-like publisher returned
// for an empty broker list drops events silently.
type Publisher struct {
	writer writer
	topic  string
	logger *zap.Logger
}

// NewPublisher builds a Kafka-backed publisher, or a disabled one when
// cfg.Brokers is empty.
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) *Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Info("event publishing disabled, no brokers configured")
		return &Publisher{topic: cfg.Topic, logger: logger}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Publisher{writer: w, topic: cfg.Topic, logger: logger}
}

// newPublisherWithWriter is the test seam.
func newPublisherWithWriter(w writer, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{writer: w, topic: topic, logger: logger}
}

// TicketBooked publishes a booking event keyed by ticket ID.
func (p *Publisher) TicketBooked(ctx context.Context, ticket *models.Ticket) error {
	if p.writer == nil {
		return nil
	}
	event := TicketEvent{
		Type:             EventTicketBooked,
		TicketID:         ticket.ID,
		UserID:           ticket.UserID,
		UserEmail:        ticket.UserEmail,
		Airline:          ticket.Airline,
		FlightNumber:     ticket.FlightNumber,
		DepartureAirport: ticket.DepartureAirport,
		ArrivalAirport:   ticket.ArrivalAirport,
		DepartureTime:    ticket.DepartureTime,
		SeatRow:          ticket.SeatRow,
		SeatLetter:       ticket.SeatLetter,
		EmittedAt:        time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ticket event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ticket.ID),
		Value: data,
		Time:  event.EmittedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish ticket event: %w", err)
	}
	p.logger.Debug("published ticket event",
		zap.String("type", event.Type),
		zap.String("ticket_id", ticket.ID))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
