/*
Package events publishes rental lifecycle events to a RabbitMQ topic
exchange so downstream consumers (billing, analytics) can follow rentals
without querying the orchestrator.

Publishing is best-effort: a failed publish is logged by the caller and
never affects the rental transition it describes.
*/
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"carshare/internal/app/model"
	"carshare/internal/pkg/logx"
)

// Exchange is the topic exchange rental events are published to.
const Exchange = "rental_topic"

// Event kinds.
const (
	KindRentalStarted = "RENTAL_STARTED"
	KindRentalEnded   = "RENTAL_ENDED"
)

// Publisher emits rental lifecycle events.
type Publisher interface {
	RentalStarted(ctx context.Context, r model.Rental) error
	RentalEnded(ctx context.Context, r model.Rental) error
	Close() error
}

// rentalEvent is the published message body.
type rentalEvent struct {
	Kind      string     `json:"kind"`
	RentalID  string     `json:"rentalId"`
	UserID    string     `json:"userId"`
	VIN       string     `json:"vin"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Timestamp string     `json:"timestamp"`
}

// AMQPPublisher publishes rental events over a RabbitMQ connection.
type AMQPPublisher struct {
	conn   *amqp.Connection
	logger zerolog.Logger
}

// NewAMQPPublisher dials the broker and declares the topic exchange.
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}

	return &AMQPPublisher{
		conn:   conn,
		logger: logx.Logger().With().Str("component", "AMQPPublisher").Logger(),
	}, nil
}

// RentalStarted publishes a rental.started.{vin} event.
func (p *AMQPPublisher) RentalStarted(ctx context.Context, r model.Rental) error {
	return p.publish(ctx, KindRentalStarted, fmt.Sprintf("rental.started.%s", r.VIN), r)
}

// RentalEnded publishes a rental.ended.{vin} event.
func (p *AMQPPublisher) RentalEnded(ctx context.Context, r model.Rental) error {
	return p.publish(ctx, KindRentalEnded, fmt.Sprintf("rental.ended.%s", r.VIN), r)
}

func (p *AMQPPublisher) publish(ctx context.Context, kind, routingKey string, r model.Rental) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(rentalEvent{
		Kind:      kind,
		RentalID:  r.ID,
		UserID:    r.UserID,
		VIN:       r.VIN,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	if err := ch.PublishWithContext(ctx,
		Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	p.logger.Info().Str("kind", kind).Str("rental_id", r.ID).Str("vin", r.VIN).Msg("Rental event published.")
	return nil
}

// Close closes the underlying connection.
func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

// NopPublisher discards all events. Used when no AMQP_URL is configured.
type NopPublisher struct{}

func (NopPublisher) RentalStarted(context.Context, model.Rental) error { return nil }
func (NopPublisher) RentalEnded(context.Context, model.Rental) error   { return nil }
func (NopPublisher) Close() error                                      { return nil }
