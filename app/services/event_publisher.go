package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys for entitlement events
const (
	EventAccountActivated = "account.activated"
	EventPremiumGranted   = "premium.granted"
	EventPremiumExpired   = "premium.expired"
	EventPaymentFailed    = "payment.failed"
)

// EntitlementEvent is the body published for every entitlement change
type EntitlementEvent struct {
	Type         string     `json:"type"`
	AccountUUID  string     `json:"account_uuid"`
	AttemptUUID  string     `json:"attempt_uuid,omitempty"`
	Provider     string     `json:"provider,omitempty"`
	Amount       uint64     `json:"amount,omitempty"`
	PremiumUntil *time.Time `json:"premium_until,omitempty"`
	Reason       string     `json:"reason,omitempty"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// EventPublisher publishes domain events to a message broker
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}

// RabbitMQPublisher publishes JSON events to a durable topic exchange
type RabbitMQPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// LogPublisher is used when no broker is configured or reachable; it only logs events
type LogPublisher struct{}

func (p *LogPublisher) Publish(ctx context.Context, routingKey string, body any) error {
	log.Printf("[events] %s %+v", routingKey, body)
	return nil
}

func (p *LogPublisher) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewRabbitMQPublisher dials the broker and declares the exchange
func NewRabbitMQPublisher(amqpURL, exchange string, dialTimeout time.Duration) (*RabbitMQPublisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	p := &RabbitMQPublisher{conn: conn, channel: ch, exchange: exchange}
	if err := p.declare(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *RabbitMQPublisher) declare() error {
	return p.channel.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil)
}

// Publish sends body as JSON. A closed channel is reopened once before giving up.
func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	log.Printf("Failed to publish %s to exchange '%s': %v. Reopening channel", routingKey, p.exchange, err)
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	p.channel = ch
	if err := p.declare(); err != nil {
		return fmt.Errorf("failed to redeclare exchange: %w", err)
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
}

// Close closes the channel and connection
func (p *RabbitMQPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
