package textquiz

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

const (
	EventQuizGenerated = "quiz.generated"
	EventQuizCompleted = "quiz.completed"
)

// QuizGeneratedEvent is published after a quiz was assembled
type QuizGeneratedEvent struct {
	QuizID    string `json:"quiz_id"`
	Title     string `json:"title"`
	Requested int    `json:"requested"`
	Produced  int    `json:"produced"`
}

// QuizCompletedEvent is published when a session finishes a quiz
type QuizCompletedEvent struct {
	QuizID  string  `json:"quiz_id"`
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// Publisher publishes domain events
type Publisher interface {
	Publish(eventType string, payload interface{}) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(string, interface{}) error { return nil }

// EventPublisher publishes JSON events to a RabbitMQ topic exchange, using
// the event type as routing key.
type EventPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewEventPublisher dials amqpURL and declares a durable topic exchange.
func NewEventPublisher(amqpURL, exchange string) (*EventPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &EventPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *EventPublisher) Publish(eventType string, payload interface{}) error {
	body, err := json.Marshal(map[string]interface{}{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		return err
	}

	return p.channel.Publish(
		p.exchange,
		eventType,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
}

// Close closes the channel and the connection.
func (p *EventPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
