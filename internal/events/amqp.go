package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/streadway/amqp"
)

type AMQPPublisher struct {
	mu       sync.Mutex // amqp.Channel is not safe for concurrent publishes
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPPublisher(amqpURL, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
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
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

type envelope struct {
	Type    string `json:"type"`
	Key     string `json:"key"`
	Payload any    `json:"payload"`
}

func (p *AMQPPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(envelope{Type: eventType, Key: key, Payload: payload})
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	// event type doubles as the topic routing key
	return p.channel.Publish(
		p.exchange,
		eventType,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    key,
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
