package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
)

// PubSubPublisher publishes order events to a Pub/Sub topic.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	return &PubSubPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderEvent enqueues the event on the configured topic.
func (p *PubSubPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub event publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "orderNumber", event.OrderNumber)
	setAttr(attrs, "orderStatus", event.OrderStatus)
	setAttr(attrs, "paymentStatus", event.PaymentStatus)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish order event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
