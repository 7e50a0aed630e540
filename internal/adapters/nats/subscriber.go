package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// Subscriber implements ports.SubmissionSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection. durable
// names the consumer so restarts resume where they stopped.
func NewSubscriber(url, durable string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

// SubscribeSubmissions delivers queued location writes to handler, one at
// a time. Messages the handler fails are redelivered up to three times.
func (s *Subscriber) SubscribeSubmissions(ctx context.Context, handler func(ctx context.Context, sub *domain.LocationSubmission) error) error {
	sub, err := s.js.Subscribe(SubjectAllSubmissions, func(msg *nats.Msg) {
		var ls domain.LocationSubmission
		if err := json.Unmarshal(msg.Data, &ls); err != nil {
			// Malformed payloads never succeed; drop them.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &ls); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(s.durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.AckWait(2*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", SubjectAllSubmissions, err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
