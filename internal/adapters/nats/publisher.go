package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// Subjects and stream of location events.
const (
	StreamLocations        = "GEO_LOCATIONS"
	SubjectLocationChanged = "geo.location.changed"
	SubjectAllLocations    = SubjectLocationChanged + ".>"
	SubjectLocationSubmit  = "geo.location.submit"
	SubjectAllSubmissions  = SubjectLocationSubmit + ".>"
)

var tokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// LocationSubject is the subject of changes to entities of class.
func LocationSubject(class string) string {
	return SubjectLocationChanged + "." + tokenReplacer.Replace(class)
}

// SubmissionSubject is the subject of queued writes to entities of class.
func SubmissionSubject(class string) string {
	return SubjectLocationSubmit + "." + tokenReplacer.Replace(class)
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the location stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamLocations,
		Subjects:  []string{SubjectAllLocations, SubjectAllSubmissions},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		if _, err := js.UpdateStream(cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishLocationChanged publishes ev on the subject of its class. The
// message ID deduplicates retried publishes of the same change.
func (p *Publisher) PublishLocationChanged(ctx context.Context, ev *domain.LocationChanged) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msgID := fmt.Sprintf("%s:%s:%d", ev.Entity, ev.Attribute, ev.ChangedAt.UnixNano())
	_, err = p.js.Publish(LocationSubject(ev.Entity.Class), data, nats.Context(ctx), nats.MsgId(msgID))
	return err
}

// SubmitLocation queues sub for the propagation worker.
func (p *Publisher) SubmitLocation(ctx context.Context, sub *domain.LocationSubmission) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	msgID := fmt.Sprintf("%s:%d", sub.ID(), sub.SubmittedAt.UnixNano())
	_, err = p.js.Publish(SubmissionSubject(sub.Entity.Class), data, nats.Context(ctx), nats.MsgId(msgID))
	return err
}

// Conn returns the underlying connection.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
