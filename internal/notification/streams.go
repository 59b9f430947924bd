package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/tendant/simple-genealogy/pkg/genealogy"
)

// Default stream names.
const (
	DefaultEventsStream = "genealogy:events"
	DefaultAuditStream  = "genealogy:audit"
)

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamPublisher publishes notifications and audit records to Redis Streams. Each entry
// carries the event type and a JSON payload.
type StreamPublisher struct {
	client       streamAdder
	eventsStream string
	auditStream  string
	maxLen       int64
}

// StreamConfig names the streams. Zero values use the defaults; MaxLen 0 leaves streams uncapped.
type StreamConfig struct {
	EventsStream string
	AuditStream  string
	MaxLen       int64
}

// NewRedisClient opens a client. The connection is established lazily.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ping checks the connection.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

func NewStreamPublisher(client *redis.Client, cfg StreamConfig) *StreamPublisher {
	return newStreamPublisher(client, cfg)
}

func newStreamPublisher(client streamAdder, cfg StreamConfig) *StreamPublisher {
	if cfg.EventsStream == "" {
		cfg.EventsStream = DefaultEventsStream
	}
	if cfg.AuditStream == "" {
		cfg.AuditStream = DefaultAuditStream
	}
	return &StreamPublisher{
		client:       client,
		eventsStream: cfg.EventsStream,
		auditStream:  cfg.AuditStream,
		maxLen:       cfg.MaxLen,
	}
}

// Notify implements genealogy.Notifier.
func (p *StreamPublisher) Notify(ctx context.Context, ev genealogy.Event) error {
	return p.publish(ctx, p.eventsStream, string(ev.Type), ev.OccurredAt, ev)
}

// Record implements genealogy.Auditor.
func (p *StreamPublisher) Record(ctx context.Context, ev genealogy.AuditEvent) error {
	return p.publish(ctx, p.auditStream, string(ev.Action), ev.OccurredAt, ev)
}

func (p *StreamPublisher) publish(ctx context.Context, stream, typ string, at time.Time, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", typ, err)
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"type":      typ,
			"data":      string(data),
			"timestamp": at.Unix(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}
	return nil
}
