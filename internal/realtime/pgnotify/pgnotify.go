// Package pgnotify carries change events between gateway instances over
// PostgreSQL LISTEN/NOTIFY.
package pgnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"gorm.io/gorm"

	"taskboard/internal/realtime"
)

// Channel is the NOTIFY channel all instances listen on.
const Channel = "taskboard_changes"

// Broker publishes through pg_notify and re-broadcasts every notification,
// including its own, into the local hub.
type Broker struct {
	hub     *realtime.Hub
	db      *gorm.DB
	dsn     string
	log     *slog.Logger
	backoff time.Duration
}

var _ realtime.Broker = (*Broker)(nil)

func New(hub *realtime.Hub, db *gorm.DB, dsn string, log *slog.Logger) *Broker {
	return &Broker{hub: hub, db: db, dsn: dsn, log: log, backoff: time.Second}
}

func (b *Broker) Publish(ctx context.Context, change realtime.Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := b.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", Channel, string(payload)).Error; err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

func (b *Broker) Subscribe(ch realtime.Channel) *realtime.Subscription {
	return b.hub.Subscribe(ch)
}

// Listen blocks until ctx is done, reconnecting after connection failures.
func (b *Broker) Listen(ctx context.Context) error {
	delay := b.backoff
	for {
		err := b.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		b.log.Error("notification listener stopped", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

func (b *Broker) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, b.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	b.log.Info("listening for change notifications", "channel", Channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var change realtime.Change
		if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
			b.log.Warn("dropping malformed notification", "payload", n.Payload, "error", err)
			continue
		}
		b.hub.Broadcast(change)
	}
}
