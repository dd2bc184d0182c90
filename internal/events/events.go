package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects publicados por el ciclo de vida de cuentas.
const (
	SubjectAccountRegistered  = "accounts.registered"
	SubjectAccountVerified    = "accounts.verified"
	SubjectAccountLocked      = "accounts.locked"
	SubjectAccountUnlocked    = "accounts.unlocked"
	SubjectLoginCompleted     = "accounts.login.completed"
	SubjectPasswordReset      = "accounts.password.reset"
	SubjectNotificationFailed = "accounts.notification.failed"
)

// AccountEvent es el payload JSON de todos los subjects de cuentas.
type AccountEvent struct {
	AccountID  string    `json:"account_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher publica eventos de dominio hacia otros servicios.
type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

type natsConn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher publica eventos como JSON sobre NATS core.
type NATSPublisher struct {
	conn natsConn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("community-aid-accounts"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	return p.conn.Publish(subject, payload)
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

type nopPublisher struct{}

// NewNopPublisher descarta todos los eventos; se usa cuando NATS no esta configurado.
func NewNopPublisher() Publisher {
	return nopPublisher{}
}

func (nopPublisher) Publish(context.Context, string, any) error { return nil }

func (nopPublisher) Close() error { return nil }
