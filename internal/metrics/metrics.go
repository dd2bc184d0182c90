package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event nombra un resultado observable del ciclo de vida de cuentas.
type Event string

const (
	Registered         Event = "registered"
	EmailVerified      Event = "email_verified"
	LoginOTPIssued     Event = "login_otp_issued"
	LoginCompleted     Event = "login_completed"
	LoginFailed        Event = "login_failed"
	AccountLocked      Event = "account_locked"
	OTPRejected        Event = "otp_rejected"
	BackupCodeUsed     Event = "backup_code_used"
	PasswordResetSent  Event = "password_reset_requested"
	PasswordReset      Event = "password_reset"
	NotificationFailed Event = "notification_failed"
)

const meterName = "community-aid/accounts"

// Recorder cuenta eventos del ciclo de vida con OpenTelemetry.
type Recorder struct {
	events metric.Int64Counter
}

// NewRecorder crea los instrumentos sobre meter; con nil usa el
// MeterProvider global de otel.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	counter, err := meter.Int64Counter(
		"accounts_lifecycle_events_total",
		metric.WithDescription("Account lifecycle transitions by outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("create lifecycle counter: %w", err)
	}
	return &Recorder{events: counter}, nil
}

// Record suma uno al evento; kind es opcional (p.ej. el tipo de correo).
func (r *Recorder) Record(ctx context.Context, event Event, kind string) {
	if r == nil || r.events == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("event", string(event))}
	if kind != "" {
		attrs = append(attrs, attribute.String("kind", kind))
	}
	r.events.Add(ctx, 1, metric.WithAttributes(attrs...))
}
