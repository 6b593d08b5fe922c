// Package events publishes entry lifecycle events on NATS. The surrounding
// diary application's notification side (clinician alerts, dashboards)
// subscribes to these subjects; this service only publishes.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// SubjectEntryCrisis fires on the crisis branch, before the handler
	// returns. Payload: CrisisEvent.
	SubjectEntryCrisis = "souldiary.entry.crisis"
	// SubjectEntryFinalized fires when a background unit completes, fallback
	// or not. Payload: FinalizedEvent.
	SubjectEntryFinalized = "souldiary.entry.finalized"
)

// CrisisEvent alerts the clinician side that a crisis entry was detected.
type CrisisEvent struct {
	EntryID       string `json:"entry_id"`
	PatientID     string `json:"patient_id"`
	Category      string `json:"category"`
	SafetyMessage string `json:"safety_message"`
	DetectedAt    string `json:"detected_at"`
}

// FinalizedEvent announces that an entry's generated fields are final.
type FinalizedEvent struct {
	EntryID   string `json:"entry_id"`
	PatientID string `json:"patient_id"`
	Emotion   string `json:"emotion"`
	Failed    bool   `json:"failed"`
}

type Bus struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials NATS with reconnect handling. The bus is optional: callers
// hold a nil *Bus when no NATS URL is configured, and Publish is nil-safe.
func Connect(url, token string, logger *slog.Logger) (*Bus, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Bus{conn: nc, logger: logger}, nil
}

func (b *Bus) Publish(subject string, data any) error {
	if b == nil {
		return nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return b.conn.Publish(subject, payload)
}

func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.conn.Close()
}
