package report

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/bundler/internal/compiler"
)

const defaultSubject = "bundler.builds"

// NATSReporter publishes build summaries as JSON messages.
type NATSReporter struct {
	conn    *nats.Conn
	subject string
}

// NewNATSReporter connects to the given NATS URL.
func NewNATSReporter(url, subject string) (*NATSReporter, error) {
	if subject == "" {
		subject = defaultSubject
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSReporter{conn: conn, subject: subject}, nil
}

func (r *NATSReporter) Report(_ context.Context, summary compiler.Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode build summary: %w", err)
	}
	if err := r.conn.Publish(r.subject, payload); err != nil {
		return fmt.Errorf("failed to publish build summary: %w", err)
	}
	return nil
}

// Close drains the connection so queued messages flush before shutdown.
func (r *NATSReporter) Close() error {
	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn.Drain()
}
