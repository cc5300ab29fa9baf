package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/litebuilder/internal/pipeline"
)

// RunNotification is the message published after every completed run.
type RunNotification struct {
	RunID        string    `json:"run_id"`
	Outcome      string    `json:"outcome"`
	Event        string    `json:"event"`
	Branch       string    `json:"branch"`
	CacheHit     bool      `json:"cache_hit"`
	Published    bool      `json:"published"`
	PublishURL   string    `json:"publish_url,omitempty"`
	ArtifactHash string    `json:"artifact_hash,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	Warnings     int       `json:"warnings"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier publishes run notifications to a NATS JetStream subject.
type Notifier struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNotifier connects to NATS and prepares a JetStream publisher.
func NewNotifier(natsURL, subject string) (*Notifier, error) {
	if natsURL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if subject == "" {
		return nil, fmt.Errorf("nats subject is required")
	}

	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	slog.Info("NATS notifier initialized", "url", natsURL, "subject", subject)

	return &Notifier{conn: conn, js: js, subject: subject}, nil
}

// PublishRunFinished publishes a notification for a finished run.
func (n *Notifier) PublishRunFinished(trigger pipeline.Trigger, report *pipeline.RunReport, publishURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := RunNotification{
		RunID:        report.RunID,
		Outcome:      string(report.Outcome),
		Event:        trigger.Event,
		Branch:       trigger.Branch,
		CacheHit:     report.CacheHit,
		Published:    report.Published,
		PublishURL:   publishURL,
		ArtifactHash: report.ArtifactHash,
		DurationMS:   report.Duration().Milliseconds(),
		Warnings:     len(report.Warnings),
		Timestamp:    time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal run notification: %w", err)
	}

	if _, err := n.js.Publish(ctx, n.subject, data); err != nil {
		return fmt.Errorf("failed to publish run notification: %w", err)
	}

	slog.Debug("Published run notification",
		"run_id", report.RunID,
		"outcome", report.Outcome)
	return nil
}

// Close closes the NATS connection.
func (n *Notifier) Close() error {
	if n.conn != nil {
		n.conn.Close()
	}
	return nil
}
