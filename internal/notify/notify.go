// Package notify delivers password reset links to users.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bgrizzle97/socialMedia/internal/logging"
)

// ResetLink is the payload handed to a delivery channel.
type ResetLink struct {
	Email     string    `json:"email"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ResetLinkNotifier delivers reset links out of band.
type ResetLinkNotifier interface {
	SendResetLink(ctx context.Context, link ResetLink) error
}

// LogNotifier records reset requests in the log. The link itself carries the
// token and is only written at debug level. Intended for development only.
type LogNotifier struct {
	log logging.Logger
}

// NewLogNotifier creates a notifier that logs links.
func NewLogNotifier(log logging.Logger) *LogNotifier {
	if log == nil {
		log = logging.Nop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendResetLink(ctx context.Context, link ResetLink) error {
	n.log.Info(ctx, "password reset requested", "email", link.Email, "expires_at", link.ExpiresAt)
	n.log.Debug(ctx, "password reset link", "email", link.Email, "link", link.Link)
	return nil
}

// Publisher is the subset of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes reset links as JSON for a mail worker to pick up.
type NATSNotifier struct {
	pub     Publisher
	subject string
}

// NewNATSNotifier creates a notifier publishing on subject.
func NewNATSNotifier(pub Publisher, subject string) *NATSNotifier {
	return &NATSNotifier{pub: pub, subject: subject}
}

func (n *NATSNotifier) SendResetLink(_ context.Context, link ResetLink) error {
	payload, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("encode reset link: %w", err)
	}
	if err := n.pub.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("publish reset link: %w", err)
	}
	return nil
}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("socialmedia-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}
