// Package mailer defines the outbound email collaborator. Delivery and
// template rendering live behind the Mailer interface; the service core
// only hands messages to a background dispatcher and moves on.
package mailer

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// Message is one email to deliver. Context carries the template
// variables; Template names the body to render.
type Message struct {
	ID       string
	To       []string
	Subject  string
	Template string
	Context  map[string]any
}

// NewMessage assigns the message a delivery ID for log correlation.
func NewMessage(to []string, subject, template string, templateCtx map[string]any) Message {
	return Message{
		ID:       uuid.NewString(),
		To:       to,
		Subject:  subject,
		Template: template,
		Context:  templateCtx,
	}
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ConsoleMailer logs messages instead of delivering them. Used in dev
// and tests.
type ConsoleMailer struct {
	enabled bool
}

func NewConsoleMailer(enabled bool) *ConsoleMailer {
	return &ConsoleMailer{enabled: enabled}
}

func (m *ConsoleMailer) Send(_ context.Context, msg Message) error {
	if m.enabled {
		log.Printf("[DEV-EMAIL] id=%s to=%v subject=%q template=%s context=%v",
			msg.ID, msg.To, msg.Subject, msg.Template, msg.Context)
	}
	return nil
}
