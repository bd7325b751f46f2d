package email

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// ConsoleMailer prints messages instead of delivering them; used in local environments.
type ConsoleMailer struct {
	mu   sync.Mutex
	out  io.Writer
	from string
	sent []Message
}

var _ Mailer = (*ConsoleMailer)(nil)

func NewConsoleMailer(out io.Writer, from string) *ConsoleMailer {
	return &ConsoleMailer{out: out, from: from}
}

func (m *ConsoleMailer) Send(_ context.Context, msg Message) error {
	body := new(strings.Builder)
	fmt.Fprintf(body, "From: %s\n", m.from)
	fmt.Fprintf(body, "To: %s\n", msg.To.String())
	fmt.Fprintf(body, "Subject: %s\n\n", msg.Subject)
	body.WriteString(msg.Text)
	body.WriteString("\n-------------------------------------------------------------------------------\n")

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := io.WriteString(m.out, body.String()); err != nil {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *ConsoleMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
