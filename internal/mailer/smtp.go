package mailer

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"
)

// SMTPTransport sends through an SMTP relay. It cannot read the inbox, so
// reply detection needs the Gmail transport.
type SMTPTransport struct {
	Host     string
	Port     int
	Username string
	Password string

	dial func(*gomail.Dialer) (gomail.SendCloser, error)
}

var _ Transport = (*SMTPTransport)(nil)

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Check(cred Credential) error {
	if strings.TrimSpace(cred.Sender) == "" {
		return fmt.Errorf("%w: smtp sender email not configured", ErrNotConfigured)
	}
	if strings.TrimSpace(t.Host) == "" || t.Port <= 0 {
		return fmt.Errorf("%w: smtp host or port not configured", ErrNotConfigured)
	}
	return nil
}

// Send relays env. The dial runs in the background so ctx bounds how long
// the caller waits.
func (t *SMTPTransport) Send(ctx context.Context, cred Credential, env Envelope) (*SendResult, error) {
	if err := t.Check(cred); err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		done <- t.deliver(env)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("smtp send: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("smtp send: %w", err)
		}
		// SMTP relays do not hand back a message id.
		return &SendResult{}, nil
	}
}

func (t *SMTPTransport) deliver(env Envelope) error {
	d := gomail.NewDialer(t.Host, t.Port, t.Username, t.Password)

	dial := t.dial
	if dial == nil {
		dial = func(d *gomail.Dialer) (gomail.SendCloser, error) { return d.Dial() }
	}

	s, err := dial(d)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.Send(env.From, env.To, bytes.NewReader(env.Raw))
}

func (t *SMTPTransport) List(context.Context, Credential, string) ([]string, error) {
	return nil, ErrInboxUnsupported
}

func (t *SMTPTransport) Get(context.Context, Credential, string) (*InboxMessage, error) {
	return nil, ErrInboxUnsupported
}
