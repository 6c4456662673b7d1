// Package mailer encodes outreach emails and moves them through a mail provider.
package mailer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotConfigured is returned before any network call when the sender
	// or client credentials are missing.
	ErrNotConfigured = errors.New("mail transport not configured")
	// ErrInboxUnsupported is returned by transports that can only send.
	ErrInboxUnsupported = errors.New("transport cannot read the inbox")
)

// Credential is an OAuth-style mailbox credential.
type Credential struct {
	ClientID     string `mapstructure:"client-id"`
	ClientSecret string `mapstructure:"client-secret"`
	RefreshToken string `mapstructure:"refresh-token"`
	Sender       string `mapstructure:"sender"`
}

// Message is an outgoing email.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// SendResult carries the provider's identifiers for a sent message.
type SendResult struct {
	MessageID string
	ThreadID  string
}

// InboxMessage is the metadata view of one received message.
type InboxMessage struct {
	ID       string
	ThreadID string
	From     string
	To       string
	Subject  string
	Date     string
	Snippet  string
	// InternalDate is the provider timestamp in epoch milliseconds, as text.
	InternalDate string
}

// ReceivedAt parses InternalDate.
func (m *InboxMessage) ReceivedAt() (time.Time, bool) {
	ms, err := strconv.ParseInt(strings.TrimSpace(m.InternalDate), 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// MessageError reports a failure limited to a single inbox message.
type MessageError struct {
	ID  string
	Err error
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("message %s: %v", e.ID, e.Err)
}

func (e *MessageError) Unwrap() error {
	return e.Err
}
