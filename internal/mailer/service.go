package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitchpilot/outreach/internal/logger"
)

const (
	defaultTimeout = 20 * time.Second
	// DefaultInboxQuery is used when ListInbox gets an empty query.
	DefaultInboxQuery = "is:inbox newer_than:7d"
)

// Service is the delivery component: it encodes, sends and reads the inbox.
type Service struct {
	transport Transport
	timeout   time.Duration
	logger    *zap.Logger
}

func NewService(transport Transport, timeout time.Duration, log *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{
		transport: transport,
		timeout:   timeout,
		logger:    logger.Component(log, "mailer").With(zap.String("transport", transport.Name())),
	}
}

// Send delivers msg from cred.Sender. Configuration problems are reported
// before any network call and transport failures are always returned.
func (s *Service) Send(ctx context.Context, msg Message, cred Credential) (*SendResult, error) {
	if err := s.transport.Check(cred); err != nil {
		return nil, err
	}

	from := strings.TrimSpace(cred.Sender)
	raw, err := Encode(from, msg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.transport.Send(ctx, cred, Envelope{
		From: from,
		To:   []string{strings.TrimSpace(msg.To)},
		Raw:  raw,
	})
	if err != nil {
		s.logger.Error("failed to send email", zap.String("to", msg.To), zap.Error(err))
		return nil, fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("email sent",
		zap.String("to", msg.To),
		zap.String(logger.FieldMessageID, res.MessageID),
		zap.Int("attachments", len(msg.Attachments)),
	)

	return res, nil
}

// Inbox yields the messages of one listing. It is not restartable.
type Inbox interface {
	// Next returns the next message or io.EOF. A *MessageError means only
	// that message failed and iteration may continue.
	Next(ctx context.Context) (*InboxMessage, error)
	Len() int
}

// ListInbox snapshots the ids matching query and fetches each message lazily.
func (s *Service) ListInbox(ctx context.Context, query string, cred Credential) (Inbox, error) {
	if err := s.transport.Check(cred); err != nil {
		return nil, err
	}

	if strings.TrimSpace(query) == "" {
		query = DefaultInboxQuery
	}

	listCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ids, err := s.transport.List(listCtx, cred, query)
	if err != nil {
		if errors.Is(err, ErrInboxUnsupported) {
			return nil, err
		}
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	s.logger.Debug("inbox listed", zap.String("query", query), zap.Int("count", len(ids)))

	return &inbox{ids: ids, fetch: func(ctx context.Context, id string) (*InboxMessage, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.transport.Get(ctx, cred, id)
	}}, nil
}

type inbox struct {
	ids   []string
	pos   int
	fetch func(ctx context.Context, id string) (*InboxMessage, error)
}

func (i *inbox) Len() int { return len(i.ids) }

func (i *inbox) Next(ctx context.Context) (*InboxMessage, error) {
	if i.pos >= len(i.ids) {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := i.ids[i.pos]
	i.pos++

	msg, err := i.fetch(ctx, id)
	if err != nil {
		return nil, &MessageError{ID: id, Err: err}
	}
	return msg, nil
}
