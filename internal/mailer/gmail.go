package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	gmailUser          = "me"
	inboxLabel         = "INBOX"
	maxListPages       = 5
	defaultRedirectURL = "https://developers.google.com/oauthplayground"
)

var metadataHeaders = []string{"Subject", "From", "To", "Date"}

// GmailTransport talks to the Gmail API with a refresh-token credential.
type GmailTransport struct {
	// RedirectURL is the OAuth client redirect registered for the refresh token.
	RedirectURL string
	// Endpoint and TokenURL override the Google defaults.
	Endpoint string
	TokenURL string
	// HTTPClient is used for token refreshes and API calls when set.
	HTTPClient *http.Client

	mu      sync.Mutex
	clients map[credentialKey]*gmail.Service
}

// credentialKey identifies one OAuth grant. The sender is not part of it.
type credentialKey struct {
	clientID     string
	clientSecret string
	refreshToken string
}

var _ Transport = (*GmailTransport)(nil)

func (t *GmailTransport) Name() string { return "gmail" }

func (t *GmailTransport) Check(cred Credential) error {
	if strings.TrimSpace(cred.Sender) == "" {
		return fmt.Errorf("%w: gmail sender email not configured", ErrNotConfigured)
	}
	if strings.TrimSpace(cred.ClientID) == "" || strings.TrimSpace(cred.ClientSecret) == "" {
		return fmt.Errorf("%w: gmail client id or client secret not configured", ErrNotConfigured)
	}
	return nil
}

func (t *GmailTransport) Send(ctx context.Context, cred Credential, env Envelope) (*SendResult, error) {
	svc, err := t.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	sent, err := svc.Users.Messages.Send(gmailUser, &gmail.Message{
		Raw: base64.RawURLEncoding.EncodeToString(env.Raw),
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail send: %w", err)
	}

	return &SendResult{MessageID: sent.Id, ThreadID: sent.ThreadId}, nil
}

func (t *GmailTransport) List(ctx context.Context, cred Credential, query string) ([]string, error) {
	svc, err := t.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	var ids []string
	pageToken := ""
	for page := 0; page < maxListPages; page++ {
		call := svc.Users.Messages.List(gmailUser).Q(query).LabelIds(inboxLabel).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("gmail list: %w", err)
		}

		for _, m := range resp.Messages {
			if m != nil && m.Id != "" {
				ids = append(ids, m.Id)
			}
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return ids, nil
}

func (t *GmailTransport) Get(ctx context.Context, cred Credential, id string) (*InboxMessage, error) {
	svc, err := t.service(ctx, cred)
	if err != nil {
		return nil, err
	}

	m, err := svc.Users.Messages.Get(gmailUser, id).
		Format("metadata").
		MetadataHeaders(metadataHeaders...).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("gmail get: %w", err)
	}

	out := &InboxMessage{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		Snippet:  m.Snippet,
	}
	if m.InternalDate > 0 {
		out.InternalDate = strconv.FormatInt(m.InternalDate, 10)
	}

	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			if h == nil {
				continue
			}
			switch h.Name {
			case "From":
				out.From = h.Value
			case "To":
				out.To = h.Value
			case "Subject":
				out.Subject = h.Value
			case "Date":
				out.Date = h.Value
			}
		}
	}

	return out, nil
}

// service returns the Gmail client for cred, building it on first use. The
// client keeps its token source, so the access token is refreshed only when it
// expires rather than on every call. The first token is obtained up front so
// a bad refresh token fails with a clear error.
func (t *GmailTransport) service(ctx context.Context, cred Credential) (*gmail.Service, error) {
	if err := t.Check(cred); err != nil {
		return nil, err
	}

	key := credentialKey{
		clientID:     strings.TrimSpace(cred.ClientID),
		clientSecret: strings.TrimSpace(cred.ClientSecret),
		refreshToken: strings.TrimSpace(cred.RefreshToken),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if svc, ok := t.clients[key]; ok {
		return svc, nil
	}

	if t.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, t.HTTPClient)
	}

	endpoint := google.Endpoint
	if t.TokenURL != "" {
		endpoint.TokenURL = t.TokenURL
	}

	redirect := t.RedirectURL
	if redirect == "" {
		redirect = defaultRedirectURL
	}

	conf := &oauth2.Config{
		ClientID:     key.clientID,
		ClientSecret: key.clientSecret,
		Endpoint:     endpoint,
		RedirectURL:  redirect,
		Scopes:       []string{gmail.GmailSendScope, gmail.GmailReadonlyScope},
	}

	token, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: key.refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("obtain gmail access token (check refresh token and oauth client): %w", err)
	}

	// The client outlives this call, so later refreshes must not inherit
	// its deadline.
	ctx = context.WithoutCancel(ctx)
	source := conf.TokenSource(ctx, token)

	opts := []option.ClientOption{option.WithTokenSource(source)}
	if t.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(t.Endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail client: %w", err)
	}

	if t.clients == nil {
		t.clients = make(map[credentialKey]*gmail.Service)
	}
	t.clients[key] = svc
	return svc, nil
}
