package mailer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeGmail struct {
	*httptest.Server
	sentRaw   string
	tokenErr  bool
	tokenHits atomic.Int32
}

func newFakeGmail(t *testing.T) *fakeGmail {
	t.Helper()
	f := &fakeGmail{}
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenHits.Add(1)
		if f.tokenErr {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","expires_in":3600}`))
	})

	mux.HandleFunc("/gmail/v1/users/me/messages/send", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		var body struct {
			Raw string `json:"raw"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.sentRaw = body.Raw
		_, _ = w.Write([]byte(`{"id":"gm-1","threadId":"th-1"}`))
	})

	mux.HandleFunc("/gmail/v1/users/me/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "INBOX", r.URL.Query().Get("labelIds"))
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"messages":[{"id":"m1"},{"id":"m2"}],"nextPageToken":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"m3"}]}`))
	})

	mux.HandleFunc("/gmail/v1/users/me/messages/m1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "metadata", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`{
			"id":"m1","threadId":"th-1","snippet":"Thanks for reaching out",
			"internalDate":"1700000000000",
			"payload":{"headers":[
				{"name":"From","value":"Jane Doe <jane@co.com>"},
				{"name":"Subject","value":"Re: Application"},
				{"name":"To","value":"sam@example.com"}
			]}}`))
	})

	mux.HandleFunc("/gmail/v1/users/me/messages/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/gmail/v1/users/me/messages/")
		_, _ = w.Write([]byte(`{"id":"` + id + `","threadId":"th-` + id + `","snippet":"hi"}`))
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGmail) transport() *GmailTransport {
	return &GmailTransport{
		Endpoint:   f.URL + "/",
		TokenURL:   f.URL + "/token",
		HTTPClient: f.Client(),
	}
}

func TestGmailTransportSend(t *testing.T) {
	f := newFakeGmail(t)
	raw := []byte("To: jane@co.com\r\nSubject: Hi\r\n\r\nHello")

	res, err := f.transport().Send(context.Background(), testCred, Envelope{Raw: raw})
	require.NoError(t, err)
	require.Equal(t, "gm-1", res.MessageID)
	require.Equal(t, "th-1", res.ThreadID)

	got, err := base64.RawURLEncoding.DecodeString(f.sentRaw)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestGmailTransportListAndGet(t *testing.T) {
	f := newFakeGmail(t)
	tr := f.transport()
	ctx := context.Background()

	ids, err := tr.List(ctx, testCred, "is:inbox newer_than:1d")
	require.NoError(t, err)
	require.Equal(t, []string{"m1", "m2", "m3"}, ids)

	msg, err := tr.Get(ctx, testCred, "m1")
	require.NoError(t, err)
	require.Equal(t, "Jane Doe <jane@co.com>", msg.From)
	require.Equal(t, "Re: Application", msg.Subject)
	require.Equal(t, "th-1", msg.ThreadID)
	require.Equal(t, "1700000000000", msg.InternalDate)
}

func TestGmailInboxRefreshesTokenOnce(t *testing.T) {
	f := newFakeGmail(t)
	svc := NewService(f.transport(), 0, zap.NewNop())
	ctx := context.Background()

	inbox, err := svc.ListInbox(ctx, "", testCred)
	require.NoError(t, err)
	require.Equal(t, 3, inbox.Len())

	var ids []string
	for {
		msg, err := inbox.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}
	require.Equal(t, []string{"m1", "m2", "m3"}, ids)

	_, err = svc.Send(ctx, Message{To: "jane@co.com", Subject: "Hi", Body: "Hello"}, testCred)
	require.NoError(t, err)

	require.Equal(t, int32(1), f.tokenHits.Load())
}

func TestGmailTransportBadRefreshToken(t *testing.T) {
	f := newFakeGmail(t)
	f.tokenErr = true

	_, err := f.transport().Send(context.Background(), testCred, Envelope{Raw: []byte("x")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "obtain gmail access token")
}

func TestGmailTransportCheck(t *testing.T) {
	tr := &GmailTransport{}
	tests := []struct {
		name string
		cred Credential
		ok   bool
	}{
		{name: "complete", cred: testCred, ok: true},
		{name: "no sender", cred: Credential{ClientID: "id", ClientSecret: "s"}},
		{name: "no client", cred: Credential{Sender: "sam@example.com"}},
		{name: "blank secret", cred: Credential{ClientID: "id", ClientSecret: "  ", Sender: "sam@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tr.Check(tt.cred)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.Is(err, ErrNotConfigured))
			require.True(t, strings.Contains(err.Error(), "not configured"))
		})
	}
}
