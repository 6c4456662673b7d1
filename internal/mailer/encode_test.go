package mailer

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"mime"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestEncodeRoundTrip(t *testing.T) {
	resume := randomBytes(t, 48*1024)
	letter := randomBytes(t, 20*1024+3)
	body := "Hi Jane,\n\nI saw the Go role, keen to chat over a café.\r\nLine with trailing space \nBest,\nSam\n"

	raw, err := Encode("sam@example.com", Message{
		To:      "jane@co.com",
		Subject: "Application for Backend Engineer – Sam",
		Body:    body,
		Attachments: []Attachment{
			{Filename: "resume.pdf", MIMEType: "application/pdf", Content: resume},
			{Filename: "cover.docx", Content: letter},
		},
	})
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)

	require.Equal(t, body, decoded.Body)
	require.Equal(t, "Application for Backend Engineer – Sam", decoded.Subject)
	require.Equal(t, "jane@co.com", decoded.To)
	require.Len(t, decoded.Attachments, 2)

	require.Equal(t, "resume.pdf", decoded.Attachments[0].Filename)
	require.Equal(t, "application/pdf", decoded.Attachments[0].MIMEType)
	require.True(t, bytes.Equal(resume, decoded.Attachments[0].Content))

	require.Equal(t, "cover.docx", decoded.Attachments[1].Filename)
	require.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", decoded.Attachments[1].MIMEType)
	require.True(t, bytes.Equal(letter, decoded.Attachments[1].Content))
}

func TestEncodeQuotesAttachmentNames(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		mimeType string
		wantType string
	}{
		{name: "quote", filename: `Sam "Go" CV.pdf`, mimeType: "application/pdf", wantType: "application/pdf"},
		{name: "backslash", filename: `cv\final.pdf`, mimeType: "application/pdf", wantType: "application/pdf"},
		{name: "non ascii", filename: "résumé.pdf", wantType: "application/pdf"},
		{name: "type with params", filename: "notes.txt", mimeType: "text/plain; charset=utf-8", wantType: "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Encode("sam@example.com", Message{
				To:          "jane@co.com",
				Subject:     "CV",
				Body:        "attached",
				Attachments: []Attachment{{Filename: tt.filename, MIMEType: tt.mimeType, Content: []byte("x")}},
			})
			require.NoError(t, err)

			decoded, err := Decode(raw)
			require.NoError(t, err)
			require.Len(t, decoded.Attachments, 1)
			require.Equal(t, tt.filename, decoded.Attachments[0].Filename)
			require.Equal(t, tt.wantType, decoded.Attachments[0].MIMEType)
		})
	}
}

func TestEncodeUsesMultipartWithFreshBoundary(t *testing.T) {
	msg := Message{
		To:          "jane@co.com",
		Subject:     "Hello",
		Body:        "body",
		Attachments: []Attachment{{Filename: "a.pdf", Content: []byte("pdf")}},
	}

	boundary := func() string {
		raw, err := Encode("sam@example.com", msg)
		require.NoError(t, err)

		parsed, err := mail.ReadMessage(bytes.NewReader(raw))
		require.NoError(t, err)

		mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
		require.NoError(t, err)
		require.Equal(t, "multipart/mixed", mediaType)
		require.NotEmpty(t, params["boundary"])
		return params["boundary"]
	}

	require.NotEqual(t, boundary(), boundary())
}

func TestEncodeWithoutAttachments(t *testing.T) {
	raw, err := Encode("", Message{To: "jane@co.com", Subject: "Hi", Body: "Just text"})
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "Just text", decoded.Body)
	require.Empty(t, decoded.Attachments)
}

func TestEncodeRequiresRecipient(t *testing.T) {
	_, err := Encode("sam@example.com", Message{Subject: "x", Body: "y"})
	require.Error(t, err)
}

func TestEncodeRawIsUnpaddedBase64URL(t *testing.T) {
	encoded, err := EncodeRaw("sam@example.com", Message{To: "jane@co.com", Subject: "Hi", Body: "x"})
	require.NoError(t, err)
	require.False(t, strings.ContainsAny(encoded, "+/="))

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)

	decoded, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "x", decoded.Body)
}
