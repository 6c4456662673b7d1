package mailer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"gopkg.in/gomail.v2"
)

// Encode renders msg as an RFC 5322 message. The body is a text/plain part
// and every attachment follows as a base64 part under a random boundary.
func Encode(from string, msg Message) ([]byte, error) {
	if strings.TrimSpace(msg.To) == "" {
		return nil, errors.New("recipient is required")
	}

	m := gomail.NewMessage(gomail.SetCharset("UTF-8"), gomail.SetEncoding(gomail.Base64))
	if from = strings.TrimSpace(from); from != "" {
		m.SetHeader("From", from)
	}
	m.SetHeader("To", strings.TrimSpace(msg.To))
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	for _, att := range msg.Attachments {
		att := att
		mimeType := strings.TrimSpace(att.MIMEType)
		if mimeType == "" {
			mimeType = ResolveMIMEType(att.Filename)
		}
		m.Attach(att.Filename,
			gomail.SetHeader(map[string][]string{
				"Content-Type":        {attachmentType(mimeType, att.Filename)},
				"Content-Disposition": {mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename})},
			}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(att.Content)
				return err
			}),
		)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// attachmentType renders the part's Content-Type with the filename as a
// properly quoted name parameter. Unparseable types fall back to
// application/octet-stream.
func attachmentType(mimeType, filename string) string {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType, params = "application/octet-stream", map[string]string{}
	}
	params["name"] = filename
	if v := mime.FormatMediaType(mediaType, params); v != "" {
		return v
	}
	return mime.FormatMediaType("application/octet-stream", map[string]string{"name": filename})
}

// EncodeRaw returns Encode's output as unpadded base64url, the form the
// Gmail API expects in Message.Raw.
func EncodeRaw(from string, msg Message) (string, error) {
	data, err := Encode(from, msg)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decoded is the parsed form of an encoded message.
type Decoded struct {
	From        string
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Decode parses a message produced by Encode.
func Decode(raw []byte) (*Decoded, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	words := new(mime.WordDecoder)
	subject, err := words.DecodeHeader(msg.Header.Get("Subject"))
	if err != nil {
		return nil, fmt.Errorf("decode subject: %w", err)
	}

	out := &Decoded{
		From:    msg.Header.Get("From"),
		To:      msg.Header.Get("To"),
		Subject: subject,
	}

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("parse content type: %w", err)
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		body, err := readTransfer(msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		out.Body = string(body)
		return out, nil
	}

	mr := multipart.NewReader(msg.Body, params["boundary"])
	bodySeen := false
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("next part: %w", err)
		}

		content, err := readTransfer(part.Header.Get("Content-Transfer-Encoding"), part)
		if err != nil {
			return nil, fmt.Errorf("read part: %w", err)
		}

		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if name := part.FileName(); name != "" {
			out.Attachments = append(out.Attachments, Attachment{
				Filename: name,
				MIMEType: partType,
				Content:  content,
			})
			continue
		}

		if !bodySeen && (partType == "" || partType == "text/plain") {
			out.Body = string(content)
			bodySeen = true
		}
	}

	return out, nil
}

func readTransfer(encoding string, r io.Reader) ([]byte, error) {
	if strings.EqualFold(strings.TrimSpace(encoding), "base64") {
		r = base64.NewDecoder(base64.StdEncoding, r)
	}
	return io.ReadAll(r)
}
