package mailer

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMIMEType is used when the extension is unknown.
const DefaultMIMEType = "application/pdf"

var documentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".odt":  "application/vnd.oasis.opendocument.text",
	".rtf":  "application/rtf",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// Attachment is a binary part of an outgoing message.
type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

// ResolveMIMEType maps a filename extension to a media type.
func ResolveMIMEType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return DefaultMIMEType
	}
	if t, ok := documentTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		mediaType, _, err := mime.ParseMediaType(t)
		if err == nil {
			return mediaType
		}
	}
	return DefaultMIMEType
}

// AttachmentFromFile loads path. displayName, when set, replaces the base name.
func AttachmentFromFile(path, displayName string) (Attachment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("read attachment %q: %w", path, err)
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = filepath.Base(path)
	}

	return Attachment{
		Filename: name,
		MIMEType: ResolveMIMEType(name),
		Content:  content,
	}, nil
}
