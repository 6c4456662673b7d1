package outreach

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID returns an identifier for leads, campaigns and sequence steps.
func NewID() string {
	return uuid.NewString()
}

// NewEventID returns a ledger identifier that sorts by t.
func NewEventID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}
