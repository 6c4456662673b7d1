package mailer

import "context"

// Envelope is an encoded message ready for a transport.
type Envelope struct {
	From string
	To   []string
	Raw  []byte
}

// Transport moves messages through a mail provider.
type Transport interface {
	Name() string
	// Check validates cred without touching the network.
	Check(cred Credential) error
	Send(ctx context.Context, cred Credential, env Envelope) (*SendResult, error)
	// List returns the ids of messages matching query, in provider order.
	List(ctx context.Context, cred Credential, query string) ([]string, error)
	// Get fetches metadata and snippet of one message.
	Get(ctx context.Context, cred Credential, id string) (*InboxMessage, error)
}
