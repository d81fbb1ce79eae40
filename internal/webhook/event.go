// Package webhook holds the delivery types, signature verification,
// and event classification for GitHub webhook payloads. The HTTP
// receiver that feeds the dispatch queue lives in internal/server.
package webhook

import (
	"errors"
	"time"
)

// Classification failures, mapped to HTTP 400 at the receiver boundary.
var (
	// ErrMalformedPayload reports a body that does not parse as the
	// expected JSON schema.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrUnsupportedEvent reports an event type outside the configured
	// recognized set.
	ErrUnsupportedEvent = errors.New("unsupported event type")
	// ErrMissingContext reports a recognized event lacking a delivery
	// id, installation, or repository reference.
	ErrMissingContext = errors.New("missing event context")
)

// Delivery is one webhook notification as received on the wire. It is
// immutable after classification and never persisted by this pipeline.
type Delivery struct {
	ID         string
	Event      string
	Signature  string
	Body       []byte
	ReceivedAt time.Time
}

// Installation identifies the GitHub App installation owning an event.
type Installation struct {
	ID int64
}

// RepositoryRef identifies the repository an event targets.
type RepositoryRef struct {
	FullName string
	CloneURL string
}

// Event is a classified delivery with the context the rest of the
// pipeline consumes. Text is the event's mention-bearing body and is
// empty when the event's action is one the bot does not react to.
type Event struct {
	Delivery     Delivery
	Installation Installation
	Repo         RepositoryRef
	Action       string
	Sender       string
	Text         string
}
