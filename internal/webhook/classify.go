package webhook

import (
	"fmt"
	"time"

	"github.com/google/go-github/v62/github"
)

// reactiveAction maps each supported event type to the single action
// the bot reacts to. Other actions (edited, closed, ...) classify
// successfully but carry no text, so the pipeline acknowledges them
// without dispatching.
var reactiveAction = map[string]string{
	"issue_comment": "created",
	"issues":        "opened",
	"pull_request":  "opened",
}

// Classifier turns raw webhook bodies into typed Events. The
// recognized event set is configuration; types outside it are rejected
// with ErrUnsupportedEvent before the body is parsed.
type Classifier struct {
	recognized map[string]bool
	now        func() time.Time
}

// NewClassifier builds a Classifier accepting exactly the given event
// types. Every configured type must be one the classifier knows how to
// extract context from.
func NewClassifier(recognized []string) (*Classifier, error) {
	set := make(map[string]bool, len(recognized))
	for _, event := range recognized {
		if _, ok := reactiveAction[event]; !ok {
			return nil, fmt.Errorf("unknown event type %q in recognized set", event)
		}
		set[event] = true
	}
	return &Classifier{recognized: set, now: time.Now}, nil
}

// Classify parses body according to eventType and extracts the
// delivery context. The delivery id comes from its dedicated header
// only; payloads that omit context required for dispatch fail with
// ErrMissingContext.
func (c *Classifier) Classify(body []byte, eventType, deliveryID string) (*Event, error) {
	if !c.recognized[eventType] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, eventType)
	}
	if deliveryID == "" {
		return nil, fmt.Errorf("%w: no delivery id header", ErrMissingContext)
	}

	payload, err := github.ParseWebHook(eventType, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	ev := &Event{
		Delivery: Delivery{
			ID:         deliveryID,
			Event:      eventType,
			Body:       body,
			ReceivedAt: c.now(),
		},
	}

	var text string
	switch e := payload.(type) {
	case *github.IssueCommentEvent:
		ev.Action = e.GetAction()
		ev.Sender = e.GetSender().GetLogin()
		ev.Installation = Installation{ID: e.GetInstallation().GetID()}
		ev.Repo = RepositoryRef{
			FullName: e.GetRepo().GetFullName(),
			CloneURL: e.GetRepo().GetCloneURL(),
		}
		text = e.GetComment().GetBody()
	case *github.IssuesEvent:
		ev.Action = e.GetAction()
		ev.Sender = e.GetSender().GetLogin()
		ev.Installation = Installation{ID: e.GetInstallation().GetID()}
		ev.Repo = RepositoryRef{
			FullName: e.GetRepo().GetFullName(),
			CloneURL: e.GetRepo().GetCloneURL(),
		}
		text = e.GetIssue().GetBody()
	case *github.PullRequestEvent:
		ev.Action = e.GetAction()
		ev.Sender = e.GetSender().GetLogin()
		ev.Installation = Installation{ID: e.GetInstallation().GetID()}
		ev.Repo = RepositoryRef{
			FullName: e.GetRepo().GetFullName(),
			CloneURL: e.GetRepo().GetCloneURL(),
		}
		text = e.GetPullRequest().GetBody()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, eventType)
	}

	if ev.Installation.ID == 0 {
		return nil, fmt.Errorf("%w: event %q has no installation", ErrMissingContext, eventType)
	}
	if ev.Repo.FullName == "" {
		return nil, fmt.Errorf("%w: event %q has no repository", ErrMissingContext, eventType)
	}

	if ev.Action == reactiveAction[eventType] {
		ev.Text = text
	}
	return ev, nil
}
