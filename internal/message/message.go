// Package message defines the JSONL envelope shared by the server's
// job event stream and the tail client.
package message

// Job lifecycle statuses carried in JobEvent.Status.
const (
	StatusEnqueued   = "enqueued"
	StatusDuplicate  = "duplicate"
	StatusIgnored    = "ignored"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// JobEvent is one line of the operator stream: what happened to the
// delivery with DeliveryID as it moved through the pipeline.
type JobEvent struct {
	Type       string `json:"type"`
	Status     string `json:"status"`
	DeliveryID string `json:"delivery_id"`
	Event      string `json:"event"`
	Repository string `json:"repository,omitempty"`
	Sender     string `json:"sender,omitempty"`
}

// NewJobEvent builds the envelope with its fixed type tag.
func NewJobEvent(status, deliveryID, event string) JobEvent {
	return JobEvent{
		Type:       "job",
		Status:     status,
		DeliveryID: deliveryID,
		Event:      event,
	}
}
