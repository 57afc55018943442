package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event type constants for graph change events.
const (
	EventTypePaperDiscovered = "paper.discovered"
	EventTypeCitationCreated = "citation.created"
)

// GraphEvent is a notification about a change to the citation graph,
// published after the change has been committed.
type GraphEvent struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	PaperID   int64           `json:"paper_id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// PaperDiscoveredPayload is the payload of EventTypePaperDiscovered.
type PaperDiscoveredPayload struct {
	DOI           string `json:"doi,omitempty"`
	ArXivID       string `json:"arxiv_id,omitempty"`
	SourcePaperID int64  `json:"source_paper_id"`
}

// CitationCreatedPayload is the payload of EventTypeCitationCreated.
type CitationCreatedPayload struct {
	CitingPaperID int64 `json:"citing_paper_id"`
	CitedPaperID  int64 `json:"cited_paper_id"`
}

// NewGraphEvent creates an event with a fresh id. The payload is JSON-serialized.
func NewGraphEvent(eventType string, paperID int64, payload interface{}) (*GraphEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &GraphEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		PaperID:   paperID,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}
