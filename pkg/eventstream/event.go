package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// SourceService names the emitter in every event.
	SourceService = "recall"

	// EventTypeMessageAdded is emitted after a message is stored.
	EventTypeMessageAdded = "recall.message.added"

	// EventTypeSummaryCreated is emitted after a buffer chunk is summarized.
	EventTypeSummaryCreated = "recall.summary.created"

	// EventTypeCleanupCompleted is emitted after a retention sweep.
	EventTypeCleanupCompleted = "recall.cleanup.completed"
)

// Event is a transport-neutral memory event. Exactly one of the payload
// pointers is set, matching EventType.
type Event struct {
	SchemaVersion  int       `json:"schema_version"`
	EventType      string    `json:"event_type"`
	EventID        string    `json:"event_id"`
	EmittedAt      time.Time `json:"emitted_at"`
	Source         string    `json:"source"`
	ProjectID      string    `json:"project_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`

	Message *MessagePayload `json:"message,omitempty"`
	Summary *SummaryPayload `json:"summary,omitempty"`
	Cleanup *CleanupPayload `json:"cleanup,omitempty"`
}

// MessagePayload describes a stored message. Content is not included.
type MessagePayload struct {
	MessageID     string    `json:"message_id"`
	Sender        string    `json:"sender"`
	AgentID       string    `json:"agent_id,omitempty"`
	MessageType   string    `json:"message_type,omitempty"`
	TokenEstimate int       `json:"token_estimate"`
	Indexed       bool      `json:"indexed"`
	Timestamp     time.Time `json:"timestamp"`
}

// SummaryPayload describes a newly created summary.
type SummaryPayload struct {
	SummaryID        string    `json:"summary_id"`
	SourceMessageIDs []string  `json:"source_message_ids"`
	ImportanceScore  float64   `json:"importance_score"`
	Topics           []string  `json:"topics,omitempty"`
	Participants     []string  `json:"participants,omitempty"`
	Indexed          bool      `json:"indexed"`
	Timestamp        time.Time `json:"timestamp"`
}

// CleanupPayload reports the result of a retention sweep.
type CleanupPayload struct {
	OlderThanDays    int       `json:"older_than_days"`
	Cutoff           time.Time `json:"cutoff"`
	MessagesRemoved  int       `json:"messages_removed"`
	SummariesRemoved int       `json:"summaries_removed"`
}

// NewEvent stamps a fresh event of the given type.
func NewEvent(eventType, projectID, conversationID string) *Event {
	return &Event{
		SchemaVersion:  SchemaVersionV1,
		EventType:      eventType,
		EventID:        uuid.NewString(),
		EmittedAt:      time.Now().UTC(),
		Source:         SourceService,
		ProjectID:      projectID,
		ConversationID: conversationID,
	}
}

// Key is the partitioning key for the event. Events of one conversation
// share a key so brokers keep them in order.
func (e *Event) Key() string {
	if e.ConversationID != "" {
		return e.ConversationID
	}
	if e.ProjectID != "" {
		return e.ProjectID
	}
	return e.EventType
}
