package models

// RSVP write event kinds
const (
	RSVPEventCreated = "created"
	RSVPEventUpdated = "updated"
	RSVPEventDeleted = "deleted"
)

// RSVPEvent is the storage-layer notification for an RSVP write. Created
// events carry only After, deleted events only Before, updates carry both.
type RSVPEvent struct {
	Kind   string `json:"kind"` // created, updated, deleted
	Before *RSVP  `json:"before,omitempty"`
	After  *RSVP  `json:"after,omitempty"`
}

// MatchID resolves the affected match from whichever snapshot carries it.
func (e *RSVPEvent) MatchID() string {
	if e.After != nil && e.After.MatchID != "" {
		return e.After.MatchID
	}
	if e.Before != nil {
		return e.Before.MatchID
	}
	return ""
}

// ChatMessageEvent is the storage-layer notification for a created chat
// message. The snapshot identifies the message; handlers re-read current
// state from the store rather than trusting the snapshot fields.
type ChatMessageEvent struct {
	Message *ChatMessage `json:"message"`
}
