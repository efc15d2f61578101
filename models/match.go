package models

// Match represents a capacity-limited scheduled match.
//
// ConfirmedYesCount, WaitlistCount and the lastMessage* preview fields are
// derived values owned by the roster and chat services; they are recomputed
// from the RSVP and message records and must never be written by API clients.
type Match struct {
	MatchID           string `dynamodbav:"matchId" json:"matchId"`
	Title             string `dynamodbav:"title,omitempty" json:"title,omitempty"`
	MaxPlayers        int    `dynamodbav:"maxPlayers" json:"maxPlayers"` // 0 = unlimited, no waitlist
	Status            string `dynamodbav:"status" json:"status"`         // scheduled, played, cancelled
	CreatedBy         string `dynamodbav:"createdBy" json:"createdBy"`   // host userId
	CreatedAt         string `dynamodbav:"createdAt" json:"createdAt"`
	ConfirmedYesCount int    `dynamodbav:"confirmedYesCount" json:"confirmedYesCount"`
	WaitlistCount     int    `dynamodbav:"waitlistCount" json:"waitlistCount"`

	LastMessageSeq        int64  `dynamodbav:"lastMessageSeq" json:"lastMessageSeq"`
	LastMessageAt         string `dynamodbav:"lastMessageAt,omitempty" json:"lastMessageAt,omitempty"`
	LastMessageText       string `dynamodbav:"lastMessageText,omitempty" json:"lastMessageText,omitempty"`
	LastMessageSenderID   string `dynamodbav:"lastMessageSenderId,omitempty" json:"lastMessageSenderId,omitempty"`
	LastMessageSenderName string `dynamodbav:"lastMessageSenderName,omitempty" json:"lastMessageSenderName,omitempty"`
}

// IsTerminal reports whether the match no longer accepts roster changes.
func (m *Match) IsTerminal() bool {
	return m.Status == MatchStatusPlayed || m.Status == MatchStatusCancelled
}

// MatchesTable is the DynamoDB table name for matches
const MatchesTable = "Matches"
