package models

// MaxPreviewLength caps the match-level lastMessageText preview.
const MaxPreviewLength = 220

// ChatMessage is a message in a match chat. Seq is assigned exactly once by
// the chat service, never by the author. NotifyClaimedAt and NotifiedAt are
// idempotency sentinels gating the notification fan-out.
type ChatMessage struct {
	MatchID         string `dynamodbav:"matchId" json:"matchId"`
	MessageID       string `dynamodbav:"messageId" json:"messageId"`
	SenderID        string `dynamodbav:"senderId" json:"senderId"`
	Text            string `dynamodbav:"text" json:"text"`
	CreatedAt       string `dynamodbav:"createdAt" json:"createdAt"`
	Seq             int64  `dynamodbav:"seq,omitempty" json:"seq,omitempty"`
	NotifyClaimedAt string `dynamodbav:"notifyClaimedAt,omitempty" json:"notifyClaimedAt,omitempty"`
	NotifiedAt      string `dynamodbav:"notifiedAt,omitempty" json:"notifiedAt,omitempty"`
}

// PreviewText returns the message text truncated for the match preview.
func (m *ChatMessage) PreviewText() string {
	runes := []rune(m.Text)
	if len(runes) <= MaxPreviewLength {
		return m.Text
	}
	return string(runes[:MaxPreviewLength])
}

// ChatMessagesTable is the DynamoDB table name for match chat messages
const ChatMessagesTable = "ChatMessages"
