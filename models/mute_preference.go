package models

// ChatMutePreference is a per-user, per-match notification mute flag.
// Read-only to this service; written by the preferences API.
type ChatMutePreference struct {
	UserID  string `dynamodbav:"userId" json:"userId"`
	MatchID string `dynamodbav:"matchId" json:"matchId"`
	Muted   bool   `dynamodbav:"muted" json:"muted"`
}

// ChatMutePreferencesTable is the DynamoDB table name for chat mute preferences
const ChatMutePreferencesTable = "ChatMutePreferences"
