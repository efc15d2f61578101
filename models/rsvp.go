package models

// RSVP is a user's response to a match. The table key is (matchId, userId),
// so a second RSVP from the same user overwrites the first instead of
// duplicating it.
type RSVP struct {
	MatchID      string `dynamodbav:"matchId" json:"matchId"`
	UserID       string `dynamodbav:"userId" json:"userId"`
	Status       string `dynamodbav:"status" json:"status"` // yes, maybe, no
	IsWaitlisted bool   `dynamodbav:"isWaitlisted" json:"isWaitlisted"`
	UpdatedAt    string `dynamodbav:"updatedAt" json:"updatedAt"` // RFC3339, promotion tie-break clock
}

// IsConfirmed reports whether the RSVP holds a confirmed roster slot.
func (r *RSVP) IsConfirmed() bool {
	return r.Status == RSVPStatusYes && !r.IsWaitlisted
}

// IsOnWaitlist reports whether the RSVP is waiting for a slot.
func (r *RSVP) IsOnWaitlist() bool {
	return r.Status == RSVPStatusYes && r.IsWaitlisted
}

// RSVPsTable is the DynamoDB table name for match RSVPs
const RSVPsTable = "RSVPs"
