package models

// Match lifecycle statuses
const (
	MatchStatusScheduled = "scheduled"
	MatchStatusPlayed    = "played"
	MatchStatusCancelled = "cancelled"
)

// RSVP statuses
const (
	RSVPStatusYes   = "yes"
	RSVPStatusMaybe = "maybe"
	RSVPStatusNo    = "no"
)
