package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"matchday_server/models"
)

// RosterStore is the data access the roster service needs.
type RosterStore interface {
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	ListRSVPs(ctx context.Context, matchID string) ([]models.RSVP, error)
	PutRSVP(ctx context.Context, rsvp models.RSVP) error
	ConfirmWaitlisted(ctx context.Context, matchID, userID, updatedAt string) error
	UpdateMatchCounts(ctx context.Context, matchID string, confirmed, waitlisted int) error
}

// RosterService keeps the derived roster counters on a match correct and
// fills open confirmed slots from the waitlist in capacity order.
type RosterService struct {
	Store      RosterStore
	Recipients *RecipientService
	Push       *PushService
}

// HandleRSVPEvent processes one RSVP write event: promote whoever fits,
// then recompute the counters from the RSVP records regardless of how
// promotion went. Errors are logged and swallowed; the event source
// redelivers, and recompute rebuilds the counters from source on every
// event, so a failed run heals on the next write.
func (s *RosterService) HandleRSVPEvent(ctx context.Context, event *models.RSVPEvent) {
	if event == nil {
		return
	}
	matchID := event.MatchID()
	if matchID == "" {
		log.Printf("Ignoring RSVP event with no matchId (kind=%s)", event.Kind)
		return
	}

	promoted, err := s.Promote(ctx, matchID)
	if err != nil {
		log.Printf("Promotion failed for match %s: %v", matchID, err)
	}

	if err := s.RecomputeCounts(ctx, matchID); err != nil {
		log.Printf("Count recompute failed for match %s: %v", matchID, err)
	}

	if len(promoted) > 0 {
		s.notifyPromoted(ctx, matchID, promoted)
	}
}

// SetRSVP stores a user's response to a match and runs the same promotion
// and recompute pass a storage-level event for the write would trigger.
func (s *RosterService) SetRSVP(ctx context.Context, rsvp models.RSVP) error {
	rsvp.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	// A "yes" lands on the waitlist whenever the match has a capacity and
	// no confirmed slot is open; promotion moves it up later.
	if rsvp.Status == models.RSVPStatusYes {
		waitlisted, err := s.shouldWaitlist(ctx, rsvp.MatchID)
		if err != nil {
			return err
		}
		rsvp.IsWaitlisted = waitlisted
	} else {
		rsvp.IsWaitlisted = false
	}

	if err := s.Store.PutRSVP(ctx, rsvp); err != nil {
		return err
	}

	s.HandleRSVPEvent(ctx, &models.RSVPEvent{Kind: models.RSVPEventCreated, After: &rsvp})
	return nil
}

func (s *RosterService) shouldWaitlist(ctx context.Context, matchID string) (bool, error) {
	match, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		return false, err
	}
	if match == nil || match.MaxPlayers <= 0 {
		return false, nil
	}

	rsvps, err := s.Store.ListRSVPs(ctx, matchID)
	if err != nil {
		return false, err
	}
	confirmed := 0
	for i := range rsvps {
		if rsvps[i].IsConfirmed() {
			confirmed++
		}
	}
	return confirmed >= match.MaxPlayers, nil
}

// Promote fills open confirmed slots from the waitlist, earliest request
// first, and returns the user ids that were promoted.
//
// Each candidate is flipped in its own conditional write rather than one
// transaction across the whole set: a candidate that fails (already
// promoted elsewhere, already left, transient storage error) is skipped
// and the rest still go through. The counters may be stale between flips;
// the recompute that always follows corrects them.
func (s *RosterService) Promote(ctx context.Context, matchID string) ([]string, error) {
	match, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil || match.IsTerminal() || match.MaxPlayers <= 0 {
		return nil, nil
	}

	rsvps, err := s.Store.ListRSVPs(ctx, matchID)
	if err != nil {
		return nil, err
	}

	confirmed := 0
	var waitlist []models.RSVP
	for i := range rsvps {
		if rsvps[i].IsConfirmed() {
			confirmed++
		} else if rsvps[i].IsOnWaitlist() {
			waitlist = append(waitlist, rsvps[i])
		}
	}

	openSlots := match.MaxPlayers - confirmed
	if openSlots <= 0 || len(waitlist) == 0 {
		return nil, nil
	}

	// Earliest request wins the open slot.
	sort.SliceStable(waitlist, func(i, j int) bool {
		return waitlist[i].UpdatedAt < waitlist[j].UpdatedAt
	})
	if len(waitlist) > openSlots {
		waitlist = waitlist[:openSlots]
	}

	now := time.Now().UTC().Format(time.RFC3339)
	var promoted []string
	for _, candidate := range waitlist {
		err := s.Store.ConfirmWaitlisted(ctx, matchID, candidate.UserID, now)
		if errors.Is(err, ErrConditionFailed) {
			// No longer a waitlisted yes: a concurrent run promoted them
			// or they changed their RSVP. Skip.
			log.Printf("Skipping promotion for user %s in match %s: RSVP state moved", candidate.UserID, matchID)
			continue
		}
		if err != nil {
			log.Printf("Failed to promote user %s in match %s: %v", candidate.UserID, matchID, err)
			continue
		}
		promoted = append(promoted, candidate.UserID)
	}

	return promoted, nil
}

// RecomputeCounts recounts confirmed and waitlisted RSVPs from the RSVP
// records and overwrites the derived counters on the match. The counters
// are never patched incrementally, so overlapping runs converge on the
// same values no matter how they interleave.
func (s *RosterService) RecomputeCounts(ctx context.Context, matchID string) error {
	match, err := s.Store.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if match == nil {
		return nil
	}

	rsvps, err := s.Store.ListRSVPs(ctx, matchID)
	if err != nil {
		return err
	}

	confirmed := 0
	waitlisted := 0
	for i := range rsvps {
		if rsvps[i].IsConfirmed() {
			confirmed++
		} else if rsvps[i].IsOnWaitlist() {
			waitlisted++
		}
	}

	return s.Store.UpdateMatchCounts(ctx, matchID, confirmed, waitlisted)
}

func (s *RosterService) notifyPromoted(ctx context.Context, matchID string, promoted []string) {
	recipients, err := s.Recipients.Resolve(ctx, matchID, "", promoted)
	if err != nil {
		log.Printf("Failed to resolve promotion recipients for match %s: %v", matchID, err)
		return
	}

	data := map[string]string{
		"type":    "rsvp_promoted",
		"matchId": matchID,
	}
	s.Push.Send(ctx, recipients, "You're in!", "A spot opened up and you're now confirmed to play.", data)
}
