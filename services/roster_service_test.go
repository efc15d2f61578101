package services

import (
	"context"
	"errors"
	"testing"

	"matchday_server/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRosterHarness() (*fakeStore, *fakePushClient, *RosterService) {
	store := newFakeStore()
	client := &fakePushClient{}
	push := &PushService{Client: client, Tokens: store}
	recipients := &RecipientService{Store: store}
	roster := &RosterService{Store: store, Recipients: recipients, Push: push}
	return store, client, roster
}

func TestRecomputeCountsFromSource(t *testing.T) {
	store, _, roster := newRosterHarness()
	store.addMatch(models.Match{MatchID: "m1", MaxPlayers: 10, Status: models.MatchStatusScheduled})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "a", Status: models.RSVPStatusYes})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "b", Status: models.RSVPStatusYes})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "c", Status: models.RSVPStatusYes, IsWaitlisted: true})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "d", Status: models.RSVPStatusMaybe})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "e", Status: models.RSVPStatusNo})

	require.NoError(t, roster.RecomputeCounts(context.Background(), "m1"))

	match := store.match("m1")
	assert.Equal(t, 2, match.ConfirmedYesCount)
	assert.Equal(t, 1, match.WaitlistCount)

	// Running again with no intervening writes changes nothing.
	require.NoError(t, roster.RecomputeCounts(context.Background(), "m1"))
	match = store.match("m1")
	assert.Equal(t, 2, match.ConfirmedYesCount)
	assert.Equal(t, 1, match.WaitlistCount)
}

func TestRecomputeCountsMissingMatch(t *testing.T) {
	_, _, roster := newRosterHarness()
	require.NoError(t, roster.RecomputeCounts(context.Background(), "nope"))
}

func TestPromoteFairness(t *testing.T) {
	store, _, roster := newRosterHarness()
	store.addMatch(models.Match{MatchID: "m1", MaxPlayers: 2, Status: models.MatchStatusScheduled})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "confirmed", Status: models.RSVPStatusYes, UpdatedAt: "2026-08-01T10:00:00Z"})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "w2", Status: models.RSVPStatusYes, IsWaitlisted: true, UpdatedAt: "2026-08-01T12:00:00Z"})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "w1", Status: models.RSVPStatusYes, IsWaitlisted: true, UpdatedAt: "2026-08-01T11:00:00Z"})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "w3", Status: models.RSVPStatusYes, IsWaitlisted: true, UpdatedAt: "2026-08-01T13:00:00Z"})

	promoted, err := roster.Promote(context.Background(), "m1")
	require.NoError(t, err)

	// One open slot, earliest waitlisted request wins.
	assert.Equal(t, []string{"w1"}, promoted)
	assert.False(t, store.rsvp("m1", "w1").IsWaitlisted)
	assert.True(t, store.rsvp("m1", "w2").IsWaitlisted)
	assert.True(t, store.rsvp("m1", "w3").IsWaitlisted)
}

func TestPromoteNoOps(t *testing.T) {
	tests := []struct {
		name  string
		match *models.Match
	}{
		{"missing match", nil},
		{"unlimited capacity", &models.Match{MatchID: "m1", MaxPlayers: 0, Status: models.MatchStatusScheduled}},
		{"played", &models.Match{MatchID: "m1", MaxPlayers: 2, Status: models.MatchStatusPlayed}},
		{"cancelled", &models.Match{MatchID: "m1", MaxPlayers: 2, Status: models.MatchStatusCancelled}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, roster := newRosterHarness()
			if tt.match != nil {
				store.addMatch(*tt.match)
			}
			store.addRSVP(models.RSVP{MatchID: "m1", UserID: "w1", Status: models.RSVPStatusYes, IsWaitlisted: true})

			promoted, err := roster.Promote(context.Background(), "m1")
			require.NoError(t, err)
			assert.Empty(t, promoted)
			assert.True(t, store.rsvp("m1", "w1").IsWaitlisted)
		})
	}
}

func TestPromoteSkipsCandidateWhoseStateMoved(t *testing.T) {
	store, _, roster := newRosterHarness()
	store.addMatch(models.Match{MatchID: "m1", MaxPlayers: 3, Status: models.MatchStatusScheduled})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "w1", Status: models.RSVPStatusYes, IsWaitlisted: true, UpdatedAt: "t1"})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "w2", Status: models.RSVPStatusYes, IsWaitlisted: true, UpdatedAt: "t2"})

	// w1's conditional flip loses to a concurrent run; w2 still goes through.
	store.confirmErrs["w1"] = ErrConditionFailed

	promoted, err := roster.Promote(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"w2"}, promoted)
}

func TestPromoteSkipsCandidateOnTransientError(t *testing.T) {
	store, _, roster := newRosterHarness()
	store.addMatch(models.Match{MatchID: "m1", MaxPlayers: 3, Status: models.MatchStatusScheduled})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "w1", Status: models.RSVPStatusYes, IsWaitlisted: true, UpdatedAt: "t1"})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "w2", Status: models.RSVPStatusYes, IsWaitlisted: true, UpdatedAt: "t2"})

	store.confirmErrs["w1"] = errors.New("throughput exceeded")

	promoted, err := roster.Promote(context.Background(), "m1")
	require.NoError(t, err)

	// The failed candidate is left waitlisted for the next event to retry.
	assert.Equal(t, []string{"w2"}, promoted)
	assert.True(t, store.rsvp("m1", "w1").IsWaitlisted)
}

func TestHandleRSVPEventPromotesAndNotifies(t *testing.T) {
	store, client, roster := newRosterHarness()
	store.addMatch(models.Match{MatchID: "m1", MaxPlayers: 1, Status: models.MatchStatusScheduled, CreatedBy: "host"})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "second", Status: models.RSVPStatusYes, IsWaitlisted: true, UpdatedAt: "2026-08-01T11:00:00Z"})
	store.addProfile(models.UserProfile{UserID: "second", FullName: "Sam", PushTokens: []string{"tok-second"}})

	// First user dropped out; their write triggers the event.
	first := models.RSVP{MatchID: "m1", UserID: "first", Status: models.RSVPStatusNo, UpdatedAt: "2026-08-01T12:00:00Z"}
	store.addRSVP(first)
	roster.HandleRSVPEvent(context.Background(), &models.RSVPEvent{Kind: models.RSVPEventUpdated, After: &first})

	assert.False(t, store.rsvp("m1", "second").IsWaitlisted)
	match := store.match("m1")
	assert.Equal(t, 1, match.ConfirmedYesCount)
	assert.Equal(t, 0, match.WaitlistCount)
	assert.Equal(t, []string{"tok-second"}, client.sentTokens())
	require.Len(t, client.batches, 1)
	assert.Equal(t, "You're in!", client.batches[0][0].Title)
}

func TestHandleRSVPEventDeletedUsesBeforeSnapshot(t *testing.T) {
	store, _, roster := newRosterHarness()
	store.addMatch(models.Match{MatchID: "m1", MaxPlayers: 5, Status: models.MatchStatusScheduled})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "a", Status: models.RSVPStatusYes})

	before := models.RSVP{MatchID: "m1", UserID: "gone", Status: models.RSVPStatusYes}
	roster.HandleRSVPEvent(context.Background(), &models.RSVPEvent{Kind: models.RSVPEventDeleted, Before: &before})

	match := store.match("m1")
	assert.Equal(t, 1, match.ConfirmedYesCount)
}

func TestHandleRSVPEventWithoutMatchID(t *testing.T) {
	_, client, roster := newRosterHarness()
	roster.HandleRSVPEvent(context.Background(), &models.RSVPEvent{Kind: models.RSVPEventCreated})
	roster.HandleRSVPEvent(context.Background(), nil)
	assert.Zero(t, client.batchCount())
}

func TestSetRSVPWaitlistsWhenFull(t *testing.T) {
	store, _, roster := newRosterHarness()
	store.addMatch(models.Match{MatchID: "m1", MaxPlayers: 1, Status: models.MatchStatusScheduled})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "first", Status: models.RSVPStatusYes})

	err := roster.SetRSVP(context.Background(), models.RSVP{MatchID: "m1", UserID: "second", Status: models.RSVPStatusYes})
	require.NoError(t, err)

	assert.True(t, store.rsvp("m1", "second").IsWaitlisted)
	match := store.match("m1")
	assert.Equal(t, 1, match.ConfirmedYesCount)
	assert.Equal(t, 1, match.WaitlistCount)
}

func TestSetRSVPConfirmsWhenSlotOpen(t *testing.T) {
	store, _, roster := newRosterHarness()
	store.addMatch(models.Match{MatchID: "m1", MaxPlayers: 2, Status: models.MatchStatusScheduled})

	err := roster.SetRSVP(context.Background(), models.RSVP{MatchID: "m1", UserID: "a", Status: models.RSVPStatusYes})
	require.NoError(t, err)

	rsvp := store.rsvp("m1", "a")
	assert.True(t, rsvp.IsConfirmed())
	assert.NotEmpty(t, rsvp.UpdatedAt)
}

func TestSetRSVPNeverWaitlistsNonYes(t *testing.T) {
	store, _, roster := newRosterHarness()
	store.addMatch(models.Match{MatchID: "m1", MaxPlayers: 1, Status: models.MatchStatusScheduled})
	store.addRSVP(models.RSVP{MatchID: "m1", UserID: "first", Status: models.RSVPStatusYes})

	err := roster.SetRSVP(context.Background(), models.RSVP{MatchID: "m1", UserID: "b", Status: models.RSVPStatusMaybe, IsWaitlisted: true})
	require.NoError(t, err)

	rsvp := store.rsvp("m1", "b")
	assert.Equal(t, models.RSVPStatusMaybe, rsvp.Status)
	assert.False(t, rsvp.IsWaitlisted)
}
