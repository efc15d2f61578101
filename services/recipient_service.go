package services

import (
	"context"

	"matchday_server/models"
)

// RecipientStore is the data access the recipient resolver needs.
type RecipientStore interface {
	GetMutePreferences(ctx context.Context, matchID string, userIDs []string) (map[string]bool, error)
	GetPushProfiles(ctx context.Context, userIDs []string) ([]models.UserProfile, error)
}

// PushRecipient is one deliverable (token, owning user) pair.
type PushRecipient struct {
	Token  string
	UserID string
}

// RecipientService computes the exact delivery audience for a notification.
// It is read-only: it never mutates mute or token state.
type RecipientService struct {
	Store RecipientStore
}

// Resolve turns a candidate user set into a deduplicated list of delivery
// tokens. The sender is dropped, muted users are dropped, and a token
// registered to several user records is suppressed if any of its owners
// muted the match. That last rule closes a leak on shared devices: without
// it a muted user would still get the push through the co-owner's copy of
// the token.
func (s *RecipientService) Resolve(ctx context.Context, matchID, senderID string, candidates []string) ([]PushRecipient, error) {
	seen := make(map[string]struct{}, len(candidates))
	userIDs := make([]string, 0, len(candidates))
	for _, userID := range candidates {
		if userID == "" || userID == senderID {
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		userIDs = append(userIDs, userID)
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	muted, err := s.Store.GetMutePreferences(ctx, matchID, userIDs)
	if err != nil {
		return nil, err
	}

	profiles, err := s.Store.GetPushProfiles(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	// Tokens and users are many-to-many: the same token can sit on several
	// user records (shared or handed-down devices).
	tokenOwners := make(map[string][]string)
	for i := range profiles {
		for _, token := range profiles[i].AllPushTokens() {
			tokenOwners[token] = append(tokenOwners[token], profiles[i].UserID)
		}
	}

	var recipients []PushRecipient
	sentTokens := make(map[string]struct{})
	for i := range profiles {
		profile := &profiles[i]
		if muted[profile.UserID] {
			continue
		}
		for _, token := range profile.AllPushTokens() {
			if _, ok := sentTokens[token]; ok {
				continue
			}
			if anyOwnerMuted(tokenOwners[token], muted) {
				continue
			}
			sentTokens[token] = struct{}{}
			recipients = append(recipients, PushRecipient{Token: token, UserID: profile.UserID})
		}
	}

	return recipients, nil
}

func anyOwnerMuted(owners []string, muted map[string]bool) bool {
	for _, owner := range owners {
		if muted[owner] {
			return true
		}
	}
	return false
}
