package services

import (
	"context"
	"fmt"
	"sync"

	"matchday_server/models"
)

// fakeStore is an in-memory stand-in for DynamoStore with the same
// conditional-write semantics. Guarded by a mutex so tests can hit it from
// concurrent goroutines.
type fakeStore struct {
	mu       sync.Mutex
	matches  map[string]*models.Match
	rsvps    map[string]map[string]*models.RSVP
	messages map[string]map[string]*models.ChatMessage
	profiles map[string]*models.UserProfile
	mutes    map[string]bool // userID+"|"+matchID

	confirmErrs       map[string]error // userID -> injected ConfirmWaitlisted error
	sequenceConflicts int              // CommitSequence conflicts to inject before succeeding
	removedTokens     []string         // userID+"|"+token, in removal order
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		matches:     map[string]*models.Match{},
		rsvps:       map[string]map[string]*models.RSVP{},
		messages:    map[string]map[string]*models.ChatMessage{},
		profiles:    map[string]*models.UserProfile{},
		mutes:       map[string]bool{},
		confirmErrs: map[string]error{},
	}
}

func (f *fakeStore) addMatch(match models.Match) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches[match.MatchID] = &match
}

func (f *fakeStore) addRSVP(rsvp models.RSVP) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rsvps[rsvp.MatchID] == nil {
		f.rsvps[rsvp.MatchID] = map[string]*models.RSVP{}
	}
	f.rsvps[rsvp.MatchID][rsvp.UserID] = &rsvp
}

func (f *fakeStore) addMessage(message models.ChatMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.messages[message.MatchID] == nil {
		f.messages[message.MatchID] = map[string]*models.ChatMessage{}
	}
	f.messages[message.MatchID][message.MessageID] = &message
}

func (f *fakeStore) addProfile(profile models.UserProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profile.UserID] = &profile
}

func (f *fakeStore) setMuted(userID, matchID string, muted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutes[userID+"|"+matchID] = muted
}

func (f *fakeStore) rsvp(matchID, userID string) models.RSVP {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rsvps[matchID][userID]
}

func (f *fakeStore) match(matchID string) models.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.matches[matchID]
}

func (f *fakeStore) message(matchID, messageID string) models.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.messages[matchID][messageID]
}

func (f *fakeStore) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	match, ok := f.matches[matchID]
	if !ok {
		return nil, nil
	}
	copied := *match
	return &copied, nil
}

func (f *fakeStore) ListRSVPs(ctx context.Context, matchID string) ([]models.RSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RSVP
	for _, rsvp := range f.rsvps[matchID] {
		out = append(out, *rsvp)
	}
	return out, nil
}

func (f *fakeStore) PutRSVP(ctx context.Context, rsvp models.RSVP) error {
	f.addRSVP(rsvp)
	return nil
}

func (f *fakeStore) ConfirmWaitlisted(ctx context.Context, matchID, userID, updatedAt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.confirmErrs[userID]; ok {
		return err
	}
	rsvp, ok := f.rsvps[matchID][userID]
	if !ok || !rsvp.IsOnWaitlist() {
		return ErrConditionFailed
	}
	rsvp.IsWaitlisted = false
	rsvp.UpdatedAt = updatedAt
	return nil
}

func (f *fakeStore) UpdateMatchCounts(ctx context.Context, matchID string, confirmed, waitlisted int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	match, ok := f.matches[matchID]
	if !ok {
		return fmt.Errorf("match %s not found", matchID)
	}
	match.ConfirmedYesCount = confirmed
	match.WaitlistCount = waitlisted
	return nil
}

func (f *fakeStore) GetMessage(ctx context.Context, matchID, messageID string) (*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[matchID][messageID]
	if !ok {
		return nil, nil
	}
	copied := *message
	return &copied, nil
}

func (f *fakeStore) PutMessage(ctx context.Context, message models.ChatMessage) error {
	f.addMessage(message)
	return nil
}

func (f *fakeStore) ListMessages(ctx context.Context, matchID string, limit int) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChatMessage
	for _, message := range f.messages[matchID] {
		if len(out) >= limit {
			break
		}
		out = append(out, *message)
	}
	return out, nil
}

func (f *fakeStore) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, nil
	}
	copied := *profile
	return &copied, nil
}

func (f *fakeStore) CommitSequence(ctx context.Context, matchID, messageID string, readSeq, seq int64, preview MessagePreview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sequenceConflicts > 0 {
		f.sequenceConflicts--
		return ErrTransactionConflict
	}
	message, ok := f.messages[matchID][messageID]
	if !ok {
		return ErrTransactionConflict
	}
	match, ok := f.matches[matchID]
	if !ok {
		return ErrTransactionConflict
	}
	if message.Seq != 0 && message.Seq != seq {
		return ErrTransactionConflict
	}
	if match.LastMessageSeq != readSeq {
		return ErrTransactionConflict
	}
	message.Seq = seq
	match.LastMessageSeq = seq
	match.LastMessageAt = preview.At
	match.LastMessageText = preview.Text
	match.LastMessageSenderID = preview.SenderID
	match.LastMessageSenderName = preview.SenderName
	return nil
}

func (f *fakeStore) ClaimNotification(ctx context.Context, matchID, messageID, claimedAt string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[matchID][messageID]
	if !ok {
		return false, fmt.Errorf("message %s/%s not found", matchID, messageID)
	}
	if message.NotifyClaimedAt != "" || message.NotifiedAt != "" {
		return false, nil
	}
	message.NotifyClaimedAt = claimedAt
	return true, nil
}

func (f *fakeStore) MarkNotified(ctx context.Context, matchID, messageID, notifiedAt string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[matchID][messageID]
	if !ok {
		return fmt.Errorf("message %s/%s not found", matchID, messageID)
	}
	message.NotifiedAt = notifiedAt
	return nil
}

func (f *fakeStore) GetMutePreferences(ctx context.Context, matchID string, userIDs []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]bool{}
	for _, userID := range userIDs {
		if muted, ok := f.mutes[userID+"|"+matchID]; ok {
			out[userID] = muted
		}
	}
	return out, nil
}

func (f *fakeStore) GetPushProfiles(ctx context.Context, userIDs []string) ([]models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.UserProfile
	for _, userID := range userIDs {
		if profile, ok := f.profiles[userID]; ok {
			out = append(out, *profile)
		}
	}
	return out, nil
}

func (f *fakeStore) RemovePushToken(ctx context.Context, userID, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removedTokens = append(f.removedTokens, userID+"|"+token)
	profile, ok := f.profiles[userID]
	if !ok {
		return nil
	}
	var kept []string
	for _, t := range profile.PushTokens {
		if t != token {
			kept = append(kept, t)
		}
	}
	profile.PushTokens = kept
	if profile.LegacyPushToken == token {
		profile.LegacyPushToken = ""
	}
	return nil
}

// fakePushClient records batches and answers with configurable tickets.
type fakePushClient struct {
	mu       sync.Mutex
	batches  [][]PushMessage
	tickets  func(batch []PushMessage) []PushTicket
	receipts map[string]PushReceipt
	sendErr  error
}

func (c *fakePushClient) SendBatch(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := make([]PushMessage, len(messages))
	copy(batch, messages)
	c.batches = append(c.batches, batch)
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	if c.tickets != nil {
		return c.tickets(batch), nil
	}
	tickets := make([]PushTicket, len(batch))
	for i := range tickets {
		tickets[i] = PushTicket{Status: PushStatusOK}
	}
	return tickets, nil
}

func (c *fakePushClient) CheckReceipts(ctx context.Context, ids []string) (map[string]PushReceipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[string]PushReceipt{}
	for _, id := range ids {
		if receipt, ok := c.receipts[id]; ok {
			out[id] = receipt
		}
	}
	return out, nil
}

func (c *fakePushClient) sentTokens() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var tokens []string
	for _, batch := range c.batches {
		for _, message := range batch {
			tokens = append(tokens, message.To)
		}
	}
	return tokens
}

func (c *fakePushClient) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}
