package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"matchday_server/models"
)

// maxSequenceAttempts bounds the optimistic read-commit loop for sequence
// assignment. Each retry re-reads current state, so losing a race costs one
// round trip, not correctness.
const maxSequenceAttempts = 5

// ChatStore is the data access the chat service needs.
type ChatStore interface {
	GetMatch(ctx context.Context, matchID string) (*models.Match, error)
	GetMessage(ctx context.Context, matchID, messageID string) (*models.ChatMessage, error)
	PutMessage(ctx context.Context, message models.ChatMessage) error
	ListMessages(ctx context.Context, matchID string, limit int) ([]models.ChatMessage, error)
	ListRSVPs(ctx context.Context, matchID string) ([]models.RSVP, error)
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	CommitSequence(ctx context.Context, matchID, messageID string, readSeq, seq int64, preview MessagePreview) error
	ClaimNotification(ctx context.Context, matchID, messageID, claimedAt string) (bool, error)
	MarkNotified(ctx context.Context, matchID, messageID, notifiedAt string) error
}

// ChatService assigns per-match sequence numbers to chat messages, maintains
// the match-level last-message preview, and fans out the chat notification
// at most once per message.
type ChatService struct {
	Store      ChatStore
	Recipients *RecipientService
	Push       *PushService
}

// HandleMessageCreate processes one message-created event. Sequencing and
// the preview write are idempotent, and the fan-out is gated by a persisted
// claim, so redelivering the same event any number of times sends at most
// one round of pushes. Errors are logged and swallowed: the event source
// redelivers, and every step picks up from persisted state.
func (s *ChatService) HandleMessageCreate(ctx context.Context, event *models.ChatMessageEvent) {
	if event == nil || event.Message == nil {
		return
	}
	snapshot := event.Message
	if snapshot.MatchID == "" || snapshot.SenderID == "" || strings.TrimSpace(snapshot.Text) == "" {
		log.Printf("Ignoring chat event with missing matchId, senderId or text (messageId=%s)", snapshot.MessageID)
		return
	}

	message, match, err := s.sequenceMessage(ctx, snapshot.MatchID, snapshot.MessageID)
	if err != nil {
		log.Printf("Sequencing failed for message %s/%s: %v", snapshot.MatchID, snapshot.MessageID, err)
		return
	}
	if message == nil || match == nil {
		// Message or match gone; nothing to notify about.
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	claimed, err := s.Store.ClaimNotification(ctx, message.MatchID, message.MessageID, now)
	if err != nil {
		log.Printf("Notification claim failed for message %s/%s: %v", message.MatchID, message.MessageID, err)
		return
	}
	if !claimed {
		log.Printf("Notification for message %s/%s already claimed", message.MatchID, message.MessageID)
		return
	}

	s.fanOut(ctx, match, message)
}

// SendMessage stores a new chat message and runs the same sequencing and
// notification pass a storage-level event for the write would trigger.
func (s *ChatService) SendMessage(ctx context.Context, message models.ChatMessage) error {
	if err := s.Store.PutMessage(ctx, message); err != nil {
		return err
	}
	s.HandleMessageCreate(ctx, &models.ChatMessageEvent{Message: &message})
	return nil
}

// GetMessagesByMatchID fetches messages for a match in sequence order.
func (s *ChatService) GetMessagesByMatchID(ctx context.Context, matchID string, limit int) ([]models.ChatMessage, error) {
	messages, err := s.Store.ListMessages(ctx, matchID, limit)
	if err != nil {
		return nil, err
	}

	// Unsequenced messages sort after everything else, newest last.
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].Seq != messages[j].Seq {
			if messages[i].Seq == 0 || messages[j].Seq == 0 {
				return messages[j].Seq == 0
			}
			return messages[i].Seq < messages[j].Seq
		}
		return messages[i].CreatedAt < messages[j].CreatedAt
	})
	return messages, nil
}

// sequenceMessage settles the message's seq and the match preview. It
// re-reads both records on every attempt: a message that already carries a
// seq keeps it (a prior run got that far), otherwise the next number after
// the match's lastMessageSeq is taken. The commit is transactional and
// conditioned on the lastMessageSeq that was read, so of two concurrent
// assignments exactly one wins; the loser re-reads and takes the next
// number. The preview is only ever advanced, never rolled back.
func (s *ChatService) sequenceMessage(ctx context.Context, matchID, messageID string) (*models.ChatMessage, *models.Match, error) {
	for attempt := 0; attempt < maxSequenceAttempts; attempt++ {
		message, err := s.Store.GetMessage(ctx, matchID, messageID)
		if err != nil {
			return nil, nil, err
		}
		if message == nil {
			return nil, nil, nil
		}

		match, err := s.Store.GetMatch(ctx, matchID)
		if err != nil {
			return nil, nil, err
		}
		if match == nil {
			return nil, nil, nil
		}

		if message.Seq != 0 && match.LastMessageSeq >= message.Seq {
			// Already sequenced and the preview has caught up; a redelivery
			// or a later message got here first.
			return message, match, nil
		}

		seq := message.Seq
		if seq == 0 {
			seq = match.LastMessageSeq + 1
		}

		preview := MessagePreview{
			At:         message.CreatedAt,
			Text:       message.PreviewText(),
			SenderID:   message.SenderID,
			SenderName: s.senderName(ctx, message.SenderID),
		}

		err = s.Store.CommitSequence(ctx, matchID, messageID, match.LastMessageSeq, seq, preview)
		if errors.Is(err, ErrTransactionConflict) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		message.Seq = seq
		match.LastMessageSeq = seq
		match.LastMessageAt = preview.At
		match.LastMessageText = preview.Text
		match.LastMessageSenderID = preview.SenderID
		match.LastMessageSenderName = preview.SenderName
		return message, match, nil
	}

	return nil, nil, fmt.Errorf("sequence assignment for message %s/%s did not settle after %d attempts", matchID, messageID, maxSequenceAttempts)
}

func (s *ChatService) senderName(ctx context.Context, senderID string) string {
	profile, err := s.Store.GetUserProfile(ctx, senderID)
	if err != nil {
		log.Printf("Failed to load sender profile %s: %v", senderID, err)
		return ""
	}
	if profile == nil {
		return ""
	}
	return profile.FullName
}

// fanOut notifies the chat audience: every yes/maybe RSVP plus the host,
// minus the sender, filtered through mute preferences by the resolver.
func (s *ChatService) fanOut(ctx context.Context, match *models.Match, message *models.ChatMessage) {
	rsvps, err := s.Store.ListRSVPs(ctx, match.MatchID)
	if err != nil {
		log.Printf("Failed to load chat audience for match %s: %v", match.MatchID, err)
		return
	}

	candidates := make([]string, 0, len(rsvps)+1)
	if match.CreatedBy != "" {
		candidates = append(candidates, match.CreatedBy)
	}
	for i := range rsvps {
		if rsvps[i].Status == models.RSVPStatusYes || rsvps[i].Status == models.RSVPStatusMaybe {
			candidates = append(candidates, rsvps[i].UserID)
		}
	}

	recipients, err := s.Recipients.Resolve(ctx, match.MatchID, message.SenderID, candidates)
	if err != nil {
		log.Printf("Failed to resolve chat recipients for match %s: %v", match.MatchID, err)
		return
	}

	title := match.LastMessageSenderName
	if title == "" {
		title = "New message"
	}
	data := map[string]string{
		"type":      "chat_message",
		"matchId":   message.MatchID,
		"messageId": message.MessageID,
		"seq":       strconv.FormatInt(message.Seq, 10),
	}
	s.Push.Send(ctx, recipients, title, message.PreviewText(), data)

	now := time.Now().UTC().Format(time.RFC3339)
	if err := s.Store.MarkNotified(ctx, message.MatchID, message.MessageID, now); err != nil {
		log.Printf("Failed to mark message %s/%s notified: %v", message.MatchID, message.MessageID, err)
	}
}
