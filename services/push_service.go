package services

import (
	"context"
	"log"
)

// MaxPushBatchSize is the provider's ceiling on items per send call.
const MaxPushBatchSize = 100

// Provider error codes that mean the token will never work again.
const (
	PushErrorDeviceNotRegistered = "DeviceNotRegistered"
	PushErrorInvalidCredentials  = "InvalidCredentials"
)

// PushClient is the boundary to the push delivery provider.
type PushClient interface {
	SendBatch(ctx context.Context, messages []PushMessage) ([]PushTicket, error)
	CheckReceipts(ctx context.Context, ids []string) (map[string]PushReceipt, error)
}

// TokenStore removes delivery tokens the provider reported dead.
type TokenStore interface {
	RemovePushToken(ctx context.Context, userID, token string) error
}

// PushService delivers notification payloads in bounded batches and prunes
// tokens the provider rejects permanently. Every failure is per-item:
// one bad token or one failed batch never stops the rest.
type PushService struct {
	Client PushClient
	Tokens TokenStore
}

// Send fans a notification out to the given recipients. The recipient list
// is expected to be fully deduplicated already. Nothing is returned:
// transient failures are logged and implicitly retried by whatever event
// triggers the next notification, permanent token failures trigger cleanup.
func (s *PushService) Send(ctx context.Context, recipients []PushRecipient, title, body string, data map[string]string) {
	for start := 0; start < len(recipients); start += MaxPushBatchSize {
		end := start + MaxPushBatchSize
		if end > len(recipients) {
			end = len(recipients)
		}
		s.sendBatch(ctx, recipients[start:end], title, body, data)
	}
}

func (s *PushService) sendBatch(ctx context.Context, batch []PushRecipient, title, body string, data map[string]string) {
	messages := make([]PushMessage, 0, len(batch))
	for _, recipient := range batch {
		messages = append(messages, PushMessage{
			To:    recipient.Token,
			Title: title,
			Body:  body,
			Sound: "default",
			Data:  data,
		})
	}

	tickets, err := s.Client.SendBatch(ctx, messages)
	if err != nil {
		log.Printf("Push batch of %d failed: %v", len(messages), err)
		return
	}
	if len(tickets) != len(batch) {
		log.Printf("Push provider returned %d tickets for %d messages, skipping ticket handling", len(tickets), len(batch))
		return
	}

	// Tickets come back in submission order.
	receiptIDs := make(map[string]PushRecipient)
	for i, ticket := range tickets {
		recipient := batch[i]
		switch {
		case ticket.Status == PushStatusOK:
			if ticket.ID != "" {
				receiptIDs[ticket.ID] = recipient
			}
		case ticket.PermanentTokenError():
			s.cleanupToken(ctx, recipient)
		default:
			log.Printf("Transient push failure for token of user %s: %s", recipient.UserID, ticket.Message)
		}
	}

	s.checkReceipts(ctx, receiptIDs)
}

// checkReceipts is best-effort: receipts tell us about failures the provider
// only discovered after accepting the ticket, notably dead tokens.
func (s *PushService) checkReceipts(ctx context.Context, pending map[string]PushRecipient) {
	if len(pending) == 0 {
		return
	}

	ids := make([]string, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}

	receipts, err := s.Client.CheckReceipts(ctx, ids)
	if err != nil {
		log.Printf("Push receipt check failed: %v", err)
		return
	}

	for id, receipt := range receipts {
		recipient, ok := pending[id]
		if !ok {
			continue
		}
		if receipt.PermanentTokenError() {
			s.cleanupToken(ctx, recipient)
		} else if receipt.Status == PushStatusError {
			log.Printf("Push receipt error for user %s: %s", recipient.UserID, receipt.Message)
		}
	}
}

func (s *PushService) cleanupToken(ctx context.Context, recipient PushRecipient) {
	log.Printf("Removing dead push token for user %s", recipient.UserID)
	if err := s.Tokens.RemovePushToken(ctx, recipient.UserID, recipient.Token); err != nil {
		log.Printf("Failed to remove push token for user %s: %v", recipient.UserID, err)
	}
}
