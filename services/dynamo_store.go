package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"matchday_server/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MessagePreview is the slice of a chat message written onto its match as
// the last-message preview.
type MessagePreview struct {
	At         string
	Text       string
	SenderID   string
	SenderName string
}

// DynamoStore is the DynamoDB-backed implementation of the typed store
// interfaces the roster, chat, recipient and push services depend on.
type DynamoStore struct {
	Dynamo *DynamoService
}

func NewDynamoStore(dynamo *DynamoService) *DynamoStore {
	return &DynamoStore{Dynamo: dynamo}
}

func matchKey(matchID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"matchId": &types.AttributeValueMemberS{Value: matchID},
	}
}

func messageKey(matchID, messageID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"matchId":   &types.AttributeValueMemberS{Value: matchID},
		"messageId": &types.AttributeValueMemberS{Value: messageID},
	}
}

// GetMatch loads a match, returning nil without error when it does not exist.
func (s *DynamoStore) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	item, err := s.Dynamo.GetItem(ctx, models.MatchesTable, matchKey(matchID))
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}

	var match models.Match
	if err := attributevalue.UnmarshalMap(item, &match); err != nil {
		return nil, fmt.Errorf("failed to parse match %s: %w", matchID, err)
	}
	return &match, nil
}

// ListRSVPs returns every RSVP record for a match.
func (s *DynamoStore) ListRSVPs(ctx context.Context, matchID string) ([]models.RSVP, error) {
	keyCondition := "#matchId = :matchId"
	expressionValues := map[string]types.AttributeValue{
		":matchId": &types.AttributeValueMemberS{Value: matchID},
	}
	expressionNames := map[string]string{
		"#matchId": "matchId",
	}

	items, err := s.Dynamo.QueryItems(ctx, models.RSVPsTable, keyCondition, expressionValues, expressionNames, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch RSVPs for match %s: %w", matchID, err)
	}

	var rsvps []models.RSVP
	if err := attributevalue.UnmarshalListOfMaps(items, &rsvps); err != nil {
		return nil, fmt.Errorf("failed to parse RSVPs for match %s: %w", matchID, err)
	}
	return rsvps, nil
}

// PutRSVP creates or overwrites the RSVP for a (match, user) pair. The table
// key is the pair itself, so repeated RSVPs from the same user replace the
// earlier record.
func (s *DynamoStore) PutRSVP(ctx context.Context, rsvp models.RSVP) error {
	if err := s.Dynamo.PutItem(ctx, models.RSVPsTable, rsvp); err != nil {
		return fmt.Errorf("failed to store RSVP for match %s user %s: %w", rsvp.MatchID, rsvp.UserID, err)
	}
	return nil
}

// ConfirmWaitlisted flips a single RSVP from waitlisted to confirmed. The
// flip is guarded by a condition re-checking that the RSVP is still a
// waitlisted "yes", so a concurrent promotion or a user who already left
// surfaces as ErrConditionFailed instead of a double promotion.
func (s *DynamoStore) ConfirmWaitlisted(ctx context.Context, matchID, userID, updatedAt string) error {
	key := map[string]types.AttributeValue{
		"matchId": &types.AttributeValueMemberS{Value: matchID},
		"userId":  &types.AttributeValueMemberS{Value: userID},
	}

	updateExpression := "SET isWaitlisted = :false, updatedAt = :now"
	conditionExpression := "isWaitlisted = :true AND #status = :yes"
	expressionValues := map[string]types.AttributeValue{
		":false": &types.AttributeValueMemberBOOL{Value: false},
		":true":  &types.AttributeValueMemberBOOL{Value: true},
		":yes":   &types.AttributeValueMemberS{Value: models.RSVPStatusYes},
		":now":   &types.AttributeValueMemberS{Value: updatedAt},
	}
	expressionNames := map[string]string{
		"#status": "status",
	}

	return s.Dynamo.UpdateItemWithCondition(ctx, models.RSVPsTable, updateExpression, conditionExpression, key, expressionValues, expressionNames)
}

// UpdateMatchCounts overwrites the derived roster counters on a match.
func (s *DynamoStore) UpdateMatchCounts(ctx context.Context, matchID string, confirmed, waitlisted int) error {
	updateExpression := "SET confirmedYesCount = :confirmed, waitlistCount = :waitlisted"
	expressionValues := map[string]types.AttributeValue{
		":confirmed":  &types.AttributeValueMemberN{Value: strconv.Itoa(confirmed)},
		":waitlisted": &types.AttributeValueMemberN{Value: strconv.Itoa(waitlisted)},
	}

	if _, err := s.Dynamo.UpdateItem(ctx, models.MatchesTable, updateExpression, matchKey(matchID), expressionValues, nil); err != nil {
		return fmt.Errorf("failed to update counts for match %s: %w", matchID, err)
	}
	return nil
}

// GetMessage loads a chat message, returning nil without error when absent.
func (s *DynamoStore) GetMessage(ctx context.Context, matchID, messageID string) (*models.ChatMessage, error) {
	item, err := s.Dynamo.GetItem(ctx, models.ChatMessagesTable, messageKey(matchID, messageID))
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load message %s/%s: %w", matchID, messageID, err)
	}

	var message models.ChatMessage
	if err := attributevalue.UnmarshalMap(item, &message); err != nil {
		return nil, fmt.Errorf("failed to parse message %s/%s: %w", matchID, messageID, err)
	}
	return &message, nil
}

// PutMessage stores a new chat message.
func (s *DynamoStore) PutMessage(ctx context.Context, message models.ChatMessage) error {
	if err := s.Dynamo.PutItem(ctx, models.ChatMessagesTable, message); err != nil {
		return fmt.Errorf("failed to store message %s/%s: %w", message.MatchID, message.MessageID, err)
	}
	return nil
}

// ListMessages returns up to limit chat messages for a match. Ordering is
// left to the caller; the table sort key is the message id, not the seq.
func (s *DynamoStore) ListMessages(ctx context.Context, matchID string, limit int) ([]models.ChatMessage, error) {
	keyCondition := "#matchId = :matchId"
	expressionValues := map[string]types.AttributeValue{
		":matchId": &types.AttributeValueMemberS{Value: matchID},
	}
	expressionNames := map[string]string{
		"#matchId": "matchId",
	}

	items, err := s.Dynamo.QueryItems(ctx, models.ChatMessagesTable, keyCondition, expressionValues, expressionNames, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages for match %s: %w", matchID, err)
	}

	var messages []models.ChatMessage
	if err := attributevalue.UnmarshalListOfMaps(items, &messages); err != nil {
		return nil, fmt.Errorf("failed to parse messages for match %s: %w", matchID, err)
	}
	return messages, nil
}

// CommitSequence assigns seq to a message and advances the match preview in
// one write transaction. The message write tolerates a retry that already
// assigned the same seq; the match write is conditioned on the
// lastMessageSeq value the caller read, so two concurrent assignments can
// never both commit. A cancelled transaction surfaces as
// ErrTransactionConflict and the caller re-reads and retries.
func (s *DynamoStore) CommitSequence(ctx context.Context, matchID, messageID string, readSeq, seq int64, preview MessagePreview) error {
	seqValue := &types.AttributeValueMemberN{Value: strconv.FormatInt(seq, 10)}

	messageUpdate := "SET seq = :seq"
	messageCondition := "attribute_not_exists(seq) OR seq = :seq"

	matchUpdate := "SET lastMessageSeq = :seq, lastMessageAt = :at, lastMessageText = :text, lastMessageSenderId = :senderId, lastMessageSenderName = :senderName"
	matchCondition := "lastMessageSeq = :readSeq"
	if readSeq == 0 {
		matchCondition = "attribute_not_exists(lastMessageSeq) OR lastMessageSeq = :readSeq"
	}

	items := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName:           aws.String(models.ChatMessagesTable),
				Key:                 messageKey(matchID, messageID),
				UpdateExpression:    &messageUpdate,
				ConditionExpression: &messageCondition,
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":seq": seqValue,
				},
			},
		},
		{
			Update: &types.Update{
				TableName:           aws.String(models.MatchesTable),
				Key:                 matchKey(matchID),
				UpdateExpression:    &matchUpdate,
				ConditionExpression: &matchCondition,
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":seq":        seqValue,
					":readSeq":    &types.AttributeValueMemberN{Value: strconv.FormatInt(readSeq, 10)},
					":at":         &types.AttributeValueMemberS{Value: preview.At},
					":text":       &types.AttributeValueMemberS{Value: preview.Text},
					":senderId":   &types.AttributeValueMemberS{Value: preview.SenderID},
					":senderName": &types.AttributeValueMemberS{Value: preview.SenderName},
				},
			},
		},
	}

	return s.Dynamo.TransactWriteItems(ctx, items)
}

// ClaimNotification atomically claims the notification fan-out for a
// message. Returns true when this caller won the claim, false when a prior
// delivery of the same event already claimed or completed it.
func (s *DynamoStore) ClaimNotification(ctx context.Context, matchID, messageID, claimedAt string) (bool, error) {
	updateExpression := "SET notifyClaimedAt = :now"
	conditionExpression := "attribute_not_exists(notifyClaimedAt) AND attribute_not_exists(notifiedAt)"
	expressionValues := map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberS{Value: claimedAt},
	}

	err := s.Dynamo.UpdateItemWithCondition(ctx, models.ChatMessagesTable, updateExpression, conditionExpression, messageKey(matchID, messageID), expressionValues, nil)
	if err != nil {
		if errors.Is(err, ErrConditionFailed) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim notification for message %s/%s: %w", matchID, messageID, err)
	}
	return true, nil
}

// MarkNotified records that the fan-out for a message finished.
func (s *DynamoStore) MarkNotified(ctx context.Context, matchID, messageID, notifiedAt string) error {
	updateExpression := "SET notifiedAt = :now"
	expressionValues := map[string]types.AttributeValue{
		":now": &types.AttributeValueMemberS{Value: notifiedAt},
	}

	if _, err := s.Dynamo.UpdateItem(ctx, models.ChatMessagesTable, updateExpression, messageKey(matchID, messageID), expressionValues, nil); err != nil {
		return fmt.Errorf("failed to mark message %s/%s notified: %w", matchID, messageID, err)
	}
	return nil
}

// GetUserProfile loads a user profile, returning nil without error when absent.
func (s *DynamoStore) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	key := map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}

	item, err := s.Dynamo.GetItem(ctx, models.UserProfilesTable, key)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load profile %s: %w", userID, err)
	}

	var profile models.UserProfile
	if err := attributevalue.UnmarshalMap(item, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", userID, err)
	}
	return &profile, nil
}

// GetMutePreferences batch-loads the mute flags a set of users hold for one
// match. Users without a preference record are simply absent from the map.
func (s *DynamoStore) GetMutePreferences(ctx context.Context, matchID string, userIDs []string) (map[string]bool, error) {
	if len(userIDs) == 0 {
		return map[string]bool{}, nil
	}

	keys := make([]map[string]types.AttributeValue, 0, len(userIDs))
	for _, userID := range userIDs {
		keys = append(keys, map[string]types.AttributeValue{
			"userId":  &types.AttributeValueMemberS{Value: userID},
			"matchId": &types.AttributeValueMemberS{Value: matchID},
		})
	}

	items, err := s.Dynamo.BatchGetItems(ctx, models.ChatMutePreferencesTable, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mute preferences for match %s: %w", matchID, err)
	}

	var prefs []models.ChatMutePreference
	if err := attributevalue.UnmarshalListOfMaps(items, &prefs); err != nil {
		return nil, fmt.Errorf("failed to parse mute preferences for match %s: %w", matchID, err)
	}

	muted := make(map[string]bool, len(prefs))
	for _, pref := range prefs {
		muted[pref.UserID] = pref.Muted
	}
	return muted, nil
}

// GetPushProfiles batch-loads user profiles for recipient resolution.
// Unknown users are skipped, not errors.
func (s *DynamoStore) GetPushProfiles(ctx context.Context, userIDs []string) ([]models.UserProfile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	keys := make([]map[string]types.AttributeValue, 0, len(userIDs))
	for _, userID := range userIDs {
		keys = append(keys, map[string]types.AttributeValue{
			"userId": &types.AttributeValueMemberS{Value: userID},
		})
	}

	items, err := s.Dynamo.BatchGetItems(ctx, models.UserProfilesTable, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch push profiles: %w", err)
	}

	var profiles []models.UserProfile
	if err := attributevalue.UnmarshalListOfMaps(items, &profiles); err != nil {
		return nil, fmt.Errorf("failed to parse push profiles: %w", err)
	}
	return profiles, nil
}

// RemovePushToken removes a dead delivery token from a user's token set and
// clears the legacy single-token field when it held the same token. Both
// writes are idempotent, so concurrent cleanup of the same token is safe.
func (s *DynamoStore) RemovePushToken(ctx context.Context, userID, token string) error {
	key := map[string]types.AttributeValue{
		"userId": &types.AttributeValueMemberS{Value: userID},
	}

	updateExpression := "DELETE pushTokens :token"
	expressionValues := map[string]types.AttributeValue{
		":token": &types.AttributeValueMemberSS{Value: []string{token}},
	}
	if _, err := s.Dynamo.UpdateItem(ctx, models.UserProfilesTable, updateExpression, key, expressionValues, nil); err != nil {
		return fmt.Errorf("failed to remove push token for user %s: %w", userID, err)
	}

	legacyUpdate := "REMOVE legacyPushToken"
	legacyCondition := "legacyPushToken = :token"
	legacyValues := map[string]types.AttributeValue{
		":token": &types.AttributeValueMemberS{Value: token},
	}
	err := s.Dynamo.UpdateItemWithCondition(ctx, models.UserProfilesTable, legacyUpdate, legacyCondition, key, legacyValues, nil)
	if err != nil && !errors.Is(err, ErrConditionFailed) {
		return fmt.Errorf("failed to clear legacy push token for user %s: %w", userID, err)
	}
	return nil
}
