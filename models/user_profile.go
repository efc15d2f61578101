package models

// UserProfile defines the structure for user profiles. PushTokens holds the
// delivery tokens for the user's devices; LegacyPushToken predates the set
// and is kept in sync by token cleanup until every client has migrated.
type UserProfile struct {
	UserID          string   `dynamodbav:"userId" json:"userId"`
	FullName        string   `dynamodbav:"fullName,omitempty" json:"fullName,omitempty"`
	EmailID         string   `dynamodbav:"emailId,omitempty" json:"emailId,omitempty"`
	PushTokens      []string `dynamodbav:"pushTokens,stringset,omitempty" json:"pushTokens,omitempty"`
	LegacyPushToken string   `dynamodbav:"legacyPushToken,omitempty" json:"legacyPushToken,omitempty"`
}

// AllPushTokens returns every delivery token on the profile, including the
// legacy single-token field when it is not already in the set.
func (p *UserProfile) AllPushTokens() []string {
	tokens := make([]string, 0, len(p.PushTokens)+1)
	seen := make(map[string]struct{}, len(p.PushTokens)+1)
	for _, t := range p.PushTokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tokens = append(tokens, t)
	}
	if p.LegacyPushToken != "" {
		if _, ok := seen[p.LegacyPushToken]; !ok {
			tokens = append(tokens, p.LegacyPushToken)
		}
	}
	return tokens
}

// UserProfilesTable is the DynamoDB table name for user profiles
const UserProfilesTable = "UserProfiles"
