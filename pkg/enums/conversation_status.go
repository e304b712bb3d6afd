package enums

import "fmt"

// ConversationStatus marks whether a chat conversation accepts new messages.
type ConversationStatus string

const (
	ConversationStatusActive ConversationStatus = "active"
	ConversationStatusClosed ConversationStatus = "closed"
)

var validConversationStatuses = []ConversationStatus{
	ConversationStatusActive,
	ConversationStatusClosed,
}

// IsValid reports whether the value matches the canonical conversation status enum.
func (c ConversationStatus) IsValid() bool {
	for _, candidate := range validConversationStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseConversationStatus converts the raw string to ConversationStatus.
func ParseConversationStatus(value string) (ConversationStatus, error) {
	for _, candidate := range validConversationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid conversation status %q", value)
}
