package enums

import "fmt"

// ParticipantRole identifies which side of a chat conversation authored a
// message. The storefront and admin views share this one enum.
type ParticipantRole string

const (
	ParticipantUser  ParticipantRole = "user"
	ParticipantAdmin ParticipantRole = "admin"
)

var validParticipantRoles = []ParticipantRole{
	ParticipantUser,
	ParticipantAdmin,
}

// IsValid reports whether the value matches the canonical participant enum.
func (p ParticipantRole) IsValid() bool {
	for _, candidate := range validParticipantRoles {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseParticipantRole converts the raw string to ParticipantRole. The legacy
// "client" spelling used by the old admin console maps to ParticipantUser.
func ParseParticipantRole(value string) (ParticipantRole, error) {
	if value == "client" {
		return ParticipantUser, nil
	}
	for _, candidate := range validParticipantRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid participant role %q", value)
}

// Counterpart returns the opposite side of the conversation.
func (p ParticipantRole) Counterpart() ParticipantRole {
	if p == ParticipantAdmin {
		return ParticipantUser
	}
	return ParticipantAdmin
}
