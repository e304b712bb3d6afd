package chat

import (
	"strings"
	"time"

	"github.com/otesta/otesta-backend/pkg/enums"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

// MaxMessageLength bounds a chat message after trimming.
const MaxMessageLength = 500

// Message is one chat entry. Top-level messages may carry a flat list of
// replies; replies never nest further.
type Message struct {
	ID          string                `json:"id"`
	Sender      enums.ParticipantRole `json:"sender"`
	SenderEmail string                `json:"sender_email,omitempty"`
	SenderName  string                `json:"sender_name,omitempty"`
	Text        string                `json:"text"`
	Timestamp   time.Time             `json:"timestamp"`
	IsRead      bool                  `json:"is_read"`
	Replies     []Message             `json:"replies,omitempty"`

	ProductRef *ProductRef `json:"product_reference,omitempty"`
}

// ProductRef points a message at a catalog product.
type ProductRef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Price    string `json:"price"`
}

// ValidateMessageText enforces the 1..MaxMessageLength bound on the trimmed
// text. Validation looks at the trimmed length but the stored text keeps its
// original whitespace.
func ValidateMessageText(text string, maxLength int) error {
	if maxLength <= 0 {
		maxLength = MaxMessageLength
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message must not be empty")
	}
	if len([]rune(trimmed)) > maxLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "message exceeds maximum length")
	}
	return nil
}

// ReplyCount returns the number of direct replies of the message.
func ReplyCount(msg *Message) int {
	if msg == nil {
		return 0
	}
	return len(msg.Replies)
}

// AppendReply returns a copy of the thread root with the reply appended.
func AppendReply(root Message, reply Message) Message {
	root.Replies = append(append([]Message(nil), root.Replies...), reply)
	return root
}

// CountTotal counts roots plus their replies.
func CountTotal(messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += 1 + len(msg.Replies)
	}
	return total
}

// FilterBySender returns the roots written by the given participant.
func FilterBySender(messages []Message, sender enums.ParticipantRole) []Message {
	out := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Sender == sender {
			out = append(out, msg)
		}
	}
	return out
}

// LastMessage returns the most recent entry across roots and replies, or nil
// for an empty list. On equal timestamps the earlier entry in scan order
// wins.
func LastMessage(messages []Message) *Message {
	var last *Message
	consider := func(candidate *Message) {
		if last == nil || candidate.Timestamp.After(last.Timestamp) {
			last = candidate
		}
	}
	for i := range messages {
		consider(&messages[i])
		for j := range messages[i].Replies {
			consider(&messages[i].Replies[j])
		}
	}
	if last == nil {
		return nil
	}
	copied := *last
	return &copied
}
