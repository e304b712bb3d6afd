package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/otesta/otesta-backend/pkg/config"
	"github.com/otesta/otesta-backend/pkg/enums"
	"github.com/otesta/otesta-backend/pkg/kv"
	"github.com/otesta/otesta-backend/pkg/logger"
	"github.com/otesta/otesta-backend/pkg/metrics"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

const metricsStore = "chat"

// Conversation groups the thread between one shopper and the support side.
type Conversation struct {
	ID                string                   `json:"id"`
	ClientEmail       string                   `json:"client_email"`
	ClientName        string                   `json:"client_name"`
	Status            enums.ConversationStatus `json:"status"`
	LastMessage       string                   `json:"last_message,omitempty"`
	LastMessageDate   time.Time                `json:"last_message_date,omitempty"`
	UnreadAdminCount  int                      `json:"unread_admin_count"`
	UnreadClientCount int                      `json:"unread_client_count"`
	OrderID           string                   `json:"order_id,omitempty"`
	Messages          []Message                `json:"messages"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

// SendInput carries a new root message or thread reply.
type SendInput struct {
	Sender      enums.ParticipantRole
	SenderEmail string
	SenderName  string
	Text        string
	ThreadID    string
	ProductRef  *ProductRef
}

// Service owns conversations behind the chat slot.
type Service interface {
	List(ctx context.Context) ([]Conversation, error)
	Get(ctx context.Context, id string) (Conversation, error)
	Open(ctx context.Context, clientEmail, clientName string) (Conversation, error)
	Send(ctx context.Context, conversationID string, input SendInput) (Message, error)
	MarkRead(ctx context.Context, conversationID string, reader enums.ParticipantRole) error
	CloseConversation(ctx context.Context, id string) error
	Subscribe(fn func([]Conversation)) (unsubscribe func())
	Shutdown()
}

// TransportFactory builds the transport around the service's reply sink.
type TransportFactory func(sink ReplySink) Transport

// ServiceParams groups dependencies for the chat service.
type ServiceParams struct {
	Store     kv.Store
	Notifier  kv.Notifier
	Logger    *logger.Logger
	Metrics   *metrics.StoreMetrics
	Chat      config.ChatConfig
	Transport TransportFactory
	Now       func() time.Time
}

type service struct {
	store     kv.Store
	slot      *kv.Slot
	logg      *logger.Logger
	metrics   *metrics.StoreMetrics
	cfg       config.ChatConfig
	transport Transport
	now       func() time.Time

	mu            sync.Mutex
	conversations []Conversation
	loaded        bool
}

// NewService builds the chat service. When Transport is nil the simulated
// transport is used.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slot store is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	svc := &service{
		store:   params.Store,
		slot:    kv.NewSlot(params.Store, params.Notifier, kv.SlotConversations),
		logg:    params.Logger,
		metrics: params.Metrics,
		cfg:     params.Chat,
		now:     now,
	}
	factory := params.Transport
	if factory == nil {
		factory = func(sink ReplySink) Transport {
			return NewSimulatedTransport(params.Chat, sink, params.Metrics)
		}
	}
	svc.transport = factory(svc.applyReply)

	svc.slot.WatchExternal(func(payload string) {
		conversations, err := decodeConversations(payload)
		if err != nil {
			return
		}
		svc.mu.Lock()
		svc.conversations = conversations
		svc.loaded = true
		svc.mu.Unlock()
	})
	return svc, nil
}

func (s *service) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	payload, ok, err := s.slot.Load(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "conversations slot unavailable")
	}
	if !ok {
		s.conversations = nil
		s.loaded = true
		return nil
	}
	conversations, decodeErr := decodeConversations(payload)
	if decodeErr != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithSlot(ctx, s.slot.Name()), "discarding unreadable conversations payload")
		}
		conversations = nil
	}
	s.conversations = conversations
	s.loaded = true
	return nil
}

func (s *service) List(ctx context.Context) ([]Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return cloneConversations(s.conversations), nil
}

func (s *service) Get(ctx context.Context, id string) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return Conversation{}, err
	}
	for _, conversation := range s.conversations {
		if conversation.ID == id {
			return conversation, nil
		}
	}
	return Conversation{}, pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found")
}

// Open returns the shopper's active conversation, creating one seeded with
// the welcome message when none exists.
func (s *service) Open(ctx context.Context, clientEmail, clientName string) (Conversation, error) {
	if strings.TrimSpace(clientEmail) == "" {
		return Conversation{}, pkgerrors.New(pkgerrors.CodeValidation, "client email is required")
	}

	var opened Conversation
	err := s.mutate(ctx, "open", func(conversations []Conversation) ([]Conversation, error) {
		for _, conversation := range conversations {
			if conversation.ClientEmail == clientEmail && conversation.Status == enums.ConversationStatusActive {
				opened = conversation
				return conversations, nil
			}
		}
		now := s.now().UTC()
		opened = Conversation{
			ID:          uuid.NewString(),
			ClientEmail: clientEmail,
			ClientName:  clientName,
			Status:      enums.ConversationStatusActive,
			Messages: []Message{{
				ID:        uuid.NewString(),
				Sender:    enums.ParticipantAdmin,
				Text:      "Ciao! Come possiamo aiutarti?",
				Timestamp: now,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		}
		opened.LastMessage = opened.Messages[0].Text
		opened.LastMessageDate = now
		return append(conversations, opened), nil
	})
	if err != nil {
		return Conversation{}, err
	}
	return opened, nil
}

// Send validates and appends the message, then hands it to the transport so
// the counterpart can reply.
func (s *service) Send(ctx context.Context, conversationID string, input SendInput) (Message, error) {
	if err := ValidateMessageText(input.Text, s.cfg.MaxMessageLength); err != nil {
		return Message{}, err
	}
	if !input.Sender.IsValid() {
		return Message{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown sender role")
	}

	msg := Message{
		ID:          uuid.NewString(),
		Sender:      input.Sender,
		SenderEmail: input.SenderEmail,
		SenderName:  input.SenderName,
		Text:        input.Text,
		Timestamp:   s.now().UTC(),
		ProductRef:  input.ProductRef,
	}

	err := s.mutate(ctx, "send", func(conversations []Conversation) ([]Conversation, error) {
		idx, findErr := findConversation(conversations, conversationID)
		if findErr != nil {
			return nil, findErr
		}
		if conversations[idx].Status == enums.ConversationStatusClosed {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "conversation is closed")
		}
		updated, appendErr := appendMessage(conversations[idx], msg, input.ThreadID)
		if appendErr != nil {
			return nil, appendErr
		}
		s.touch(&updated, msg)
		conversations[idx] = updated
		return conversations, nil
	})
	if err != nil {
		return Message{}, err
	}

	s.transport.Deliver(conversationID, input.ThreadID, msg)
	return msg, nil
}

// MarkRead clears the reader's unread counter and flags the counterpart's
// messages as read.
func (s *service) MarkRead(ctx context.Context, conversationID string, reader enums.ParticipantRole) error {
	if !reader.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown reader role")
	}
	return s.mutate(ctx, "mark_read", func(conversations []Conversation) ([]Conversation, error) {
		idx, err := findConversation(conversations, conversationID)
		if err != nil {
			return nil, err
		}
		updated := conversations[idx]
		if reader == enums.ParticipantAdmin {
			updated.UnreadAdminCount = 0
		} else {
			updated.UnreadClientCount = 0
		}
		updated.Messages = cloneMessages(updated.Messages)
		counterpart := reader.Counterpart()
		for i := range updated.Messages {
			if updated.Messages[i].Sender == counterpart {
				updated.Messages[i].IsRead = true
			}
			for j := range updated.Messages[i].Replies {
				if updated.Messages[i].Replies[j].Sender == counterpart {
					updated.Messages[i].Replies[j].IsRead = true
				}
			}
		}
		updated.UpdatedAt = s.now().UTC()
		conversations[idx] = updated
		return conversations, nil
	})
}

func (s *service) CloseConversation(ctx context.Context, id string) error {
	return s.mutate(ctx, "close", func(conversations []Conversation) ([]Conversation, error) {
		idx, err := findConversation(conversations, id)
		if err != nil {
			return nil, err
		}
		if conversations[idx].Status == enums.ConversationStatusClosed {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "conversation already closed")
		}
		conversations[idx].Status = enums.ConversationStatusClosed
		conversations[idx].UpdatedAt = s.now().UTC()
		return conversations, nil
	})
}

func (s *service) Subscribe(fn func([]Conversation)) (unsubscribe func()) {
	return s.slot.Watch(func(payload string) {
		conversations, err := decodeConversations(payload)
		if err != nil {
			return
		}
		fn(conversations)
	})
}

// Shutdown cancels pending simulated replies.
func (s *service) Shutdown() {
	s.transport.Close()
}

// applyReply is the transport sink. Failures only log: a lost simulated reply
// must never take the request path down.
func (s *service) applyReply(conversationID, threadID string, reply Message) {
	ctx := context.Background()
	err := s.mutate(ctx, "auto_reply", func(conversations []Conversation) ([]Conversation, error) {
		idx, findErr := findConversation(conversations, conversationID)
		if findErr != nil {
			return nil, findErr
		}
		if conversations[idx].Status == enums.ConversationStatusClosed {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "conversation is closed")
		}
		updated, appendErr := appendMessage(conversations[idx], reply, threadID)
		if appendErr != nil {
			return nil, appendErr
		}
		s.touch(&updated, reply)
		conversations[idx] = updated
		return conversations, nil
	})
	if err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "conversation_id", conversationID), "dropping simulated reply", err)
	}
}

// touch refreshes the derived conversation fields after a new message.
func (s *service) touch(conversation *Conversation, msg Message) {
	conversation.LastMessage = msg.Text
	conversation.LastMessageDate = msg.Timestamp
	conversation.UpdatedAt = s.now().UTC()
	if msg.Sender == enums.ParticipantUser {
		conversation.UnreadAdminCount++
	} else {
		conversation.UnreadClientCount++
	}
}

func appendMessage(conversation Conversation, msg Message, threadID string) (Conversation, error) {
	conversation.Messages = cloneMessages(conversation.Messages)
	if threadID == "" {
		conversation.Messages = append(conversation.Messages, msg)
		return conversation, nil
	}
	for i := range conversation.Messages {
		if conversation.Messages[i].ID == threadID {
			conversation.Messages[i] = AppendReply(conversation.Messages[i], msg)
			return conversation, nil
		}
	}
	return Conversation{}, pkgerrors.New(pkgerrors.CodeNotFound, "thread not found")
}

func findConversation(conversations []Conversation, id string) (int, error) {
	for i := range conversations {
		if conversations[i].ID == id {
			return i, nil
		}
	}
	return 0, pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found")
}

// mutate applies apply and persists the new list while still holding the
// lock, so concurrent mutations serialize against the slot write. Only the
// broadcast runs unlocked; watchers drop stale and self-originated payloads.
func (s *service) mutate(ctx context.Context, op string, apply func([]Conversation) ([]Conversation, error)) error {
	s.mu.Lock()
	if err := s.load(ctx); err != nil {
		s.mu.Unlock()
		return err
	}
	next, err := apply(cloneConversations(s.conversations))
	if err != nil {
		s.mu.Unlock()
		return err
	}
	payload, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		s.metrics.IncSaveFailure(metricsStore)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode conversations")
	}
	seq, err := s.slot.Persist(ctx, string(payload))
	if err != nil {
		s.mu.Unlock()
		s.metrics.IncSaveFailure(metricsStore)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save conversations slot")
	}
	s.conversations = next
	s.mu.Unlock()

	if err := s.slot.Broadcast(ctx, seq, string(payload)); err != nil {
		s.metrics.IncSaveFailure(metricsStore)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "broadcast conversations slot")
	}
	s.metrics.IncMutation(metricsStore, op)
	return nil
}

func decodeConversations(payload string) ([]Conversation, error) {
	if payload == "" {
		return nil, nil
	}
	var conversations []Conversation
	if err := json.Unmarshal([]byte(payload), &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

func cloneConversations(conversations []Conversation) []Conversation {
	if conversations == nil {
		return nil
	}
	out := make([]Conversation, len(conversations))
	copy(out, conversations)
	return out
}

func cloneMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)
	return out
}
