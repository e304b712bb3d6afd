package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/otesta/otesta-backend/pkg/config"
	"github.com/otesta/otesta-backend/pkg/enums"
	"github.com/otesta/otesta-backend/pkg/kv"

	pkgerrors "github.com/otesta/otesta-backend/pkg/errors"
)

// recordingTransport captures deliveries without scheduling replies.
type recordingTransport struct {
	sink       ReplySink
	delivered  []Message
	lastThread string
	closed     bool
}

func (r *recordingTransport) Deliver(_, threadID string, msg Message) {
	r.delivered = append(r.delivered, msg)
	r.lastThread = threadID
}

func (r *recordingTransport) Close() { r.closed = true }

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		MaxMessageLength: 500,
		AutoReplyDelay:   time.Millisecond,
		ThreadReplyDelay: time.Millisecond,
	}
}

func newTestService(t *testing.T) (Service, *recordingTransport) {
	t.Helper()
	transport := &recordingTransport{}
	svc, err := NewService(ServiceParams{
		Store:    kv.NewMemoryStore(),
		Notifier: kv.NewHub(),
		Chat:     testChatConfig(),
		Transport: func(sink ReplySink) Transport {
			transport.sink = sink
			return transport
		},
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return svc, transport
}

func TestOpenCreatesAndReuses(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	first, err := svc.Open(ctx, "demo@otesta.it", "Demo Shopper")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if first.Status != enums.ConversationStatusActive {
		t.Fatalf("expected active conversation, got %q", first.Status)
	}
	if len(first.Messages) != 1 || first.Messages[0].Sender != enums.ParticipantAdmin {
		t.Fatalf("expected the welcome message, got %+v", first.Messages)
	}

	second, err := svc.Open(ctx, "demo@otesta.it", "Demo Shopper")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("expected the existing active conversation to be reused")
	}
}

func TestSendUpdatesConversationAndDelivers(t *testing.T) {
	ctx := context.Background()
	svc, transport := newTestService(t)

	conversation, err := svc.Open(ctx, "demo@otesta.it", "Demo Shopper")
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}

	msg, err := svc.Send(ctx, conversation.ID, SendInput{
		Sender:      enums.ParticipantUser,
		SenderEmail: "demo@otesta.it",
		Text:        "Avete la taglia 50?",
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	updated, err := svc.Get(ctx, conversation.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if updated.LastMessage != "Avete la taglia 50?" {
		t.Fatalf("expected last message updated, got %q", updated.LastMessage)
	}
	if updated.UnreadAdminCount != 1 {
		t.Fatalf("expected unread admin count 1, got %d", updated.UnreadAdminCount)
	}
	if len(transport.delivered) != 1 || transport.delivered[0].ID != msg.ID {
		t.Fatalf("expected the message handed to the transport, got %+v", transport.delivered)
	}
}

func TestSendValidatesText(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	conversation, _ := svc.Open(ctx, "demo@otesta.it", "Demo Shopper")

	if _, err := svc.Send(ctx, conversation.ID, SendInput{Sender: enums.ParticipantUser, Text: "   "}); err == nil {
		t.Fatal("expected error for blank message")
	}
	long := strings.Repeat("a", 501)
	if _, err := svc.Send(ctx, conversation.ID, SendInput{Sender: enums.ParticipantUser, Text: long}); err == nil {
		t.Fatal("expected error for oversized message")
	}
	if _, err := svc.Send(ctx, "missing", SendInput{Sender: enums.ParticipantUser, Text: "ciao"}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestSendIntoThread(t *testing.T) {
	ctx := context.Background()
	svc, transport := newTestService(t)
	conversation, _ := svc.Open(ctx, "demo@otesta.it", "Demo Shopper")

	root, err := svc.Send(ctx, conversation.ID, SendInput{Sender: enums.ParticipantUser, Text: "domanda"})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if _, err := svc.Send(ctx, conversation.ID, SendInput{
		Sender:   enums.ParticipantUser,
		Text:     "aggiunta",
		ThreadID: root.ID,
	}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if transport.lastThread != root.ID {
		t.Fatalf("expected thread id forwarded to transport, got %q", transport.lastThread)
	}

	updated, _ := svc.Get(ctx, conversation.ID)
	var found *Message
	for i := range updated.Messages {
		if updated.Messages[i].ID == root.ID {
			found = &updated.Messages[i]
		}
	}
	if found == nil || ReplyCount(found) != 1 {
		t.Fatalf("expected one threaded reply, got %+v", found)
	}

	if _, err := svc.Send(ctx, conversation.ID, SendInput{
		Sender:   enums.ParticipantUser,
		Text:     "orfano",
		ThreadID: "missing-thread",
	}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found for unknown thread, got %v", err)
	}
}

func TestReplySinkAppendsCounterpartMessage(t *testing.T) {
	ctx := context.Background()
	svc, transport := newTestService(t)
	conversation, _ := svc.Open(ctx, "demo@otesta.it", "Demo Shopper")

	if _, err := svc.Send(ctx, conversation.ID, SendInput{Sender: enums.ParticipantUser, Text: "ciao"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	transport.sink(conversation.ID, "", Message{
		ID:        "auto-1",
		Sender:    enums.ParticipantAdmin,
		Text:      "Grazie per il tuo messaggio! Ti risponderemo al più presto.",
		Timestamp: time.Now().UTC(),
	})

	updated, _ := svc.Get(ctx, conversation.ID)
	last := LastMessage(updated.Messages)
	if last == nil || last.ID != "auto-1" {
		t.Fatalf("expected the counterpart reply to land, got %+v", last)
	}
	if updated.UnreadClientCount != 1 {
		t.Fatalf("expected unread client count 1, got %d", updated.UnreadClientCount)
	}
}

func TestMarkRead(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	conversation, _ := svc.Open(ctx, "demo@otesta.it", "Demo Shopper")

	if _, err := svc.Send(ctx, conversation.ID, SendInput{Sender: enums.ParticipantUser, Text: "ciao"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if err := svc.MarkRead(ctx, conversation.ID, enums.ParticipantAdmin); err != nil {
		t.Fatalf("MarkRead returned error: %v", err)
	}

	updated, _ := svc.Get(ctx, conversation.ID)
	if updated.UnreadAdminCount != 0 {
		t.Fatalf("expected unread admin count reset, got %d", updated.UnreadAdminCount)
	}
	for _, msg := range updated.Messages {
		if msg.Sender == enums.ParticipantUser && !msg.IsRead {
			t.Fatal("expected shopper messages flagged as read")
		}
	}
}

func TestCloseConversationRejectsFurtherSends(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	conversation, _ := svc.Open(ctx, "demo@otesta.it", "Demo Shopper")

	if err := svc.CloseConversation(ctx, conversation.ID); err != nil {
		t.Fatalf("CloseConversation returned error: %v", err)
	}
	if err := svc.CloseConversation(ctx, conversation.ID); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on double close, got %v", err)
	}
	if _, err := svc.Send(ctx, conversation.ID, SendInput{Sender: enums.ParticipantUser, Text: "ciao"}); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on closed conversation, got %v", err)
	}
}

func TestShutdownClosesTransport(t *testing.T) {
	svc, transport := newTestService(t)
	svc.Shutdown()
	if !transport.closed {
		t.Fatal("expected transport closed on shutdown")
	}
}

func TestSimulatedTransportDeliversReply(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	svc, err := NewService(ServiceParams{
		Store:    store,
		Notifier: kv.NewHub(),
		Chat:     testChatConfig(),
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	defer svc.Shutdown()

	conversation, _ := svc.Open(ctx, "demo@otesta.it", "Demo Shopper")
	if _, err := svc.Send(ctx, conversation.ID, SendInput{Sender: enums.ParticipantUser, Text: "ciao"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		updated, err := svc.Get(ctx, conversation.ID)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		last := LastMessage(updated.Messages)
		if last != nil && last.Sender == enums.ParticipantAdmin && last.ID != conversation.Messages[0].ID {
			if last.Text != "Grazie per il tuo messaggio! Ti risponderemo al più presto." {
				t.Fatalf("unexpected auto reply text %q", last.Text)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the simulated reply")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSimulatedTransportCloseCancelsPending(t *testing.T) {
	var got []Message
	transport := NewSimulatedTransport(config.ChatConfig{
		AutoReplyDelay:   50 * time.Millisecond,
		ThreadReplyDelay: 50 * time.Millisecond,
	}, func(_, _ string, reply Message) {
		got = append(got, reply)
	}, nil)

	transport.Deliver("c1", "", Message{Sender: enums.ParticipantUser, Text: "ciao"})
	transport.Close()

	time.Sleep(120 * time.Millisecond)
	if len(got) != 0 {
		t.Fatalf("expected no replies after Close, got %d", len(got))
	}
}

func TestSimulatedTransportIgnoresAdminMessages(t *testing.T) {
	fired := false
	transport := NewSimulatedTransport(testChatConfig(), func(_, _ string, _ Message) {
		fired = true
	}, nil)
	defer transport.Close()

	transport.Deliver("c1", "", Message{Sender: enums.ParticipantAdmin, Text: "risposta"})
	time.Sleep(20 * time.Millisecond)
	if fired {
		t.Fatal("expected no auto reply to admin messages")
	}
}
