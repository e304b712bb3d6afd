package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/otesta/otesta-backend/pkg/config"
	"github.com/otesta/otesta-backend/pkg/enums"
	"github.com/otesta/otesta-backend/pkg/metrics"
)

const autoReplyText = "Grazie per il tuo messaggio! Ti risponderemo al più presto."

// Transport delivers a shopper message to the counterpart and arranges for
// any reply to come back through the sink.
type Transport interface {
	// Deliver hands off a root message. threadID is set when the message is a
	// reply inside an existing thread.
	Deliver(conversationID, threadID string, msg Message)
	// Close cancels replies that have not fired yet.
	Close()
}

// ReplySink receives counterpart replies produced by a transport.
type ReplySink func(conversationID, threadID string, reply Message)

// SimulatedTransport produces the canned counterpart reply after the
// configured delay, standing in for a real support backend.
type SimulatedTransport struct {
	cfg     config.ChatConfig
	sink    ReplySink
	metrics *metrics.StoreMetrics
	now     func() time.Time

	mu     sync.Mutex
	nextID int
	timers map[int]*time.Timer
	closed bool
}

// NewSimulatedTransport builds the simulated transport. The sink is invoked
// from a timer goroutine.
func NewSimulatedTransport(cfg config.ChatConfig, sink ReplySink, m *metrics.StoreMetrics) *SimulatedTransport {
	return &SimulatedTransport{
		cfg:     cfg,
		sink:    sink,
		metrics: m,
		now:     time.Now,
		timers:  make(map[int]*time.Timer),
	}
}

// Deliver schedules the counterpart reply. Root messages use the widget
// delay, thread replies the shorter thread delay.
func (t *SimulatedTransport) Deliver(conversationID, threadID string, msg Message) {
	if msg.Sender != enums.ParticipantUser {
		return
	}

	delay := t.cfg.AutoReplyDelay
	if threadID != "" {
		delay = t.cfg.ThreadReplyDelay
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	id := t.nextID
	t.nextID++
	timer := time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.timers, id)
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return
		}
		t.metrics.IncAutoReply()
		t.sink(conversationID, threadID, Message{
			ID:        uuid.NewString(),
			Sender:    msg.Sender.Counterpart(),
			Text:      autoReplyText,
			Timestamp: t.now().UTC(),
		})
	})
	t.timers[id] = timer
	t.mu.Unlock()
}

// Close stops every pending reply. Replies already in flight are dropped.
func (t *SimulatedTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
