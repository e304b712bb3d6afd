package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics records slot-backed store activity.
type StoreMetrics struct {
	mutations    *prometheus.CounterVec
	saveFailures *prometheus.CounterVec
	autoReplies  prometheus.Counter
}

// NewStoreMetrics registers the store metrics on the provided registerer.
// A nil registerer yields a no-op recorder, which tests rely on.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	if reg == nil {
		return &StoreMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_mutations_total",
		Help: "Mutating operations applied to slot-backed stores.",
	}, []string{"store", "op"})
	saveFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_save_failures_total",
		Help: "Slot save attempts that returned an error.",
	}, []string{"store"})
	autoReplies := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_simulated_replies_total",
		Help: "Counterpart replies produced by the simulated chat transport.",
	})
	reg.MustRegister(mutations, saveFailures, autoReplies)
	return &StoreMetrics{
		mutations:    mutations,
		saveFailures: saveFailures,
		autoReplies:  autoReplies,
	}
}

// IncMutation counts one mutating operation on the named store.
func (s *StoreMetrics) IncMutation(store, op string) {
	if s == nil || s.mutations == nil {
		return
	}
	s.mutations.WithLabelValues(store, op).Inc()
}

// IncSaveFailure counts one failed slot save for the named store.
func (s *StoreMetrics) IncSaveFailure(store string) {
	if s == nil || s.saveFailures == nil {
		return
	}
	s.saveFailures.WithLabelValues(store).Inc()
}

// IncAutoReply counts one simulated counterpart reply.
func (s *StoreMetrics) IncAutoReply() {
	if s == nil || s.autoReplies == nil {
		return
	}
	s.autoReplies.Inc()
}
