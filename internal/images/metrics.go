package images

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Provider attempt outcomes.
const (
	outcomeHit          = "hit"
	outcomeEmpty        = "empty"
	outcomeError        = "error"
	outcomeUnconfigured = "unconfigured"
)

// Metrics counts cascade activity. A nil *Metrics records nothing.
type Metrics struct {
	cacheLookups     *prometheus.CounterVec
	providerAttempts *prometheus.CounterVec
	placeholders     prometheus.Counter
	faults           prometheus.Counter
}

// NewMetrics registers the cascade collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordlookup_image_cache_lookups_total",
				Help: "Image cache lookups by result",
			},
			[]string{"result"},
		),
		providerAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordlookup_image_provider_attempts_total",
				Help: "Image provider attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		placeholders: factory.NewCounter(prometheus.CounterOpts{
			Name: "wordlookup_image_placeholder_fallbacks_total",
			Help: "Lookups answered with generated placeholders",
		}),
		faults: factory.NewCounter(prometheus.CounterOpts{
			Name: "wordlookup_image_cascade_faults_total",
			Help: "Unexpected faults recovered by the image cascade",
		}),
	}
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) providerAttempt(provider string, res SearchResult) {
	if m == nil {
		return
	}
	outcome := outcomeHit
	switch {
	case errors.Is(res.Err, ErrNotConfigured):
		outcome = outcomeUnconfigured
	case res.Err != nil:
		outcome = outcomeError
	case len(res.Images) == 0:
		outcome = outcomeEmpty
	}
	m.providerAttempts.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) placeholderFallback() {
	if m == nil {
		return
	}
	m.placeholders.Inc()
}

func (m *Metrics) fault() {
	if m == nil {
		return
	}
	m.faults.Inc()
}
