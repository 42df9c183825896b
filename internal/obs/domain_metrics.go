package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// FeeClaimTotal counts fee type slot claims by outcome.
	FeeClaimTotal *prometheus.CounterVec
	// QuoteTotal counts public fee quotes by cache outcome.
	QuoteTotal *prometheus.CounterVec
	// RegistrationTotal counts registration submits by outcome.
	RegistrationTotal *prometheus.CounterVec
	// ReminderDispatchTotal counts payment reminder deliveries by outcome.
	ReminderDispatchTotal *prometheus.CounterVec
	// QuoteLatency records quote resolution latency in milliseconds.
	QuoteLatency prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		FeeClaimTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fee_claim_total",
			Help:      "Count of fee type slot claim outcomes.",
		}, []string{"result"})
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_total",
			Help:      "Count of public fee quotes by cache outcome.",
		}, []string{"cache"})
		RegistrationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_total",
			Help:      "Count of registration submit outcomes.",
		}, []string{"result"})
		ReminderDispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_dispatch_total",
			Help:      "Count of payment reminder dispatch outcomes.",
		}, []string{"result"})
		QuoteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_ms",
			Help:      "Latency for fee quote resolution in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		})

		mustRegisterCollector(reg, FeeClaimTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				FeeClaimTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteTotal = v
			}
		})
		mustRegisterCollector(reg, RegistrationTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RegistrationTotal = v
			}
		})
		mustRegisterCollector(reg, ReminderDispatchTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReminderDispatchTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				QuoteLatency = v
			}
		})
	})
}

// IncFeeClaim records one fee type slot claim outcome. Safe to call
// before metrics are registered.
func IncFeeClaim(result string) {
	if FeeClaimTotal != nil {
		FeeClaimTotal.WithLabelValues(result).Inc()
	}
}

// IncQuote records one public quote by cache outcome.
func IncQuote(cache string) {
	if QuoteTotal != nil {
		QuoteTotal.WithLabelValues(cache).Inc()
	}
}

// IncRegistration records one registration submit outcome.
func IncRegistration(result string) {
	if RegistrationTotal != nil {
		RegistrationTotal.WithLabelValues(result).Inc()
	}
}

// IncReminderDispatch records one reminder delivery outcome.
func IncReminderDispatch(result string) {
	if ReminderDispatchTotal != nil {
		ReminderDispatchTotal.WithLabelValues(result).Inc()
	}
}

// ObserveQuoteLatency records quote resolution latency in milliseconds.
func ObserveQuoteLatency(ms float64) {
	if QuoteLatency != nil {
		QuoteLatency.Observe(ms)
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
