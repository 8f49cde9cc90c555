package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics содержит метрики корзины, checkout и отправки заказов.
// Все методы безопасны для nil-получателя: компоненты без метрик просто их не пишут.
type CheckoutMetrics struct {
	// Корзина
	cartMutations   *prometheus.CounterVec
	persistFailures prometheus.Counter
	comboGaps       prometheus.Counter

	// Пошаговый checkout
	stepTransitions *prometheus.CounterVec

	// Отправка заказа
	submissionsStarted   prometheus.Counter
	submissionsCompleted *prometheus.CounterVec
	submissionFailures   *prometheus.CounterVec
	partialFailures      *prometheus.CounterVec
	submissionDuration   prometheus.Histogram
	stageDuration        *prometheus.HistogramVec

	// Сверка отложенной оплаты
	reconciliations *prometheus.CounterVec

	activeSessions prometheus.Gauge
}

// NewCheckoutMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в переданном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CheckoutMetrics{
		cartMutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Total number of persisted cart mutations grouped by operation",
		}, []string{"op"}),
		persistFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_persist_failures_total",
			Help: "Total number of cart snapshot writes that failed",
		}),
		comboGaps: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_combo_expansion_gaps_total",
			Help: "Total number of combo lines expanded without combo details",
		}),
		stepTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_step_transitions_total",
			Help: "Checkout step transitions grouped by source step and result",
		}, []string{"from", "result"}),
		submissionsStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_submissions_started_total",
			Help: "Total number of order submissions started",
		}),
		submissionsCompleted: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_submissions_completed_total",
			Help: "Total number of order submissions finished grouped by payment method",
		}, []string{"payment_method"}),
		submissionFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_submission_failures_total",
			Help: "Total number of order submissions failed before an order existed",
		}, []string{"reason"}),
		partialFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_submission_partial_failures_total",
			Help: "Total number of follow-up failures after the order was created",
		}, []string{"stage"}),
		submissionDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_submission_duration_seconds",
			Help:    "Duration of order submissions in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stageDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_submission_stage_duration_seconds",
			Help:    "Duration of individual submission stages in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"stage"}),
		reconciliations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_pending_payment_reconciliations_total",
			Help: "Pending payment reconciliations grouped by action taken",
		}, []string{"action"}),
		activeSessions: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_active_sessions",
			Help: "Number of storefront sessions held in memory",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCartMutation считает успешно сохранённую мутацию корзины.
func (m *CheckoutMetrics) RecordCartMutation(op string) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(op).Inc()
}

// RecordPersistFailure считает неудачную запись снимка корзины.
func (m *CheckoutMetrics) RecordPersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

// RecordComboGap считает комбо без состава, ушедшее в заказ без разбивки.
func (m *CheckoutMetrics) RecordComboGap() {
	if m == nil {
		return
	}
	m.comboGaps.Inc()
}

// RecordStepTransition считает попытку перехода между шагами checkout.
func (m *CheckoutMetrics) RecordStepTransition(from string, accepted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.stepTransitions.WithLabelValues(from, result).Inc()
}

// RecordSubmissionStarted увеличивает счётчик начатых отправок.
func (m *CheckoutMetrics) RecordSubmissionStarted() {
	if m == nil {
		return
	}
	m.submissionsStarted.Inc()
}

// RecordSubmissionCompleted считает завершённую отправку.
func (m *CheckoutMetrics) RecordSubmissionCompleted(paymentMethod string) {
	if m == nil {
		return
	}
	m.submissionsCompleted.WithLabelValues(paymentMethod).Inc()
}

// RecordSubmissionFailed считает отправку, упавшую до создания заказа.
func (m *CheckoutMetrics) RecordSubmissionFailed(reason string) {
	if m == nil {
		return
	}
	m.submissionFailures.WithLabelValues(reason).Inc()
}

// RecordPartialFailure считает сбой после того, как заказ уже создан.
func (m *CheckoutMetrics) RecordPartialFailure(stage string) {
	if m == nil {
		return
	}
	m.partialFailures.WithLabelValues(stage).Inc()
}

// RecordSubmissionDuration записывает полное время отправки.
func (m *CheckoutMetrics) RecordSubmissionDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.submissionDuration.Observe(duration.Seconds())
}

// RecordStageDuration записывает время отдельного этапа отправки.
func (m *CheckoutMetrics) RecordStageDuration(stage string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordReconciliation считает исход сверки отложенной оплаты.
func (m *CheckoutMetrics) RecordReconciliation(action string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(action).Inc()
}

// SetActiveSessions выставляет количество сессий в памяти.
func (m *CheckoutMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
