package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared by the CAS services.
const (
	ResultSuccess = "success"
	ResultInvalid = "invalid"
	ResultError   = "error"

	LoginSucceeded       = "succeeded"
	LoginBadCredentials  = "bad_credentials"
	LoginSecondFactor    = "second_factor"
	LoginUnknownService  = "unknown_service"
	ForwardAuthAllowed   = "allowed"
	ForwardAuthNoSession = "no_session"
	ForwardAuthNoService = "missing_service"
	ForwardAuthDenied    = "denied"
)

// Metrics holds the Prometheus collectors for the authentication server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	TicketsIssued       *prometheus.CounterVec
	TicketValidations   *prometheus.CounterVec
	LoginAttempts       *prometheus.CounterVec
	ForwardAuthDecision *prometheus.CounterVec
	TicketsSwept        prometheus.Counter
	TicketsStored       prometheus.Gauge
	RedeemDuration      prometheus.Histogram
}

// New registers all collectors with reg. Tests pass prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TicketsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cas_tickets_issued_total",
			Help: "Total number of tickets issued, by ticket type",
		}, []string{"type"}),
		TicketValidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cas_ticket_validations_total",
			Help: "Total number of ticket validations, by result",
		}, []string{"result"}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cas_login_attempts_total",
			Help: "Total number of interactive login attempts, by outcome",
		}, []string{"outcome"}),
		ForwardAuthDecision: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cas_forward_auth_decisions_total",
			Help: "Total number of forward-auth decisions, by decision",
		}, []string{"decision"}),
		TicketsSwept: f.NewCounter(prometheus.CounterOpts{
			Name: "cas_tickets_swept_total",
			Help: "Total number of expired tickets removed by the sweeper",
		}),
		TicketsStored: f.NewGauge(prometheus.GaugeOpts{
			Name: "cas_tickets_stored",
			Help: "Tickets held by the in-process store after the last sweep, consumed ones included",
		}),
		RedeemDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cas_ticket_redeem_duration_seconds",
			Help:    "Duration of ticket redemption (validate critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncTicketIssued(ticketType string) {
	if m == nil {
		return
	}
	m.TicketsIssued.WithLabelValues(ticketType).Inc()
}

func (m *Metrics) IncValidation(result string) {
	if m == nil {
		return
	}
	m.TicketValidations.WithLabelValues(result).Inc()
}

func (m *Metrics) IncLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncForwardAuth(decision string) {
	if m == nil {
		return
	}
	m.ForwardAuthDecision.WithLabelValues(decision).Inc()
}

func (m *Metrics) AddSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TicketsSwept.Add(float64(n))
}

func (m *Metrics) SetStored(n int) {
	if m == nil {
		return
	}
	m.TicketsStored.Set(float64(n))
}

// ObserveRedeem records redemption latency. Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRedeem(start time.Time) {
	if m == nil {
		return
	}
	m.RedeemDuration.Observe(time.Since(start).Seconds())
}
