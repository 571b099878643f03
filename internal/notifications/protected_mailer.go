package notifications

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("mail transport unavailable (circuit open)")

type ProtectedMailerConfig struct {
	Timeout          time.Duration // hard timeout per send
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
}

// MailObserver receives one call per send attempt; *observability.Prom satisfies it.
type MailObserver interface {
	ObserveMail(result string, d time.Duration)
}

type circuitState string

const (
	stateClosed   circuitState = "closed"
	stateOpen     circuitState = "open"
	stateHalfOpen circuitState = "half_open"
)

// ProtectedMailer bounds every send with a timeout and stops calling a
// transport that keeps failing. It never retries.
type ProtectedMailer struct {
	inner    Mailer
	cfg      ProtectedMailerConfig
	observer MailObserver
	now      func() time.Time

	mu                  sync.Mutex
	state               circuitState
	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewProtectedMailer(inner Mailer, cfg ProtectedMailerConfig, observer MailObserver) *ProtectedMailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &ProtectedMailer{
		inner:    inner,
		cfg:      cfg,
		observer: observer,
		now:      time.Now,
		state:    stateClosed,
	}
}

func (m *ProtectedMailer) Send(ctx context.Context, msg Message) error {
	start := m.now()

	if !m.allowRequest() {
		m.observe("circuit_open", start)
		return ErrCircuitOpen
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	err := m.inner.Send(sendCtx, msg)

	m.afterRequest(err)

	if err != nil {
		m.observe("failed", start)
		return err
	}

	m.observe("sent", start)
	return nil
}

// State is exposed for readiness reporting and tests.
func (m *ProtectedMailer) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.state)
}

func (m *ProtectedMailer) observe(result string, start time.Time) {
	if m.observer != nil {
		m.observer.ObserveMail(result, m.now().Sub(start))
	}
}

func (m *ProtectedMailer) allowRequest() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case stateOpen:
		if m.now().Sub(m.openedAt) >= m.cfg.Cooldown {
			m.state = stateHalfOpen
			m.halfOpenInFlight = 1
			return true
		}
		return false
	case stateHalfOpen:
		if m.halfOpenInFlight >= m.cfg.HalfOpenMaxCalls {
			return false
		}
		m.halfOpenInFlight++
		return true
	default:
		return true
	}
}

func (m *ProtectedMailer) afterRequest(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == stateHalfOpen && m.halfOpenInFlight > 0 {
		m.halfOpenInFlight--
	}

	if err == nil {
		m.consecutiveFailures = 0
		m.state = stateClosed
		return
	}

	m.consecutiveFailures++

	// a failed trial call reopens immediately
	if m.state == stateHalfOpen || m.consecutiveFailures >= m.cfg.FailureThreshold {
		m.state = stateOpen
		m.openedAt = m.now()
	}
}
