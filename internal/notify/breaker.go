package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"agentlinker/internal/metrics"
)

// ErrBreakerOpen is returned while the breaker rejects sends.
var ErrBreakerOpen = errors.New("notification delivery suspended")

// BreakerSender stops calling a failing Sender until it has had time to recover.
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerSender trips after maxFailures consecutive failures and retries after openTimeout.
func NewBreakerSender(next Sender, logger *slog.Logger, maxFailures uint32, openTimeout time.Duration) *BreakerSender {
	if maxFailures == 0 {
		maxFailures = 5
	}
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}

	metrics.NotifierBreakerState.Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notify",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Notification breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			if to == gobreaker.StateOpen {
				metrics.NotifierBreakerState.Set(1)
			} else {
				metrics.NotifierBreakerState.Set(0)
			}
		},
	})

	return &BreakerSender{next: next, cb: cb}
}

func (b *BreakerSender) Send(ctx context.Context, msg Message) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrBreakerOpen
	}
	return err
}

// State reports the breaker state: "closed", "half-open" or "open".
func (b *BreakerSender) State() string {
	return b.cb.State().String()
}
