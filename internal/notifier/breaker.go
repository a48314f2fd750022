package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSender размыкает цепь после серии неудачных отправок,
// чтобы недоступный Bot API не занимал воркеры очереди.
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker[struct{}]
}

type BreakerSettings struct {
	// ConsecutiveFailures — после скольких ошибок подряд цепь размыкается
	ConsecutiveFailures uint32
	// OpenTimeout — сколько цепь остаётся разомкнутой
	OpenTimeout time.Duration
}

func NewBreakerSender(log *slog.Logger, next Sender, st BreakerSettings) *BreakerSender {
	if st.ConsecutiveFailures == 0 {
		st.ConsecutiveFailures = 5
	}
	if st.OpenTimeout == 0 {
		st.OpenTimeout = 30 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "telegram",
		MaxRequests: 1,
		Timeout:     st.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= st.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &BreakerSender{next: next, cb: cb}
}

func (b *BreakerSender) Send(ctx context.Context, chatID int64, text string) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Send(ctx, chatID, text)
	})
	return err
}

// State текущее состояние цепи
func (b *BreakerSender) State() gobreaker.State {
	return b.cb.State()
}
