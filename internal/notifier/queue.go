package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

type task struct {
	id     uuid.UUID
	chatID int64
	text   string
}

type QueueConfig struct {
	Workers int
	Size    int
	// Timeout ограничивает одну попытку отправки
	Timeout time.Duration
	// Attempts — сколько раз пробовать отправить сообщение
	Attempts int
	// Backoff — пауза перед второй попыткой, далее удваивается
	Backoff time.Duration
}

// Queue — фоновая очередь уведомлений. Notify никогда не ждёт сети:
// задача кладётся в буферизованный канал, отправкой занимаются воркеры.
// Ошибки доставки логируются и отбрасываются.
type Queue struct {
	log    *slog.Logger
	sender Sender
	cfg    QueueConfig

	tasks  chan task
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	cancel context.CancelFunc
}

func NewQueue(log *slog.Logger, sender Sender, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Size <= 0 {
		cfg.Size = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	return &Queue{
		log:    log.With(slog.String("component", "notifier")),
		sender: sender,
		cfg:    cfg,
		tasks:  make(chan task, cfg.Size),
	}
}

// Start запускает воркеры. Они работают до Stop или отмены ctx.
func (q *Queue) Start(ctx context.Context) {
	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

// Notify ставит сообщение в очередь
func (q *Queue) Notify(_ context.Context, chatID int64, text string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	t := task{id: uuid.New(), chatID: chatID, text: text}
	select {
	case q.tasks <- t:
		q.log.Debug("notification enqueued", slog.String("taskID", t.id.String()), slog.Int64("chatID", chatID))
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop перестаёт принимать задачи и ждёт, пока воркеры разберут остаток очереди.
// Если ctx истекает раньше, незавершённые отправки отменяются.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if q.cancel != nil {
			q.cancel()
		}
		<-done
		return fmt.Errorf("notifier stop: %w", ctx.Err())
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for t := range q.tasks {
		q.deliver(ctx, t)
	}
}

func (q *Queue) deliver(ctx context.Context, t task) {
	logger := q.log.With(slog.String("taskID", t.id.String()), slog.Int64("chatID", t.chatID))

	backoff := q.cfg.Backoff
	var err error
	for attempt := 1; attempt <= q.cfg.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				logger.Warn("notification dropped", slog.Any("error", ctx.Err()))
				return
			}
		}

		sendCtx, cancel := context.WithTimeout(ctx, q.cfg.Timeout)
		err = q.sender.Send(sendCtx, t.chatID, t.text)
		cancel()
		if err == nil {
			logger.Info("notification sent", slog.Int("attempt", attempt))
			return
		}
		logger.Debug("notification attempt failed", slog.Int("attempt", attempt), slog.Any("error", err))
	}
	logger.Error("notification failed", slog.Any("error", err))
}
