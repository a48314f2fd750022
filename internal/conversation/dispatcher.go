package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/linemk/shop-bot/internal/domain/models"
)

const rateBurst = 3

// SessionStore хранит сессии между событиями
type SessionStore interface {
	Load(ctx context.Context, userID int64) (Session, bool, error)
	Save(ctx context.Context, userID int64, sess Session) error
}

// Dispatcher прогоняет событие через цепочку: лимит → загрузка сессии → Engine → сохранение.
// События одного пользователя обрабатываются строго по очереди, разных — параллельно.
type Dispatcher struct {
	log    *slog.Logger
	engine *Engine
	store  SessionStore
	limit  rate.Limit

	mu       sync.Mutex
	users    map[int64]*userSlot
	lastGC   time.Time
	idleTime time.Duration
}

type userSlot struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	refs     int
	lastSeen time.Time
	lang     models.Language // язык последней сессии, для ответа без обращения к хранилищу
}

// NewDispatcher создаёт диспетчер; perSecond <= 0 отключает лимит.
func NewDispatcher(log *slog.Logger, engine *Engine, store SessionStore, perSecond float64) *Dispatcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Dispatcher{
		log:      log,
		engine:   engine,
		store:    store,
		limit:    limit,
		users:    make(map[int64]*userSlot),
		idleTime: 10 * time.Minute,
	}
}

func (d *Dispatcher) acquire(userID int64) *userSlot {
	d.mu.Lock()
	now := time.Now()
	if now.Sub(d.lastGC) > d.idleTime {
		for id, slot := range d.users {
			if slot.refs == 0 && now.Sub(slot.lastSeen) > d.idleTime {
				delete(d.users, id)
			}
		}
		d.lastGC = now
	}
	slot, ok := d.users[userID]
	if !ok {
		slot = &userSlot{limiter: rate.NewLimiter(d.limit, rateBurst)}
		d.users[userID] = slot
	}
	slot.refs++
	slot.lastSeen = now
	d.mu.Unlock()

	slot.mu.Lock()
	return slot
}

func (d *Dispatcher) release(slot *userSlot) {
	slot.mu.Unlock()
	d.mu.Lock()
	slot.refs--
	d.mu.Unlock()
}

// Dispatch обрабатывает одно событие пользователя.
// Ошибка возвращается только при сбое хранилища сессий; ответ при этом всё равно заполнен.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (Reply, error) {
	const op = "conversation.Dispatcher.Dispatch"
	logger := d.log.With(slog.String("op", op), slog.Int64("userID", ev.UserID))

	slot := d.acquire(ev.UserID)
	defer d.release(slot)

	// лимит проверяется до любых обращений к хранилищам, состояние не меняется
	if !slot.limiter.Allow() {
		logger.Warn("rate limit exceeded")
		return Reply{Messages: []Message{{Text: t(Session{Language: slot.lang}, "rate_limit_exceeded")}}}, nil
	}

	sess, found, err := d.store.Load(ctx, ev.UserID)
	if err != nil {
		logger.Error("failed to load session", slog.Any("error", err))
		return Reply{Messages: []Message{{Text: t(Session{}, "error_try_again")}}}, fmt.Errorf("%s: %w", op, err)
	}

	var reply Reply
	if !found && ev.Kind != KindStart {
		// сессия истекла: начинаем заново, событие не обрабатываем
		sess, reply = d.engine.Start(ctx, ev.UserID)
	} else {
		sess, reply = d.engine.Handle(ctx, sess, ev)
	}

	slot.lang = sess.Language
	if err := d.store.Save(ctx, ev.UserID, sess); err != nil {
		logger.Error("failed to save session", slog.Any("error", err))
		return reply, fmt.Errorf("%s: %w", op, err)
	}
	return reply, nil
}
