package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// IncompleteFinder — локальный поиск незавершённой сессии пользователя.
type IncompleteFinder interface {
	FindIncompleteSession(ctx context.Context, userID string) (string, bool, error)
}

// ResumeCallback вызывается, когда у пользователя найдена незавершённая сессия.
type ResumeCallback func(ctx context.Context, userID, sessionID string)

// Watcher — проверка незавершённых сессий по внешнему сигналу
// (возврат пользователя в приложение, HTTP-запрос и т.п.).
// Источник сигнала Watcher не знает: его дёргают через Recheck.
type Watcher struct {
	finder IncompleteFinder
	logger *slog.Logger

	mu        sync.Mutex
	nextID    int
	callbacks map[int]ResumeCallback
}

// NewWatcher создаёт Watcher.
func NewWatcher(finder IncompleteFinder, logger *slog.Logger) *Watcher {
	return &Watcher{
		finder:    finder,
		logger:    logger.With(slog.String("component", "resume_watcher")),
		callbacks: make(map[int]ResumeCallback),
	}
}

// OnBecomeActive подписывает cb на найденные незавершённые сессии.
// Возвращает функцию отписки.
func (w *Watcher) OnBecomeActive(cb ResumeCallback) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.callbacks[id] = cb
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.callbacks, id)
			w.mu.Unlock()
		})
	}
}

// Recheck ищет незавершённую сессию пользователя и уведомляет подписчиков.
// Подписчики вызываются синхронно, в порядке подписки.
func (w *Watcher) Recheck(ctx context.Context, userID string) (string, bool, error) {
	sessionID, found, err := w.finder.FindIncompleteSession(ctx, userID)
	if err != nil {
		w.logger.Error("Ошибка проверки незавершённых сессий",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return "", false, err
	}
	if !found {
		return "", false, nil
	}

	w.logger.Info("Найдена незавершённая сессия",
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
	)

	for _, cb := range w.snapshot() {
		cb(ctx, userID, sessionID)
	}
	return sessionID, true, nil
}

func (w *Watcher) snapshot() []ResumeCallback {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]int, 0, len(w.callbacks))
	for id := range w.callbacks {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	result := make([]ResumeCallback, len(ids))
	for i, id := range ids {
		result[i] = w.callbacks[id]
	}
	return result
}
