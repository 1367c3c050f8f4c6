// Пакет keylock — последовательное выполнение операций по ключу.
//
// Операции над одним ключом (session_id) выполняются строго по очереди,
// операции над разными ключами не блокируют друг друга.
// Захват блокировки учитывает context: при отмене или таймауте
// ожидающий покидает очередь, не оставляя следов.
package keylock

import (
	"context"
	"sync"
)

// entry — блокировка одного ключа.
// ch — семафор ёмкостью 1; refs — число владельцев и ожидающих.
type entry struct {
	ch   chan struct{}
	refs int
}

// Locker — набор блокировок по ключам.
// Записи создаются при первом обращении и удаляются, когда
// ключ больше никому не нужен.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New создаёт пустой Locker.
func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Lock захватывает блокировку ключа. Возвращает функцию освобождения
// (повторный вызов безопасен) либо ошибку context.
// Ожидающие обслуживаются в порядке постановки в очередь.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquire(key)

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

// Len возвращает количество ключей с активными блокировками или ожидающими.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *Locker) acquire(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}
