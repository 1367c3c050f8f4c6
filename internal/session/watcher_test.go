package session

import (
	"context"
	"errors"
	"testing"
)

type stubFinder struct {
	id    string
	found bool
	err   error
}

func (s stubFinder) FindIncompleteSession(context.Context, string) (string, bool, error) {
	return s.id, s.found, s.err
}

func TestWatcher_Recheck(t *testing.T) {
	w := NewWatcher(stubFinder{id: "s1", found: true}, testLogger())

	var order []string
	unsubA := w.OnBecomeActive(func(_ context.Context, user, sess string) {
		order = append(order, "a:"+user+":"+sess)
	})
	w.OnBecomeActive(func(_ context.Context, user, sess string) {
		order = append(order, "b:"+user+":"+sess)
	})

	id, ok, err := w.Recheck(context.Background(), "u1")
	if err != nil || !ok || id != "s1" {
		t.Fatalf("Recheck: %q %v %v", id, ok, err)
	}
	if len(order) != 2 || order[0] != "a:u1:s1" || order[1] != "b:u1:s1" {
		t.Errorf("подписчики вызываются в порядке подписки: %v", order)
	}

	unsubA()
	unsubA() // повторная отписка безопасна
	order = nil
	_, _, _ = w.Recheck(context.Background(), "u1")
	if len(order) != 1 || order[0] != "b:u1:s1" {
		t.Errorf("после отписки остаётся один подписчик: %v", order)
	}
}

func TestWatcher_NothingFound(t *testing.T) {
	w := NewWatcher(stubFinder{}, testLogger())
	called := false
	w.OnBecomeActive(func(context.Context, string, string) { called = true })

	if _, ok, err := w.Recheck(context.Background(), "u1"); ok || err != nil {
		t.Errorf("ничего не найдено: %v %v", ok, err)
	}
	if called {
		t.Error("подписчик не вызывается без незавершённой сессии")
	}
}

func TestWatcher_FinderError(t *testing.T) {
	boom := errors.New("boom")
	w := NewWatcher(stubFinder{err: boom}, testLogger())
	if _, _, err := w.Recheck(context.Background(), "u1"); !errors.Is(err, boom) {
		t.Errorf("ожидалась исходная ошибка, получено %v", err)
	}
}

func TestWatcher_WithManager(t *testing.T) {
	m, _ := newTestManager(t, newFakeRemote())
	ctx := context.Background()
	id, _ := m.CreateSession(ctx, "u1", []int{1})

	w := NewWatcher(m, testLogger())
	var got string
	w.OnBecomeActive(func(_ context.Context, _, sess string) { got = sess })

	if _, ok, _ := w.Recheck(ctx, "u1"); !ok || got != id {
		t.Errorf("ожидалась сессия %s, получено %q", id, got)
	}
}
