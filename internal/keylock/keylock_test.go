package keylock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestLock_SameKeySerialized проверяет, что операции над одним ключом не пересекаются.
func TestLock_SameKeySerialized(t *testing.T) {
	l := New()
	ctx := context.Background()

	var inside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "sess-1")
			if err != nil {
				t.Errorf("Lock: неожиданная ошибка: %v", err)
				return
			}
			if n := inside.Add(1); n != 1 {
				t.Errorf("внутри критической секции %d горутин, ожидалась 1", n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if l.Len() != 0 {
		t.Errorf("после освобождения осталось %d ключей", l.Len())
	}
}

// TestLock_DifferentKeysIndependent проверяет, что разные ключи не блокируют друг друга.
func TestLock_DifferentKeysIndependent(t *testing.T) {
	l := New()
	ctx := context.Background()

	unlockA, err := l.Lock(ctx, "a")
	if err != nil {
		t.Fatalf("Lock(a): %v", err)
	}
	defer unlockA()

	tctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(tctx, "b")
	if err != nil {
		t.Fatalf("Lock(b) не должен ждать освобождения a: %v", err)
	}
	unlockB()
}

// TestLock_ContextTimeout проверяет выход из очереди по таймауту.
func TestLock_ContextTimeout(t *testing.T) {
	l := New()

	unlock, err := l.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ожидался DeadlineExceeded, получено %v", err)
	}

	unlock()
	unlock() // повторный вызов безопасен

	if l.Len() != 0 {
		t.Errorf("после таймаута и освобождения осталось %d ключей", l.Len())
	}
}

// TestLock_FIFO проверяет порядок обслуживания ожидающих.
func TestLock_FIFO(t *testing.T) {
	l := New()
	ctx := context.Background()

	first, _ := l.Lock(ctx, "k")

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			unlock, err := l.Lock(ctx, "k")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			unlock()
		}(i)
		// Даём горутине встать в очередь до запуска следующей
		time.Sleep(10 * time.Millisecond)
	}

	first()
	wg.Wait()

	for i, n := range order {
		if n != i {
			t.Fatalf("порядок обслуживания %v, ожидался 0..4", order)
		}
	}
}
