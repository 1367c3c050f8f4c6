package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/session"
)

type fakeSyncer struct {
	mu        sync.Mutex
	runs      int
	result    session.SyncResult
	syncErr   error
	purged    int
	purgeErr  error
	retention time.Duration
}

func (f *fakeSyncer) SyncPending(context.Context) (session.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs++
	return f.result, f.syncErr
}

func (f *fakeSyncer) PurgeSynced(_ context.Context, retention time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retention = retention
	return f.purged, f.purgeErr
}

func (f *fakeSyncer) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func TestSyncRunOnce(t *testing.T) {
	fs := &fakeSyncer{
		result: session.SyncResult{ResponsesSynced: 3, SessionsSynced: 1, SessionsFailed: 1},
		purged: 2,
	}
	svc := NewSyncService(fs, time.Hour, 48*time.Hour, testLogger())

	res := svc.RunOnce(context.Background())
	if res.ResponsesSynced != 3 || res.SessionsSynced != 1 || res.SessionsFailed != 1 {
		t.Errorf("результат синхронизации: %+v", res)
	}
	if res.SessionsPurged != 2 || res.Errors != 0 {
		t.Errorf("очистка: %+v", res)
	}
	if fs.retention != 48*time.Hour {
		t.Errorf("retention передаётся в PurgeSynced: %v", fs.retention)
	}
}

func TestSyncRunOnce_ErrorsCounted(t *testing.T) {
	fs := &fakeSyncer{syncErr: errors.New("db"), purgeErr: errors.New("db")}
	svc := NewSyncService(fs, time.Hour, time.Hour, testLogger())

	res := svc.RunOnce(context.Background())
	if res.Errors != 2 {
		t.Errorf("ожидалось 2 ошибки, получено %d", res.Errors)
	}
}

func TestSyncStartStop(t *testing.T) {
	fs := &fakeSyncer{}
	svc := NewSyncService(fs, 10*time.Millisecond, time.Hour, testLogger())

	svc.Start(context.Background())
	deadline := time.Now().Add(time.Second)
	for fs.runCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("ожидалось минимум два прохода")
		}
		time.Sleep(5 * time.Millisecond)
	}
	svc.Stop()

	after := fs.runCount()
	time.Sleep(30 * time.Millisecond)
	if fs.runCount() != after {
		t.Error("после Stop проходы прекращаются")
	}
}
