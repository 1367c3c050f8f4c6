package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/lifecycle"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/remote"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/sessiondb"
)

// SyncResult — итог одного прохода фоновой синхронизации.
type SyncResult struct {
	ResponsesSynced int
	ResponsesFailed int
	SessionsSynced  int
	SessionsFailed  int
	SessionsPurged  int
}

// pendingBatch — сколько ответов отправляется за один проход.
const pendingBatch = 100

// pushResponse отправляет ответ в удалённое хранилище и сохраняет
// выданный идентификатор. Ошибки не возвращаются: ответ остаётся
// в очереди и будет отправлен SyncService.
func (m *Manager) pushResponse(ctx context.Context, userID, sessionID string, resp *model.QuestionResponse) {
	if err := m.sendResponse(ctx, userID, sessionID, resp); err != nil {
		m.logRemote("запись ответа", sessionID, err)
	}
}

func (m *Manager) sendResponse(ctx context.Context, userID, sessionID string, resp *model.QuestionResponse) error {
	rctx, cancel := context.WithTimeout(ctx, m.opts.RemoteTimeout)
	defer cancel()

	id, err := m.remote.SaveResponse(rctx, userID, sessionID, *resp)
	observeRemote("response", err)
	if err != nil {
		return err
	}
	if err := m.db.MarkResponseSynced(ctx, sessionID, resp.QuestionID, id); err != nil {
		return fmt.Errorf("ошибка сохранения идентификатора ответа: %w", err)
	}
	resp.ResponseID = id
	return nil
}

// syncCompletion досылает неотправленные ответы и подтверждает
// завершение сессии; при успехе сессия переходит в synced.
// Вызывается под блокировкой сессии.
func (m *Manager) syncCompletion(ctx context.Context, sess *model.InterviewSession) error {
	if err := lifecycle.Require(sess.State, lifecycle.OpSync); err != nil {
		return err
	}

	// Запись ответа — upsert, поэтому при наличии очереди
	// повторно отправляются все ответы сессии.
	pending, err := m.db.CountPendingResponses(ctx, sess.SessionID)
	if err != nil {
		return err
	}
	if pending > 0 {
		for _, r := range sess.OrderedResponses() {
			if err := m.sendResponse(ctx, sess.UserID, sess.SessionID, &r); err != nil {
				return err
			}
			sess.Responses[r.QuestionID].ResponseID = r.ResponseID
		}
	}

	rctx, cancel := context.WithTimeout(ctx, m.opts.RemoteTimeout)
	defer cancel()
	err = m.remote.CompleteSession(rctx, sess.SessionID)
	observeRemote("complete", err)
	if err != nil {
		return err
	}

	next, err := lifecycle.Transition(sess.State, model.SessionSynced)
	if err != nil {
		return err
	}
	now := m.now()
	if err := m.db.SetState(ctx, sess.SessionID, next, now); err != nil {
		return fmt.Errorf("ошибка отметки синхронизации: %w", err)
	}
	sess.State = next
	sess.SyncedAt = &now

	m.logger.Info("Сессия синхронизирована", slog.String("session_id", sess.SessionID))
	return nil
}

// SyncPending отправляет ответы без подтверждения удалённого хранилища
// и подтверждает завершение complete-сессий.
func (m *Manager) SyncPending(ctx context.Context) (SyncResult, error) {
	var res SyncResult

	pending, err := m.db.ListPendingResponses(ctx, pendingBatch)
	if err != nil {
		return res, err
	}
	for _, p := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := m.resendResponse(ctx, p); err != nil {
			res.ResponsesFailed++
			if errors.Is(err, remote.ErrUnavailable) {
				// Автономный режим: остальные попытки тоже не пройдут
				return res, nil
			}
			m.logRemote("повтор записи ответа", p.SessionID, err)
			continue
		}
		res.ResponsesSynced++
	}

	ids, err := m.db.ListByState(ctx, model.SessionComplete)
	if err != nil {
		return res, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := m.resyncSession(ctx, id); err != nil {
			res.SessionsFailed++
			if errors.Is(err, remote.ErrUnavailable) {
				return res, nil
			}
			m.logRemote("повтор подтверждения завершения", id, err)
			continue
		}
		res.SessionsSynced++
	}

	return res, nil
}

// PurgeSynced удаляет из локального хранилища синхронизированные
// сессии старше retention.
func (m *Manager) PurgeSynced(ctx context.Context, retention time.Duration) (int, error) {
	n, err := m.db.DeleteSyncedBefore(ctx, m.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("Удалены синхронизированные сессии",
			slog.Int("count", n),
			slog.String("retention", retention.String()),
		)
	}
	return n, nil
}

func (m *Manager) resendResponse(ctx context.Context, p sessiondb.PendingResponse) error {
	unlock, err := m.locks.Lock(ctx, p.SessionID)
	if err != nil {
		return err
	}
	defer unlock()

	resp := p.Response
	return m.sendResponse(ctx, p.UserID, p.SessionID, &resp)
}

func (m *Manager) resyncSession(ctx context.Context, sessionID string) error {
	unlock, err := m.locks.Lock(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	sess, err := m.load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.State != model.SessionComplete {
		return nil
	}
	return m.syncCompletion(ctx, sess)
}
