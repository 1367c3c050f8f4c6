package blobstore

import "sync"

// Quota — учёт занятого места. Принадлежит экземпляру Store.
//
// used — сумма размеров сохранённых записей; reserved — место,
// зарезервированное незавершёнными записями. Проверка ёмкости
// учитывает обе величины, поэтому параллельные записи по разным
// ключам не могут совместно превысить ёмкость.
type Quota struct {
	mu       sync.Mutex
	capacity int64
	used     int64
	reserved int64
}

// NewQuota создаёт квоту с заданной ёмкостью в байтах.
func NewQuota(capacity int64) *Quota {
	return &Quota{capacity: capacity}
}

// reserve резервирует n байт или возвращает *QuotaError.
func (q *Quota) reserve(n int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.used+q.reserved+n > q.capacity {
		return &QuotaError{Requested: n, Used: q.used + q.reserved, Capacity: q.capacity}
	}
	q.reserved += n
	return nil
}

// commit переводит резерв в занятое место после успешной записи.
func (q *Quota) commit(n int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reserved -= n
	q.used += n
}

// cancel снимает резерв неудавшейся записи.
func (q *Quota) cancel(n int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reserved -= n
}

// free освобождает место удалённой записи.
func (q *Quota) free(n int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used -= n
	if q.used < 0 {
		q.used = 0
	}
}

// reset устанавливает занятое место по результату полного сканирования.
func (q *Quota) reset(used int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used = used
}

// Used возвращает занятое место в байтах.
func (q *Quota) Used() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

// Capacity возвращает ёмкость в байтах.
func (q *Quota) Capacity() int64 {
	return q.capacity
}

// Available возвращает свободное место с учётом резервов.
func (q *Quota) Available() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	free := q.capacity - q.used - q.reserved
	if free < 0 {
		return 0
	}
	return free
}
