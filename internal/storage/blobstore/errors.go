package blobstore

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded — запись превысила бы ёмкость хранилища.
	ErrQuotaExceeded = errors.New("превышена квота хранилища")
	// ErrAlreadyExists — запись для сессии уже существует.
	ErrAlreadyExists = errors.New("запись для сессии уже существует")
	// ErrNotFound — запись для сессии отсутствует.
	ErrNotFound = errors.New("запись для сессии не найдена")
	// ErrClearNotConfirmed — массовое удаление без подтверждения.
	ErrClearNotConfirmed = errors.New("очистка хранилища не подтверждена")
	// ErrLoadTimeout — ожидание ресурса превысило допустимое время.
	ErrLoadTimeout = errors.New("превышено время ожидания")
	// ErrHandlesExhausted — все дескрипторы воспроизведения заняты.
	ErrHandlesExhausted = errors.New("нет свободных дескрипторов воспроизведения")
	// ErrSizeMismatch — фактический размер данных не совпал с заявленным.
	ErrSizeMismatch = errors.New("размер данных не совпадает с заявленным")
	// ErrInvalidSessionID — пустой идентификатор сессии.
	ErrInvalidSessionID = errors.New("пустой идентификатор сессии")
)

// QuotaError — отказ записи по квоте с подробностями.
type QuotaError struct {
	Requested int64
	Used      int64
	Capacity  int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: запрошено %s, занято %s из %s",
		ErrQuotaExceeded.Error(),
		FormatBytes(e.Requested), FormatBytes(e.Used), FormatBytes(e.Capacity))
}

// Unwrap позволяет errors.Is(err, ErrQuotaExceeded).
func (e *QuotaError) Unwrap() error {
	return ErrQuotaExceeded
}
