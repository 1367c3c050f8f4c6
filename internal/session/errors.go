package session

import (
	"errors"
	"fmt"
)

// Ошибки менеджера сессий.
var (
	ErrSessionNotFound     = errors.New("сессия не найдена")
	ErrUnknownQuestion     = errors.New("вопрос не входит в сессию")
	ErrAlreadyAnswered     = errors.New("на вопрос уже есть ответ")
	ErrNotAnswered         = errors.New("на вопрос ещё нет ответа")
	ErrIncompleteResponses = errors.New("не на все вопросы есть ответы")
	ErrSessionSynced       = errors.New("сессия уже синхронизирована, изменения запрещены")
	ErrLoadTimeout         = errors.New("превышено время загрузки сессии")
	ErrInvalidInput        = errors.New("некорректные параметры")
)

// IncompleteError — завершение сессии с неотвеченными вопросами.
type IncompleteError struct {
	Missing []int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: нет ответов на вопросы %v", ErrIncompleteResponses.Error(), e.Missing)
}

// Unwrap позволяет сравнивать через errors.Is(err, ErrIncompleteResponses).
func (e *IncompleteError) Unwrap() error {
	return ErrIncompleteResponses
}
