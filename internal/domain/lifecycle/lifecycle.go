// Пакет lifecycle — конечный автомат жизненного цикла сессии интервью.
//
// Жизненный цикл линейный: active → complete → synced.
// Обратных переходов нет; synced — конечное состояние.
//
// Автомат не хранит состояние: оно принадлежит записи сессии
// в локальном хранилище, здесь только матрицы допустимости.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
)

// Operation — операция над сессией.
type Operation string

const (
	OpAnswer   Operation = "answer"
	OpEdit     Operation = "edit"
	OpComplete Operation = "complete"
	OpSync     Operation = "sync"
	OpResume   Operation = "resume"
)

// Коды ошибок переходов.
const (
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeNotAllowed        = "OPERATION_NOT_ALLOWED"
)

// ErrInvalidTransition — базовая ошибка для errors.Is.
var ErrInvalidTransition = errors.New("недопустимый переход состояния сессии")

// validTransitions — матрица допустимых переходов.
var validTransitions = map[model.SessionState]map[model.SessionState]bool{
	model.SessionActive:   {model.SessionComplete: true},
	model.SessionComplete: {model.SessionSynced: true},
	model.SessionSynced:   {}, // Конечное состояние
}

// allowedOperations — матрица допустимых операций для каждого состояния.
var allowedOperations = map[model.SessionState]map[Operation]bool{
	model.SessionActive:   {OpAnswer: true, OpEdit: true, OpComplete: true, OpResume: true},
	model.SessionComplete: {OpEdit: true, OpSync: true, OpResume: true},
	model.SessionSynced:   {OpResume: true},
}

// TransitionError — ошибка перехода между состояниями.
type TransitionError struct {
	Code    string // Машиночитаемый код (INVALID_TRANSITION, OPERATION_NOT_ALLOWED)
	Message string // Человекочитаемое описание
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap позволяет сравнивать через errors.Is(err, ErrInvalidTransition).
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// CanTransition проверяет, допустим ли переход from → to.
func CanTransition(from, to model.SessionState) bool {
	transitions, ok := validTransitions[from]
	if !ok {
		return false
	}
	return transitions[to]
}

// Transition проверяет переход и возвращает целевое состояние.
func Transition(from, to model.SessionState) (model.SessionState, error) {
	if !IsValidState(to) {
		return from, &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("недопустимое целевое состояние: %q", to),
		}
	}
	if !CanTransition(from, to) {
		return from, &TransitionError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("переход %s → %s недопустим", from, to),
		}
	}
	return to, nil
}

// CanPerform проверяет, допустима ли операция в состоянии.
func CanPerform(state model.SessionState, op Operation) bool {
	ops, ok := allowedOperations[state]
	if !ok {
		return false
	}
	return ops[op]
}

// Require возвращает TransitionError, если операция недопустима.
func Require(state model.SessionState, op Operation) error {
	if CanPerform(state, op) {
		return nil
	}
	return &TransitionError{
		Code:    CodeNotAllowed,
		Message: fmt.Sprintf("операция %s недоступна в состоянии %s", op, state),
	}
}

// IsValidState проверяет, является ли строка допустимым состоянием.
func IsValidState(s model.SessionState) bool {
	switch s {
	case model.SessionActive, model.SessionComplete, model.SessionSynced:
		return true
	default:
		return false
	}
}

// ParseState преобразует строку в SessionState.
func ParseState(s string) (model.SessionState, error) {
	st := model.SessionState(s)
	if !IsValidState(st) {
		return "", fmt.Errorf("недопустимое состояние: %q, допустимые: active, complete, synced", s)
	}
	return st, nil
}
