package lifecycle

import (
	"errors"
	"testing"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/domain/model"
)

// TestTransitions проверяет матрицу переходов.
func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to model.SessionState
		ok       bool
	}{
		{model.SessionActive, model.SessionComplete, true},
		{model.SessionComplete, model.SessionSynced, true},
		{model.SessionActive, model.SessionSynced, false},
		{model.SessionComplete, model.SessionActive, false},
		{model.SessionSynced, model.SessionActive, false},
		{model.SessionSynced, model.SessionComplete, false},
		{model.SessionActive, model.SessionState("paused"), false},
	}

	for _, tt := range tests {
		got, err := Transition(tt.from, tt.to)
		if tt.ok {
			if err != nil {
				t.Errorf("%s → %s: неожиданная ошибка: %v", tt.from, tt.to, err)
			}
			if got != tt.to {
				t.Errorf("%s → %s: получено состояние %q", tt.from, tt.to, got)
			}
			continue
		}
		if err == nil {
			t.Errorf("%s → %s: ожидалась ошибка", tt.from, tt.to)
			continue
		}
		if got != tt.from {
			t.Errorf("%s → %s: при ошибке состояние не должно меняться, получено %q", tt.from, tt.to, got)
		}
		var te *TransitionError
		if !errors.As(err, &te) || te.Code != CodeInvalidTransition {
			t.Errorf("%s → %s: ожидался код %s, получено %v", tt.from, tt.to, CodeInvalidTransition, err)
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s → %s: errors.Is(ErrInvalidTransition) = false", tt.from, tt.to)
		}
	}
}

// TestCanPerform проверяет матрицу операций.
func TestCanPerform(t *testing.T) {
	tests := []struct {
		state model.SessionState
		op    Operation
		want  bool
	}{
		{model.SessionActive, OpAnswer, true},
		{model.SessionActive, OpComplete, true},
		{model.SessionActive, OpSync, false},
		{model.SessionComplete, OpAnswer, false},
		{model.SessionComplete, OpEdit, true},
		{model.SessionComplete, OpSync, true},
		{model.SessionSynced, OpEdit, false},
		{model.SessionSynced, OpResume, true},
		{model.SessionState("unknown"), OpResume, false},
	}

	for _, tt := range tests {
		if got := CanPerform(tt.state, tt.op); got != tt.want {
			t.Errorf("CanPerform(%s, %s) = %v, ожидалось %v", tt.state, tt.op, got, tt.want)
		}
	}
}

// TestRequire проверяет код ошибки недопустимой операции.
func TestRequire(t *testing.T) {
	if err := Require(model.SessionActive, OpAnswer); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	err := Require(model.SessionSynced, OpEdit)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("ожидался *TransitionError, получено %v", err)
	}
	if te.Code != CodeNotAllowed {
		t.Errorf("ожидался код %s, получен %q", CodeNotAllowed, te.Code)
	}
}

// TestParseState проверяет разбор состояния из строки.
func TestParseState(t *testing.T) {
	for _, s := range []string{"active", "complete", "synced"} {
		st, err := ParseState(s)
		if err != nil {
			t.Errorf("ParseState(%q): неожиданная ошибка: %v", s, err)
		}
		if string(st) != s {
			t.Errorf("ParseState(%q) = %q", s, st)
		}
	}
	if _, err := ParseState("done"); err == nil {
		t.Error("ParseState(\"done\"): ожидалась ошибка")
	}
}
