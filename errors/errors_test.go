package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseMarshal,
				Kind:   KindTypeMismatch,
				Path:   []string{"Node", "set_name", "0"},
				Native: "String",
				Script: "object",
				Detail: "cannot convert",
			},
			contains: []string{"[marshal]", "type_mismatch", "Node.set_name.0", "native type String", "script type object", "cannot convert"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseHandle,
				Kind:  KindInvalidHandle,
			},
			contains: []string{"[handle]", "invalid_handle"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseLoad,
				Kind:   KindInvalidData,
				Detail: "load module",
				Cause:  errors.New("syntax error"),
			},
			contains: []string{"[load]", "invalid_data", "load module", "caused by", "syntax error"},
		},
		{
			name:     "script type only",
			err:      &Error{Phase: PhaseMarshal, Kind: KindTypeMismatch, Script: "symbol", Detail: "no conversion"},
			contains: []string{"script type symbol - no conversion"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(PhaseRuntime, KindInvalidData, cause, "eval")

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should walk to cause")
	}
}

func TestError_Is(t *testing.T) {
	err := InvalidHandle(PhaseBind, 0x10000002)

	if !errors.Is(err, &Error{Phase: PhaseBind, Kind: KindInvalidHandle}) {
		t.Error("Is should match same phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseHandle, Kind: KindInvalidHandle}) {
		t.Error("Is should not match different phase")
	}
	if errors.Is(err, &Error{Phase: PhaseBind, Kind: KindNotFound}) {
		t.Error("Is should not match different kind")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseMarshal, KindTypeMismatch).
		Path("Vector2", "x").
		Native("float").
		Script("string").
		Value("abc").
		Cause(cause).
		Detail("expected %s, got %s", "number", "string").
		Build()

	if err.Phase != PhaseMarshal || err.Kind != KindTypeMismatch {
		t.Errorf("Phase/Kind = %v/%v", err.Phase, err.Kind)
	}
	if len(err.Path) != 2 || err.Path[0] != "Vector2" || err.Path[1] != "x" {
		t.Errorf("Path = %v, want [Vector2 x]", err.Path)
	}
	if err.Native != "float" || err.Script != "string" {
		t.Errorf("Native=%v Script=%v", err.Native, err.Script)
	}
	if err.Value != "abc" {
		t.Errorf("Value = %v, want abc", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected number, got string" {
		t.Errorf("Detail = %q", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
	}{
		{"ClassNotFound", ClassNotFound("Sprite"), PhaseExpose, KindNotFound},
		{"ModuleNotFound", ModuleNotFound("lib/x"), PhaseResolve, KindNotFound},
		{"InvalidPath", InvalidPath("a/../..", "escapes root"), PhaseResolve, KindInvalidPath},
		{"InvalidHandle", InvalidHandle(PhaseHandle, 7), PhaseHandle, KindInvalidHandle},
		{"ArgumentCount", ArgumentCount([]string{"Node", "add_child"}, 1, 0), PhaseMarshal, KindArgumentCount},
		{"Overflow", Overflow(PhaseMarshal, nil, 300, "u8"), PhaseMarshal, KindOverflow},
		{"AlreadyExists", AlreadyExists(PhaseRegister, "class", "Node"), PhaseRegister, KindAlreadyExists},
		{"Registration", Registration("Node", errors.New("x")), PhaseRegister, KindRegistration},
		{"Load", Load("main", errors.New("boom")), PhaseLoad, KindInvalidData},
		{"Disposed", Disposed(PhaseRuntime, "realm"), PhaseRuntime, KindDisposed},
		{"NotFound", NotFound(PhaseBind, "object", "1"), PhaseBind, KindNotFound},
		{"Unsupported", Unsupported(PhaseMarshal, "symbol"), PhaseMarshal, KindUnsupported},
		{"OutOfBounds", OutOfBounds(PhaseMarshal, nil, 4, 3), PhaseMarshal, KindOutOfBounds},
		{"NotInitialized", NotInitialized(PhaseRuntime, "engine"), PhaseRuntime, KindNotInitialized},
		{"InvalidInput", InvalidInput(PhaseConfig, "fps must be positive"), PhaseConfig, KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("Phase = %v, want %v", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestInvalidPathMessage(t *testing.T) {
	err := InvalidPath("a/../..", "cannot pop above root")
	if !strings.Contains(err.Error(), "a/../..") {
		t.Errorf("message %q missing offending path", err.Error())
	}
}
