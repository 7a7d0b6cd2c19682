package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which part of the bridge produced the error
type Phase string

const (
	PhaseHandle   Phase = "handle"   // handle table access
	PhaseRegister Phase = "register" // class registration
	PhaseExpose   Phase = "expose"   // class exposure into a realm
	PhaseBind     Phase = "bind"     // object binding table
	PhaseMarshal  Phase = "marshal"  // native <-> script value conversion
	PhaseResolve  Phase = "resolve"  // module specifier resolution
	PhaseLoad     Phase = "load"     // module body execution
	PhaseSchedule Phase = "schedule" // timer wheel
	PhaseRuntime  Phase = "runtime"  // realm operations
	PhaseConfig   Phase = "config"   // configuration
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch   Kind = "type_mismatch"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindUnsupported    Kind = "unsupported"
	KindOverflow       Kind = "overflow"
	KindNotFound       Kind = "not_found"
	KindNotInitialized Kind = "not_initialized"
	KindInvalidInput   Kind = "invalid_input"
	KindRegistration   Kind = "registration"
	KindInvalidHandle  Kind = "invalid_handle"
	KindInvalidPath    Kind = "invalid_path"
	KindAlreadyExists  Kind = "already_exists"
	KindArgumentCount  Kind = "argument_count"
	KindDisposed       Kind = "disposed"
	KindCapacity       Kind = "capacity"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Native string // native-side type name
	Script string // script-side type name
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	typed := e.Native != "" || e.Script != ""
	if typed {
		b.WriteString(": ")
		switch {
		case e.Native != "" && e.Script != "":
			b.WriteString("native type ")
			b.WriteString(e.Native)
			b.WriteString(", script type ")
			b.WriteString(e.Script)
		case e.Native != "":
			b.WriteString("native type ")
			b.WriteString(e.Native)
		default:
			b.WriteString("script type ")
			b.WriteString(e.Script)
		}
	}

	if e.Detail != "" {
		if typed {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Native sets the native type name
func (b *Builder) Native(t string) *Builder {
	b.err.Native = t
	return b
}

// Script sets the script type name
func (b *Builder) Script(t string) *Builder {
	b.err.Script = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, native, script string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Native: native,
		Script: script,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Native: target,
		Detail: fmt.Sprintf("value %v overflows %s", value, target),
		Value:  value,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Value:  name,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindRegistration,
		Detail: fmt.Sprintf("register class %s", name),
		Cause:  cause,
	}
}

// AlreadyExists creates a duplicate registration error
func AlreadyExists(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAlreadyExists,
		Detail: fmt.Sprintf("%s %q already registered", what, name),
		Value:  name,
	}
}

// ClassNotFound reports a type name missing from the reflection catalog
func ClassNotFound(name string) *Error {
	return &Error{
		Phase:  PhaseExpose,
		Kind:   KindNotFound,
		Native: name,
		Detail: "class not found",
		Value:  name,
	}
}

// InvalidHandle reports a stale or out-of-range handle
func InvalidHandle(phase Phase, h uint64) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("handle %#x is not valid", h),
		Value:  h,
	}
}

// InvalidPath reports a module path that cannot be normalized
func InvalidPath(path, detail string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindInvalidPath,
		Detail: fmt.Sprintf("%s: %s", path, detail),
		Value:  path,
	}
}

// ModuleNotFound reports a specifier no loader or resolver claimed
func ModuleNotFound(id string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("module %q not found", id),
		Value:  id,
	}
}

// Load creates a module loading error
func Load(id string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("load module %q", id),
		Value:  id,
		Cause:  cause,
	}
}

// ArgumentCount reports a call with too few arguments
func ArgumentCount(path []string, want, got int) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindArgumentCount,
		Path:   path,
		Detail: fmt.Sprintf("expected %d arguments, got %d", want, got),
		Value:  got,
	}
}

// Disposed reports use of a component after Close
func Disposed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDisposed,
		Detail: fmt.Sprintf("%s is closed", what),
	}
}
