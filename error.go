package earshot

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies pipeline errors.
type Kind int

// Kinds of errors.
const (
	// InternalError is any error that doesn't fit other kinds.
	InternalError Kind = iota
	// DeviceError means the capture device is unavailable or lost. Fatal.
	DeviceError
	// TransformError means a synchronous stage failed on a single chunk.
	// The chunk is dropped and the chain continues.
	TransformError
	// ConsumerError means a consumer operation failed on a single window.
	// The window output is discarded and the stage keeps draining.
	ConsumerError
	// SinkError means the sink couldn't acquire or write its container.
	SinkError
	// ShutdownTimeout means a background goroutine didn't exit in time.
	ShutdownTimeout
)

// Sentinel errors to match kinds with errors.Is.
var (
	ErrDevice          = errors.New("device error")
	ErrTransform       = errors.New("transform error")
	ErrConsumer        = errors.New("consumer error")
	ErrSink            = errors.New("sink error")
	ErrShutdownTimeout = errors.New("shutdown timeout")
)

var (
	// ErrInvalidState is returned if stage method cannot be executed at
	// this moment.
	ErrInvalidState = errors.New("invalid state")
	// ErrEmptyChain is returned when chain has no stages.
	ErrEmptyChain = errors.New("chain has no stages")
	// ErrNilStage is returned when chain contains nil stage.
	ErrNilStage = errors.New("nil stage")
	// ErrDuplicateStage is returned when the same stage is added twice.
	ErrDuplicateStage = errors.New("duplicate stage")
	// ErrNoProducer is returned when chain head doesn't produce chunks.
	ErrNoProducer = errors.New("chain head is not a producer")
)

// Error is a pipeline error bound to the stage and operation where it
// happened.
type Error struct {
	Kind  Kind
	Stage string
	Op    string
	Err   error
}

// NewError wraps err into Error of provided kind.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Stage != "" {
		fmt.Fprintf(&b, "%s: ", e.Stage)
	}
	if e.Op != "" {
		fmt.Fprintf(&b, "%s: ", e.Op)
	}
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels.
func (e *Error) Is(target error) bool {
	return e.Kind.sentinel() == target
}

// Fatal reports if the error must abort the run.
func (e *Error) Fatal() bool {
	switch e.Kind {
	case TransformError, ConsumerError, ShutdownTimeout:
		return false
	}
	return true
}

func (k Kind) String() string {
	switch k {
	case DeviceError:
		return "device error"
	case TransformError:
		return "transform error"
	case ConsumerError:
		return "consumer error"
	case SinkError:
		return "sink error"
	case ShutdownTimeout:
		return "shutdown timeout"
	}
	return "internal error"
}

func (k Kind) sentinel() error {
	switch k {
	case DeviceError:
		return ErrDevice
	case TransformError:
		return ErrTransform
	case ConsumerError:
		return ErrConsumer
	case SinkError:
		return ErrSink
	case ShutdownTimeout:
		return ErrShutdownTimeout
	}
	return nil
}

// IsFatal reports whether err aborts the run. Errors that are not
// classified are fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal()
	}
	return true
}

// Errors wraps errors that might occur when multiple stages are failing.
type Errors []error

func (e Errors) Error() string {
	s := []string{}
	for _, se := range e {
		s = append(s, se.Error())
	}
	return strings.Join(s, ", ")
}

// Is checks if any of errors match provided target.
func (e Errors) Is(target error) bool {
	for _, se := range e {
		if errors.Is(se, target) {
			return true
		}
	}
	return false
}

// As finds the first error that matches target.
func (e Errors) As(target interface{}) bool {
	for _, se := range e {
		if errors.As(se, target) {
			return true
		}
	}
	return false
}

// Ret returns untyped nil if error list is empty.
func (e Errors) Ret() error {
	switch len(e) {
	case 0:
		return nil
	case 1:
		return e[0]
	}
	return e
}

// Add appends non-nil errors. Nested lists are flattened.
func (e Errors) Add(errs ...error) Errors {
	for _, err := range errs {
		if err == nil {
			continue
		}
		if nested, ok := err.(Errors); ok {
			e = append(e, nested...)
			continue
		}
		e = append(e, err)
	}
	return e
}
