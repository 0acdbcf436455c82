// Package transform provides synchronous stages. Every stage computes
// exactly one output chunk of the same length per input chunk and
// forwards it immediately.
package transform

import (
	"fmt"

	"github.com/dudk/earshot"
)

// Func computes an output chunk. It must not modify the input.
type Func func(earshot.Chunk) (earshot.Chunk, error)

// Transform is a stateless synchronous stage.
type Transform struct {
	uid string
	fn  Func
}

// New returns stage that applies fn to every chunk.
func New(fn Func) *Transform {
	return &Transform{
		uid: earshot.NewUID(),
		fn:  fn,
	}
}

// ID returns stage id.
func (t *Transform) ID() string {
	return t.uid
}

// Start forwards start.
func (t *Transform) Start(next earshot.Next, c earshot.Chunk) error {
	return next.Start(c)
}

// Exec applies the function and forwards the result.
func (t *Transform) Exec(next earshot.Next, c earshot.Chunk) error {
	return apply(next, c, t.fn)
}

// Stop forwards stop.
func (t *Transform) Stop(next earshot.Next, c earshot.Chunk) error {
	return next.Stop(c)
}

// apply runs fn and forwards its output. Failed or malformed output is
// reported as TransformError and not forwarded.
func apply(next earshot.Next, c earshot.Chunk, fn Func) error {
	out, err := fn(c)
	if err != nil {
		return earshot.NewError(earshot.TransformError, "exec", err)
	}
	if len(out) != len(c) {
		return earshot.NewError(earshot.TransformError, "exec",
			fmt.Errorf("output length %d doesn't match input length %d", len(out), len(c)))
	}
	return next.Exec(out)
}
