package earshot

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/sirupsen/logrus"

	"github.com/dudk/earshot/log"
	"github.com/dudk/earshot/metric"
)

// Chain is a linear sequence of stages. Stage i forwards to stage i+1,
// the forward handles are computed from the ordered list and owned by the
// chain. Chains don't share any state.
type Chain struct {
	format Format
	log    logrus.FieldLogger
	links  []*link
}

// ChainOption provides a way to set functional parameters to chain.
type ChainOption func(*Chain)

// WithLogger sets logger to chain. If this option is not provided, the
// default logger is used.
func WithLogger(l logrus.FieldLogger) ChainOption {
	return func(c *Chain) {
		c.log = l
	}
}

// WithFormat sets the audio format used for metrics.
func WithFormat(f Format) ChainOption {
	return func(c *Chain) {
		c.format = f
	}
}

// link binds the stage to the link of its successor.
type link struct {
	stage   Stage
	id      string
	name    string
	phase   phase
	next    Next
	log     logrus.FieldLogger
	measure metric.MeasureFunc
}

// NewChain links stages in declaration order.
func NewChain(stages []Stage, options ...ChainOption) (*Chain, error) {
	if len(stages) == 0 {
		return nil, ErrEmptyChain
	}
	c := &Chain{
		format: DefaultFormat,
		log:    log.GetLogger(),
	}
	for _, option := range options {
		option(c)
	}

	seen := make(map[Stage]struct{}, len(stages))
	c.links = make([]*link, len(stages))
	for i, s := range stages {
		if s == nil {
			return nil, fmt.Errorf("stage %d: %w", i, ErrNilStage)
		}
		if isComparable(s) {
			if _, ok := seen[s]; ok {
				return nil, fmt.Errorf("stage %d: %w", i, ErrDuplicateStage)
			}
			seen[s] = struct{}{}
		}
		l := &link{
			stage:   s,
			id:      stageID(s),
			name:    stageName(s),
			measure: metric.Meter(s, c.format.SampleRate*c.format.FrameBytes()),
		}
		l.log = c.log.WithFields(logrus.Fields{"stage": l.name, "id": l.id})
		c.links[i] = l
	}

	// forwarding is computed from the list, last stage gets terminal.
	for i := range c.links {
		if i == len(c.links)-1 {
			c.links[i].next = Terminal
		} else {
			c.links[i].next = c.links[i+1]
		}
	}
	return c, nil
}

// Start starts the head of the chain.
func (c *Chain) Start(ch Chunk) error {
	return c.links[0].Start(ch)
}

// Exec executes the head of the chain.
func (c *Chain) Exec(ch Chunk) error {
	return c.links[0].Exec(ch)
}

// Stop stops the head of the chain.
func (c *Chain) Stop(ch Chunk) error {
	return c.links[0].Stop(ch)
}

// Len returns the number of stages.
func (c *Chain) Len() int {
	return len(c.links)
}

// Phase returns lifecycle phase of the stage at position i.
func (c *Chain) Phase(i int) Phase {
	return c.links[i].phase.load()
}

// Head returns the first stage of the chain.
func (c *Chain) Head() Stage {
	return c.links[0].stage
}

// ID returns ID of the stage at position i.
func (c *Chain) ID(i int) string {
	return c.links[i].id
}

func (l *link) Start(c Chunk) error {
	prev, ok := l.phase.transition(Running, Idle, Stopped)
	if !ok {
		return l.wrap("start", ErrInvalidState)
	}
	l.log.Debug("start")
	if err := l.stage.Start(l.next, c); err != nil {
		l.phase.store(prev)
		return l.wrap("start", err)
	}
	return nil
}

func (l *link) Exec(c Chunk) error {
	if l.phase.load() != Running {
		return l.wrap("exec", ErrInvalidState)
	}
	err := l.stage.Exec(l.next, c)
	if err == nil {
		if len(c) > 0 {
			l.measure(int64(len(c)))
		}
		return nil
	}
	if errors.Is(err, ErrTransform) {
		// failures are scoped to a single chunk.
		l.log.WithError(err).Warn("chunk dropped")
		return nil
	}
	return l.wrap("exec", err)
}

func (l *link) Stop(c Chunk) error {
	if _, ok := l.phase.transition(Stopped, Running); !ok {
		return nil
	}
	l.log.Debug("stop")
	if err := l.stage.Stop(l.next, c); err != nil {
		return l.wrap("stop", err)
	}
	return nil
}

// wrap binds stage identity to the error. Errors that already carry a
// stage are returned as is, so downstream failures keep their origin.
func (l *link) wrap(op string, err error) error {
	var (
		e    *Error
		list Errors
	)
	switch {
	case errors.As(err, &list):
		return err
	case errors.As(err, &e):
		if e.Stage == "" {
			e.Stage = l.name + " " + l.id
		}
		if e.Op == "" {
			e.Op = op
		}
		return err
	}
	return &Error{Kind: InternalError, Stage: l.name + " " + l.id, Op: op, Err: err}
}

func stageID(s Stage) string {
	if v, ok := s.(Identifier); ok && v.ID() != "" {
		return v.ID()
	}
	return NewUID()
}

func stageName(s Stage) string {
	rv := reflect.ValueOf(s)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

func isComparable(s Stage) bool {
	return reflect.TypeOf(s).Comparable()
}
