// Package window provides the buffering stage that feeds a slow consumer
// with windows of audio without blocking the producer.
package window

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dudk/earshot"
	"github.com/dudk/earshot/log"
)

// Result is a piece of consumer output bound to the window timeline.
type Result struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Consumer processes a window of audio. It's invoked from the stage
// goroutine, one window at a time, in drain order.
type Consumer interface {
	Consume(context.Context, earshot.Chunk) ([]Result, error)
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(context.Context, earshot.Chunk) ([]Result, error)

// Consume calls fn(ctx, w).
func (fn ConsumerFunc) Consume(ctx context.Context, w earshot.Chunk) ([]Result, error) {
	return fn(ctx, w)
}

// Policy defines when buffered audio is drained. Whichever limit is
// reached first triggers the drain.
type Policy struct {
	MaxWait  time.Duration
	MaxBytes int
}

// DefaultPolicy drains every 250ms or when 5 seconds of audio are buffered.
var DefaultPolicy = Policy{
	MaxWait:  250 * time.Millisecond,
	MaxBytes: 5 * earshot.DefaultFormat.SampleRate * earshot.DefaultFormat.FrameBytes(),
}

// Handler receives consumer results.
type Handler func(seq int, r Result)

// Stage accumulates chunks and hands them over to the consumer from the
// background goroutine.
type Stage struct {
	uid         string
	consumer    Consumer
	policy      Policy
	handler     Handler
	stopTimeout time.Duration
	log         logrus.FieldLogger

	mu      sync.Mutex
	buf     earshot.Chunk
	windows int

	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
}

// Option provides a way to set functional parameters to stage.
type Option func(*Stage)

// WithPolicy sets drain policy.
func WithPolicy(p Policy) Option {
	return func(s *Stage) {
		s.policy = p
	}
}

// WithHandler sets results handler. By default results are logged.
func WithHandler(h Handler) Option {
	return func(s *Stage) {
		s.handler = h
	}
}

// WithStopTimeout bounds the time Stop waits for the goroutine. Zero
// means wait until it exits.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Stage) {
		s.stopTimeout = d
	}
}

// WithLogger sets logger to stage.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Stage) {
		s.log = l
	}
}

// New returns a new window stage with injected consumer.
func New(consumer Consumer, options ...Option) *Stage {
	s := &Stage{
		uid:      earshot.NewUID(),
		consumer: consumer,
		policy:   DefaultPolicy,
		log:      log.GetLogger(),
	}
	for _, option := range options {
		option(s)
	}
	if s.policy.MaxWait <= 0 {
		s.policy.MaxWait = DefaultPolicy.MaxWait
	}
	if s.policy.MaxBytes <= 0 {
		s.policy.MaxBytes = DefaultPolicy.MaxBytes
	}
	if s.handler == nil {
		s.handler = s.logResult
	}
	return s
}

// ID returns stage id.
func (s *Stage) ID() string {
	return s.uid
}

// Start resets the consumer, starts the goroutine and forwards start.
func (s *Stage) Start(next earshot.Next, c earshot.Chunk) error {
	if err := earshot.Reset(s.consumer, s.uid); err != nil {
		return earshot.NewError(earshot.ConsumerError, "reset", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.buf = nil
	s.windows = 0
	s.wake = make(chan struct{}, 1)
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	s.cancel = cancel
	go s.run(ctx, s.wake, s.quit, s.done)
	s.mu.Unlock()

	s.Accept(c)
	if err := next.Start(nil); err != nil {
		return earshot.Errors{}.Add(err, s.shutdown()).Ret()
	}
	return nil
}

// Exec accepts the chunk and forwards it.
func (s *Stage) Exec(next earshot.Next, c earshot.Chunk) error {
	s.Accept(c)
	return next.Exec(c)
}

// Stop accepts the last data, drains the buffer one final time, releases
// the consumer and forwards stop. If the goroutine doesn't exit within
// the stop timeout, ShutdownTimeout error is returned and the consumer
// is not released.
func (s *Stage) Stop(next earshot.Next, c earshot.Chunk) error {
	s.Accept(c)
	return earshot.Errors{}.Add(s.shutdown(), next.Stop(nil)).Ret()
}

// shutdown stops the goroutine and releases the consumer.
func (s *Stage) shutdown() error {
	s.mu.Lock()
	quit, done, cancel := s.quit, s.done, s.cancel
	s.quit, s.done, s.cancel = nil, nil, nil
	s.mu.Unlock()
	if quit == nil {
		return nil
	}
	close(quit)

	err := s.join(done)
	cancel()
	if err != nil {
		s.log.WithField("timeout", s.stopTimeout).Warn("consumer goroutine leaked")
		return err
	}
	if err := earshot.Flush(s.consumer, s.uid); err != nil {
		return earshot.NewError(earshot.ConsumerError, "flush", err)
	}
	return nil
}

// Accept appends data to the buffer and signals the goroutine when the
// buffer reached the size limit. It never waits for the consumer.
func (s *Stage) Accept(c earshot.Chunk) {
	if len(c) == 0 {
		return
	}
	s.mu.Lock()
	s.buf = append(s.buf, c...)
	full := len(s.buf) >= s.policy.MaxBytes
	wake := s.wake
	s.mu.Unlock()
	if full && wake != nil {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

// Windows returns number of drained non-empty windows.
func (s *Stage) Windows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windows
}

// Pending returns number of buffered bytes.
func (s *Stage) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

func (s *Stage) join(done chan struct{}) error {
	if s.stopTimeout <= 0 {
		<-done
		return nil
	}
	t := time.NewTimer(s.stopTimeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		return earshot.NewError(earshot.ShutdownTimeout, "stop", nil)
	}
}

func (s *Stage) run(ctx context.Context, wake, quit, done chan struct{}) {
	defer close(done)
	t := time.NewTimer(s.policy.MaxWait)
	defer t.Stop()
	for {
		select {
		case <-quit:
			s.consume(ctx, s.drain())
			return
		case <-wake:
			t.Stop()
			select {
			case <-t.C:
			default:
			}
		case <-t.C:
		}
		s.consume(ctx, s.drain())
		t.Reset(s.policy.MaxWait)
	}
}

// drained is a part of the buffer taken by a single drain.
type drained struct {
	seq  int
	data earshot.Chunk
}

// drain takes the buffer and resets it in one critical section.
func (s *Stage) drain() drained {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := drained{data: s.buf}
	s.buf = nil
	if len(w.data) == 0 {
		return w
	}
	s.windows++
	w.seq = s.windows
	return w
}

func (s *Stage) consume(ctx context.Context, w drained) {
	if len(w.data) == 0 {
		return
	}
	results, err := s.consumer.Consume(ctx, w.data)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"stage":  s.uid,
			"window": w.seq,
		}).WithError(earshot.NewError(earshot.ConsumerError, "consume", err)).Warn("window discarded")
		return
	}
	for _, r := range results {
		s.handler(w.seq, r)
	}
}

func (s *Stage) logResult(seq int, r Result) {
	s.log.WithFields(logrus.Fields{
		"stage":  s.uid,
		"window": seq,
		"start":  r.Start,
		"end":    r.End,
	}).Info(r.Text)
}
