// Package capture provides the producing stage of a chain. It reads
// fixed-size chunks from an input device and feeds them downstream.
package capture

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dudk/earshot"
	"github.com/dudk/earshot/log"
)

// Device is an audio input opened at the fixed pipeline format.
type Device interface {
	Open(earshot.Format) error
	// Read fills the whole chunk. It blocks for about one chunk duration.
	// io.EOF means the device has no more data.
	Read(earshot.Chunk) error
	Close() error
}

const (
	// DefaultWarmup is the duration of audio discarded after device open.
	DefaultWarmup = 50 * time.Millisecond
	// DefaultGrace is how long Stop waits for the read loop to flush.
	DefaultGrace = 100 * time.Millisecond
)

// Stage reads chunks from device and forwards them downstream. Exec blocks
// until Stop is called or device fails.
type Stage struct {
	uid    string
	device Device
	format earshot.Format
	warmup time.Duration
	grace  time.Duration
	log    logrus.FieldLogger

	running   int32
	discarded int64

	mu       sync.Mutex
	stopping bool
	opened   bool
	done     chan struct{}
}

// Option provides a way to set functional parameters to stage.
type Option func(*Stage)

// WithFormat sets format the device is opened with.
func WithFormat(f earshot.Format) Option {
	return func(s *Stage) {
		s.format = f
	}
}

// WithWarmup sets duration of audio discarded after device open.
func WithWarmup(d time.Duration) Option {
	return func(s *Stage) {
		s.warmup = d
	}
}

// WithGrace sets how long Stop waits for the read loop to exit.
func WithGrace(d time.Duration) Option {
	return func(s *Stage) {
		s.grace = d
	}
}

// WithLogger sets logger to stage.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Stage) {
		s.log = l
	}
}

// New returns capture stage for provided device.
func New(device Device, options ...Option) *Stage {
	s := &Stage{
		uid:    earshot.NewUID(),
		device: device,
		format: earshot.DefaultFormat,
		warmup: DefaultWarmup,
		grace:  DefaultGrace,
		log:    log.GetLogger(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// ID returns stage id.
func (s *Stage) ID() string {
	return s.uid
}

// Produce marks capture as the chain producer.
func (*Stage) Produce() {}

// Start forwards start downstream. Device is opened in Exec.
func (s *Stage) Start(next earshot.Next, _ earshot.Chunk) error {
	s.mu.Lock()
	s.stopping = false
	s.mu.Unlock()
	return next.Start(nil)
}

// Exec opens the device and runs the read loop until Stop is called.
func (s *Stage) Exec(next earshot.Next, _ earshot.Chunk) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	if err := s.device.Open(s.format); err != nil {
		s.mu.Unlock()
		return earshot.NewError(earshot.DeviceError, "open", err)
	}
	s.opened = true
	done := make(chan struct{})
	s.done = done
	// warm-up is applied on every exec, restarted runs skip transients too.
	discard := s.format.ChunksIn(s.warmup)
	atomic.StoreInt64(&s.discarded, 0)
	atomic.StoreInt32(&s.running, 1)
	s.mu.Unlock()
	defer close(done)

	s.log.WithField("discard", discard).Debug("capture started")

	size := s.format.ChunkBytes()
	for s.isRunning() {
		c := make(earshot.Chunk, size)
		if err := s.device.Read(c); err != nil {
			if !s.isRunning() {
				return nil
			}
			atomic.StoreInt32(&s.running, 0)
			if errors.Is(err, io.EOF) {
				s.log.Debug("capture exhausted")
				return nil
			}
			return earshot.NewError(earshot.DeviceError, "read", err)
		}
		if discard > 0 {
			discard--
			atomic.AddInt64(&s.discarded, 1)
			continue
		}
		if err := next.Exec(c); err != nil {
			if !s.isRunning() {
				return nil
			}
			atomic.StoreInt32(&s.running, 0)
			return err
		}
	}
	return nil
}

// Stop ends the read loop, closes the device and forwards stop
// downstream.
func (s *Stage) Stop(next earshot.Next, _ earshot.Chunk) error {
	s.mu.Lock()
	s.stopping = true
	atomic.StoreInt32(&s.running, 0)
	done, opened := s.done, s.opened
	s.done, s.opened = nil, false
	s.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(s.grace):
			s.log.WithField("grace", s.grace).Warn("read loop didn't exit in time")
		}
	}

	var closeErr error
	if opened {
		if err := s.device.Close(); err != nil {
			closeErr = earshot.NewError(earshot.DeviceError, "close", err)
		}
	}
	if err := next.Stop(nil); err != nil {
		return earshot.Errors{}.Add(closeErr, err).Ret()
	}
	return closeErr
}

// Discarded returns number of warm-up chunks dropped by the last exec.
func (s *Stage) Discarded() int {
	return int(atomic.LoadInt64(&s.discarded))
}

func (s *Stage) isRunning() bool {
	return atomic.LoadInt32(&s.running) == 1
}
