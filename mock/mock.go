// Package mock provides mocks for chain stages and collaborators and
// allows to execute integration tests.
package mock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dudk/earshot"
	"github.com/dudk/earshot/window"
)

// ErrClosed is returned by Device.Read after device was closed.
var ErrClosed = errors.New("device closed")

// Hooks tracks lifecycle hooks calls.
type Hooks struct {
	Resetted     bool
	Flushed      bool
	ErrorOnReset error
	ErrorOnFlush error
}

// Device mocks capture.Device. It generates a synthetic signal with
// Interval latency per chunk. When Limit chunks were read, Read blocks
// until the device is closed or returns io.EOF if EOF is set.
type Device struct {
	Interval time.Duration
	Limit    int
	EOF      bool
	Value    int16
	// Ramp makes every sample unique: n-th sample of the stream is int16(n).
	Ramp bool

	ErrorOnOpen  error
	ErrorOnRead  error
	ErrorOnClose error
	// FailAfter makes Read fail with ErrorOnRead after FailAfter reads.
	FailAfter int

	mu      sync.Mutex
	format  earshot.Format
	reads   int
	samples int
	opens   int
	closes  int
	shut    bool
	closed  chan struct{}
	chunks  []earshot.Chunk
}

// Open implements capture.Device.
func (d *Device) Open(f earshot.Format) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ErrorOnOpen != nil {
		return d.ErrorOnOpen
	}
	d.format = f
	d.opens++
	d.reads = 0
	d.shut = false
	d.closed = make(chan struct{})
	return nil
}

// Read implements capture.Device.
func (d *Device) Read(c earshot.Chunk) error {
	d.mu.Lock()
	closed := d.closed
	if d.shut {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.ErrorOnRead != nil && d.reads >= d.FailAfter {
		d.mu.Unlock()
		return d.ErrorOnRead
	}
	if d.Limit > 0 && d.reads >= d.Limit {
		d.mu.Unlock()
		if d.EOF {
			return io.EOF
		}
		<-closed
		return ErrClosed
	}
	d.mu.Unlock()

	if d.Interval > 0 {
		select {
		case <-time.After(d.Interval):
		case <-closed:
			return ErrClosed
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	s := make([]int16, len(c)/2)
	for i := range s {
		if d.Ramp {
			s[i] = int16(d.samples)
		} else {
			s[i] = d.Value
		}
		d.samples++
	}
	copy(c, earshot.FromSamples(s))
	d.reads++
	d.chunks = append(d.chunks, append(earshot.Chunk(nil), c...))
	return nil
}

// Close implements capture.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	if d.closed != nil && !d.shut {
		close(d.closed)
		d.shut = true
	}
	return d.ErrorOnClose
}

// Reads returns number of chunks read since last open.
func (d *Device) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Opens returns number of times device was opened.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Closes returns number of times device was closed.
func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Chunks returns all chunks produced by device.
func (d *Device) Chunks() []earshot.Chunk {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]earshot.Chunk(nil), d.chunks...)
}

// Stage records all calls and forwards them. Terminal stage doesn't
// forward.
type Stage struct {
	Terminal     bool
	ErrorOnStart error
	ErrorOnExec  error
	ErrorOnStop  error

	mu     sync.Mutex
	starts int
	stops  int
	chunks []earshot.Chunk
}

// Start implements earshot.Stage.
func (s *Stage) Start(next earshot.Next, c earshot.Chunk) error {
	s.mu.Lock()
	s.starts++
	s.mu.Unlock()
	if s.ErrorOnStart != nil {
		return s.ErrorOnStart
	}
	if s.Terminal {
		return nil
	}
	return next.Start(c)
}

// Exec implements earshot.Stage.
func (s *Stage) Exec(next earshot.Next, c earshot.Chunk) error {
	if s.ErrorOnExec != nil {
		return s.ErrorOnExec
	}
	s.mu.Lock()
	s.chunks = append(s.chunks, c)
	s.mu.Unlock()
	if s.Terminal {
		return nil
	}
	return next.Exec(c)
}

// Stop implements earshot.Stage.
func (s *Stage) Stop(next earshot.Next, c earshot.Chunk) error {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
	if s.ErrorOnStop != nil {
		return s.ErrorOnStop
	}
	if s.Terminal {
		return nil
	}
	return next.Stop(c)
}

// Chunks returns received chunks.
func (s *Stage) Chunks() []earshot.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]earshot.Chunk(nil), s.chunks...)
}

// Count returns number of received chunks.
func (s *Stage) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// Starts returns number of start calls.
func (s *Stage) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

// Stops returns number of stop calls.
func (s *Stage) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Next records forwarded calls. It's used to test stages in isolation.
type Next struct {
	ErrorOnExec error

	mu     sync.Mutex
	starts int
	stops  int
	chunks []earshot.Chunk
}

// Start implements earshot.Next.
func (n *Next) Start(earshot.Chunk) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.starts++
	return nil
}

// Exec implements earshot.Next.
func (n *Next) Exec(c earshot.Chunk) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ErrorOnExec != nil {
		return n.ErrorOnExec
	}
	n.chunks = append(n.chunks, c)
	return nil
}

// Stop implements earshot.Next.
func (n *Next) Stop(earshot.Chunk) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stops++
	return nil
}

// Chunks returns forwarded chunks.
func (n *Next) Chunks() []earshot.Chunk {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]earshot.Chunk(nil), n.chunks...)
}

// Starts returns number of forwarded starts.
func (n *Next) Starts() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.starts
}

// Stops returns number of forwarded stops.
func (n *Next) Stops() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stops
}

// Consumer mocks window.Consumer. It records every window it was
// invoked with.
type Consumer struct {
	// Delay simulates slow consumer operation.
	Delay time.Duration
	// Block holds every call until it's closed.
	Block chan struct{}
	// ErrorOnCall fails every call.
	ErrorOnCall error
	// FailWindow fails the n-th call, counting from 1.
	FailWindow int
	Hooks

	mu      sync.Mutex
	calls   int
	windows []earshot.Chunk
}

// Consume implements window.Consumer.
func (m *Consumer) Consume(ctx context.Context, w earshot.Chunk) ([]window.Result, error) {
	if m.Block != nil {
		<-m.Block
	}
	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.windows = append(m.windows, w)
	if m.ErrorOnCall != nil {
		return nil, m.ErrorOnCall
	}
	if m.FailWindow == m.calls {
		return nil, fmt.Errorf("window %d failed", m.calls)
	}
	return []window.Result{{Text: fmt.Sprintf("window %d: %d bytes", m.calls, len(w))}}, nil
}

// Reset implements earshot.Resetter.
func (m *Consumer) Reset(string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resetted = true
	return m.ErrorOnReset
}

// Flush implements earshot.Flusher.
func (m *Consumer) Flush(string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Flushed = true
	return m.ErrorOnFlush
}

// Windows returns all windows consumer was invoked with.
func (m *Consumer) Windows() []earshot.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]earshot.Chunk(nil), m.windows...)
}

// Calls returns number of consume calls.
func (m *Consumer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Concat returns all windows joined in call order.
func (m *Consumer) Concat() earshot.Chunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c earshot.Chunk
	for _, w := range m.windows {
		c = append(c, w...)
	}
	return c
}
