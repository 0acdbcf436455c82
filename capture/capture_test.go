package capture_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/earshot"
	"github.com/dudk/earshot/capture"
	"github.com/dudk/earshot/log"
	"github.com/dudk/earshot/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newStage(d capture.Device, options ...capture.Option) *capture.Stage {
	return capture.New(d, append([]capture.Option{capture.WithLogger(log.Discard())}, options...)...)
}

func TestWarmup(t *testing.T) {
	tests := []struct {
		warmup    time.Duration
		discarded int
	}{
		{warmup: 0, discarded: 0},
		{warmup: 32 * time.Millisecond, discarded: 1},
		{warmup: 33 * time.Millisecond, discarded: 2},
		{warmup: capture.DefaultWarmup, discarded: 2},
		{warmup: 100 * time.Millisecond, discarded: 4},
	}
	for _, test := range tests {
		t.Run(test.warmup.String(), func(t *testing.T) {
			d := &mock.Device{Limit: 10, EOF: true, Ramp: true}
			next := &mock.Next{}
			s := newStage(d, capture.WithWarmup(test.warmup))

			require.NoError(t, s.Start(next, nil))
			require.NoError(t, s.Exec(next, nil))
			require.NoError(t, s.Stop(next, nil))

			assert.Equal(t, test.discarded, s.Discarded())
			read := d.Chunks()
			require.Len(t, read, 10)
			assert.Equal(t, read[test.discarded:], next.Chunks())
			assert.Equal(t, 1, d.Closes())
			assert.Equal(t, 1, next.Starts())
			assert.Equal(t, 1, next.Stops())
		})
	}
}

func TestChunkFormat(t *testing.T) {
	d := &mock.Device{Limit: 3, EOF: true}
	next := &mock.Next{}
	s := newStage(d, capture.WithWarmup(0))
	require.NoError(t, s.Start(next, nil))
	require.NoError(t, s.Exec(next, nil))
	require.NoError(t, s.Stop(next, nil))
	for _, c := range next.Chunks() {
		assert.Equal(t, earshot.DefaultFormat.ChunkBytes(), len(c))
	}
}

func TestStop(t *testing.T) {
	d := &mock.Device{Interval: time.Millisecond}
	next := &mock.Next{}
	s := newStage(d)
	require.NoError(t, s.Start(next, nil))

	errc := make(chan error, 1)
	go func() {
		errc <- s.Exec(next, nil)
	}()
	assert.Eventually(t, func() bool { return len(next.Chunks()) > 5 }, time.Second, time.Millisecond)

	require.NoError(t, s.Stop(next, nil))
	require.NoError(t, <-errc)
	assert.Equal(t, 1, d.Closes())
	assert.Equal(t, 1, next.Stops())

	// nothing is forwarded after stop.
	n := len(next.Chunks())
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, n, len(next.Chunks()))
}

func TestStopIdempotent(t *testing.T) {
	d := &mock.Device{Limit: 5, EOF: true}
	last := &mock.Stage{}
	chain, err := earshot.NewChain([]earshot.Stage{newStage(d), last}, earshot.WithLogger(log.Discard()))
	require.NoError(t, err)

	require.NoError(t, chain.Start(nil))
	require.NoError(t, chain.Exec(nil))
	require.NoError(t, chain.Stop(nil))
	require.NoError(t, chain.Stop(nil))
	assert.Equal(t, 1, d.Closes())
	assert.Equal(t, 1, last.Stops())
	assert.Equal(t, 3, last.Count())
}

func TestStopBeforeExec(t *testing.T) {
	d := &mock.Device{}
	next := &mock.Next{}
	s := newStage(d)
	require.NoError(t, s.Start(next, nil))
	require.NoError(t, s.Stop(next, nil))
	require.NoError(t, s.Exec(next, nil))
	assert.Equal(t, 0, d.Opens())
	assert.Equal(t, 0, d.Closes())
}

func TestGrace(t *testing.T) {
	// device blocks after two chunks until it's closed.
	d := &mock.Device{Limit: 2}
	next := &mock.Next{}
	s := newStage(d, capture.WithWarmup(0), capture.WithGrace(10*time.Millisecond))
	require.NoError(t, s.Start(next, nil))

	errc := make(chan error, 1)
	go func() {
		errc <- s.Exec(next, nil)
	}()
	assert.Eventually(t, func() bool { return d.Reads() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, s.Stop(next, nil))
	require.NoError(t, <-errc)
	assert.Len(t, next.Chunks(), 2)
}

func TestRestart(t *testing.T) {
	d := &mock.Device{Limit: 4, EOF: true}
	next := &mock.Next{}
	s := newStage(d)
	for i := 0; i < 2; i++ {
		require.NoError(t, s.Start(next, nil))
		require.NoError(t, s.Exec(next, nil))
		require.NoError(t, s.Stop(next, nil))
		assert.Equal(t, 2, s.Discarded())
	}
	assert.Equal(t, 2, d.Opens())
	assert.Len(t, next.Chunks(), 4)
}

func TestErrors(t *testing.T) {
	failure := errors.New("device failure")
	tests := []struct {
		description string
		device      *mock.Device
		next        *mock.Next
		expected    error
		forwarded   int
	}{
		{
			description: "open",
			device:      &mock.Device{ErrorOnOpen: failure},
			next:        &mock.Next{},
			expected:    earshot.ErrDevice,
		},
		{
			description: "read",
			device:      &mock.Device{ErrorOnRead: failure, FailAfter: 3},
			next:        &mock.Next{},
			expected:    earshot.ErrDevice,
			forwarded:   1,
		},
		{
			description: "forward",
			device:      &mock.Device{},
			next:        &mock.Next{ErrorOnExec: earshot.NewError(earshot.SinkError, "write", failure)},
			expected:    earshot.ErrSink,
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			s := newStage(test.device)
			require.NoError(t, s.Start(test.next, nil))
			err := s.Exec(test.next, nil)
			assert.True(t, errors.Is(err, test.expected))
			assert.True(t, errors.Is(err, failure))
			assert.True(t, earshot.IsFatal(err))
			assert.Len(t, test.next.Chunks(), test.forwarded)
			require.NoError(t, s.Stop(test.next, nil))
		})
	}

	t.Run("close", func(t *testing.T) {
		d := &mock.Device{Limit: 1, EOF: true, ErrorOnClose: failure}
		next := &mock.Next{}
		s := newStage(d)
		require.NoError(t, s.Start(next, nil))
		require.NoError(t, s.Exec(next, nil))
		err := s.Stop(next, nil)
		assert.True(t, errors.Is(err, earshot.ErrDevice))
		assert.Equal(t, 1, next.Stops())
	})
}
