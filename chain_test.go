package earshot_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/earshot"
	"github.com/dudk/earshot/log"
	"github.com/dudk/earshot/mock"
	"github.com/dudk/earshot/transform"
)

// tagger appends its tag to the trace on every exec.
type tagger struct {
	tag   string
	mu    *sync.Mutex
	trace *[]string
}

func (t tagger) Start(next earshot.Next, c earshot.Chunk) error { return next.Start(c) }
func (t tagger) Stop(next earshot.Next, c earshot.Chunk) error  { return next.Stop(c) }
func (t tagger) Exec(next earshot.Next, c earshot.Chunk) error {
	t.mu.Lock()
	*t.trace = append(*t.trace, t.tag)
	t.mu.Unlock()
	return next.Exec(c)
}

func newChain(t *testing.T, stages ...earshot.Stage) *earshot.Chain {
	t.Helper()
	c, err := earshot.NewChain(stages, earshot.WithLogger(log.Discard()))
	require.NoError(t, err)
	return c
}

func TestNewChain(t *testing.T) {
	s := &mock.Stage{}
	tests := []struct {
		description string
		stages      []earshot.Stage
		expected    error
	}{
		{description: "empty", stages: nil, expected: earshot.ErrEmptyChain},
		{description: "nil stage", stages: []earshot.Stage{&mock.Stage{}, nil}, expected: earshot.ErrNilStage},
		{description: "duplicate", stages: []earshot.Stage{s, &mock.Stage{}, s}, expected: earshot.ErrDuplicateStage},
		{description: "ok", stages: []earshot.Stage{&mock.Stage{}, &mock.Stage{}}},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			c, err := earshot.NewChain(test.stages, earshot.WithLogger(log.Discard()))
			if test.expected != nil {
				assert.True(t, errors.Is(err, test.expected))
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(test.stages), c.Len())
			for i := 0; i < c.Len(); i++ {
				assert.Equal(t, earshot.Idle, c.Phase(i))
				assert.NotEmpty(t, c.ID(i))
			}
		})
	}
}

func TestChainOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		trace []string
	)
	tags := []string{"a", "b", "c", "d"}
	var stages []earshot.Stage
	for _, tag := range tags {
		stages = append(stages, tagger{tag: tag, mu: &mu, trace: &trace})
	}
	last := &mock.Stage{Terminal: true}
	stages = append(stages, last)
	c := newChain(t, stages...)

	require.NoError(t, c.Start(nil))
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Exec(earshot.Chunk{byte(i)}))
	}
	require.NoError(t, c.Stop(nil))

	var expected []string
	for i := 0; i < 3; i++ {
		expected = append(expected, tags...)
	}
	assert.Equal(t, expected, trace)
	assert.Equal(t, []earshot.Chunk{{0}, {1}, {2}}, last.Chunks())
}

func TestLifecycle(t *testing.T) {
	first, last := &mock.Stage{}, &mock.Stage{}
	c := newChain(t, first, last)

	// exec before start is rejected and stage is not invoked.
	err := c.Exec(earshot.Chunk{1})
	assert.True(t, errors.Is(err, earshot.ErrInvalidState))
	assert.Equal(t, 0, first.Count())

	// stop before start is a no-op.
	require.NoError(t, c.Stop(nil))
	assert.Equal(t, 0, first.Stops())

	require.NoError(t, c.Start(nil))
	assert.Equal(t, earshot.Running, c.Phase(0))
	assert.Equal(t, earshot.Running, c.Phase(1))

	// start twice is rejected.
	assert.True(t, errors.Is(c.Start(nil), earshot.ErrInvalidState))

	require.NoError(t, c.Exec(earshot.Chunk{1}))
	require.NoError(t, c.Stop(nil))
	require.NoError(t, c.Stop(nil))
	assert.Equal(t, 1, first.Stops())
	assert.Equal(t, 1, last.Stops())
	assert.Equal(t, earshot.Stopped, c.Phase(0))
	assert.Equal(t, earshot.Stopped, c.Phase(1))

	assert.True(t, errors.Is(c.Exec(earshot.Chunk{2}), earshot.ErrInvalidState))
	assert.Equal(t, 1, last.Count())

	// restart.
	require.NoError(t, c.Start(nil))
	require.NoError(t, c.Exec(earshot.Chunk{3}))
	require.NoError(t, c.Stop(nil))
	assert.Equal(t, 2, last.Count())
	assert.Equal(t, 2, first.Starts())
}

func TestStartError(t *testing.T) {
	failure := errors.New("no file")
	first, last := &mock.Stage{}, &mock.Stage{ErrorOnStart: failure}
	c := newChain(t, first, last)

	err := c.Start(nil)
	assert.True(t, errors.Is(err, failure))
	var e *earshot.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "start", e.Op)
	assert.Contains(t, e.Stage, c.ID(1))

	// phases are restored.
	assert.Equal(t, earshot.Idle, c.Phase(0))
	assert.Equal(t, earshot.Idle, c.Phase(1))
}

func TestTransformErrorDropsChunk(t *testing.T) {
	drop := transform.New(func(c earshot.Chunk) (earshot.Chunk, error) {
		if c[0] == 1 {
			return nil, errors.New("bad chunk")
		}
		return c, nil
	})
	last := &mock.Stage{}
	c := newChain(t, &mock.Stage{}, drop, last)

	require.NoError(t, c.Start(nil))
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Exec(earshot.Chunk{byte(i), 0}))
	}
	require.NoError(t, c.Stop(nil))

	assert.Equal(t, []earshot.Chunk{{0, 0}, {2, 0}}, last.Chunks())
	assert.Equal(t, earshot.Stopped, c.Phase(1))
}

func TestExecError(t *testing.T) {
	failure := errors.New("disk full")
	c := newChain(t, &mock.Stage{}, &mock.Stage{ErrorOnExec: earshot.NewError(earshot.SinkError, "write", failure)})
	require.NoError(t, c.Start(nil))

	err := c.Exec(earshot.Chunk{1})
	assert.True(t, errors.Is(err, earshot.ErrSink))
	assert.True(t, errors.Is(err, failure))
	assert.True(t, earshot.IsFatal(err))
	var e *earshot.Error
	require.True(t, errors.As(err, &e))
	// origin of the failure is kept.
	assert.Contains(t, e.Stage, c.ID(1))
	require.NoError(t, c.Stop(nil))
}

func TestStopCascadeErrors(t *testing.T) {
	first := &mock.Stage{ErrorOnStop: errors.New("first")}
	c := newChain(t, first, &mock.Stage{})
	require.NoError(t, c.Start(nil))
	err := c.Stop(nil)
	assert.Error(t, err)
	assert.Equal(t, earshot.Stopped, c.Phase(0))
	// downstream wasn't stopped by failed stage.
	assert.Equal(t, earshot.Running, c.Phase(1))
}

func TestChainsShareNoState(t *testing.T) {
	a, b := &mock.Stage{}, &mock.Stage{}
	c1, c2 := newChain(t, a), newChain(t, b)
	require.NoError(t, c1.Start(nil))
	assert.Equal(t, earshot.Idle, c2.Phase(0))
	require.NoError(t, c1.Exec(earshot.Chunk{1}))
	require.NoError(t, c1.Stop(nil))
	assert.Equal(t, 0, b.Count())
}
