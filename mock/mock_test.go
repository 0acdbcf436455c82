package mock_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudk/earshot"
	"github.com/dudk/earshot/mock"
)

func TestDevice(t *testing.T) {
	d := &mock.Device{Ramp: true, Limit: 2, EOF: true}
	require.NoError(t, d.Open(earshot.DefaultFormat))
	c := make(earshot.Chunk, 8)
	require.NoError(t, d.Read(c))
	assert.Equal(t, []int16{0, 1, 2, 3}, c.Samples())
	require.NoError(t, d.Read(c))
	assert.Equal(t, []int16{4, 5, 6, 7}, c.Samples())
	assert.Equal(t, io.EOF, d.Read(c))
	require.NoError(t, d.Close())
	assert.Equal(t, mock.ErrClosed, d.Read(c))
	assert.Equal(t, 2, d.Reads())
	assert.Len(t, d.Chunks(), 2)
}

func TestConsumer(t *testing.T) {
	c := &mock.Consumer{FailWindow: 2}
	_, err := c.Consume(context.Background(), earshot.Chunk{1})
	require.NoError(t, err)
	_, err = c.Consume(context.Background(), earshot.Chunk{2})
	assert.Error(t, err)
	assert.Equal(t, earshot.Chunk{1, 2}, c.Concat())
	assert.Equal(t, 2, c.Calls())
}
