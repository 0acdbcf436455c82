package earshot_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/earshot"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		kind     earshot.Kind
		sentinel error
		fatal    bool
	}{
		{kind: earshot.DeviceError, sentinel: earshot.ErrDevice, fatal: true},
		{kind: earshot.TransformError, sentinel: earshot.ErrTransform, fatal: false},
		{kind: earshot.ConsumerError, sentinel: earshot.ErrConsumer, fatal: false},
		{kind: earshot.SinkError, sentinel: earshot.ErrSink, fatal: true},
		{kind: earshot.ShutdownTimeout, sentinel: earshot.ErrShutdownTimeout, fatal: false},
	}
	for _, test := range tests {
		t.Run(test.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", earshot.NewError(test.kind, "exec", cause))
			assert.True(t, errors.Is(err, test.sentinel))
			assert.True(t, errors.Is(err, cause))
			assert.Equal(t, test.fatal, earshot.IsFatal(err))
			for _, other := range tests {
				if other.kind != test.kind {
					assert.False(t, errors.Is(err, other.sentinel))
				}
			}
		})
	}
	assert.True(t, earshot.IsFatal(cause))
	assert.False(t, earshot.IsFatal(nil))
}

func TestErrorMessage(t *testing.T) {
	err := &earshot.Error{
		Kind:  earshot.SinkError,
		Stage: "wav.Sink c0ffee",
		Op:    "create",
		Err:   errors.New("permission denied"),
	}
	assert.Equal(t, "wav.Sink c0ffee: create: sink error: permission denied", err.Error())
	assert.Equal(t, "shutdown timeout", earshot.NewError(earshot.ShutdownTimeout, "", nil).Error())
}

func TestErrors(t *testing.T) {
	assert.Nil(t, earshot.Errors{}.Add(nil, nil).Ret())

	single := errors.New("single")
	assert.Equal(t, single, earshot.Errors{}.Add(nil, single).Ret())

	device := earshot.NewError(earshot.DeviceError, "close", nil)
	nested := earshot.Errors{}.Add(single, device)
	errs := earshot.Errors{}.Add(nested, errors.New("other"))
	assert.Len(t, errs, 3)
	err := errs.Ret()
	assert.True(t, errors.Is(err, single))
	assert.True(t, errors.Is(err, earshot.ErrDevice))
	assert.Equal(t, "single, close: device error, other", err.Error())

	var e *earshot.Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, earshot.DeviceError, e.Kind)
}
