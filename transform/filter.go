package transform

import (
	"math"

	"github.com/dudk/earshot"
)

// Filter is a first-order high-pass filter. It removes DC offset and
// low-frequency rumble below cutoff.
type Filter struct {
	uid   string
	alpha float64
	prevX float64
	prevY float64
}

// HighPass returns high-pass filter stage for the pipeline format.
func HighPass(cutoffHz float64) *Filter {
	rc := 1 / (2 * math.Pi * cutoffHz)
	dt := 1 / float64(earshot.DefaultFormat.SampleRate)
	return &Filter{
		uid:   earshot.NewUID(),
		alpha: rc / (rc + dt),
	}
}

// ID returns stage id.
func (f *Filter) ID() string {
	return f.uid
}

// Start resets filter state and forwards start.
func (f *Filter) Start(next earshot.Next, c earshot.Chunk) error {
	f.prevX, f.prevY = 0, 0
	return next.Start(c)
}

// Exec filters the chunk and forwards the result.
func (f *Filter) Exec(next earshot.Next, c earshot.Chunk) error {
	return apply(next, c, f.filter)
}

// Stop forwards stop.
func (f *Filter) Stop(next earshot.Next, c earshot.Chunk) error {
	return next.Stop(c)
}

func (f *Filter) filter(c earshot.Chunk) (earshot.Chunk, error) {
	in := c.Samples()
	out := make([]int16, len(in))
	for i, v := range in {
		x := float64(v)
		y := f.alpha * (f.prevY + x - f.prevX)
		f.prevX, f.prevY = x, y
		out[i] = earshot.Clip(y)
	}
	return earshot.FromSamples(out), nil
}
