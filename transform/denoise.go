package transform

import (
	"github.com/dudk/earshot"
)

// Suppressor is a noise reduction filter. It receives and returns raw
// PCM of the pipeline format.
type Suppressor interface {
	Suppress([]byte) ([]byte, error)
}

// Denoiser is a stage that delegates noise reduction to the suppressor.
// If suppressor implements earshot.Resetter or earshot.Flusher, it's
// reset on start and flushed on stop.
type Denoiser struct {
	uid        string
	suppressor Suppressor
}

// Denoise returns noise reduction stage.
func Denoise(s Suppressor) *Denoiser {
	return &Denoiser{
		uid:        earshot.NewUID(),
		suppressor: s,
	}
}

// ID returns stage id.
func (d *Denoiser) ID() string {
	return d.uid
}

// Start resets suppressor and forwards start.
func (d *Denoiser) Start(next earshot.Next, c earshot.Chunk) error {
	if err := earshot.Reset(d.suppressor, d.uid); err != nil {
		return err
	}
	return next.Start(c)
}

// Exec suppresses noise in the chunk and forwards the result.
func (d *Denoiser) Exec(next earshot.Next, c earshot.Chunk) error {
	return apply(next, c, func(c earshot.Chunk) (earshot.Chunk, error) {
		out, err := d.suppressor.Suppress(c)
		return earshot.Chunk(out), err
	})
}

// Stop flushes suppressor and forwards stop.
func (d *Denoiser) Stop(next earshot.Next, c earshot.Chunk) error {
	err := earshot.Flush(d.suppressor, d.uid)
	return earshot.Errors{}.Add(err, next.Stop(c)).Ret()
}

// Squelch is a Suppressor that mutes samples which amplitude is below
// the floor.
type Squelch struct {
	Floor int16
}

// Suppress implements Suppressor.
func (s Squelch) Suppress(in []byte) ([]byte, error) {
	samples := earshot.Chunk(in).Samples()
	for i, v := range samples {
		if v < s.Floor && v > -s.Floor {
			samples[i] = 0
		}
	}
	return earshot.FromSamples(samples), nil
}
