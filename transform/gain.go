package transform

import (
	"math"

	"github.com/dudk/earshot"
)

// Gain returns stage that amplifies the signal by db decibels. Samples
// are rounded and clipped at int16 limits.
func Gain(db float64) *Transform {
	return New(GainFunc(db))
}

// GainFunc returns function that applies db decibels of gain.
func GainFunc(db float64) Func {
	factor := math.Pow(10, db/20)
	return func(c earshot.Chunk) (earshot.Chunk, error) {
		in := c.Samples()
		out := make([]int16, len(in))
		for i, v := range in {
			out[i] = earshot.Clip(float64(v) * factor)
		}
		return earshot.FromSamples(out), nil
	}
}
