package transform

import (
	"math"

	"github.com/dudk/earshot"
)

// Detector is a voice activity detector.
type Detector interface {
	IsSpeech(earshot.Chunk) (bool, error)
}

// Gater replaces non-speech chunks with silence of the same length, so
// downstream stages keep the capture cadence.
type Gater struct {
	uid      string
	detector Detector
	hangover int
	open     int
}

// Gate returns voice activity gating stage. The gate stays open for
// hangover chunks after the last speech chunk.
func Gate(d Detector, hangover int) *Gater {
	return &Gater{
		uid:      earshot.NewUID(),
		detector: d,
		hangover: hangover,
	}
}

// ID returns stage id.
func (g *Gater) ID() string {
	return g.uid
}

// Start closes the gate and forwards start.
func (g *Gater) Start(next earshot.Next, c earshot.Chunk) error {
	g.open = 0
	return next.Start(c)
}

// Exec forwards the chunk if gate is open and silence otherwise.
func (g *Gater) Exec(next earshot.Next, c earshot.Chunk) error {
	return apply(next, c, g.gate)
}

// Stop forwards stop.
func (g *Gater) Stop(next earshot.Next, c earshot.Chunk) error {
	return next.Stop(c)
}

func (g *Gater) gate(c earshot.Chunk) (earshot.Chunk, error) {
	speech, err := g.detector.IsSpeech(c)
	if err != nil {
		return nil, err
	}
	switch {
	case speech:
		g.open = g.hangover
	case g.open > 0:
		g.open--
	default:
		return make(earshot.Chunk, len(c)), nil
	}
	return append(make(earshot.Chunk, 0, len(c)), c...), nil
}

// EnergyDetector detects speech when RMS of the chunk normalized to
// [0, 1] reaches Threshold.
type EnergyDetector struct {
	Threshold float64
}

// IsSpeech implements Detector.
func (d EnergyDetector) IsSpeech(c earshot.Chunk) (bool, error) {
	return RMS(c) >= d.Threshold, nil
}

// RMS returns root mean square of the chunk normalized to [0, 1].
func RMS(c earshot.Chunk) float64 {
	samples := c.Samples()
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		f := float64(v) / math.MaxInt16
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
