package earshot

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/rs/xid"
)

// Chunk is a buffer of raw PCM frames in the pipeline format: 16-bit signed
// little-endian, mono. Once created it's never modified, stages that change
// the signal allocate a new chunk of identical length.
type Chunk []byte

// Format describes the fixed audio format of a run.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
	// Frames is the number of frames per chunk.
	Frames int
}

// DefaultFormat is 16 kHz mono 16-bit audio with 512 frames per chunk.
var DefaultFormat = Format{
	SampleRate: 16000,
	Channels:   1,
	BitDepth:   16,
	Frames:     512,
}

// FrameBytes returns the size of a single frame in bytes.
func (f Format) FrameBytes() int {
	return f.Channels * f.BitDepth / 8
}

// ChunkBytes returns the size of a single chunk in bytes.
func (f Format) ChunkBytes() int {
	return f.Frames * f.FrameBytes()
}

// ChunkDuration returns the duration of a single chunk.
func (f Format) ChunkDuration() time.Duration {
	return f.DurationOf(f.ChunkBytes())
}

// DurationOf returns the duration of n bytes of audio.
func (f Format) DurationOf(n int) time.Duration {
	frameBytes := f.FrameBytes()
	if frameBytes == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := int64(n / frameBytes)
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// ChunksIn returns how many whole chunks are needed to cover d. Partial
// chunks are rounded up.
func (f Format) ChunksIn(d time.Duration) int {
	cd := f.ChunkDuration()
	if d <= 0 || cd <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(cd)))
}

// Size returns the number of frames in the chunk.
func (c Chunk) Size() int {
	return len(c) / 2
}

// Samples decodes chunk into signed 16-bit samples.
func (c Chunk) Samples() []int16 {
	s := make([]int16, len(c)/2)
	for i := range s {
		s[i] = int16(binary.LittleEndian.Uint16(c[i*2:]))
	}
	return s
}

// FromSamples encodes samples into a new chunk.
func FromSamples(s []int16) Chunk {
	c := make(Chunk, len(s)*2)
	for i, v := range s {
		binary.LittleEndian.PutUint16(c[i*2:], uint16(v))
	}
	return c
}

// Clip rounds v and limits it to the int16 range.
func Clip(v float64) int16 {
	v = math.Round(v)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// NewUID returns new unique id value.
func NewUID() string {
	return xid.New().String()
}
