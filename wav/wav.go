// Package wav provides WAV file sink stage and file capture device.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dudk/earshot"
)

// pcmFormat is WAVE_FORMAT_PCM audio format tag.
const pcmFormat = 1

// ErrUnsupportedFormat is returned when wav file doesn't match the
// pipeline format.
var ErrUnsupportedFormat = errors.New("unsupported wav format")

type (
	// Sink saves audio to wav file. It's always the last stage of the
	// chain, it never forwards calls.
	Sink struct {
		uid     string
		path    string
		format  earshot.Format
		file    *os.File
		encoder *wav.Encoder
		frames  int64
	}

	// Source reads audio from wav file. It implements capture.Device and
	// allows to replay recordings through the chain.
	Source struct {
		path    string
		file    *os.File
		decoder *wav.Decoder
		buf     *audio.IntBuffer
	}

	// Option provides a way to set functional parameters to sink.
	Option func(*Sink)
)

// WithFormat sets format of the written file.
func WithFormat(f earshot.Format) Option {
	return func(s *Sink) {
		s.format = f
	}
}

// NewSink creates new wav sink.
func NewSink(path string, options ...Option) *Sink {
	s := &Sink{
		uid:    earshot.NewUID(),
		path:   path,
		format: earshot.DefaultFormat,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// ID returns stage id.
func (s *Sink) ID() string {
	return s.uid
}

// Start creates the file and writes wav header.
func (s *Sink) Start(_ earshot.Next, c earshot.Chunk) error {
	f, err := os.Create(s.path)
	if err != nil {
		return earshot.NewError(earshot.SinkError, "create", err)
	}
	s.file = f
	s.encoder = wav.NewEncoder(f, s.format.SampleRate, s.format.BitDepth, s.format.Channels, pcmFormat)
	atomic.StoreInt64(&s.frames, 0)
	// empty buffer forces encoder to write the header.
	if err := s.encoder.Write(s.intBuffer(nil)); err != nil {
		f.Close()
		return earshot.NewError(earshot.SinkError, "header", err)
	}
	return s.write(c)
}

// Exec appends the chunk to the file.
func (s *Sink) Exec(_ earshot.Next, c earshot.Chunk) error {
	return s.write(c)
}

// Stop writes remaining data, finalizes the header and closes the file.
func (s *Sink) Stop(_ earshot.Next, c earshot.Chunk) error {
	if s.file == nil {
		return nil
	}
	var errs earshot.Errors
	errs = errs.Add(s.write(c))
	if err := s.encoder.Close(); err != nil {
		errs = errs.Add(earshot.NewError(earshot.SinkError, "finalize", err))
	}
	if err := s.file.Close(); err != nil {
		errs = errs.Add(earshot.NewError(earshot.SinkError, "close", err))
	}
	s.file, s.encoder = nil, nil
	return errs.Ret()
}

// Frames returns number of frames written.
func (s *Sink) Frames() int {
	return int(atomic.LoadInt64(&s.frames))
}

// Path returns path of the file.
func (s *Sink) Path() string {
	return s.path
}

func (s *Sink) write(c earshot.Chunk) error {
	if len(c) == 0 {
		return nil
	}
	samples := c.Samples()
	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = int(v)
	}
	if err := s.encoder.Write(s.intBuffer(data)); err != nil {
		return earshot.NewError(earshot.SinkError, "write", err)
	}
	atomic.AddInt64(&s.frames, int64(len(data)/s.format.Channels))
	return nil
}

func (s *Sink) intBuffer(data []int) *audio.IntBuffer {
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: s.format.Channels,
			SampleRate:  s.format.SampleRate,
		},
		Data:           data,
		SourceBitDepth: s.format.BitDepth,
	}
}

// NewSource creates new wav source.
func NewSource(path string) *Source {
	return &Source{path: path}
}

// Open opens the file and validates it matches the format.
func (s *Source) Open(f earshot.Format) error {
	file, err := os.Open(s.path)
	if err != nil {
		return err
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return fmt.Errorf("%s: wav is not valid", s.path)
	}
	if int(decoder.SampleRate) != f.SampleRate ||
		int(decoder.NumChans) != f.Channels ||
		int(decoder.BitDepth) != f.BitDepth {
		file.Close()
		return fmt.Errorf("%s: %w: %d Hz %d channels %d bits", s.path, ErrUnsupportedFormat,
			decoder.SampleRate, decoder.NumChans, decoder.BitDepth)
	}
	s.file = file
	s.decoder = decoder
	s.buf = &audio.IntBuffer{
		Format:         decoder.Format(),
		Data:           make([]int, f.Frames*f.Channels),
		SourceBitDepth: f.BitDepth,
	}
	return nil
}

// Read fills the chunk with the next samples. The last chunk is padded
// with silence. io.EOF is returned when the file is over.
func (s *Source) Read(c earshot.Chunk) error {
	s.buf.Data = s.buf.Data[:len(c)/2]
	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if n == 0 {
		return io.EOF
	}
	samples := make([]int16, len(c)/2)
	for i := 0; i < n; i++ {
		samples[i] = int16(s.buf.Data[i])
	}
	copy(c, earshot.FromSamples(samples))
	return nil
}

// Close closes the file.
func (s *Source) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file, s.decoder = nil, nil
	return err
}
