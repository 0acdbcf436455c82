// Package portaudio provides capture device and playback monitor stage
// on top of portaudio default devices.
package portaudio

import (
	"github.com/gordonklaus/portaudio"

	"github.com/dudk/earshot"
)

type (
	// Device reads audio from the default input device. It implements
	// capture.Device.
	Device struct {
		buf    []int16
		stream *portaudio.Stream
	}

	// Monitor plays every chunk on the default output device and forwards
	// it downstream.
	Monitor struct {
		uid    string
		format earshot.Format
		buf    []int16
		stream *portaudio.Stream
	}
)

// NewDevice returns new default input device.
func NewDevice() *Device {
	return &Device{}
}

// Open initializes portaudio and starts the default input stream.
func (d *Device) Open(f earshot.Format) error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	d.buf = make([]int16, f.Frames*f.Channels)
	stream, err := portaudio.OpenDefaultStream(f.Channels, 0, float64(f.SampleRate), f.Frames, &d.buf)
	if err != nil {
		portaudio.Terminate()
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return err
	}
	d.stream = stream
	return nil
}

// Read blocks until the chunk is filled by the input stream. Overflows
// are ignored, the chunk contains the latest available samples.
func (d *Device) Read(c earshot.Chunk) error {
	if err := d.stream.Read(); err != nil && err != portaudio.InputOverflowed {
		return err
	}
	copy(c, earshot.FromSamples(d.buf))
	return nil
}

// Close stops the stream and terminates portaudio.
func (d *Device) Close() error {
	if d.stream == nil {
		return nil
	}
	var errs earshot.Errors
	errs = errs.Add(d.stream.Stop(), d.stream.Close(), portaudio.Terminate())
	d.stream = nil
	return errs.Ret()
}

// NewMonitor returns new playback monitor stage.
func NewMonitor(f earshot.Format) *Monitor {
	return &Monitor{
		uid:    earshot.NewUID(),
		format: f,
	}
}

// ID returns stage id.
func (m *Monitor) ID() string {
	return m.uid
}

// Start opens the default output stream and forwards start.
func (m *Monitor) Start(next earshot.Next, c earshot.Chunk) error {
	if err := portaudio.Initialize(); err != nil {
		return earshot.NewError(earshot.DeviceError, "initialize", err)
	}
	m.buf = make([]int16, m.format.Frames*m.format.Channels)
	stream, err := portaudio.OpenDefaultStream(0, m.format.Channels, float64(m.format.SampleRate), m.format.Frames, &m.buf)
	if err != nil {
		portaudio.Terminate()
		return earshot.NewError(earshot.DeviceError, "open", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return earshot.NewError(earshot.DeviceError, "start", err)
	}
	m.stream = stream
	if err := next.Start(c); err != nil {
		m.close()
		return err
	}
	return nil
}

// Exec plays the chunk and forwards it.
func (m *Monitor) Exec(next earshot.Next, c earshot.Chunk) error {
	samples := c.Samples()
	for i := range m.buf {
		if i < len(samples) {
			m.buf[i] = samples[i]
		} else {
			m.buf[i] = 0
		}
	}
	if err := m.stream.Write(); err != nil && err != portaudio.OutputUnderflowed {
		return earshot.NewError(earshot.DeviceError, "write", err)
	}
	return next.Exec(c)
}

// Stop closes the output stream and forwards stop.
func (m *Monitor) Stop(next earshot.Next, c earshot.Chunk) error {
	return earshot.Errors{}.Add(m.close(), next.Stop(c)).Ret()
}

func (m *Monitor) close() error {
	if m.stream == nil {
		return nil
	}
	errs := earshot.Errors{}.Add(m.stream.Stop(), m.stream.Close(), portaudio.Terminate())
	m.stream = nil
	if len(errs) == 0 {
		return nil
	}
	return earshot.NewError(earshot.DeviceError, "close", errs.Ret())
}
