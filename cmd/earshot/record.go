package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dudk/earshot"
	"github.com/dudk/earshot/capture"
	"github.com/dudk/earshot/config"
	"github.com/dudk/earshot/log"
	"github.com/dudk/earshot/portaudio"
	"github.com/dudk/earshot/recognize"
	"github.com/dudk/earshot/transform"
	"github.com/dudk/earshot/wav"
	"github.com/dudk/earshot/window"
)

type recordCommand struct {
	config   string
	out      string
	in       string
	duration time.Duration
	monitor  bool
}

func (cmd *recordCommand) Name() string {
	return "record"
}

func (cmd *recordCommand) Help() string {
	return "Record audio from the default input device to wav file"
}

func (cmd *recordCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.config, "config", "", "path to yaml config")
	fs.StringVar(&cmd.out, "out", "", "output wav file")
	fs.StringVar(&cmd.in, "in", "", "wav file to replay instead of the input device")
	fs.DurationVar(&cmd.duration, "duration", 0, "recording duration, zero records until interrupted")
	fs.BoolVar(&cmd.monitor, "monitor", false, "play captured audio")
}

func (cmd *recordCommand) Run() error {
	cfg, err := cmd.load()
	if err != nil {
		return err
	}
	l := log.GetLogger()

	var device capture.Device
	if cfg.Input != "" {
		device = wav.NewSource(cfg.Input)
	} else {
		device = portaudio.NewDevice()
	}
	chain, err := earshot.NewChain(stages(cfg, device, l), earshot.WithLogger(l))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	l.WithField("out", cfg.Out).Info("recording")
	return earshot.NewRunner(chain,
		earshot.WithDuration(cfg.Duration),
		earshot.WithRunnerLogger(l),
	).Run(ctx)
}

// load reads config and applies flags on top of it.
func (cmd *recordCommand) load() (config.Config, error) {
	cfg, err := config.Load(cmd.config)
	if err != nil {
		return cfg, err
	}
	if cmd.out != "" {
		cfg.Out = cmd.out
	}
	if cmd.in != "" {
		cfg.Input = cmd.in
	}
	if cmd.duration != 0 {
		cfg.Duration = cmd.duration
	}
	if cmd.monitor {
		cfg.Monitor = true
	}
	return cfg, cfg.Validate()
}

// stages builds the chain: capture, optional monitor, transforms,
// optional recognizer window and wav sink.
func stages(cfg config.Config, device capture.Device, l logrus.FieldLogger) []earshot.Stage {
	f := earshot.DefaultFormat
	s := []earshot.Stage{
		capture.New(device,
			capture.WithWarmup(cfg.Capture.Warmup),
			capture.WithGrace(cfg.Capture.Grace),
			capture.WithLogger(l),
		),
	}
	if cfg.Monitor {
		s = append(s, portaudio.NewMonitor(f))
	}
	t := cfg.Transform
	if t.DenoiseFloor > 0 {
		s = append(s, transform.Denoise(transform.Squelch{Floor: int16(t.DenoiseFloor)}))
	}
	if t.HighPassHz > 0 {
		s = append(s, transform.HighPass(t.HighPassHz))
	}
	if t.GainDB != 0 {
		s = append(s, transform.Gain(t.GainDB))
	}
	if t.GateThreshold > 0 {
		s = append(s, transform.Gate(transform.EnergyDetector{Threshold: t.GateThreshold}, t.GateHangover))
	}
	if cfg.Recognizer.URL != "" {
		client := recognize.New(cfg.Recognizer.URL,
			recognize.WithDialTimeout(cfg.Recognizer.DialTimeout),
			recognize.WithLogger(l),
		)
		s = append(s, window.New(client,
			window.WithPolicy(cfg.Policy()),
			window.WithStopTimeout(cfg.Window.StopTimeout),
			window.WithLogger(l),
		))
	}
	return append(s, wav.NewSink(cfg.Out))
}
