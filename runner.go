package earshot

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dudk/earshot/log"
)

// Runner drives a chain for a single run. The chain head must be a
// Producer, its Exec loop runs on a dedicated goroutine.
type Runner struct {
	chain    *Chain
	duration time.Duration
	log      logrus.FieldLogger
}

// RunnerOption provides a way to set functional parameters to runner.
type RunnerOption func(*Runner)

// WithDuration limits the run duration. Zero means run until the context
// is cancelled or the producer is exhausted.
func WithDuration(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.duration = d
	}
}

// WithRunnerLogger sets logger to runner.
func WithRunnerLogger(l logrus.FieldLogger) RunnerOption {
	return func(r *Runner) {
		r.log = l
	}
}

// NewRunner returns runner for the chain.
func NewRunner(c *Chain, options ...RunnerOption) *Runner {
	r := &Runner{
		chain: c,
		log:   log.GetLogger(),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Run starts the chain, executes it until the duration passed, ctx is done
// or execution failed, then stops the chain. Only fatal errors are
// returned, recoverable ones are logged.
func (r *Runner) Run(ctx context.Context) error {
	if _, ok := r.chain.Head().(Producer); !ok {
		return ErrNoProducer
	}
	if err := r.chain.Start(nil); err != nil {
		r.log.WithError(err).Error("start failed")
		return err
	}
	r.log.WithField("duration", r.duration).Info("run started")
	started := time.Now()

	errc := make(chan error, 1)
	go func() {
		errc <- r.chain.Exec(nil)
	}()

	var timeout <-chan time.Time
	if r.duration > 0 {
		t := time.NewTimer(r.duration)
		defer t.Stop()
		timeout = t.C
	}

	var (
		execErr  error
		finished bool
	)
	select {
	case <-ctx.Done():
		r.log.Debug("run cancelled")
	case <-timeout:
	case execErr = <-errc:
		finished = true
	}

	stopErr := r.chain.Stop(nil)
	if !finished {
		execErr = <-errc
	}
	r.log.WithField("elapsed", time.Since(started)).Info("run finished")
	return r.report(Errors{}.Add(execErr, stopErr))
}

// report logs every error once and returns the fatal ones.
func (r *Runner) report(errs Errors) error {
	var fatal Errors
	for _, err := range errs {
		if IsFatal(err) {
			r.log.WithError(err).Error("run failed")
			fatal = fatal.Add(err)
			continue
		}
		r.log.WithError(err).Warn("run degraded")
	}
	return fatal.Ret()
}
