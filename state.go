package earshot

import "sync/atomic"

// Phase identifies one of the lifecycle phases a stage can be in.
type Phase int32

// Lifecycle phases. Start moves a stage from Idle or Stopped to Running,
// Stop moves it from Running to Stopped.
const (
	Idle Phase = iota
	Running
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// phase is an atomic Phase holder. Exec runs on the capture goroutine
// while Start and Stop are called from the runner goroutine.
type phase struct {
	v int32
}

func (p *phase) load() Phase {
	return Phase(atomic.LoadInt32(&p.v))
}

func (p *phase) store(v Phase) {
	atomic.StoreInt32(&p.v, int32(v))
}

// transition sets the phase to v only if the current phase is one of from.
// The previous phase is returned along with the result.
func (p *phase) transition(v Phase, from ...Phase) (Phase, bool) {
	for _, f := range from {
		if atomic.CompareAndSwapInt32(&p.v, int32(f), int32(v)) {
			return f, true
		}
	}
	return p.load(), false
}
