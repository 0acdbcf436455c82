package earshot

type (
	// Stage is a single unit of the processing chain. The forward handle is
	// provided by the chain on every call, stages never keep a reference to
	// their successor. A stage that is terminal simply doesn't call next.
	Stage interface {
		Start(next Next, c Chunk) error
		Exec(next Next, c Chunk) error
		Stop(next Next, c Chunk) error
	}

	// Next forwards lifecycle calls to the following stage of the chain.
	Next interface {
		Start(Chunk) error
		Exec(Chunk) error
		Stop(Chunk) error
	}

	// Producer is implemented by the stages that generate chunks in their
	// Exec loop. Runner requires a producer at the head of the chain.
	Producer interface {
		Stage
		Produce()
	}

	// Identifier is implemented by stages that carry their own ID.
	Identifier interface {
		ID() string
	}
)

// Resetter defines component that must be reset before consequent use.
type Resetter interface {
	Reset(string) error
}

// Flusher defines component that must be flushed in the end of execution.
type Flusher interface {
	Flush(string) error
}

// Reset calls Reset hook if v implements Resetter.
func Reset(v interface{}, id string) error {
	if r, ok := v.(Resetter); ok {
		return r.Reset(id)
	}
	return nil
}

// Flush calls Flush hook if v implements Flusher.
func Flush(v interface{}, id string) error {
	if f, ok := v.(Flusher); ok {
		return f.Flush(id)
	}
	return nil
}

// Terminal is the Next of the last stage in the chain.
var Terminal Next = terminal{}

type terminal struct{}

func (terminal) Start(Chunk) error { return nil }
func (terminal) Exec(Chunk) error  { return nil }
func (terminal) Stop(Chunk) error  { return nil }
