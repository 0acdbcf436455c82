// Package metric publishes stage counters with expvar.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

const stagesLabel = "earshot.stages"

const (
	// ChunkCounter measures number of chunks.
	ChunkCounter = "Chunks"
	// ByteCounter measures number of bytes.
	ByteCounter = "Bytes"
	// LatencyCounter measures latency between exec calls.
	LatencyCounter = "Latency"
	// DurationCounter counts what's the duration of audio.
	DurationCounter = "Duration"
	// StageCounter counts number of stages of the type.
	StageCounter = "Stages"
)

var (
	stages = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		ChunkCounter,
		ByteCounter,
		LatencyCounter,
		DurationCounter,
		StageCounter,
	}
)

// Get metrics values for provided stage type.
func Get(stage interface{}) map[string]string {
	return getCounters(getType(stage))
}

// GetAll returns counters for all measured stages.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	stages.Lock()
	defer stages.Unlock()
	for stage := range stages.m {
		m[stage] = getCounters(stage)
	}
	return m
}

func getCounters(stageType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(stageType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// MeasureFunc captures metrics when chunk is processed.
type MeasureFunc func(bytes int64)

// Meter creates new measure closure to capture stage counters.
// bytesPerSecond is used to convert chunk sizes into audio duration.
func Meter(stage interface{}, bytesPerSecond int) MeasureFunc {
	t := getType(stage)
	metric := stages.get(t)
	metric.stages.Add(1)
	var (
		mu       sync.Mutex
		calledAt time.Time
	)
	return func(n int64) {
		mu.Lock()
		if !calledAt.IsZero() {
			metric.latency.set(time.Since(calledAt))
		}
		calledAt = time.Now()
		mu.Unlock()
		metric.chunks.Add(1)
		metric.bytes.Add(n)
		if bytesPerSecond > 0 {
			metric.duration.add(time.Duration(n) * time.Second / time.Duration(bytesPerSecond))
		}
	}
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(stageType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[stageType]; ok {
		return metric
	}
	metric := newMetric(stageType)
	m.m[stageType] = metric
	return metric
}

type metric struct {
	stages   *expvar.Int
	chunks   *expvar.Int
	bytes    *expvar.Int
	latency  *duration
	duration *duration
}

func newMetric(stageType string) metric {
	m := metric{
		stages:   expvar.NewInt(key(stageType, StageCounter)),
		chunks:   expvar.NewInt(key(stageType, ChunkCounter)),
		bytes:    expvar.NewInt(key(stageType, ByteCounter)),
		latency:  &duration{},
		duration: &duration{},
	}
	expvar.Publish(key(stageType, LatencyCounter), m.latency)
	expvar.Publish(key(stageType, DurationCounter), m.duration)
	return m
}

func key(stageType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", stagesLabel, stageType, counter)
}

func getType(stage interface{}) string {
	rv := reflect.ValueOf(stage)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		rv = rv.Elem()
	}
	return rv.Type().String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(atomic.LoadInt64(&v.d)).String())
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}
