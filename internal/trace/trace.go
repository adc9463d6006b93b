// Package trace records pipeline phases in the Chrome trace event format, for
// viewing in chrome://tracing or Perfetto.
package trace

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/distr1/cairodeps/internal/logging"
)

// https://docs.google.com/document/d/1CvAClvFfyA5R-PhYUmn5OOQtYMH4h6I0nSsKchNAySU/edit

var start = time.Now()

var (
	sinkMu sync.Mutex
	sink   io.Writer = io.Discard
	opened bool
)

// Sink writes all following events into w as a JSON array.
func Sink(w io.Writer) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = w
	opened = false
}

// Create directs events into a newly created file at path. The returned
// function terminates the array and closes the file.
func Create(path string) (func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	Sink(f)
	return func() error {
		sinkMu.Lock()
		defer sinkMu.Unlock()
		if !opened {
			f.Write([]byte{'['})
		}
		if _, err := f.Write([]byte("{}]\n")); err != nil {
			f.Close()
			return err
		}
		sink = io.Discard
		return f.Close()
	}, nil
}

// PendingEvent is a complete ("X") event whose duration is measured from its
// creation until Done.
type PendingEvent struct {
	Name           string            `json:"name"`
	Categories     string            `json:"cat"`
	Type           string            `json:"ph"`
	ClockTimestamp uint64            `json:"ts"` // microseconds since process start
	Duration       uint64            `json:"dur"`
	Pid            int               `json:"pid"`
	Tid            uint64            `json:"tid"`
	Args           map[string]string `json:"args,omitempty"`

	start time.Time
}

// Done stamps the duration and emits the event.
func (pe *PendingEvent) Done() {
	pe.Duration = uint64(time.Since(pe.start) / time.Microsecond)
	b, err := json.Marshal(pe)
	if err != nil {
		panic(err)
	}
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if !opened {
		b = append([]byte{'['}, b...)
		opened = true
	}
	if _, err := sink.Write(append(b, ',', '\n')); err != nil {
		logging.Warnf("trace: %v", err)
	}
}

// Phase starts an event for one pipeline phase (fetch, setup, compile...) of
// target.
func Phase(target, phase string) *PendingEvent {
	return &PendingEvent{
		Name:           phase,
		Categories:     target,
		Type:           "X",
		ClockTimestamp: uint64(time.Since(start) / time.Microsecond),
		Pid:            os.Getpid(),
		Args:           map[string]string{"target": target},
		start:          time.Now(),
	}
}
