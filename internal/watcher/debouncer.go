package watcher

import (
	"sort"
	"sync"
	"time"
)

// Event is a file change after debouncing.
type Event struct {
	Path string
	Op   Op
}

// Op is the kind of change seen for a path.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
	OpRename
)

func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Debouncer collects events and emits them as one batch after a quiet
// period. Repeated events for a path inside the window collapse into the
// latest one. Batches are sorted by path.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	events   map[string]Event
	timer    *time.Timer
	output   chan []Event
	done     chan struct{}
	stopOnce sync.Once
}

// NewDebouncer creates a debouncer with the given quiet interval.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		events:   make(map[string]Event),
		output:   make(chan []Event, 16),
		done:     make(chan struct{}),
	}
}

// Output returns the channel receiving batches.
func (d *Debouncer) Output() <-chan []Event {
	return d.output
}

// Add records an event and restarts the quiet period.
func (d *Debouncer) Add(path string, op Op) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.events[path] = Event{Path: path, Op: op}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.flush)
}

// Stop drops pending events and unblocks any flush waiting on a full
// output channel.
func (d *Debouncer) Stop() {
	d.stopOnce.Do(func() {
		close(d.done)
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.timer != nil {
			d.timer.Stop()
		}
		d.events = make(map[string]Event)
	})
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if len(d.events) == 0 {
		d.mu.Unlock()
		return
	}
	batch := make([]Event, 0, len(d.events))
	for _, e := range d.events {
		batch = append(batch, e)
	}
	d.events = make(map[string]Event)
	d.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })

	select {
	case d.output <- batch:
	case <-d.done:
	}
}
