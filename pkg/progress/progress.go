// Package progress tracks weighted install progress. A Bar accumulates
// percentage points from every stage of an install; Spans carve a share of
// a Bar out for one stage and scale that stage's own units into it.
package progress

import (
	"sync"
)

// pendingCap keeps a bar below 100 until Done is called, so observers only
// ever see 100 after a fully successful install.
const pendingCap = 0.999

type Event struct {
	ID      string
	Title   string
	Percent float64
	Message string
	Done    bool
}

type Sink interface {
	Update(ev Event)
}

type SinkFunc func(ev Event)

func (f SinkFunc) Update(ev Event) {
	f(ev)
}

type nopSink struct{}

func (nopSink) Update(Event) {}

// Tracker is what stages report through. Both Bar and Span implement it.
type Tracker interface {
	Add(units float64, msg string)
}

type State struct {
	Total     float64
	Completed float64
	Message   string
}

type Bar struct {
	id    string
	title string
	sink  Sink

	mu      sync.Mutex
	total   float64
	current float64
	message string
	done    bool
}

func New(id, title string, total float64, sink Sink) *Bar {
	if sink == nil {
		sink = nopSink{}
	}

	if total <= 0 {
		total = 100
	}

	return &Bar{id: id, title: title, total: total, sink: sink}
}

// Add moves the bar forward by delta units. Negative deltas are ignored
// and the bar never passes its total before Done.
func (b *Bar) Add(delta float64, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}

	if delta > 0 {
		b.current += delta
		if max := b.total * pendingCap; b.current > max {
			b.current = max
		}
	}

	if msg != "" {
		b.message = msg
	}

	b.emit()
}

func (b *Bar) On(msg string) {
	b.Add(0, msg)
}

// Done completes the bar. Only call it once the whole install succeeded.
func (b *Bar) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done {
		return
	}

	b.current = b.total
	b.done = true

	b.emit()
}

func (b *Bar) emit() {
	b.sink.Update(Event{
		ID:      b.id,
		Title:   b.title,
		Percent: b.current / b.total * 100,
		Message: b.message,
		Done:    b.done,
	})
}

func (b *Bar) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return State{Total: b.total, Completed: b.current, Message: b.message}
}

func (b *Bar) Percent() float64 {
	s := b.State()
	return s.Completed / s.Total * 100
}

// Span reserves weight units of the bar for a stage measured in its own
// units (bytes, files). Adding all units contributes exactly weight.
func (b *Bar) Span(weight, units float64) *Span {
	return Sub(b, weight, units)
}

// Sub carves weight units out of any tracker, including another Span.
func Sub(parent Tracker, weight, units float64) *Span {
	return &Span{parent: parent, weight: weight, units: units}
}

type Span struct {
	parent Tracker
	weight float64
	units  float64

	mu   sync.Mutex
	used float64
}

func (s *Span) Add(units float64, msg string) {
	s.mu.Lock()

	var delta float64

	if s.units > 0 && units > 0 {
		delta = s.weight * units / s.units
	}

	if s.used+delta > s.weight {
		delta = s.weight - s.used
	}

	s.used += delta

	s.mu.Unlock()

	s.parent.Add(delta, msg)
}

// Finish credits whatever share of the span has not been reported yet,
// used for stages that turned out to have nothing to do.
func (s *Span) Finish(msg string) {
	s.mu.Lock()
	delta := s.weight - s.used
	s.used = s.weight
	s.mu.Unlock()

	s.parent.Add(delta, msg)
}

