package logging

import (
	"log/slog"
	"sync"
	"time"
)

type eventKey struct {
	Component string
	Event     string
}

type eventTally struct {
	Count int64
	Last  []slog.Attr
}

// Aggregator batches high-frequency events (one per keystroke, one per
// scroll frame) and logs a single event_summary per event every interval.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	tallies map[eventKey]*eventTally

	done chan struct{}
	wg   sync.WaitGroup
}

// NewAggregator creates an aggregator flushing every intervalSecs seconds.
// A nil logger drops everything.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		tallies:  make(map[eventKey]*eventTally),
		done:     make(chan struct{}),
	}
}

// Start launches the flush goroutine.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go a.loop()
}

// Stop ends the flush goroutine and flushes what is left.
func (a *Aggregator) Stop() {
	close(a.done)
	a.wg.Wait()
	a.flush()
}

// Record counts one occurrence. The fields of the latest call are kept.
func (a *Aggregator) Record(component, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := eventKey{Component: component, Event: event}
	tally, ok := a.tallies[key]
	if !ok {
		tally = &eventTally{}
		a.tallies[key] = tally
	}
	tally.Count++
	if len(fields) > 0 {
		tally.Last = fields
	}
}

func (a *Aggregator) loop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.done:
			return
		}
	}
}

func (a *Aggregator) flush() {
	a.mu.Lock()
	if len(a.tallies) == 0 {
		a.mu.Unlock()
		return
	}
	tallies := a.tallies
	a.tallies = make(map[eventKey]*eventTally)
	a.mu.Unlock()

	if a.logger == nil {
		return
	}
	for key, tally := range tallies {
		attrs := []any{
			slog.String("component", key.Component),
			slog.String("event", key.Event),
			slog.Int64("count", tally.Count),
			slog.Int("window_seconds", int(a.interval.Seconds())),
		}
		for _, f := range tally.Last {
			attrs = append(attrs, f)
		}
		a.logger.Info("event_summary", attrs...)
	}
}
