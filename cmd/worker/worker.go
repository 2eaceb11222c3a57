package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	appkafka "example.com/postfeed/internal/broker"
	"example.com/postfeed/internal/logger"
	"example.com/postfeed/internal/models"
	"example.com/postfeed/internal/store"
)

var logg = logger.New()

const (
	maxBackoff       = time.Second
	queueFullLogTick = 100 * time.Millisecond
)

// Journal is where consumed events end up.
type Journal interface {
	RecordActivity(ctx context.Context, activity models.Activity) error
	Close()
}

// Stats counts what happened to consumed events.
type Stats struct {
	Recorded   int64
	Duplicates int64
	Invalid    int64
	Failed     int64
}

// Worker consumes domain events from Kafka and records them in the activity journal.
type Worker struct {
	journal   Journal
	reader    appkafka.EventReader
	workers   int
	queueSize int

	recorded   atomic.Int64
	duplicates atomic.Int64
	invalid    atomic.Int64
	failed     atomic.Int64
}

// New builds a Worker. Non-positive sizes default to one worker per CPU and
// ten queued events per worker.
func New(journal Journal, reader appkafka.EventReader, workers, queueSize int) *Worker {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = workers * 10
	}
	return &Worker{
		journal:   journal,
		reader:    reader,
		workers:   workers,
		queueSize: queueSize,
	}
}

// Run consumes until ctx is done. Events already queued are still recorded
// before Run returns.
func (w *Worker) Run(ctx context.Context) {
	logg.Info("worker", fmt.Sprintf("Starting %d workers with queue size %d", w.workers, w.queueSize))

	jobs := make(chan []byte, w.queueSize)
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}()
	}

	w.readLoop(ctx, jobs)
	close(jobs)
	wg.Wait()

	s := w.Stats()
	logg.Info("worker", fmt.Sprintf("All workers stopped: recorded=%d duplicates=%d invalid=%d failed=%d",
		s.Recorded, s.Duplicates, s.Invalid, s.Failed))
	if r, ok := w.reader.(interface{ Lag() int64 }); ok {
		logg.Info("worker", fmt.Sprintf("Consumer lag at shutdown: %d", r.Lag()))
	}
}

// Stats returns a snapshot of the event counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Recorded:   w.recorded.Load(),
		Duplicates: w.duplicates.Load(),
		Invalid:    w.invalid.Load(),
		Failed:     w.failed.Load(),
	}
}

// readLoop feeds message payloads into jobs, backing off on read errors.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- []byte) {
	retry := 0
	for ctx.Err() == nil {
		msg, err := w.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logg.Error("worker", "Kafka read error, backing off", err)
			if !waitWithContext(ctx, backoffDelay(retry)) {
				return
			}
			retry++
			continue
		}
		retry = 0

		if len(msg.Value) == 0 {
			continue
		}
		if !enqueue(ctx, jobs, msg.Value) {
			return
		}
	}
}

// enqueue blocks until data is queued or ctx is done.
func enqueue(ctx context.Context, jobs chan<- []byte, data []byte) bool {
	ticker := time.NewTicker(queueFullLogTick)
	defer ticker.Stop()
	for {
		select {
		case jobs <- data:
			return true
		case <-ctx.Done():
			return false
		case <-ticker.C:
			logg.Warn("worker", "Job queue full, waiting to enqueue event")
		}
	}
}

// processLoop records queued events until jobs is closed and drained.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan []byte) {
	// the queue is drained after shutdown starts
	ctx = context.WithoutCancel(ctx)
	for data := range jobs {
		w.record(ctx, data)
	}
}

func (w *Worker) record(ctx context.Context, data []byte) {
	event, err := appkafka.DecodeEvent(data)
	if err != nil {
		w.invalid.Add(1)
		logg.Error("worker", "Invalid event in Kafka message", err)
		return
	}

	err = w.journal.RecordActivity(ctx, models.Activity{
		EventID:    event.ID,
		Kind:       event.Kind,
		ActorID:    event.ActorID,
		Payload:    string(data),
		OccurredAt: event.OccurredAt,
	})
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		w.duplicates.Add(1)
		logg.Debug("worker", "Event "+event.ID+" already recorded, skipping")
	case err != nil:
		w.failed.Add(1)
		logg.Error("worker", "Failed to record "+event.Kind+" event", err)
	default:
		w.recorded.Add(1)
		logg.Info("worker", "Recorded "+event.Kind+" event (actor anonymized)")
	}
}

// backoffDelay doubles from 1ms per retry, capped at maxBackoff.
func backoffDelay(retry int) time.Duration {
	if retry >= 10 {
		return maxBackoff
	}
	return min(time.Millisecond<<retry, maxBackoff)
}

// waitWithContext waits for d or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader and the journal.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}

	logg.Info("worker", "Closing store")
	w.journal.Close()
	return nil
}
