package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"sync/atomic"
	"syscall"
	"time"

	"example.com/postfeed/internal/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// eventMix is the share of each event kind, in percent.
var eventMix = []struct {
	kind   string
	weight int
}{
	{models.EventCommentCreated, 40},
	{models.EventFollowCreated, 20},
	{models.EventPostCreated, 20},
	{models.EventFollowDeleted, 10},
	{models.EventPostEdited, 7},
	{models.EventAvatarUpdated, 3},
}

func pickKind(rng *rand.Rand) string {
	n := rng.Intn(100)
	for _, m := range eventMix {
		if n < m.weight {
			return m.kind
		}
		n -= m.weight
	}
	return models.EventPostCreated
}

func randomEvent(rng *rand.Rand, users int64) models.Event {
	e := models.Event{
		ID:         uuid.NewString(),
		Kind:       pickKind(rng),
		ActorID:    rng.Int63n(users) + 1,
		OccurredAt: time.Now().UTC(),
	}
	switch e.Kind {
	case models.EventPostCreated, models.EventPostEdited:
		e.PostID = rng.Int63n(1_000_000) + 1
	case models.EventCommentCreated:
		e.PostID = rng.Int63n(1_000_000) + 1
		e.TargetID = rng.Int63n(10_000_000) + 1
	case models.EventFollowCreated, models.EventFollowDeleted:
		e.TargetID = rng.Int63n(users) + 1
	}
	return e
}

// Floods the events topic so the activity worker can be measured in isolation.
func main() {
	var total int
	var rate int
	var users int64
	var broker, topic string

	flag.IntVar(&total, "n", 100000, "number of events to send")
	flag.IntVar(&rate, "rate", 0, "events per second, 0 for unlimited")
	flag.Int64Var(&users, "users", 1000, "size of the simulated user base")
	flag.StringVar(&broker, "broker", "localhost:29092", "Kafka broker address")
	flag.StringVar(&topic, "topic", "postfeed-events", "events topic")
	flag.Parse()

	var sent, failed atomic.Uint64
	w := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // same kind, same partition
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				failed.Add(uint64(len(messages)))
				fmt.Printf("write error: %v\n", err)
				return
			}
			sent.Add(uint64(len(messages)))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tick <-chan time.Time
	if rate > 0 {
		t := time.NewTicker(time.Second / time.Duration(rate))
		defer t.Stop()
		tick = t.C
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	perKind := make(map[string]int)
	start := time.Now()

	produced := 0
	for ; produced < total && ctx.Err() == nil; produced++ {
		if tick != nil {
			select {
			case <-tick:
			case <-ctx.Done():
			}
		}

		e := randomEvent(rng, users)
		v, err := json.Marshal(e)
		if err != nil {
			failed.Add(1)
			continue
		}
		if err := w.WriteMessages(ctx, kafka.Message{Key: []byte(e.Kind), Value: v}); err != nil {
			failed.Add(1)
			continue
		}
		perKind[e.Kind]++
	}

	// Close flushes pending async batches
	if err := w.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close error: %v\n", err)
	}
	elapsed := time.Since(start)

	kinds := make([]string, 0, len(perKind))
	for k := range perKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	fmt.Printf("Produced: %d  Acknowledged: %d  Failed: %d\n", produced, sent.Load(), failed.Load())
	for _, k := range kinds {
		fmt.Printf("  %-16s %d\n", k, perKind[k])
	}
	fmt.Printf("Elapsed time: %s\n", elapsed)
	fmt.Printf("Throughput: %.2f msg/s\n", float64(sent.Load())/elapsed.Seconds())
}
