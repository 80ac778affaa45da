package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

func TestProcessRetriesUntilSuccess(t *testing.T) {
	retryMin, retryMax = time.Millisecond, 4*time.Millisecond
	t.Cleanup(func() { retryMin, retryMax = 200*time.Millisecond, 30*time.Second })

	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls < 4 {
			return errors.New("redis unavailable")
		}
		return nil
	}
	if !process(context.Background(), h, kafka.Message{}, zerolog.Nop()) {
		t.Fatal("message not committable after success")
	}
	if calls != 4 {
		t.Fatalf("handler calls = %d, want 4", calls)
	}
}

func TestProcessStopsOnShutdown(t *testing.T) {
	retryMin, retryMax = time.Hour, time.Hour
	t.Cleanup(func() { retryMin, retryMax = 200*time.Millisecond, 30*time.Second })

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		cancel()
		return errors.New("still failing")
	}
	if process(ctx, h, kafka.Message{}, zerolog.Nop()) {
		t.Fatal("failed message reported committable")
	}
	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
}

func TestWorkerForKeepsPartitionOnOneWorker(t *testing.T) {
	const workers = 4
	seen := map[int]bool{}
	for p := 0; p < 8; p++ {
		m := kafka.Message{Topic: "bakery.order.status_changed", Partition: p}
		w := workerFor(m, workers)
		if w < 0 || w >= workers {
			t.Fatalf("partition %d -> worker %d", p, w)
		}
		for i := 0; i < 3; i++ {
			if got := workerFor(kafka.Message{Topic: m.Topic, Partition: p, Offset: int64(i)}, workers); got != w {
				t.Fatalf("partition %d moved from worker %d to %d", p, w, got)
			}
		}
		seen[w] = true
	}
	if len(seen) != workers {
		t.Fatalf("8 partitions spread over %d workers, want %d", len(seen), workers)
	}
}
