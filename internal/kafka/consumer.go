package kafka

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-bakery-orders/internal/logging"
)

// Handler must return nil only when the message was processed and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
}

func NewConsumer(brokers []string, group string, topics []string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commit per message
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers}
}

// Start fetches messages and fans them out to the worker pool until ctx is
// done. It returns nil on shutdown. All messages of one partition go to the
// same worker, in offset order.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				c.handle(ctx, h, id, m)
			}
		}(i, jobs[i])
	}
	defer wg.Wait()
	defer func() {
		for _, ch := range jobs {
			close(ch)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		select {
		case jobs[workerFor(m, c.workers)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func workerFor(m kafka.Message, workers int) int {
	h := fnv.New32a()
	h.Write([]byte(m.Topic))
	return int((h.Sum32() + uint32(m.Partition)) % uint32(workers))
}

func (c *Consumer) handle(ctx context.Context, h Handler, worker int, m kafka.Message) {
	log := logging.Logger().With().Int("worker", worker).Str("topic", m.Topic).
		Int("partition", m.Partition).Int64("offset", m.Offset).Logger()
	if !process(ctx, h, m, log) {
		return
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("commit offset")
	}
}

var (
	retryMin = 200 * time.Millisecond
	retryMax = 30 * time.Second
)

// process retries h until it succeeds or ctx is done. The partition waits
// meanwhile, so no later offset is committed past a failed message. It
// reports whether the message may be committed.
func process(ctx context.Context, h Handler, m kafka.Message, log zerolog.Logger) bool {
	wait := retryMin
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		log.Error().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("handle message")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return false
		}
		if wait *= 2; wait > retryMax {
			wait = retryMax
		}
	}
}
