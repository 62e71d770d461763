package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/chatgate/chatgate/internal/config"
	"github.com/chatgate/chatgate/internal/db"
	"github.com/chatgate/chatgate/internal/store/rabbitmq"
	"github.com/chatgate/chatgate/internal/usage"
)

// maxAttempts bounds the retry hop; after this many deliveries the event is
// parked on the DLQ for manual inspection.
const maxAttempts = 3

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

// deliveryAttempts reads the broker's x-death header to tell which attempt
// this delivery is. Each failed attempt leaves one "rejected" entry; the
// retry queue's "expired" entries are just the hop back and don't count. A
// first delivery has no header and is attempt 1.
func deliveryAttempts(headers amqp.Table) int {
	deaths, ok := headers["x-death"].([]any)
	if !ok {
		return 1
	}
	rejected := int64(0)
	for _, d := range deaths {
		entry, ok := d.(amqp.Table)
		if !ok {
			continue
		}
		if reason, _ := entry["reason"].(string); reason != "rejected" {
			continue
		}
		if n, ok := entry["count"].(int64); ok {
			rejected += n
		}
	}
	return int(rejected) + 1
}

// The rollup worker drains recorded usage events and folds them into daily
// per-channel rollup rows. Transient failures ride the TTL retry queue back
// around; unparseable messages and events that keep failing go to the DLQ
// so they stop cycling. The upsert increments counters, so a replayed
// delivery double-counts; rollups feed reporting only, never quota.
func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)
	repo := usage.NewRepo(gdb)

	if cfg.RabbitURL == "" {
		log.Fatalf("RABBIT_URL required for the rollup worker")
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("rollup worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	toDLQ := func(d amqp.Delivery) {
		pctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := ch.PublishWithContext(pctx,
			"",
			rabbitmq.DLQ(cfg.RabbitQueue),
			false,
			false,
			amqp.Publishing{
				ContentType:  d.ContentType,
				DeliveryMode: amqp.Persistent,
				Body:         d.Body,
				Timestamp:    time.Now(),
			},
		)
		if err != nil {
			log.Printf("dlq publish failed: %v", err)
			_ = d.Nack(false, false) // back through the retry hop
			return
		}
		_ = d.Ack(false)
	}

	// worker pool
	events := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range events {
				var m rabbitmq.UsageEvent
				if err := json.Unmarshal(d.Body, &m); err != nil || m.EventID == "" {
					// retrying cannot fix a malformed message
					log.Printf("worker=%d bad message, parking on dlq: %v", workerID, err)
					toDLQ(d)
					continue
				}

				start := time.Now()
				if err := handleEvent(ctx, repo, m.EventID); err != nil {
					attempt := deliveryAttempts(d.Headers)
					log.Printf("worker=%d event %s failed attempt=%d cost=%s err=%v",
						workerID, m.EventID, attempt, time.Since(start), err)
					if attempt >= maxAttempts {
						toDLQ(d)
					} else {
						_ = d.Nack(false, false) // into the retry hop
					}
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed event=%s err=%v", workerID, m.EventID, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(events)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			events <- d
		}
	}
}

func handleEvent(ctx context.Context, repo *usage.Repo, eventID string) error {
	l, err := repo.GetByEventID(ctx, eventID)
	if err != nil {
		return err
	}
	return repo.ApplyToRollup(ctx, l)
}
