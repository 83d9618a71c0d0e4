package workers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hetulpatel/arbwatch/internal/kafka"
	"github.com/hetulpatel/arbwatch/internal/logging"
	"github.com/hetulpatel/arbwatch/internal/matches"
)

// readRetryDelay spaces out reads while the broker is failing.
var readRetryDelay = time.Second

type Handler func(context.Context, *matches.Payload) error

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// ReaderFactory opens one reader per worker.
type ReaderFactory func() MessageReader

// KafkaReaders returns a factory for consumer-group readers on topic.
func KafkaReaders(brokers []string, topic, group string) ReaderFactory {
	return func() MessageReader {
		return kafka.NewReader(brokers, topic, group)
	}
}

// Run starts workerCount consumers and blocks until ctx is done.
func Run(ctx context.Context, newReader ReaderFactory, workerCount int, handler Handler) {
	if workerCount <= 0 {
		workerCount = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			reader := newReader()
			defer reader.Close()
			logging.Debugf("[workers] consumer %d started", id)
			consume(ctx, reader, handler)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
}

func consume(ctx context.Context, reader MessageReader, handler Handler) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Errorf("[workers] read error: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}

		var payload matches.Payload
		if err := json.Unmarshal(msg.Value, &payload); err != nil {
			logging.Errorf("[workers] unmarshal error at offset %d: %v", msg.Offset, err)
			continue
		}

		if handler != nil {
			if err := handler(ctx, &payload); err != nil {
				logging.Errorf("[workers] handler error for %s: %v", payload.PairID, err)
			}
		}
	}
}
