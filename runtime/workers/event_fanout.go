package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Target is one recipient of a fan-out.
type Target struct {
	ID   domain.ConnectionID
	Sink contract.EventSink
}

type FanoutResult struct {
	Delivered int
	Dropped   []domain.ConnectionID
}

// Fanout delivers one event to every target.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// durability, or retries. Each sink is given its own goroutine and at most
// sinkTimeout, so a slow or dead transport never delays the others.
// Failures are logged and swallowed.
//
// Fanout returns once every sink has returned, which keeps successive
// fan-outs from the same caller in order on each sink.
func Fanout(ctx context.Context, log *slog.Logger, targets []Target, evt event.DomainEvent, sinkTimeout time.Duration) FanoutResult {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result FanoutResult
	)
	for _, target := range targets {
		wg.Add(1)
		go func(target Target) {
			defer wg.Done()
			sinkCtx, cancel := context.WithTimeout(ctx, sinkTimeout)
			defer cancel()

			err := target.Sink.Consume(sinkCtx, evt)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn("Event not delivered",
					"connection_id", target.ID,
					"event", evt.Name(),
					"error", err)
				result.Dropped = append(result.Dropped, target.ID)
				return
			}
			result.Delivered++
		}(target)
	}
	wg.Wait()
	return result
}
