package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"
)

// Ensure *PoolUnitWorker implements the contract.Worker interface at compile time.
// This prevents "type mismatch" errors from appearing late in other packages
// and acts as a static assertion of our architectural rules.
var _ contract.Worker = (*PoolUnitWorker)(nil)

// PoolUnitWorker drains one shard of posted messages.
// A room always maps to the same shard, so its messages are persisted and
// broadcast one at a time, in arrival order.
type PoolUnitWorker struct {
	commands chan domain.PostMessageCommand
	relay    contract.MessageRelayer
	reporter contract.ErrorReporter
	log      *slog.Logger
}

func NewPoolUnitWorker(
	commands chan domain.PostMessageCommand,
	relay contract.MessageRelayer,
	reporter contract.ErrorReporter,
	log *slog.Logger) *PoolUnitWorker {
	return &PoolUnitWorker{
		commands: commands,
		relay:    relay,
		reporter: reporter,
		log:      log,
	}
}

func (w *PoolUnitWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			if _, err := w.relay.Relay(ctx, cmd); err != nil {
				w.log.Warn("Message not relayed",
					"room_id", cmd.Room,
					"connection_id", cmd.ConnectionID,
					"error", err)
				// Only the sender hears about it
				w.reporter.ReportError(ctx, cmd.ConnectionID, err)
			}
		}
	}
}
