package workers

import (
	"chat-relay/contract"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*HeartbeatWorker)(nil)

// HeartbeatWorker periodically logs the coordinator load and the process health.
type HeartbeatWorker struct {
	log      *slog.Logger
	stats    contract.StatsProvider
	queues   []NamedChannel
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, stats contract.StatsProvider, queues []NamedChannel, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, stats: stats, queues: queues, interval: interval}
}

// Run logs the registry counts, queue usage, RSS and CPU every interval.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.beat(p)
		}
	}
}

func (w *HeartbeatWorker) beat(p *process.Process) {
	stats := w.stats.Stats()
	attrs := []any{
		"connections", stats.Connections,
		"identities", stats.Identities,
		"rooms", stats.Rooms,
		"subscriptions", stats.Subscribers,
	}
	queued := 0
	for _, usage := range channelUsage(w.queues) {
		queued += usage.Length
		if usage.Capacity > 0 && usage.Length*10 >= usage.Capacity*9 {
			w.log.Warn("Queue almost full", "queue", usage.Name, "length", usage.Length, "capacity", usage.Capacity)
		}
	}
	attrs = append(attrs, "queued", queued)

	rss, cpu, status, err := getSelfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "err", err)
	} else {
		attrs = append(attrs, "rss_bytes", rss, "cpu_percent", cpu, "status", status)
	}
	w.log.Info("Heartbeat", attrs...)
}

// getSelfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
