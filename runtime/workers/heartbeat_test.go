package workers

import (
	"chat-relay/contract"
	"chat-relay/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHeartbeatWorker_Reports_Until_Canceled(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	stats := mocks.NewMockStatsProvider(ctrl)
	beats := make(chan struct{}, 10)
	// Given a provider observed at every tick
	stats.EXPECT().Stats().DoAndReturn(func() contract.Stats {
		select {
		case beats <- struct{}{}:
		default:
		}
		return contract.Stats{Connections: 2, Identities: 1}
	}).MinTimes(1)

	queue := make(chan int, 4)
	worker := NewHeartbeatWorker(log, stats, []NamedChannel{{Name: "shard-0", Channel: queue}}, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	select {
	case <-beats:
	case <-time.After(time.Second):
		req.Fail("No heartbeat")
	}
	cancel()
	req.NoError(<-done)
}

func TestChannelUsage(t *testing.T) {
	req := require.New(t)
	queue := make(chan int, 4)
	queue <- 1

	usages := channelUsage([]NamedChannel{
		{Name: "queue", Channel: queue},
		{Name: "not a channel", Channel: 42},
	})

	req.Equal([]ChannelUsage{{Name: "queue", Length: 1, Capacity: 4}}, usages)
}
