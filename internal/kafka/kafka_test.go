package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestTopicsRequest(t *testing.T) {
	req := topicsRequest([]Topic{
		{Name: "captures", Partitions: 3, Retention: 2 * time.Hour},
		{Name: "operations"},
	})

	require.Len(t, req.Topics, 2)
	require.Equal(t, "captures", req.Topics[0].Topic)
	require.Equal(t, 3, req.Topics[0].NumPartitions)
	require.Equal(t, []kafkago.ConfigEntry{{ConfigName: "retention.ms", ConfigValue: "7200000"}}, req.Topics[0].ConfigEntries)

	require.Equal(t, 1, req.Topics[1].NumPartitions)
	require.Equal(t, 1, req.Topics[1].ReplicationFactor)
	require.Empty(t, req.Topics[1].ConfigEntries)
}

func TestCreated(t *testing.T) {
	tests := []struct {
		name string
		errs map[string]error
		want bool
	}{
		{"all new", map[string]error{"a": nil, "b": nil}, true},
		{"already exists", map[string]error{"a": kafkago.TopicAlreadyExists, "b": nil}, true},
		{"one failed", map[string]error{"a": nil, "b": errors.New("boom")}, false},
		{"empty", map[string]error{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, created(tt.errs))
		})
	}
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, sleep(ctx, time.Hour))
	require.True(t, sleep(context.Background(), time.Millisecond))
}

func TestWaitKafkaReady_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, WaitKafkaReady(ctx, "127.0.0.1:1", time.Hour))
}
