//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "luwei/pkg/domain"
	audit "luwei/pkg/platform/audit"
	"luwei/pkg/platform/audit/kafka"
	"luwei/pkg/testutil/containers"
)

func TestSinkProducesKeyedRecords(t *testing.T) {
	broker := containers.GetManager().GetRedpanda(t).Broker
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	const topic = "luwei.audit.test"
	sink, err := kafka.NewSink(ctx, kafka.Config{Brokers: []string{broker}, Topic: topic, Partitions: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close(context.Background()) })

	accountID := id.NewAccountID()
	require.NoError(t, sink.Append(ctx, audit.Event{
		Type:      audit.EventOrderCreated,
		Category:  audit.CategoryOperations,
		Timestamp: time.Now(),
		AccountID: accountID,
		Subject:   "order",
	}))

	t.Run("topic creation is idempotent", func(t *testing.T) {
		again, err := kafka.NewSink(ctx, kafka.Config{Brokers: []string{broker}, Topic: topic, Partitions: 1})
		require.NoError(t, err)
		require.NoError(t, again.Close(ctx))
	})

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, accountID.String(), string(rec.Key))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Value, &body))
	assert.Equal(t, "order_created", body["type"])
	assert.Equal(t, accountID.String(), body["account_id"])

	headers := map[string]string{}
	for _, h := range rec.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "order_created", headers["event_type"])
	assert.Equal(t, "operations", headers["category"])
}
