package queue

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/im-subhadeep/Xeno-Assignment/pkg/redis"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Unique connection name per test to avoid adapter caching issues
	connName := t.Name() + "-" + mr.Addr()
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func testConfig(name string, retry RetryPolicy) QueueConfig {
	return QueueConfig{
		Name:           name,
		ConsumerGroup:  "test-group",
		ConsumerName:   "test-consumer",
		Retry:          retry,
		KeepCompleted:  100,
		KeepFailed:     50,
		PollInterval:   50 * time.Millisecond,
		BatchSize:      10,
		ProcessTimeout: 5 * time.Second,
	}
}

func TestQueue_PublishAndConsume(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := NewQueue(adapter, testConfig("test:queue", DeliveryRetryPolicy()))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = q.PublishJSON(ctx, map[string]string{"key": "value"}, map[string]string{"type": "test"})
	require.NoError(t, err)

	received := make(chan bool, 1)
	handler := func(ctx context.Context, msg *Message) error {
		var data map[string]string
		err := json.Unmarshal(msg.Data, &data)
		assert.NoError(t, err)
		assert.Equal(t, "value", data["key"])
		assert.Equal(t, "test", msg.Metadata["type"])
		assert.Equal(t, 1, msg.Attempts)
		received <- true
		return nil
	}

	err = q.Consume(handler)
	require.NoError(t, err)
	defer q.Stop(time.Second)

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
}

func TestQueue_CompletedHistory(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := NewQueue(adapter, testConfig("test:completed", DeliveryRetryPolicy()))
	require.NoError(t, err)

	_, err = q.PublishJSON(context.Background(), map[string]string{"job": "ok"}, nil)
	require.NoError(t, err)

	err = q.Consume(func(ctx context.Context, msg *Message) error { return nil })
	require.NoError(t, err)
	defer q.Stop(time.Second)

	require.Eventually(t, func() bool {
		stats, err := q.GetStats()
		if err != nil {
			return false
		}
		return stats.Completed == 1 && stats.Waiting == 0 && stats.Active == 0
	}, 3*time.Second, 50*time.Millisecond, "job should move to completed history")
}

func TestQueue_FailedAfterExhaustion(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	// Single attempt: the first failure is terminal.
	retry := RetryPolicy{MaxAttempts: 1, Backoff: BackoffFixed, BaseDelay: 50 * time.Millisecond}
	q, err := NewQueue(adapter, testConfig("test:failed", retry))
	require.NoError(t, err)

	_, err = q.PublishJSON(context.Background(), map[string]string{"job": "doomed"}, nil)
	require.NoError(t, err)

	err = q.Consume(func(ctx context.Context, msg *Message) error { return assert.AnError })
	require.NoError(t, err)
	defer q.Stop(time.Second)

	require.Eventually(t, func() bool {
		stats, err := q.GetStats()
		if err != nil {
			return false
		}
		return stats.Failed == 1 && stats.Waiting == 0
	}, 3*time.Second, 50*time.Millisecond, "job should move to failed history")
}

func TestQueue_RedeliversAfterBackoff(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	retry := RetryPolicy{MaxAttempts: 3, Backoff: BackoffFixed, BaseDelay: 100 * time.Millisecond}
	q, err := NewQueue(adapter, testConfig("test:redeliver", retry))
	require.NoError(t, err)

	_, err = q.PublishJSON(context.Background(), map[string]string{"job": "flaky"}, nil)
	require.NoError(t, err)

	var attempts int32
	err = q.Consume(func(ctx context.Context, msg *Message) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return assert.AnError
		}
		return nil
	})
	require.NoError(t, err)
	defer q.Stop(time.Second)

	// First delivery fails and the entry stays pending. The reclaim
	// loop re-delivers it only after the visibility window plus the
	// backoff delay, so age the entry a second per poll until it is
	// picked up again.
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempts) >= 1
	}, 3*time.Second, 20*time.Millisecond, "first attempt should run")

	require.Eventually(t, func() bool {
		mr.FastForward(time.Second)
		stats, err := q.GetStats()
		if err != nil {
			return false
		}
		return atomic.LoadInt32(&attempts) >= 2 && stats.Completed == 1
	}, 10*time.Second, 50*time.Millisecond, "job should be retried and complete")
}

func TestQueue_SlowInFlightJobIsNotRedelivered(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	retry := RetryPolicy{MaxAttempts: 3, Backoff: BackoffFixed, BaseDelay: 100 * time.Millisecond}
	cfg := testConfig("test:inflight", retry)
	q1, err := NewQueue(adapter, cfg)
	require.NoError(t, err)

	cfg2 := cfg
	cfg2.ConsumerName = "test-consumer-2"
	q2, err := NewQueue(adapter, cfg2)
	require.NoError(t, err)

	_, err = q1.PublishJSON(context.Background(), map[string]string{"job": "slow"}, nil)
	require.NoError(t, err)

	var invocations int32
	release := make(chan struct{})
	handler := func(ctx context.Context, msg *Message) error {
		atomic.AddInt32(&invocations, 1)
		<-release
		return nil
	}
	require.NoError(t, q1.Consume(handler))
	require.NoError(t, q2.Consume(handler))
	defer q1.Stop(time.Second)
	defer q2.Stop(time.Second)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&invocations) == 1
	}, 3*time.Second, 20*time.Millisecond, "one consumer should pick the job up")

	// Age the pending entry well past the backoff delay but still
	// inside the visibility window. The job has not failed, only taken
	// a while; the other consumer must leave it alone.
	mr.FastForward(time.Second)
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&invocations),
		"in-flight job must not be delivered a second time")

	close(release)
	require.Eventually(t, func() bool {
		stats, err := q1.GetStats()
		return err == nil && stats.Completed == 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestQueue_GetStatsPreviews(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := NewQueue(adapter, testConfig("test:stats", DeliveryRetryPolicy()))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := q.PublishJSON(ctx, map[string]int{"count": i}, nil)
		require.NoError(t, err)
	}

	stats, err := q.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Waiting)
	assert.Equal(t, int64(0), stats.Active)
	assert.Len(t, stats.WaitingPreview, 5)
	assert.NotEmpty(t, stats.WaitingPreview[0].Data)
}

func TestQueue_Maintenance(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	defer mr.Close()

	q, err := NewQueue(adapter, testConfig("test:maintenance", DeliveryRetryPolicy()))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := q.PublishJSON(ctx, map[string]int{"n": i}, nil)
		require.NoError(t, err)
	}

	err = q.Consume(func(ctx context.Context, msg *Message) error { return nil })
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stats, err := q.GetStats()
		return err == nil && stats.Completed == 3
	}, 3*time.Second, 50*time.Millisecond)
	require.NoError(t, q.Stop(time.Second))

	require.NoError(t, q.CleanCompleted())
	stats, err := q.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Completed)

	_, err = q.PublishJSON(ctx, map[string]string{"stale": "yes"}, nil)
	require.NoError(t, err)
	require.NoError(t, q.Drain())

	stats, err = q.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Waiting)
}
