package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/im-subhadeep/Xeno-Assignment/pkg/logger"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/redis"
)

// Message is one delivered job. Jobs are queue-owned for their
// lifetime: acknowledged on terminal success or terminal failure, left
// pending (and later reclaimed) while retries remain.
type Message struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
	Attempts  int
	lastErr   error
}

// MessageHandler processes one job.
// Return nil to acknowledge, an error to leave the job for retry.
type MessageHandler func(ctx context.Context, msg *Message) error

type QueueConfig struct {
	Name           string
	ConsumerGroup  string
	ConsumerName   string
	Retry          RetryPolicy
	KeepCompleted  int64
	KeepFailed     int64
	PollInterval   time.Duration
	BatchSize      int64
	ProcessTimeout time.Duration
}

// Queue is a durable at-least-once work queue on a Redis Stream
// consumer group. Enqueue (Publish) never waits on execution. Failed
// deliveries stay pending; the reclaim loop re-delivers a pending
// entry once it has been idle for the visibility window
// (ProcessTimeout) plus the retry policy's delay for that attempt.
// The window keeps a slow-but-healthy in-flight attempt from being
// claimed by a sibling consumer; the delay on top realizes backoff
// without any in-handler sleeps.
//
// There is no ordering guarantee between jobs; deliveries of the same
// job may overlap when a handler outlives its visibility window, so
// every side effect a handler applies must be safe to re-apply.
type Queue struct {
	adapter    redis.RedisAdapter
	config     QueueConfig
	handler    MessageHandler
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	processing map[string]*Message
}

// JobRecord is a terminal job entry kept in the capped history lists.
type JobRecord struct {
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	Attempts   int             `json:"attempts"`
	Error      string          `json:"error,omitempty"`
	FinishedAt time.Time       `json:"finished_at"`
}

// JobPreview is a bounded view of a waiting or active job.
type JobPreview struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Stats is a point-in-time snapshot of queue depth.
type Stats struct {
	Waiting        int64        `json:"waiting"`
	Active         int64        `json:"active"`
	Completed      int64        `json:"completed"`
	Failed         int64        `json:"failed"`
	WaitingPreview []JobPreview `json:"waiting_preview,omitempty"`
	ActivePreview  []JobPreview `json:"active_preview,omitempty"`
}

const previewLimit = 10

func NewQueue(adapter redis.RedisAdapter, config QueueConfig) (*Queue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "default-group"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.Retry.MaxAttempts == 0 {
		config.Retry = RetryPolicy{MaxAttempts: 3, Backoff: BackoffExponential, BaseDelay: 2 * time.Second}
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.ProcessTimeout == 0 {
		config.ProcessTimeout = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		adapter:    adapter,
		config:     config,
		ctx:        ctx,
		cancel:     cancel,
		processing: make(map[string]*Message),
	}

	if err := q.initConsumerGroup(); err != nil {
		// Group might already exist, which is fine
	}

	return q, nil
}

func (q *Queue) Name() string { return q.config.Name }

func (q *Queue) initConsumerGroup() error {
	return q.adapter.XGroupCreateMkStream(q.config.Name, q.config.ConsumerGroup, "0")
}

// Publish adds a job to the queue. The job is durable once this
// returns; execution happens asynchronously.
func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().UnixNano(),
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("failed to publish job: %w", err)
	}
	return id, nil
}

// PublishJSON publishes a JSON-encoded job.
func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.Publish(ctx, jsonData, metadata)
}

// Consume starts the delivery loop for this consumer.
func (q *Queue) Consume(handler MessageHandler) error {
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	q.handler = handler
	q.wg.Add(1)

	go q.consumeLoop()

	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.processNewMessages()
			q.redeliverDueMessages()
		}
	}
}

func (q *Queue) processNewMessages() {
	messages, err := q.adapter.XReadGroup(
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.Name,
		">",
		q.config.BatchSize,
	)
	if err != nil {
		if err != redis.NilError {
			logger.Error("queue read failed", "queue", q.config.Name, "error", err)
		}
		return
	}

	for _, streamMsg := range messages {
		msg := q.streamMessageToMessage(streamMsg)
		msg.Attempts = 1
		q.handleMessage(msg)
	}
}

// redeliverDueMessages claims pending entries whose visibility window
// and backoff have both elapsed. A pending entry's idle time alone
// cannot distinguish a failed attempt from one still running on a
// sibling consumer, so reclaim waits out the full processing window
// (ProcessTimeout) before the attempt's backoff delay even starts
// counting. A pending entry's delivery count is its attempt count so
// far; the claim that follows is the next attempt.
func (q *Queue) redeliverDueMessages() {
	pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup)
	if err != nil || pending == nil || pending.Count == 0 {
		return
	}

	pendingExt, err := q.adapter.XPendingExt(q.config.Name, q.config.ConsumerGroup, "-", "+", 100)
	if err != nil || len(pendingExt) == 0 {
		return
	}

	attemptsByID := make(map[string]int, len(pendingExt))
	var idsToReclaim []string
	var minIdle time.Duration
	for _, p := range pendingExt {
		failures := int(p.RetryCount)
		if failures < 1 {
			failures = 1
		}
		due := q.config.ProcessTimeout + q.config.Retry.Delay(failures)
		if p.Idle >= due {
			idsToReclaim = append(idsToReclaim, p.ID)
			attemptsByID[p.ID] = failures
			if minIdle == 0 || due < minIdle {
				minIdle = due
			}
		}
	}
	if len(idsToReclaim) == 0 {
		return
	}

	// minIdle guards the claim itself: an entry another consumer has
	// just claimed has its idle reset and is skipped by the server.
	messages, err := q.adapter.XClaim(
		q.config.Name,
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		minIdle,
		idsToReclaim...,
	)
	if err != nil {
		return
	}

	for _, streamMsg := range messages {
		msg := q.streamMessageToMessage(streamMsg)
		priorAttempts := attemptsByID[streamMsg.ID]

		if q.config.Retry.Exhausted(priorAttempts) {
			// Worker died mid-final-attempt; never re-run it.
			msg.Attempts = priorAttempts
			msg.lastErr = fmt.Errorf("delivery attempts exhausted")
			q.finishFailed(msg)
			continue
		}

		msg.Attempts = priorAttempts + 1
		q.handleMessage(msg)
	}
}

func (q *Queue) handleMessage(msg *Message) {
	q.mu.Lock()
	q.processing[msg.ID] = msg
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.processing, msg.ID)
		q.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(q.ctx, q.config.ProcessTimeout)
	defer cancel()

	err := q.handler(ctx, msg)
	if err == nil {
		q.finishCompleted(msg)
		return
	}

	msg.lastErr = err
	if q.config.Retry.Exhausted(msg.Attempts) {
		q.finishFailed(msg)
		return
	}
	// Leave pending; redeliverDueMessages picks it up after backoff.
}

func (q *Queue) finishCompleted(msg *Message) {
	q.recordHistory(q.completedKey(), msg, "", q.config.KeepCompleted)
	q.ackAndDelete(msg.ID)
}

func (q *Queue) finishFailed(msg *Message) {
	reason := "unknown"
	if msg.lastErr != nil {
		reason = msg.lastErr.Error()
	}
	logger.Warn("job failed terminally",
		"queue", q.config.Name, "job", msg.ID, "attempts", msg.Attempts, "error", reason)
	q.recordHistory(q.failedKey(), msg, reason, q.config.KeepFailed)
	q.ackAndDelete(msg.ID)
}

func (q *Queue) ackAndDelete(id string) {
	if err := q.adapter.XAck(q.config.Name, q.config.ConsumerGroup, id); err != nil {
		logger.Error("queue ack failed", "queue", q.config.Name, "job", id, "error", err)
	}
	// Deleting acked entries keeps stream length == waiting depth.
	_ = q.adapter.XDel(q.config.Name, id)
}

func (q *Queue) recordHistory(key string, msg *Message, errText string, keep int64) {
	rec := JobRecord{
		ID:         msg.ID,
		Data:       json.RawMessage(msg.Data),
		Attempts:   msg.Attempts,
		Error:      errText,
		FinishedAt: time.Now(),
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := q.adapter.LPush(key, b); err != nil {
		return
	}
	if keep > 0 {
		_ = q.adapter.LTrim(key, 0, keep-1)
	}
}

func (q *Queue) completedKey() string { return q.config.Name + ":completed" }
func (q *Queue) failedKey() string    { return q.config.Name + ":failed" }

func (q *Queue) streamMessageToMessage(streamMsg redis.StreamMessage) *Message {
	msg := &Message{
		ID:       streamMsg.ID,
		Metadata: make(map[string]string),
	}

	for k, v := range streamMsg.Values {
		switch k {
		case "data":
			if data, ok := v.(string); ok {
				msg.Data = []byte(data)
			}
		case "timestamp":
			if ts, ok := v.(string); ok {
				var ns int64
				if _, err := fmt.Sscanf(ts, "%d", &ns); err == nil {
					msg.Timestamp = time.Unix(0, ns)
				}
			}
		default:
			if len(k) > 5 && k[:5] == "meta_" {
				if val, ok := v.(string); ok {
					msg.Metadata[k[5:]] = val
				}
			}
		}
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	return msg
}

// GetStats returns queue depth plus bounded previews of waiting and
// in-flight jobs.
func (q *Queue) GetStats() (*Stats, error) {
	total, err := q.adapter.XLen(q.config.Name)
	if err != nil {
		return nil, err
	}

	var active int64
	if pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup); err == nil && pending != nil {
		active = pending.Count
	}

	waiting := total - active
	if waiting < 0 {
		waiting = 0
	}

	completed, _ := q.adapter.LLen(q.completedKey())
	failed, _ := q.adapter.LLen(q.failedKey())

	stats := &Stats{
		Waiting:   waiting,
		Active:    active,
		Completed: completed,
		Failed:    failed,
	}

	if entries, err := q.adapter.XRange(q.config.Name, previewLimit); err == nil {
		for _, e := range entries {
			msg := q.streamMessageToMessage(e)
			stats.WaitingPreview = append(stats.WaitingPreview, JobPreview{
				ID:        msg.ID,
				Data:      json.RawMessage(msg.Data),
				Timestamp: msg.Timestamp,
			})
		}
	}

	q.mu.RLock()
	for _, msg := range q.processing {
		if len(stats.ActivePreview) >= previewLimit {
			break
		}
		stats.ActivePreview = append(stats.ActivePreview, JobPreview{
			ID:        msg.ID,
			Data:      json.RawMessage(msg.Data),
			Timestamp: msg.Timestamp,
		})
	}
	q.mu.RUnlock()

	return stats, nil
}

// CleanCompleted drops the completed-job history.
func (q *Queue) CleanCompleted() error {
	return q.adapter.Del(q.completedKey())
}

// CleanFailed drops the failed-job history.
func (q *Queue) CleanFailed() error {
	return q.adapter.Del(q.failedKey())
}

// Drain removes all waiting jobs. In-flight jobs finish normally.
func (q *Queue) Drain() error {
	return q.adapter.XTrimApprox(q.config.Name, 0)
}

// Stop halts consumption, waiting up to timeout for the loop to exit.
func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}
