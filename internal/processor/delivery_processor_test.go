package processor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gateway "github.com/im-subhadeep/Xeno-Assignment/internal/gateways"
	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
	"github.com/im-subhadeep/Xeno-Assignment/internal/queue"
)

type fakeVendor struct {
	mu       sync.Mutex
	requests []*gateway.SendRequest
	err      error
}

func (f *fakeVendor) Send(ctx context.Context, req *gateway.SendRequest) (*gateway.SendResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &gateway.SendResponse{Status: "ACCEPTED", VendorMessageID: "vendor_test"}, nil
}

func (f *fakeVendor) CallbackURL() string { return "http://api:8080/callback" }

type fakeLogRepo struct {
	mu       sync.Mutex
	statuses map[int64]model.LogStatus
	failed   map[int64]string
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{
		statuses: make(map[int64]model.LogStatus),
		failed:   make(map[int64]string),
	}
}

func (f *fakeLogRepo) SetStatus(ctx context.Context, id int64, status model.LogStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

func (f *fakeLogRepo) MarkFailed(ctx context.Context, id int64, reason string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = model.LogStatusFailed
	f.failed[id] = reason
	return nil
}

type fakeCampaignRepo struct {
	mu          sync.Mutex
	failedCount map[int64]int
}

func (f *fakeCampaignRepo) IncrementFailedCount(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failedCount == nil {
		f.failedCount = make(map[int64]int)
	}
	f.failedCount[id]++
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEvents) PublishDeliveryStatus(ctx context.Context, logID int64, status string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, status)
	return nil
}

func (f *fakeEvents) PublishCampaignUpdate(ctx context.Context, campaignID int64, status string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, status)
	return nil
}

func deliveryMessage(t *testing.T, attempts int) *queue.Message {
	t.Helper()
	data, err := json.Marshal(model.DeliveryJob{
		CampaignID:         1,
		CustomerID:         2,
		CustomerEmail:      "ada@example.com",
		Message:            "Hi Ada!",
		CommunicationLogID: 10,
	})
	require.NoError(t, err)
	return &queue.Message{ID: "1-0", Data: data, Attempts: attempts}
}

func TestDeliveryProcessor_Success(t *testing.T) {
	vendor := &fakeVendor{}
	logs := newFakeLogRepo()
	campaigns := &fakeCampaignRepo{}
	events := &fakeEvents{}
	p := NewDeliveryProcessor(logs, campaigns, vendor, events)

	err := p.Process(context.Background(), deliveryMessage(t, 1))
	require.NoError(t, err)

	require.Len(t, vendor.requests, 1)
	req := vendor.requests[0]
	assert.Equal(t, int64(2), req.CustomerID)
	assert.Equal(t, "ada@example.com", req.CustomerEmail)
	assert.Equal(t, int64(10), req.CommunicationLogID)
	assert.Equal(t, "http://api:8080/callback", req.CallbackURL)

	// Acceptance by the vendor is announced but never persisted; the
	// receipt webhook owns the terminal status.
	assert.Equal(t, model.LogStatusSending, logs.statuses[10])
	assert.Equal(t, []string{string(model.LogStatusSentToVendor)}, events.events)
	assert.Empty(t, campaigns.failedCount)
}

func TestDeliveryProcessor_VendorErrorLeavesRetryToQueue(t *testing.T) {
	vendor := &fakeVendor{err: assert.AnError}
	logs := newFakeLogRepo()
	campaigns := &fakeCampaignRepo{}
	events := &fakeEvents{}
	p := NewDeliveryProcessor(logs, campaigns, vendor, events)

	err := p.Process(context.Background(), deliveryMessage(t, 1))
	require.Error(t, err)

	// Attempts remain: no terminal bookkeeping yet.
	assert.Equal(t, model.LogStatusSending, logs.statuses[10])
	assert.Empty(t, logs.failed)
	assert.Empty(t, campaigns.failedCount)
	assert.Empty(t, events.events)
}

func TestDeliveryProcessor_ExhaustionFinalizes(t *testing.T) {
	vendor := &fakeVendor{err: assert.AnError}
	logs := newFakeLogRepo()
	campaigns := &fakeCampaignRepo{}
	events := &fakeEvents{}
	p := NewDeliveryProcessor(logs, campaigns, vendor, events)

	err := p.Process(context.Background(), deliveryMessage(t, 3))
	require.Error(t, err)

	assert.Equal(t, model.LogStatusFailed, logs.statuses[10])
	assert.Contains(t, logs.failed[10], "after 3 attempts")
	assert.Equal(t, 1, campaigns.failedCount[1])
	assert.Equal(t, []string{string(model.LogStatusFailed)}, events.events)
}

func TestDeliveryProcessor_MalformedPayload(t *testing.T) {
	p := NewDeliveryProcessor(newFakeLogRepo(), &fakeCampaignRepo{}, &fakeVendor{}, &fakeEvents{})

	err := p.Process(context.Background(), &queue.Message{ID: "1-0", Data: []byte("not json"), Attempts: 1})
	assert.Error(t, err)
}

func TestBatchProcessor_PublishesProgress(t *testing.T) {
	events := &fakeEvents{}
	p := NewBatchProcessor(events)

	data, err := json.Marshal(model.BatchJob{
		CampaignID:  1,
		CustomerIDs: []int64{1, 2, 3},
		BatchSize:   100,
		BatchIndex:  0,
	})
	require.NoError(t, err)

	err = p.Process(context.Background(), &queue.Message{ID: "1-0", Data: data, Attempts: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"BATCH_PROCESSED"}, events.events)
}
