package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
	"github.com/im-subhadeep/Xeno-Assignment/internal/repository"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/pg"
)

type fakeQueue struct {
	mu        sync.Mutex
	published [][]byte
	failing   bool
}

func (f *fakeQueue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return "", assert.AnError
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	f.published = append(f.published, b)
	return fmt.Sprintf("%d-0", len(f.published)), nil
}

func (f *fakeQueue) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type fakeEvents struct {
	mu       sync.Mutex
	statuses []string
}

func (f *fakeEvents) PublishCampaignUpdate(ctx context.Context, campaignID int64, status string, data interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

type deliveryFixture struct {
	svc           *DeliveryService
	campaignRepo  *repository.CampaignRepository
	customerRepo  *repository.CustomerRepository
	logRepo       *repository.CommunicationLogRepository
	deliveryQueue *fakeQueue
	batchQueue    *fakeQueue
	events        *fakeEvents
}

func setupDelivery(t *testing.T) *deliveryFixture {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&repository.CampaignEntity{},
		&repository.CustomerEntity{},
		&repository.CommunicationLogEntity{},
	))
	db := pg.FromGorm(gdb)

	f := &deliveryFixture{
		campaignRepo:  repository.NewCampaignRepository(db),
		customerRepo:  repository.NewCustomerRepository(db),
		logRepo:       repository.NewCommunicationLogRepository(db),
		deliveryQueue: &fakeQueue{},
		batchQueue:    &fakeQueue{},
		events:        &fakeEvents{},
	}
	f.svc = NewDeliveryService(f.campaignRepo, f.logRepo, f.customerRepo, f.deliveryQueue, f.batchQueue, f.events)
	return f
}

func (f *deliveryFixture) createCampaign(t *testing.T) *model.Campaign {
	t.Helper()
	c, err := f.campaignRepo.Create(context.Background(), &model.Campaign{
		Name:            "Test",
		MessageTemplate: "Hi {{name}}!",
	})
	require.NoError(t, err)
	return c
}

func (f *deliveryFixture) seedCustomers(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.customerRepo.Create(context.Background(), &model.Customer{
			Name:  fmt.Sprintf("Customer %d", i),
			Email: fmt.Sprintf("c%d@example.com", i),
		})
		require.NoError(t, err)
	}
}

func TestDeliveryService_EmptyAudienceCompletes(t *testing.T) {
	f := setupDelivery(t)
	campaign := f.createCampaign(t)

	result, err := f.svc.Trigger(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Zero(t, result.AudienceSize)
	assert.Zero(t, result.QueuedMessages)

	got, err := f.campaignRepo.Get(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, got.Status)
	assert.Zero(t, f.deliveryQueue.count())
	assert.Zero(t, f.batchQueue.count())
}

func TestDeliveryService_BatchFanout(t *testing.T) {
	f := setupDelivery(t)
	campaign := f.createCampaign(t)
	f.seedCustomers(t, 250)

	result, err := f.svc.Trigger(context.Background(), campaign.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(250), result.AudienceSize)
	assert.Equal(t, int64(250), result.QueuedMessages)
	assert.Equal(t, 3, result.Batches)
	assert.Equal(t, 250, f.deliveryQueue.count())
	assert.Equal(t, 3, f.batchQueue.count())

	// Last batch carries the remainder.
	var last model.BatchJob
	require.NoError(t, json.Unmarshal(f.batchQueue.published[2], &last))
	assert.Equal(t, 2, last.BatchIndex)
	assert.Len(t, last.CustomerIDs, 50)
	assert.Equal(t, DeliveryBatchSize, last.BatchSize)

	got, err := f.campaignRepo.Get(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusSending, got.Status)
	assert.Equal(t, int64(250), got.AudienceSize)

	n, err := f.logRepo.CountByCampaign(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), n)

	assert.Contains(t, f.events.statuses, "QUEUED")
}

func TestDeliveryService_ConflictWhileSending(t *testing.T) {
	f := setupDelivery(t)
	campaign := f.createCampaign(t)
	f.seedCustomers(t, 3)

	_, err := f.svc.Trigger(context.Background(), campaign.ID)
	require.NoError(t, err)

	_, err = f.svc.Trigger(context.Background(), campaign.ID)
	assert.ErrorIs(t, err, ErrCampaignConflict)
}

func TestDeliveryService_RetriggerAfterFailureReusesLogs(t *testing.T) {
	f := setupDelivery(t)
	campaign := f.createCampaign(t)
	f.seedCustomers(t, 3)

	_, err := f.svc.Trigger(context.Background(), campaign.ID)
	require.NoError(t, err)

	// A failed run may be triggered again; the logs are reset, not
	// duplicated.
	require.NoError(t, f.campaignRepo.MarkFailed(context.Background(), campaign.ID, "boom"))

	result, err := f.svc.Trigger(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.AudienceSize)

	n, err := f.logRepo.CountByCampaign(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestDeliveryService_QueueRejectionMarksRecipientFailed(t *testing.T) {
	f := setupDelivery(t)
	campaign := f.createCampaign(t)
	f.seedCustomers(t, 2)
	f.deliveryQueue.failing = true

	result, err := f.svc.Trigger(context.Background(), campaign.ID)
	require.NoError(t, err, "per-recipient queue errors must not abort the trigger")
	assert.Equal(t, int64(2), result.AudienceSize)
	assert.Zero(t, result.QueuedMessages)
	// The batch job still goes out.
	assert.Equal(t, 1, f.batchQueue.count())

	got, err := f.campaignRepo.Get(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.FailedCount)

	log, err := f.logRepo.GetByPair(context.Background(), campaign.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.LogStatusFailed, log.Status)
	assert.Contains(t, log.FailureReason, "Queue error")
}

func TestDeliveryService_SegmentErrorRevertsToFailed(t *testing.T) {
	f := setupDelivery(t)
	campaign := f.createCampaign(t)

	f.svc.segments = failingSegments{}

	_, err := f.svc.Trigger(context.Background(), campaign.ID)
	require.Error(t, err)

	got, err := f.campaignRepo.Get(context.Background(), campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusFailed, got.Status)
	assert.Equal(t, "Critical error during delivery initiation.", got.FailureReason)
}

type failingSegments struct{}

func (failingSegments) ListForSegment(ctx context.Context, campaign *model.Campaign) ([]*model.Customer, error) {
	return nil, assert.AnError
}
