package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
	"github.com/im-subhadeep/Xeno-Assignment/internal/pubsub"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/logger"
)

// DeliveryBatchSize is how many recipients go into one bookkeeping
// batch during fan-out.
const DeliveryBatchSize = 100

var (
	// ErrCampaignConflict means the campaign is already SENDING or has
	// COMPLETED; re-triggering is rejected.
	ErrCampaignConflict = errors.New("campaign is already sending or completed")
)

type CampaignRepository interface {
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	BeginSending(ctx context.Context, id int64) error
	SetAudienceSize(ctx context.Context, id int64, size int64) error
	SetStatus(ctx context.Context, id int64, status model.CampaignStatus) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	IncrementFailedCount(ctx context.Context, id int64) error
}

type CommunicationLogRepository interface {
	UpsertForTrigger(ctx context.Context, campaignID, customerID int64, message string) (*model.CommunicationLog, error)
	MarkFailed(ctx context.Context, id int64, reason string, at time.Time) error
}

// SegmentResolver turns a campaign's audience rules into the concrete
// recipient set. Resolution itself is outside the delivery core.
type SegmentResolver interface {
	ListForSegment(ctx context.Context, campaign *model.Campaign) ([]*model.Customer, error)
}

// JobQueue is the enqueue-side surface of a durable queue.
type JobQueue interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// CampaignEvents is the publish side of the broadcast bus.
type CampaignEvents interface {
	PublishCampaignUpdate(ctx context.Context, campaignID int64, status string, data interface{}) error
}

// DeliveryService is the orchestrator: it fans a triggered campaign out
// into per-recipient delivery jobs plus per-batch bookkeeping jobs.
// Triggering returns as soon as fan-out finishes; delivery outcomes
// arrive later through vendor receipts.
type DeliveryService struct {
	campaignRepo  CampaignRepository
	logRepo       CommunicationLogRepository
	segments      SegmentResolver
	deliveryQueue JobQueue
	batchQueue    JobQueue
	events        CampaignEvents
}

func NewDeliveryService(
	campaignRepo CampaignRepository,
	logRepo CommunicationLogRepository,
	segments SegmentResolver,
	deliveryQueue JobQueue,
	batchQueue JobQueue,
	events CampaignEvents,
) *DeliveryService {
	return &DeliveryService{
		campaignRepo:  campaignRepo,
		logRepo:       logRepo,
		segments:      segments,
		deliveryQueue: deliveryQueue,
		batchQueue:    batchQueue,
		events:        events,
	}
}

// TriggerResult summarizes a completed fan-out.
type TriggerResult struct {
	CampaignID     int64 `json:"campaign_id"`
	AudienceSize   int64 `json:"audience_size"`
	QueuedMessages int64 `json:"queued_messages"`
	Batches        int   `json:"batches"`
}

// Trigger starts delivery for a campaign.
//
// Per-recipient failures stay local: a log write failure skips that
// recipient, a queue rejection marks the recipient terminally FAILED.
// Neither aborts the batch nor the call. Errors outside per-recipient
// scope revert the campaign to FAILED (best effort) and are returned.
func (s *DeliveryService) Trigger(ctx context.Context, campaignID int64) (*TriggerResult, error) {
	campaign, err := s.campaignRepo.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	if campaign.Status == model.CampaignStatusSending || campaign.Status == model.CampaignStatusCompleted {
		return nil, ErrCampaignConflict
	}

	if err := s.campaignRepo.BeginSending(ctx, campaignID); err != nil {
		return nil, fmt.Errorf("begin sending: %w", err)
	}

	audience, err := s.segments.ListForSegment(ctx, campaign)
	if err != nil {
		s.revertToFailed(ctx, campaignID)
		return nil, fmt.Errorf("resolve segment: %w", err)
	}

	// Empty audience completes immediately; nothing is enqueued and the
	// webhook path never runs for this campaign.
	if len(audience) == 0 {
		if err := s.campaignRepo.SetStatus(ctx, campaignID, model.CampaignStatusCompleted); err != nil {
			s.revertToFailed(ctx, campaignID)
			return nil, fmt.Errorf("complete empty campaign: %w", err)
		}
		return &TriggerResult{CampaignID: campaignID}, nil
	}

	if err := s.campaignRepo.SetAudienceSize(ctx, campaignID, int64(len(audience))); err != nil {
		s.revertToFailed(ctx, campaignID)
		return nil, fmt.Errorf("set audience size: %w", err)
	}

	var queued int64
	batches := 0

	for start := 0; start < len(audience); start += DeliveryBatchSize {
		end := start + DeliveryBatchSize
		if end > len(audience) {
			end = len(audience)
		}
		batch := audience[start:end]
		batchIndex := batches
		batches++

		customerIDs := make([]int64, 0, len(batch))
		for _, customer := range batch {
			customerIDs = append(customerIDs, customer.ID)
			message := RenderTemplate(campaign.MessageTemplate, customer)

			logEntry, err := s.logRepo.UpsertForTrigger(ctx, campaignID, customer.ID, message)
			if err != nil {
				// Data-layer failure: the recipient is skipped, not
				// counted as a delivery failure.
				logger.Warn("skipping recipient, log upsert failed",
					"campaign_id", campaignID, "customer_id", customer.ID, "error", err)
				continue
			}

			job := model.DeliveryJob{
				CampaignID:         campaignID,
				CustomerID:         customer.ID,
				CustomerEmail:      customer.Email,
				Message:            message,
				CommunicationLogID: logEntry.ID,
			}
			if _, err := s.deliveryQueue.PublishJSON(ctx, job, map[string]string{"type": "delivery"}); err != nil {
				// Terminal without ever reaching the vendor.
				reason := fmt.Sprintf("Queue error: %v", err)
				if markErr := s.logRepo.MarkFailed(ctx, logEntry.ID, reason, time.Now()); markErr != nil {
					logger.Error("failed to mark log after queue rejection",
						"communication_log_id", logEntry.ID, "error", markErr)
				}
				if incErr := s.campaignRepo.IncrementFailedCount(ctx, campaignID); incErr != nil {
					logger.Error("failed to increment failed count",
						"campaign_id", campaignID, "error", incErr)
				}
				continue
			}
			queued++
		}

		// The batch job goes out regardless of how many recipients in
		// the batch actually got a delivery job.
		batchJob := model.BatchJob{
			CampaignID:  campaignID,
			CustomerIDs: customerIDs,
			BatchSize:   DeliveryBatchSize,
			BatchIndex:  batchIndex,
		}
		if _, err := s.batchQueue.PublishJSON(ctx, batchJob, map[string]string{"type": "batch"}); err != nil {
			logger.Warn("failed to enqueue batch job",
				"campaign_id", campaignID, "batch_index", batchIndex, "error", err)
		}
	}

	if err := s.events.PublishCampaignUpdate(ctx, campaignID, pubsub.StatusQueued, pubsub.QueuedData{
		TotalCustomers: int64(len(audience)),
		QueuedMessages: queued,
		Batches:        batches,
	}); err != nil {
		logger.Warn("failed to publish queued event", "campaign_id", campaignID, "error", err)
	}

	return &TriggerResult{
		CampaignID:     campaignID,
		AudienceSize:   int64(len(audience)),
		QueuedMessages: queued,
		Batches:        batches,
	}, nil
}

// revertToFailed is the fatal path: reload the campaign and mark it
// FAILED only if it is still SENDING. Already-enqueued jobs are not
// retracted.
func (s *DeliveryService) revertToFailed(ctx context.Context, campaignID int64) {
	campaign, err := s.campaignRepo.Get(ctx, campaignID)
	if err != nil {
		logger.Error("failed to reload campaign for revert", "campaign_id", campaignID, "error", err)
		return
	}
	if campaign.Status != model.CampaignStatusSending {
		return
	}
	if err := s.campaignRepo.MarkFailed(ctx, campaignID, "Critical error during delivery initiation."); err != nil {
		logger.Error("failed to revert campaign", "campaign_id", campaignID, "error", err)
	}
}
