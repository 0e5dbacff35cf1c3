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

// DefaultFailureReason is stored when a FAILED receipt carries no
// reason of its own.
const DefaultFailureReason = "Unknown failure from vendor"

var (
	// ErrInvalidReceiptStatus means the vendor reported a status the
	// reconciler does not understand.
	ErrInvalidReceiptStatus = errors.New("invalid receipt status")
)

// Receipt is the vendor's asynchronous report of one recipient's final
// delivery outcome.
type Receipt struct {
	CommunicationLogID int64
	Status             model.LogStatus
	VendorMessageID    string
	Timestamp          time.Time
	FailureReason      string
}

type ReceiptLogRepository interface {
	Get(ctx context.Context, id int64) (*model.CommunicationLog, error)
	ApplySentReceipt(ctx context.Context, id int64, status model.LogStatus, vendorMessageID string, at time.Time) error
	ApplyFailedReceipt(ctx context.Context, id int64, vendorMessageID, reason string, at time.Time) error
}

type ReceiptCampaignRepository interface {
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	SetStatus(ctx context.Context, id int64, status model.CampaignStatus) error
	IncrementSentCount(ctx context.Context, id int64) error
	IncrementFailedCount(ctx context.Context, id int64) error
}

type DeliveryEvents interface {
	PublishDeliveryStatus(ctx context.Context, logID int64, status string, data interface{}) error
}

// ReceiptService reconciles vendor receipts into recipient and
// campaign state. It is the only place besides the empty-audience
// shortcut that moves a campaign to COMPLETED.
type ReceiptService struct {
	logRepo      ReceiptLogRepository
	campaignRepo ReceiptCampaignRepository
	events       DeliveryEvents
}

func NewReceiptService(logRepo ReceiptLogRepository, campaignRepo ReceiptCampaignRepository, events DeliveryEvents) *ReceiptService {
	return &ReceiptService{
		logRepo:      logRepo,
		campaignRepo: campaignRepo,
		events:       events,
	}
}

// Apply processes one receipt. Duplicate receipts for the same log are
// not deduplicated: each one increments a campaign counter, mirroring
// the at-least-once semantics of the rest of the pipeline.
func (s *ReceiptService) Apply(ctx context.Context, receipt Receipt) error {
	logEntry, err := s.logRepo.Get(ctx, receipt.CommunicationLogID)
	if err != nil {
		return err
	}

	var failureReason string
	switch receipt.Status {
	case model.LogStatusSent, model.LogStatusDelivered:
		if err := s.logRepo.ApplySentReceipt(ctx, logEntry.ID, receipt.Status, receipt.VendorMessageID, receipt.Timestamp); err != nil {
			return fmt.Errorf("apply sent receipt: %w", err)
		}
	case model.LogStatusFailed:
		failureReason = receipt.FailureReason
		if failureReason == "" {
			failureReason = DefaultFailureReason
		}
		if err := s.logRepo.ApplyFailedReceipt(ctx, logEntry.ID, receipt.VendorMessageID, failureReason, receipt.Timestamp); err != nil {
			return fmt.Errorf("apply failed receipt: %w", err)
		}
	default:
		return ErrInvalidReceiptStatus
	}

	if err := s.events.PublishDeliveryStatus(ctx, logEntry.ID, string(receipt.Status), pubsub.DeliveryStatusData{
		VendorMessageID: receipt.VendorMessageID,
		Timestamp:       &receipt.Timestamp,
		FailureReason:   failureReason,
	}); err != nil {
		logger.Warn("failed to publish delivery status event",
			"communication_log_id", logEntry.ID, "error", err)
	}

	if receipt.Status == model.LogStatusFailed {
		err = s.campaignRepo.IncrementFailedCount(ctx, logEntry.CampaignID)
	} else {
		err = s.campaignRepo.IncrementSentCount(ctx, logEntry.CampaignID)
	}
	if err != nil {
		return fmt.Errorf("increment campaign counter: %w", err)
	}

	s.detectCompletion(ctx, logEntry.CampaignID)
	return nil
}

// detectCompletion re-reads the campaign after the increment and
// completes it once every recipient has a terminal outcome. The read
// is a snapshot, not transactional with the increment: two concurrent
// final receipts can both miss (campaign stalls one receipt short of
// the transition until another arrives) or both match. Completion is
// an idempotent overwrite, so double application is harmless.
func (s *ReceiptService) detectCompletion(ctx context.Context, campaignID int64) {
	campaign, err := s.campaignRepo.Get(ctx, campaignID)
	if err != nil {
		logger.Error("failed to reload campaign for completion check",
			"campaign_id", campaignID, "error", err)
		return
	}

	if campaign.AudienceSize <= 0 {
		return
	}
	if campaign.SentCount+campaign.FailedCount != campaign.AudienceSize {
		return
	}
	if campaign.Status == model.CampaignStatusCompleted {
		return
	}

	if err := s.campaignRepo.SetStatus(ctx, campaignID, model.CampaignStatusCompleted); err != nil {
		logger.Error("failed to complete campaign", "campaign_id", campaignID, "error", err)
	}
}
