package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gateway "github.com/im-subhadeep/Xeno-Assignment/internal/gateways"
	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
	"github.com/im-subhadeep/Xeno-Assignment/internal/pubsub"
	"github.com/im-subhadeep/Xeno-Assignment/internal/queue"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/logger"
)

func pubsubData(job *model.DeliveryJob, vendorMessageID string, ts *time.Time, reason string) pubsub.DeliveryStatusData {
	return pubsub.DeliveryStatusData{
		CustomerID:      job.CustomerID,
		VendorMessageID: vendorMessageID,
		Timestamp:       ts,
		FailureReason:   reason,
	}
}

// VendorGateway hands a message to the external vendor.
type VendorGateway interface {
	Send(ctx context.Context, req *gateway.SendRequest) (*gateway.SendResponse, error)
	CallbackURL() string
}

// DeliveryLogRepository is the slice of log persistence delivery needs.
type DeliveryLogRepository interface {
	SetStatus(ctx context.Context, id int64, status model.LogStatus) error
	MarkFailed(ctx context.Context, id int64, reason string, at time.Time) error
}

// DeliveryCampaignRepository updates campaign counters on hard failures.
type DeliveryCampaignRepository interface {
	IncrementFailedCount(ctx context.Context, id int64) error
}

// DeliveryEventPublisher fans per-recipient status changes out to
// realtime listeners.
type DeliveryEventPublisher interface {
	PublishDeliveryStatus(ctx context.Context, logID int64, status string, data interface{}) error
}

// DeliveryProcessor sends one queued message to the vendor. Success here
// means "accepted by vendor"; the final SENT or FAILED outcome arrives
// later through the receipt webhook.
type DeliveryProcessor struct {
	logs      DeliveryLogRepository
	campaigns DeliveryCampaignRepository
	vendor    VendorGateway
	events    DeliveryEventPublisher
	retry     queue.RetryPolicy
}

func NewDeliveryProcessor(logs DeliveryLogRepository, campaigns DeliveryCampaignRepository, vendor VendorGateway, events DeliveryEventPublisher) *DeliveryProcessor {
	return &DeliveryProcessor{
		logs:      logs,
		campaigns: campaigns,
		vendor:    vendor,
		events:    events,
		retry:     queue.DeliveryRetryPolicy(),
	}
}

func (p *DeliveryProcessor) GetType() string {
	return "campaign-delivery"
}

func (p *DeliveryProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var job model.DeliveryJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		// A payload that never parses will never parse; burn the
		// remaining attempts rather than poisoning the queue.
		return fmt.Errorf("malformed delivery job: %w", err)
	}

	if err := p.logs.SetStatus(ctx, job.CommunicationLogID, model.LogStatusSending); err != nil {
		return fmt.Errorf("failed to mark log %d sending: %w", job.CommunicationLogID, err)
	}

	resp, err := p.vendor.Send(ctx, &gateway.SendRequest{
		CustomerID:         job.CustomerID,
		CustomerEmail:      job.CustomerEmail,
		Message:            job.Message,
		CommunicationLogID: job.CommunicationLogID,
		CallbackURL:        p.vendor.CallbackURL(),
	})
	if err != nil {
		if p.retry.Exhausted(msg.Attempts) {
			p.finalizeFailure(ctx, &job, err)
		}
		return fmt.Errorf("vendor send failed for log %d: %w", job.CommunicationLogID, err)
	}

	now := time.Now().UTC()
	if pubErr := p.events.PublishDeliveryStatus(ctx, job.CommunicationLogID, string(model.LogStatusSentToVendor), pubsubData(&job, resp.VendorMessageID, &now, "")); pubErr != nil {
		logger.Warn("failed to publish delivery status event",
			"log_id", job.CommunicationLogID, "error", pubErr)
	}

	logger.Debug("message handed to vendor",
		"campaign_id", job.CampaignID, "log_id", job.CommunicationLogID,
		"vendor_message_id", resp.VendorMessageID)
	return nil
}

// finalizeFailure records the terminal state once retries are spent.
// Best effort: the job is going to the failed set either way.
func (p *DeliveryProcessor) finalizeFailure(ctx context.Context, job *model.DeliveryJob, cause error) {
	now := time.Now().UTC()
	reason := fmt.Sprintf("Delivery failed after %d attempts: %v", p.retry.MaxAttempts, cause)

	if err := p.logs.MarkFailed(ctx, job.CommunicationLogID, reason, now); err != nil {
		logger.Error("failed to mark log failed",
			"log_id", job.CommunicationLogID, "error", err)
	}
	if err := p.campaigns.IncrementFailedCount(ctx, job.CampaignID); err != nil {
		logger.Error("failed to increment campaign failed count",
			"campaign_id", job.CampaignID, "error", err)
	}
	if err := p.events.PublishDeliveryStatus(ctx, job.CommunicationLogID, string(model.LogStatusFailed), pubsubData(job, "", &now, reason)); err != nil {
		logger.Warn("failed to publish delivery failure event",
			"log_id", job.CommunicationLogID, "error", err)
	}
}
