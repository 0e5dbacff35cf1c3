package processor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
	"github.com/im-subhadeep/Xeno-Assignment/internal/pubsub"
	"github.com/im-subhadeep/Xeno-Assignment/internal/queue"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/logger"
)

// BatchEventPublisher emits coarse campaign progress.
type BatchEventPublisher interface {
	PublishCampaignUpdate(ctx context.Context, campaignID int64, status string, data interface{}) error
}

// BatchProcessor consumes batch bookkeeping jobs. Recipient delivery is
// entirely the delivery queue's business; this processor only announces
// that another chunk of the audience has been fanned out.
type BatchProcessor struct {
	events BatchEventPublisher
}

func NewBatchProcessor(events BatchEventPublisher) *BatchProcessor {
	return &BatchProcessor{events: events}
}

func (p *BatchProcessor) GetType() string {
	return "batch-processing"
}

func (p *BatchProcessor) Process(ctx context.Context, msg *queue.Message) error {
	var job model.BatchJob
	if err := json.Unmarshal(msg.Data, &job); err != nil {
		return fmt.Errorf("malformed batch job: %w", err)
	}

	err := p.events.PublishCampaignUpdate(ctx, job.CampaignID, pubsub.StatusBatchProcessed, pubsub.BatchProcessedData{
		BatchIndex:     job.BatchIndex,
		ProcessedCount: len(job.CustomerIDs),
	})
	if err != nil {
		return fmt.Errorf("failed to publish batch progress for campaign %d: %w", job.CampaignID, err)
	}

	logger.Debug("batch processed",
		"campaign_id", job.CampaignID, "batch_index", job.BatchIndex,
		"batch_size", job.BatchSize, "customers", len(job.CustomerIDs))
	return nil
}
