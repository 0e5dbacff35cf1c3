package repository

import (
	"context"
	"errors"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrCampaignNotFound is returned when a campaign does not exist.
	ErrCampaignNotFound = errors.New("campaign not found")
)

type CampaignRepository struct {
	*pg.DB
}

func NewCampaignRepository(db *pg.DB) *CampaignRepository {
	return &CampaignRepository{db}
}

func (r *CampaignRepository) Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error) {
	entity := toCampaignEntity(c)
	if entity.Status == "" {
		entity.Status = string(model.CampaignStatusDraft)
	}
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toCampaignModel(entity), nil
}

func (r *CampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	var entity CampaignEntity
	err := r.Read(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return toCampaignModel(&entity), nil
}

// BeginSending flips the campaign into SENDING and zeroes its counters
// in a single write, so a concurrent trigger observes the new state.
func (r *CampaignRepository) BeginSending(ctx context.Context, id int64) error {
	return r.Write(ctx).Model(&CampaignEntity{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         string(model.CampaignStatusSending),
			"sent_count":     0,
			"failed_count":   0,
			"audience_size":  0,
			"failure_reason": "",
		}).Error
}

func (r *CampaignRepository) SetAudienceSize(ctx context.Context, id int64, size int64) error {
	return r.Write(ctx).Model(&CampaignEntity{}).Where("id = ?", id).
		Update("audience_size", size).Error
}

func (r *CampaignRepository) SetStatus(ctx context.Context, id int64, status model.CampaignStatus) error {
	return r.Write(ctx).Model(&CampaignEntity{}).Where("id = ?", id).
		Update("status", string(status)).Error
}

func (r *CampaignRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	return r.Write(ctx).Model(&CampaignEntity{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         string(model.CampaignStatusFailed),
			"failure_reason": reason,
		}).Error
}

// IncrementSentCount adds one to sent_count atomically in the database;
// concurrent receipts never lose an increment.
func (r *CampaignRepository) IncrementSentCount(ctx context.Context, id int64) error {
	return r.Write(ctx).Model(&CampaignEntity{}).Where("id = ?", id).
		UpdateColumn("sent_count", gorm.Expr("sent_count + 1")).Error
}

// IncrementFailedCount adds one to failed_count atomically.
func (r *CampaignRepository) IncrementFailedCount(ctx context.Context, id int64) error {
	return r.Write(ctx).Model(&CampaignEntity{}).Where("id = ?", id).
		UpdateColumn("failed_count", gorm.Expr("failed_count + 1")).Error
}
