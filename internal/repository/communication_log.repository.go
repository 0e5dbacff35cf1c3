package repository

import (
	"context"
	"errors"
	"time"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrLogNotFound is returned when a communication log does not exist.
	ErrLogNotFound = errors.New("communication log not found")
)

type CommunicationLogRepository struct {
	*pg.DB
}

func NewCommunicationLogRepository(db *pg.DB) *CommunicationLogRepository {
	return &CommunicationLogRepository{db}
}

// UpsertForTrigger inserts the recipient's log for this campaign or, if
// one already exists from an earlier trigger, resets it: new message,
// status back to PENDING, every terminal field cleared. At most one row
// per (campaign, customer) pair ever exists.
func (r *CommunicationLogRepository) UpsertForTrigger(ctx context.Context, campaignID, customerID int64, message string) (*model.CommunicationLog, error) {
	entity := &CommunicationLogEntity{
		CampaignID: campaignID,
		CustomerID: customerID,
		Message:    message,
		Status:     string(model.LogStatusPending),
	}

	err := r.Write(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "campaign_id"}, {Name: "customer_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"message":           message,
			"status":            string(model.LogStatusPending),
			"sent_at":           nil,
			"failed_at":         nil,
			"failure_reason":    "",
			"vendor_message_id": "",
			"updated_at":        time.Now(),
		}),
	}).Create(entity).Error
	if err != nil {
		return nil, err
	}

	// On conflict-update some drivers do not report the existing id;
	// fetch the row so callers always get it.
	if entity.ID == 0 {
		if err := r.Read(ctx).
			First(entity, "campaign_id = ? AND customer_id = ?", campaignID, customerID).Error; err != nil {
			return nil, err
		}
	}
	return toCommunicationLogModel(entity), nil
}

func (r *CommunicationLogRepository) Get(ctx context.Context, id int64) (*model.CommunicationLog, error) {
	var entity CommunicationLogEntity
	err := r.Read(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLogNotFound
		}
		return nil, err
	}
	return toCommunicationLogModel(&entity), nil
}

func (r *CommunicationLogRepository) GetByPair(ctx context.Context, campaignID, customerID int64) (*model.CommunicationLog, error) {
	var entity CommunicationLogEntity
	err := r.Read(ctx).First(&entity, "campaign_id = ? AND customer_id = ?", campaignID, customerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLogNotFound
		}
		return nil, err
	}
	return toCommunicationLogModel(&entity), nil
}

// SetStatus overwrites the log's status. Status writes are overwrites
// rather than transitions so redelivered jobs can re-apply them safely.
func (r *CommunicationLogRepository) SetStatus(ctx context.Context, id int64, status model.LogStatus) error {
	return r.Write(ctx).Model(&CommunicationLogEntity{}).Where("id = ?", id).
		Update("status", string(status)).Error
}

// MarkFailed records a terminal local failure: queue rejection or a
// vendor call that never got accepted.
func (r *CommunicationLogRepository) MarkFailed(ctx context.Context, id int64, reason string, at time.Time) error {
	return r.Write(ctx).Model(&CommunicationLogEntity{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         string(model.LogStatusFailed),
			"failure_reason": reason,
			"failed_at":      at,
			"sent_at":        nil,
		}).Error
}

// ApplySentReceipt applies a SENT or DELIVERED vendor receipt: sets
// sent_at and clears the failure side.
func (r *CommunicationLogRepository) ApplySentReceipt(ctx context.Context, id int64, status model.LogStatus, vendorMessageID string, at time.Time) error {
	return r.Write(ctx).Model(&CommunicationLogEntity{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            string(status),
			"vendor_message_id": vendorMessageID,
			"sent_at":           at,
			"failed_at":         nil,
			"failure_reason":    "",
		}).Error
}

// ApplyFailedReceipt applies a FAILED vendor receipt: sets failed_at
// and the reason, clears sent_at.
func (r *CommunicationLogRepository) ApplyFailedReceipt(ctx context.Context, id int64, vendorMessageID, reason string, at time.Time) error {
	return r.Write(ctx).Model(&CommunicationLogEntity{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":            string(model.LogStatusFailed),
			"vendor_message_id": vendorMessageID,
			"failed_at":         at,
			"failure_reason":    reason,
			"sent_at":           nil,
		}).Error
}

// CountByCampaign returns how many logs exist for a campaign.
func (r *CommunicationLogRepository) CountByCampaign(ctx context.Context, campaignID int64) (int64, error) {
	var n int64
	err := r.Read(ctx).Model(&CommunicationLogEntity{}).
		Where("campaign_id = ?", campaignID).Count(&n).Error
	return n, err
}
