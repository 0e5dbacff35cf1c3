package repository

import (
	"time"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
)

type CommunicationLogEntity struct {
	ID              int64      `gorm:"primaryKey;autoIncrement;column:id"`
	CampaignID      int64      `gorm:"column:campaign_id;not null;uniqueIndex:idx_campaign_customer"`
	CustomerID      int64      `gorm:"column:customer_id;not null;uniqueIndex:idx_campaign_customer"`
	Message         string     `gorm:"column:message;not null"`
	Status          string     `gorm:"column:status;not null;default:PENDING;index"`
	VendorMessageID string     `gorm:"column:vendor_message_id"`
	SentAt          *time.Time `gorm:"column:sent_at"`
	FailedAt        *time.Time `gorm:"column:failed_at"`
	FailureReason   string     `gorm:"column:failure_reason"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (CommunicationLogEntity) TableName() string { return "communication_logs" }

func toCommunicationLogModel(e *CommunicationLogEntity) *model.CommunicationLog {
	return &model.CommunicationLog{
		ID:              e.ID,
		CampaignID:      e.CampaignID,
		CustomerID:      e.CustomerID,
		Message:         e.Message,
		Status:          model.LogStatus(e.Status),
		VendorMessageID: e.VendorMessageID,
		SentAt:          e.SentAt,
		FailedAt:        e.FailedAt,
		FailureReason:   e.FailureReason,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}
