package repository

import (
	"time"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
)

type CampaignEntity struct {
	ID              int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Name            string    `gorm:"column:name;not null"`
	Status          string    `gorm:"column:status;not null;default:DRAFT;index"`
	MessageTemplate string    `gorm:"column:message_template;not null"`
	AudienceSize    int64     `gorm:"column:audience_size;not null;default:0"`
	SentCount       int64     `gorm:"column:sent_count;not null;default:0"`
	FailedCount     int64     `gorm:"column:failed_count;not null;default:0"`
	FailureReason   string    `gorm:"column:failure_reason"`
	MinTotalSpends  int64     `gorm:"column:min_total_spends;not null;default:0"`
	MinVisitCount   int64     `gorm:"column:min_visit_count;not null;default:0"`
	InactiveDays    int64     `gorm:"column:inactive_days;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CampaignEntity) TableName() string { return "campaigns" }

func toCampaignEntity(c *model.Campaign) *CampaignEntity {
	return &CampaignEntity{
		ID:              c.ID,
		Name:            c.Name,
		Status:          string(c.Status),
		MessageTemplate: c.MessageTemplate,
		AudienceSize:    c.AudienceSize,
		SentCount:       c.SentCount,
		FailedCount:     c.FailedCount,
		FailureReason:   c.FailureReason,
		MinTotalSpends:  c.MinTotalSpends,
		MinVisitCount:   c.MinVisitCount,
		InactiveDays:    c.InactiveDays,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func toCampaignModel(e *CampaignEntity) *model.Campaign {
	return &model.Campaign{
		ID:              e.ID,
		Name:            e.Name,
		Status:          model.CampaignStatus(e.Status),
		MessageTemplate: e.MessageTemplate,
		AudienceSize:    e.AudienceSize,
		SentCount:       e.SentCount,
		FailedCount:     e.FailedCount,
		FailureReason:   e.FailureReason,
		MinTotalSpends:  e.MinTotalSpends,
		MinVisitCount:   e.MinVisitCount,
		InactiveDays:    e.InactiveDays,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}
