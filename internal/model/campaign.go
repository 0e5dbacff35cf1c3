package model

import (
	"errors"
	"time"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusSending   CampaignStatus = "SENDING"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
	CampaignStatusFailed    CampaignStatus = "FAILED"
)

// Campaign is a bulk-send unit: one message template fanned out to a
// resolved customer segment. SentCount and FailedCount are advanced by
// atomic increments only; AudienceSize is fixed at trigger time.
type Campaign struct {
	ID              int64          `json:"id"`
	Name            string         `json:"name"`
	Status          CampaignStatus `json:"status"`
	MessageTemplate string         `json:"message_template"`
	AudienceSize    int64          `json:"audience_size"`
	SentCount       int64          `json:"sent_count"`
	FailedCount     int64          `json:"failed_count"`
	FailureReason   string         `json:"failure_reason,omitempty"`

	// Segment rules. Zero values mean "no constraint".
	MinTotalSpends int64 `json:"min_total_spends"`
	MinVisitCount  int64 `json:"min_visit_count"`
	InactiveDays   int64 `json:"inactive_days"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Done reports whether the campaign has reached a terminal status.
func (c *Campaign) Done() bool {
	return c.Status == CampaignStatusCompleted || c.Status == CampaignStatusFailed
}

type CampaignCreateRequest struct {
	Name            string
	MessageTemplate string
	MinTotalSpends  int64
	MinVisitCount   int64
	InactiveDays    int64
}

func (p CampaignCreateRequest) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.MessageTemplate == "" {
		return errors.New("message_template is required")
	}
	return nil
}
