package model

import "time"

// LogStatus is the per-recipient delivery state.
type LogStatus string

const (
	LogStatusPending      LogStatus = "PENDING"
	LogStatusSending      LogStatus = "SENDING"
	LogStatusSentToVendor LogStatus = "SENT_TO_VENDOR"
	LogStatusSent         LogStatus = "SENT"
	LogStatusDelivered    LogStatus = "DELIVERED"
	LogStatusFailed       LogStatus = "FAILED"
)

// CommunicationLog is the per-recipient send record. At most one exists
// per (campaign, customer) pair; re-triggering a campaign resets the
// existing row instead of inserting a second one.
//
// SentAt and FailedAt/FailureReason are mutually exclusive: applying a
// receipt sets one side and clears the other.
type CommunicationLog struct {
	ID              int64      `json:"id"`
	CampaignID      int64      `json:"campaign_id"`
	CustomerID      int64      `json:"customer_id"`
	Message         string     `json:"message"`
	Status          LogStatus  `json:"status"`
	VendorMessageID string     `json:"vendor_message_id,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	FailedAt        *time.Time `json:"failed_at,omitempty"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
