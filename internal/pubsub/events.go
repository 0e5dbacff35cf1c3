package pubsub

import (
	"encoding/json"
	"time"
)

// Broadcast channels. campaign-updates events are keyed by campaign id,
// delivery-status events by communication log id.
const (
	ChannelCampaignUpdates = "campaign-updates"
	ChannelDeliveryStatus  = "delivery-status"
)

// Campaign-update event statuses. Delivery-status events carry the
// model.LogStatus value instead.
const (
	StatusQueued         = "QUEUED"
	StatusBatchProcessed = "BATCH_PROCESSED"
)

// Event is the wire envelope for both channels.
type Event struct {
	Key       string          `json:"key"`
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// QueuedData summarizes a completed fan-out.
type QueuedData struct {
	TotalCustomers int64 `json:"total_customers"`
	QueuedMessages int64 `json:"queued_messages"`
	Batches        int   `json:"batches"`
}

// BatchProcessedData reports bookkeeping progress for one batch.
type BatchProcessedData struct {
	BatchIndex     int `json:"batch_index"`
	ProcessedCount int `json:"processed_count"`
}

// DeliveryStatusData accompanies per-recipient status changes.
type DeliveryStatusData struct {
	CustomerID      int64      `json:"customer_id,omitempty"`
	VendorMessageID string     `json:"vendor_message_id,omitempty"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
	FailureReason   string     `json:"failure_reason,omitempty"`
}

// ConnectedData is the synthetic first event on a realtime stream.
type ConnectedData struct {
	Type       string `json:"type"`
	CampaignID int64  `json:"campaign_id"`
}
