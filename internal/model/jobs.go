package model

// DeliveryJob is the queued unit of work for one recipient. It carries
// everything the delivery worker needs so processing never re-reads the
// campaign or customer rows.
type DeliveryJob struct {
	CampaignID         int64  `json:"campaign_id"`
	CustomerID         int64  `json:"customer_id"`
	CustomerEmail      string `json:"customer_email"`
	Message            string `json:"message"`
	CommunicationLogID int64  `json:"communication_log_id"`
}

// BatchJob is the bookkeeping unit for one chunk of recipients. It has
// no recipient-level effect; consuming it only emits a progress event.
type BatchJob struct {
	CampaignID  int64   `json:"campaign_id"`
	CustomerIDs []int64 `json:"customer_ids"`
	BatchSize   int     `json:"batch_size"`
	BatchIndex  int     `json:"batch_index"`
}
