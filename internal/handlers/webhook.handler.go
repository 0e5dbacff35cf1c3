package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/pkg/errors"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
	"github.com/im-subhadeep/Xeno-Assignment/internal/repository"
	"github.com/im-subhadeep/Xeno-Assignment/internal/services"
	xhttp "github.com/im-subhadeep/Xeno-Assignment/pkg/http"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/prom"
)

type ReceiptService interface {
	Apply(ctx context.Context, receipt services.Receipt) error
}

type WebhookHandler struct {
	svc ReceiptService
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/delivery-receipts", h.ReceiveDeliveryReceipt)
}

func NewWebhookHandler(svc ReceiptService) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// deliveryReceiptRequest is the vendor-facing payload, so field names
// follow the vendor's camelCase convention.
type deliveryReceiptRequest struct {
	CommunicationLogID int64  `json:"communicationLogId"`
	Status             string `json:"status"`
	VendorMessageID    string `json:"vendorMessageId"`
	Timestamp          string `json:"timestamp"`
	FailureReason      string `json:"failureReason"`
}

func (h *WebhookHandler) ReceiveDeliveryReceipt(ctx *xhttp.RequestCtx) {
	var req deliveryReceiptRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.CommunicationLogID == 0 || req.Status == "" || req.VendorMessageID == "" || req.Timestamp == "" {
		writeError(ctx, 400, "communicationLogId, status, vendorMessageId and timestamp are required")
		return
	}

	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		writeError(ctx, 400, "timestamp must be RFC3339")
		return
	}

	err = h.svc.Apply(ctx, services.Receipt{
		CommunicationLogID: req.CommunicationLogID,
		Status:             model.LogStatus(req.Status),
		VendorMessageID:    req.VendorMessageID,
		Timestamp:          ts,
		FailureReason:      req.FailureReason,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLogNotFound):
			writeError(ctx, 404, "communication log not found")
		case errors.Is(err, services.ErrInvalidReceiptStatus):
			writeError(ctx, 400, err.Error())
		default:
			writeError(ctx, 500, err.Error())
		}
		return
	}

	prom.IncReceipt(req.Status)
	writeJSON(ctx, 200, map[string]bool{"success": true})
}
