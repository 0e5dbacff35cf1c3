package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
	"github.com/im-subhadeep/Xeno-Assignment/internal/repository"
	"github.com/im-subhadeep/Xeno-Assignment/internal/services"
	xhttp "github.com/im-subhadeep/Xeno-Assignment/pkg/http"
)

type MockReceiptService struct {
	mock.Mock
}

func (m *MockReceiptService) Apply(ctx context.Context, receipt services.Receipt) error {
	args := m.Called(ctx, receipt)
	return args.Error(0)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestWebhookHandler_ReceiveDeliveryReceipt(t *testing.T) {
	t.Run("valid receipt", func(t *testing.T) {
		svc := new(MockReceiptService)
		handler := NewWebhookHandler(svc)

		body, _ := json.Marshal(deliveryReceiptRequest{
			CommunicationLogID: 10,
			Status:             "SENT",
			VendorMessageID:    "vendor_1",
			Timestamp:          time.Now().UTC().Format(time.RFC3339),
		})

		svc.On("Apply", mock.Anything, mock.MatchedBy(func(r services.Receipt) bool {
			return r.CommunicationLogID == 10 && r.Status == model.LogStatusSent && r.VendorMessageID == "vendor_1"
		})).Return(nil)

		ctx := setupTestContext("POST", "/webhooks/delivery-receipts", body)
		handler.ReceiveDeliveryReceipt(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("missing required fields", func(t *testing.T) {
		complete := deliveryReceiptRequest{
			CommunicationLogID: 10,
			Status:             "SENT",
			VendorMessageID:    "vendor_1",
			Timestamp:          time.Now().UTC().Format(time.RFC3339),
		}
		cases := map[string]func(r *deliveryReceiptRequest){
			"communicationLogId": func(r *deliveryReceiptRequest) { r.CommunicationLogID = 0 },
			"status":             func(r *deliveryReceiptRequest) { r.Status = "" },
			"vendorMessageId":    func(r *deliveryReceiptRequest) { r.VendorMessageID = "" },
			"timestamp":          func(r *deliveryReceiptRequest) { r.Timestamp = "" },
		}
		for field, drop := range cases {
			t.Run(field, func(t *testing.T) {
				svc := new(MockReceiptService)
				handler := NewWebhookHandler(svc)

				req := complete
				drop(&req)
				body, _ := json.Marshal(req)
				ctx := setupTestContext("POST", "/webhooks/delivery-receipts", body)
				handler.ReceiveDeliveryReceipt(ctx)

				assert.Equal(t, 400, ctx.Response.StatusCode())
				svc.AssertNotCalled(t, "Apply")
			})
		}
	})

	t.Run("malformed timestamp", func(t *testing.T) {
		svc := new(MockReceiptService)
		handler := NewWebhookHandler(svc)

		body, _ := json.Marshal(deliveryReceiptRequest{
			CommunicationLogID: 10,
			Status:             "SENT",
			VendorMessageID:    "vendor_1",
			Timestamp:          "yesterday",
		})
		ctx := setupTestContext("POST", "/webhooks/delivery-receipts", body)
		handler.ReceiveDeliveryReceipt(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "Apply")
	})

	t.Run("unknown log", func(t *testing.T) {
		svc := new(MockReceiptService)
		handler := NewWebhookHandler(svc)

		body, _ := json.Marshal(deliveryReceiptRequest{
			CommunicationLogID: 404,
			Status:             "SENT",
			VendorMessageID:    "vendor_404",
			Timestamp:          time.Now().UTC().Format(time.RFC3339),
		})
		svc.On("Apply", mock.Anything, mock.Anything).Return(repository.ErrLogNotFound)

		ctx := setupTestContext("POST", "/webhooks/delivery-receipts", body)
		handler.ReceiveDeliveryReceipt(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("invalid status", func(t *testing.T) {
		svc := new(MockReceiptService)
		handler := NewWebhookHandler(svc)

		body, _ := json.Marshal(deliveryReceiptRequest{
			CommunicationLogID: 10,
			Status:             "BOUNCED",
			VendorMessageID:    "vendor_10",
			Timestamp:          time.Now().UTC().Format(time.RFC3339),
		})
		svc.On("Apply", mock.Anything, mock.Anything).Return(services.ErrInvalidReceiptStatus)

		ctx := setupTestContext("POST", "/webhooks/delivery-receipts", body)
		handler.ReceiveDeliveryReceipt(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := new(MockReceiptService)
		handler := NewWebhookHandler(svc)

		ctx := setupTestContext("POST", "/webhooks/delivery-receipts", []byte("{"))
		handler.ReceiveDeliveryReceipt(ctx)

		require.Equal(t, 400, ctx.Response.StatusCode())
	})
}
