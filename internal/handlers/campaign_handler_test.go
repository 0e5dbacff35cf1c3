package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
	"github.com/im-subhadeep/Xeno-Assignment/internal/repository"
	"github.com/im-subhadeep/Xeno-Assignment/internal/services"
)

type MockDeliveryService struct {
	mock.Mock
}

func (m *MockDeliveryService) Trigger(ctx context.Context, campaignID int64) (*services.TriggerResult, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TriggerResult), args.Error(1)
}

type MockCampaignService struct {
	mock.Mock
}

func (m *MockCampaignService) Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignService) CreateCustomer(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Customer), args.Error(1)
}

func TestCampaignHandler_DeliverCampaign(t *testing.T) {
	t.Run("successful trigger", func(t *testing.T) {
		delivery := new(MockDeliveryService)
		handler := NewCampaignHandler(delivery, new(MockCampaignService))

		delivery.On("Trigger", mock.Anything, int64(42)).Return(&services.TriggerResult{
			CampaignID:     42,
			AudienceSize:   250,
			QueuedMessages: 250,
			Batches:        3,
		}, nil)

		ctx := setupTestContext("POST", "/campaigns/42/deliver", nil)
		ctx.SetUserValue("campaignId", "42")
		handler.DeliverCampaign(ctx)

		require.Equal(t, 200, ctx.Response.StatusCode())
		var result services.TriggerResult
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &result))
		assert.Equal(t, int64(250), result.AudienceSize)
		assert.Equal(t, 3, result.Batches)
	})

	t.Run("malformed campaign id", func(t *testing.T) {
		delivery := new(MockDeliveryService)
		handler := NewCampaignHandler(delivery, new(MockCampaignService))

		ctx := setupTestContext("POST", "/campaigns/abc/deliver", nil)
		ctx.SetUserValue("campaignId", "abc")
		handler.DeliverCampaign(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		delivery.AssertNotCalled(t, "Trigger")
	})

	t.Run("campaign not found", func(t *testing.T) {
		delivery := new(MockDeliveryService)
		handler := NewCampaignHandler(delivery, new(MockCampaignService))

		delivery.On("Trigger", mock.Anything, int64(9)).Return(nil, repository.ErrCampaignNotFound)

		ctx := setupTestContext("POST", "/campaigns/9/deliver", nil)
		ctx.SetUserValue("campaignId", "9")
		handler.DeliverCampaign(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("conflict while sending", func(t *testing.T) {
		delivery := new(MockDeliveryService)
		handler := NewCampaignHandler(delivery, new(MockCampaignService))

		delivery.On("Trigger", mock.Anything, int64(9)).Return(nil, services.ErrCampaignConflict)

		ctx := setupTestContext("POST", "/campaigns/9/deliver", nil)
		ctx.SetUserValue("campaignId", "9")
		handler.DeliverCampaign(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})
}

func TestCampaignHandler_CreateCampaign(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		campaigns := new(MockCampaignService)
		handler := NewCampaignHandler(new(MockDeliveryService), campaigns)

		body, _ := json.Marshal(createCampaignRequest{
			Name:            "Winback",
			MessageTemplate: "Hi {{name}}",
			MinTotalSpends:  1000,
		})
		campaigns.On("Create", mock.Anything, mock.MatchedBy(func(r model.CampaignCreateRequest) bool {
			return r.Name == "Winback" && r.MinTotalSpends == 1000
		})).Return(&model.Campaign{ID: 1, Name: "Winback", Status: model.CampaignStatusDraft}, nil)

		ctx := setupTestContext("POST", "/campaigns", body)
		handler.CreateCampaign(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
	})

	t.Run("validation error", func(t *testing.T) {
		campaigns := new(MockCampaignService)
		handler := NewCampaignHandler(new(MockDeliveryService), campaigns)

		body, _ := json.Marshal(createCampaignRequest{Name: ""})
		campaigns.On("Create", mock.Anything, mock.Anything).Return(nil, assert.AnError)

		ctx := setupTestContext("POST", "/campaigns", body)
		handler.CreateCampaign(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}
