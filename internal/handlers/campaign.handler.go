package handlers

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/pkg/errors"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
	"github.com/im-subhadeep/Xeno-Assignment/internal/repository"
	"github.com/im-subhadeep/Xeno-Assignment/internal/services"
	xhttp "github.com/im-subhadeep/Xeno-Assignment/pkg/http"
)

type DeliveryService interface {
	Trigger(ctx context.Context, campaignID int64) (*services.TriggerResult, error)
}

type CampaignService interface {
	Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	CreateCustomer(ctx context.Context, c *model.Customer) (*model.Customer, error)
}

type CampaignHandler struct {
	delivery  DeliveryService
	campaigns CampaignService
}

func RegisterCampaignRoutes(e *router.Group, h *CampaignHandler, auth xhttp.MiddlewareFunc) {
	e.POST("/campaigns", auth(h.CreateCampaign))
	e.GET("/campaigns/{campaignId}", auth(h.GetCampaign))
	e.POST("/campaigns/{campaignId}/deliver", auth(h.DeliverCampaign))
	e.POST("/customers", auth(h.CreateCustomer))
}

func NewCampaignHandler(delivery DeliveryService, campaigns CampaignService) *CampaignHandler {
	return &CampaignHandler{delivery: delivery, campaigns: campaigns}
}

type createCampaignRequest struct {
	Name            string `json:"name"`
	MessageTemplate string `json:"message_template"`
	MinTotalSpends  int64  `json:"min_total_spends"`
	MinVisitCount   int64  `json:"min_visit_count"`
	InactiveDays    int64  `json:"inactive_days"`
}

func (h *CampaignHandler) CreateCampaign(ctx *xhttp.RequestCtx) {
	var req createCampaignRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	campaign, err := h.campaigns.Create(ctx, model.CampaignCreateRequest{
		Name:            req.Name,
		MessageTemplate: req.MessageTemplate,
		MinTotalSpends:  req.MinTotalSpends,
		MinVisitCount:   req.MinVisitCount,
		InactiveDays:    req.InactiveDays,
	})
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	writeJSON(ctx, 201, campaign)
}

func (h *CampaignHandler) GetCampaign(ctx *xhttp.RequestCtx) {
	campaignID, err := pathInt64(ctx, "campaignId")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}
	campaign, err := h.campaigns.Get(ctx, campaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			writeError(ctx, 404, "campaign not found")
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, campaign)
}

func (h *CampaignHandler) CreateCustomer(ctx *xhttp.RequestCtx) {
	var c model.Customer
	if err := readJSON(ctx, &c); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if c.Email == "" {
		writeError(ctx, 400, "email is required")
		return
	}
	created, err := h.campaigns.CreateCustomer(ctx, &c)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 201, created)
}

func (h *CampaignHandler) DeliverCampaign(ctx *xhttp.RequestCtx) {
	campaignID, err := pathInt64(ctx, "campaignId")
	if err != nil {
		writeError(ctx, 400, "invalid campaign id")
		return
	}

	result, err := h.delivery.Trigger(ctx, campaignID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCampaignNotFound):
			writeError(ctx, 404, "campaign not found")
		case errors.Is(err, services.ErrCampaignConflict):
			writeError(ctx, 409, err.Error())
		default:
			writeError(ctx, 500, err.Error())
		}
		return
	}
	writeJSON(ctx, 200, result)
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}
