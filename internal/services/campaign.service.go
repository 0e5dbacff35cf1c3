package services

import (
	"context"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
)

// CampaignWriter is the persistence surface campaign management needs.
type CampaignWriter interface {
	Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
}

type CustomerWriter interface {
	Create(ctx context.Context, c *model.Customer) (*model.Customer, error)
}

// CampaignService covers the management surface around delivery:
// creating campaigns and seeding the customers they target.
type CampaignService struct {
	campaignRepo CampaignWriter
	customerRepo CustomerWriter
}

func NewCampaignService(campaignRepo CampaignWriter, customerRepo CustomerWriter) *CampaignService {
	return &CampaignService{campaignRepo: campaignRepo, customerRepo: customerRepo}
}

func (s *CampaignService) Create(ctx context.Context, req model.CampaignCreateRequest) (*model.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.campaignRepo.Create(ctx, &model.Campaign{
		Name:            req.Name,
		MessageTemplate: req.MessageTemplate,
		Status:          model.CampaignStatusDraft,
		MinTotalSpends:  req.MinTotalSpends,
		MinVisitCount:   req.MinVisitCount,
		InactiveDays:    req.InactiveDays,
	})
}

func (s *CampaignService) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	return s.campaignRepo.Get(ctx, id)
}

func (s *CampaignService) CreateCustomer(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	return s.customerRepo.Create(ctx, c)
}
