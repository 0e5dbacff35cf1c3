package repository

import (
	"context"
	"time"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
	"github.com/im-subhadeep/Xeno-Assignment/pkg/pg"
)

type CustomerRepository struct {
	*pg.DB
}

func NewCustomerRepository(db *pg.DB) *CustomerRepository {
	return &CustomerRepository{db}
}

func (r *CustomerRepository) Create(ctx context.Context, c *model.Customer) (*model.Customer, error) {
	entity := toCustomerEntity(c)
	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toCustomerModel(entity), nil
}

// ListForSegment resolves the campaign's audience from its segment
// rules. Zero-valued rules are unconstrained; a campaign with no rules
// targets every customer.
func (r *CustomerRepository) ListForSegment(ctx context.Context, campaign *model.Campaign) ([]*model.Customer, error) {
	q := r.Read(ctx).Model(&CustomerEntity{})

	if campaign.MinTotalSpends > 0 {
		q = q.Where("total_spends >= ?", campaign.MinTotalSpends)
	}
	if campaign.MinVisitCount > 0 {
		q = q.Where("visit_count >= ?", campaign.MinVisitCount)
	}
	if campaign.InactiveDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -int(campaign.InactiveDays))
		q = q.Where("last_active_at IS NULL OR last_active_at < ?", cutoff)
	}

	var entities []*CustomerEntity
	if err := q.Order("id ASC").Find(&entities).Error; err != nil {
		return nil, err
	}
	return toCustomerModels(entities), nil
}
