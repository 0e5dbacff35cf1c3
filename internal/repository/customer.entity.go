package repository

import (
	"time"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
)

type CustomerEntity struct {
	ID           int64      `gorm:"primaryKey;autoIncrement;column:id"`
	Name         string     `gorm:"column:name;not null"`
	Email        string     `gorm:"column:email;not null;index"`
	TotalSpends  int64      `gorm:"column:total_spends;not null;default:0"`
	VisitCount   int64      `gorm:"column:visit_count;not null;default:0"`
	LastActiveAt *time.Time `gorm:"column:last_active_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (CustomerEntity) TableName() string { return "customers" }

func toCustomerEntity(c *model.Customer) *CustomerEntity {
	return &CustomerEntity{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		TotalSpends:  c.TotalSpends,
		VisitCount:   c.VisitCount,
		LastActiveAt: c.LastActiveAt,
		CreatedAt:    c.CreatedAt,
	}
}

func toCustomerModel(e *CustomerEntity) *model.Customer {
	return &model.Customer{
		ID:           e.ID,
		Name:         e.Name,
		Email:        e.Email,
		TotalSpends:  e.TotalSpends,
		VisitCount:   e.VisitCount,
		LastActiveAt: e.LastActiveAt,
		CreatedAt:    e.CreatedAt,
	}
}

func toCustomerModels(entities []*CustomerEntity) []*model.Customer {
	out := make([]*model.Customer, 0, len(entities))
	for _, e := range entities {
		out = append(out, toCustomerModel(e))
	}
	return out
}
