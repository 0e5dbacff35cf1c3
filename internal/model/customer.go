package model

import "time"

type Customer struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	TotalSpends  int64      `json:"total_spends"`
	VisitCount   int64      `json:"visit_count"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
