package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/im-subhadeep/Xeno-Assignment/internal/model"
)

func seedCustomers(t *testing.T, repo *CustomerRepository) {
	t.Helper()
	ctx := context.Background()
	recent := time.Now().Add(-24 * time.Hour)
	stale := time.Now().AddDate(0, 0, -120)

	customers := []*model.Customer{
		{Name: "Ada", Email: "ada@example.com", TotalSpends: 15000, VisitCount: 12, LastActiveAt: &recent},
		{Name: "Bob", Email: "bob@example.com", TotalSpends: 500, VisitCount: 2, LastActiveAt: &stale},
		{Name: "Cas", Email: "cas@example.com", TotalSpends: 9000, VisitCount: 8},
	}
	for _, c := range customers {
		_, err := repo.Create(ctx, c)
		require.NoError(t, err)
	}
}

func TestCustomerRepository_ListForSegment(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCustomerRepository(db)
	seedCustomers(t, repo)
	ctx := context.Background()

	t.Run("no rules targets everyone", func(t *testing.T) {
		got, err := repo.ListForSegment(ctx, &model.Campaign{})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("min total spends", func(t *testing.T) {
		got, err := repo.ListForSegment(ctx, &model.Campaign{MinTotalSpends: 5000})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "ada@example.com", got[0].Email)
		assert.Equal(t, "cas@example.com", got[1].Email)
	})

	t.Run("min visit count", func(t *testing.T) {
		got, err := repo.ListForSegment(ctx, &model.Campaign{MinVisitCount: 10})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "ada@example.com", got[0].Email)
	})

	t.Run("inactive days includes never-active", func(t *testing.T) {
		got, err := repo.ListForSegment(ctx, &model.Campaign{InactiveDays: 90})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "bob@example.com", got[0].Email)
		assert.Equal(t, "cas@example.com", got[1].Email)
	})

	t.Run("rules combine with AND", func(t *testing.T) {
		got, err := repo.ListForSegment(ctx, &model.Campaign{MinTotalSpends: 5000, MinVisitCount: 10})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "ada@example.com", got[0].Email)
	})
}
