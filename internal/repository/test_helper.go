package repository

import (
	"testing"

	"github.com/im-subhadeep/Xeno-Assignment/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *pg.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&CampaignEntity{}, &CustomerEntity{}, &CommunicationLogEntity{})
	require.NoError(t, err)

	return pg.FromGorm(db)
}
