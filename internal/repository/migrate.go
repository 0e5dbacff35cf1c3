package repository

import (
	"context"

	"github.com/im-subhadeep/Xeno-Assignment/pkg/pg"
)

// AutoMigrate brings the schema up to date on the write connection.
func AutoMigrate(db *pg.DB) error {
	return db.Write(context.Background()).AutoMigrate(
		&CampaignEntity{},
		&CustomerEntity{},
		&CommunicationLogEntity{},
	)
}
