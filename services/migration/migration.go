package migration

import (
	"ugc-marketplace/pkg/config"
	"ugc-marketplace/services/analytics"
	"ugc-marketplace/services/application"
	"ugc-marketplace/services/campaign"
	"ugc-marketplace/services/ledger"
	"ugc-marketplace/services/task"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module migrates the schema on start when DATABASE.AUTO_MIGRATE is set.
var Module = fx.Module("migration",
	fx.Invoke(func(cfg *config.Config, db *gorm.DB) error {
		if !cfg.Database.AutoMigrate {
			return nil
		}
		return Migrate(db)
	}),
)

func Models() []any {
	models := []any{
		&campaign.Campaign{},
		&application.Application{},
		&ledger.UserCampaignStatus{},
		&ledger.EarningEntry{},
		&task.Job{},
	}
	return append(models, analytics.Models()...)
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		zap.L().Error("[DB] auto migrate failed", zap.Error(err))
		return err
	}
	zap.L().Info("[DB] schema migrated")
	return nil
}
