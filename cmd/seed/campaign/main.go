package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ugc-marketplace/pkg/config"
	"ugc-marketplace/pkg/db"
	"ugc-marketplace/pkg/gen"
	"ugc-marketplace/pkg/logger"
	"ugc-marketplace/services/application"
	"ugc-marketplace/services/campaign"
	"ugc-marketplace/services/migration"
	"ugc-marketplace/services/payout"
)

func main() {
	_ = godotenv.Load()

	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		gen.Module,
		campaign.Module,
		application.Module,
		fx.Invoke(seed),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
	_ = app.Stop(ctx)
}

func ptr[T any](v T) *T { return &v }

func seed(gdb *gorm.DB, campaigns *campaign.Service, applications *application.Service) error {
	ctx := context.Background()

	if err := migration.Migrate(gdb); err != nil {
		return err
	}

	c, err := campaigns.CreateCampaign(ctx, campaign.CreateCampaignRequest{
		BusinessID:    "demo-business",
		Name:          "Demo summer launch",
		TotalBudget:   500_000,
		MaximumPayout: 50_000,
		Status:        string(campaign.CampaignStatusActive),
		PayoutTiers: []payout.Tier{
			{ViewThreshold: 1_000, PayoutAmount: 5_000},
			{ViewThreshold: 10_000, PayoutAmount: 20_000},
			{ViewThreshold: 100_000, PayoutAmount: 50_000},
		},
	})
	if err != nil {
		return err
	}

	creators := []application.CreateApplicationRequest{
		{CreatorID: "demo-creator-1", InstagramURL: ptr("https://www.instagram.com/reel/demo1/"), TrackingTag: ptr("demosummer")},
		{CreatorID: "demo-creator-2", TikTokURL: ptr("https://www.tiktok.com/@demo/video/1"), TrackingTag: ptr("demosummer")},
		{CreatorID: "demo-creator-3", InstagramURL: ptr("https://www.instagram.com/reel/demo3/"), TikTokURL: ptr("https://www.tiktok.com/@demo/video/3")},
	}

	for _, req := range creators {
		req.CampaignID = c.ID
		app, err := applications.CreateApplication(ctx, req)
		if err != nil {
			return err
		}
		for _, next := range []application.Status{application.StatusUnderReview, application.StatusReadyToPost, application.StatusEarning} {
			if _, err := applications.UpdateStatus(ctx, app.ID, application.UpdateStatusRequest{Status: next}); err != nil {
				return err
			}
		}
	}

	zap.L().Info("seeded demo campaign", zap.String("campaign_id", c.ID), zap.Int("applications", len(creators)))
	return nil
}
