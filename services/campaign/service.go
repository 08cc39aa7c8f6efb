package campaign

import (
	"context"
	"strings"

	"ugc-marketplace/pkg/db/option"
	"ugc-marketplace/pkg/db/pagination"
	"ugc-marketplace/pkg/errutil"
	"ugc-marketplace/pkg/repository"
	"ugc-marketplace/services/payout"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lookup resolves a campaign by id. Missing campaigns yield an errutil
// NotFound error.
type Lookup interface {
	GetCampaign(ctx context.Context, id string) (*Campaign, error)
}

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	campaign repository.Repository[Campaign]
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		campaign: repository.ProvideStore[Campaign](p.DB),
	}
}

type CreateCampaignRequest struct {
	BusinessID    string        `json:"business_id" binding:"required"`
	Name          string        `json:"name" binding:"required"`
	TotalBudget   int64         `json:"total_budget" binding:"gte=0"`
	MaximumPayout int64         `json:"maximum_payout" binding:"gte=0"`
	PayoutTiers   []payout.Tier `json:"payout_tiers"`
	Status        string        `json:"status"`
}

func (s *Service) CreateCampaign(ctx context.Context, req CreateCampaignRequest) (*Campaign, error) {
	if strings.TrimSpace(req.Name) == "" || req.BusinessID == "" {
		return nil, errutil.BadRequest("business_id and name are required", nil)
	}
	if req.TotalBudget < 0 || req.MaximumPayout < 0 {
		return nil, errutil.BadRequest("budget and maximum payout must be non-negative", nil)
	}
	if err := payout.ValidateTiers(req.PayoutTiers); err != nil {
		return nil, err
	}

	status := CampaignStatus(req.Status)
	if status == "" {
		status = CampaignStatusActive
	}
	if !status.Valid() {
		return nil, errutil.BadRequest("unknown campaign status", nil, errutil.WithDetails(errutil.Detail{Field: "status", Message: req.Status}))
	}

	c := &Campaign{
		ID:            s.node.Generate().String(),
		BusinessID:    req.BusinessID,
		Name:          req.Name,
		Status:        status,
		TotalBudget:   req.TotalBudget,
		MaximumPayout: req.MaximumPayout,
		PayoutTiers:   datatypes.JSONSlice[payout.Tier](req.PayoutTiers),
	}

	if err := s.campaign.Create(ctx, c); err != nil {
		zap.L().Error("failed to create campaign", zap.String("business_id", req.BusinessID), zap.Error(err))
		return nil, err
	}

	return c, nil
}

func (s *Service) GetCampaign(ctx context.Context, id string) (*Campaign, error) {
	c, err := s.campaign.FindOne(ctx, &Campaign{ID: id})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errutil.NotFound("campaign not found", nil, errutil.WithDetails(errutil.Detail{Field: "campaign_id", Message: id}))
	}
	return c, nil
}

type ListCampaignsRequest struct {
	BusinessID string `form:"business_id"`
	Status     string `form:"status"`
	pagination.Pagination
}

func (s *Service) ListCampaigns(ctx context.Context, req ListCampaignsRequest) ([]*Campaign, *pagination.PageInfo, error) {
	query := &Campaign{BusinessID: req.BusinessID, Status: CampaignStatus(req.Status)}

	rows, err := s.campaign.Find(ctx, query, option.ApplyPagination(req.Pagination))
	if err != nil {
		return nil, nil, err
	}

	return pagination.BuildCursorPage(rows, req.Limit, func(c *Campaign) pagination.Cursor {
		return pagination.Cursor{ID: c.ID}
	})
}
