package application

import (
	"context"
	"errors"
	"fmt"

	"ugc-marketplace/pkg/db/pagination"
	"ugc-marketplace/pkg/errutil"
	"ugc-marketplace/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidTransition = errors.New("invalid application status transition")

// Page is one slice of eligible applications. NextCursor is opaque; Done marks
// the last page.
type Page struct {
	Applications []*Application
	NextCursor   string
	Done         bool
}

// Source yields eligible applications page by page in a stable order.
type Source interface {
	NextPage(ctx context.Context, cursor string, size int) (Page, error)
}

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	application repository.Repository[Application]
}

type ServiceParams struct {
	fx.In

	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		node:        p.Node,
		application: repository.ProvideStore[Application](p.DB),
	}
}

// NextPage walks eligible applications by ascending id. It fetches size+1 rows
// to decide whether another page exists.
func (s *Service) NextPage(ctx context.Context, cursor string, size int) (Page, error) {
	if size <= 0 {
		return Page{}, errutil.BadRequest("page size must be positive", nil)
	}

	q := s.db.WithContext(ctx).Model(&Application{}).
		Where("status = ?", StatusEarning).
		Where("(TRIM(COALESCE(instagram_url, '')) <> '' OR TRIM(COALESCE(tiktok_url, '')) <> '')")

	if cursor != "" {
		c, err := pagination.DecodeCursor(cursor)
		if err != nil {
			return Page{}, errutil.BadRequest("invalid cursor", err)
		}
		q = q.Where("id > ?", c.ID)
	}

	var rows []*Application
	if err := q.Order("id ASC").Limit(size + 1).Find(&rows).Error; err != nil {
		return Page{}, fmt.Errorf("list eligible applications: %w", err)
	}

	rows, info, err := pagination.BuildCursorPage(rows, size, func(a *Application) pagination.Cursor {
		return pagination.Cursor{ID: a.ID}
	})
	if err != nil {
		return Page{}, err
	}

	return Page{
		Applications: rows,
		NextCursor:   info.NextCursor,
		Done:         !info.HasMore,
	}, nil
}

func (s *Service) GetApplication(ctx context.Context, id string) (*Application, error) {
	app, err := s.application.FindOne(ctx, &Application{ID: id})
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, errutil.NotFound("application not found", nil, errutil.WithDetails(errutil.Detail{Field: "application_id", Message: id}))
	}
	return app, nil
}

type CreateApplicationRequest struct {
	CreatorID    string  `json:"creator_id" binding:"required"`
	CampaignID   string  `json:"campaign_id" binding:"required"`
	InstagramURL *string `json:"instagram_url"`
	TikTokURL    *string `json:"tiktok_url"`
	TrackingTag  *string `json:"tracking_tag"`
	MaxPayout    *int64  `json:"max_payout"`
}

func (s *Service) CreateApplication(ctx context.Context, req CreateApplicationRequest) (*Application, error) {
	if req.CreatorID == "" || req.CampaignID == "" {
		return nil, errutil.BadRequest("creator_id and campaign_id are required", nil)
	}
	if req.MaxPayout != nil && *req.MaxPayout < 0 {
		return nil, errutil.BadRequest("max_payout must be non-negative", nil)
	}

	app := &Application{
		ID:           s.node.Generate().String(),
		CreatorID:    req.CreatorID,
		CampaignID:   req.CampaignID,
		Status:       StatusPendingSubmission,
		InstagramURL: normalize(req.InstagramURL),
		TikTokURL:    normalize(req.TikTokURL),
		TrackingTag:  normalize(req.TrackingTag),
		MaxPayout:    req.MaxPayout,
	}
	if err := s.application.Create(ctx, app); err != nil {
		zap.L().Error("failed to create application", zap.String("campaign_id", req.CampaignID), zap.Error(err))
		return nil, err
	}
	return app, nil
}

type UpdateStatusRequest struct {
	Status       Status  `json:"status" binding:"required"`
	InstagramURL *string `json:"instagram_url"`
	TikTokURL    *string `json:"tiktok_url"`
}

// UpdateStatus applies one lifecycle transition. Posted URLs may be attached
// on the same call, typically when moving to earning.
func (s *Service) UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (*Application, error) {
	if !req.Status.Valid() {
		return nil, errutil.BadRequest("unknown status", nil, errutil.WithDetails(errutil.Detail{Field: "status", Message: string(req.Status)}))
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.application.WithTrx(tx)

		app, err := repo.FindOne(ctx, &Application{ID: id})
		if err != nil {
			return err
		}
		if app == nil {
			return errutil.NotFound("application not found", nil)
		}

		if !app.Status.CanTransitionTo(req.Status) {
			return errutil.Conflict(fmt.Sprintf("cannot move application from %s to %s", app.Status, req.Status), ErrInvalidTransition)
		}

		// a blank URL clears the column
		updates := map[string]any{"status": req.Status}
		if req.InstagramURL != nil {
			updates["instagram_url"] = normalize(req.InstagramURL)
		}
		if req.TikTokURL != nil {
			updates["tiktok_url"] = normalize(req.TikTokURL)
		}
		return repo.Update(ctx, id, updates)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("application status updated", zap.String("application_id", id), zap.String("status", string(req.Status)))
	return s.GetApplication(ctx, id)
}
