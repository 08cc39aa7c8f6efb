package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ugc-marketplace/pkg/db/option"
	"ugc-marketplace/pkg/errutil"
	"ugc-marketplace/pkg/kafka"
	"ugc-marketplace/pkg/logger"
	"ugc-marketplace/pkg/repository"
	"ugc-marketplace/services/analytics"
	"ugc-marketplace/services/application"
	"ugc-marketplace/services/campaign"
	"ugc-marketplace/services/payout"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrBudgetConflict means the guarded budget increment matched no row, i.e.
// the campaign budget moved under the transaction.
var ErrBudgetConflict = errors.New("campaign budget changed during credit")

type Input struct {
	RunID         string
	ApplicationID string
	// Observed are the cumulative totals fetched in this run across all
	// authentic platforms.
	Observed  Counters
	CheckedAt time.Time
	// Date is the analytics day (YYYY-MM-DD) the delta rolls up into.
	// Defaults to the UTC day of CheckedAt.
	Date string
}

type Result struct {
	// Earnings is the realized delta after clamping to the remaining budget.
	Earnings  int64
	Requested int64
	// Delta holds the counter increments applied to the application.
	Delta           Counters
	BudgetExhausted bool
	TotalEarnings   int64
	EntryID         string

	ApplicationID string
	CampaignID    string
	BusinessID    string
	CreatorID     string
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	publisher kafka.Publisher
	analytics *analytics.Service

	entry       repository.Repository[EarningEntry]
	status      repository.Repository[UserCampaignStatus]
	application repository.Repository[application.Application]
	campaign    repository.Repository[campaign.Campaign]
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Publisher kafka.Publisher `optional:"true"`
	Analytics *analytics.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		publisher: p.Publisher,
		analytics: p.Analytics,

		entry:       repository.ProvideStore[EarningEntry](p.DB),
		status:      repository.ProvideStore[UserCampaignStatus](p.DB),
		application: repository.ProvideStore[application.Application](p.DB),
		campaign:    repository.ProvideStore[campaign.Campaign](p.DB),
	}
}

// EffectiveMaxPayout is the application override when positive, else the
// campaign cap. Zero means no cap beyond the budget.
func EffectiveMaxPayout(app *application.Application, c *campaign.Campaign) int64 {
	if app.MaxPayout != nil && *app.MaxPayout > 0 {
		return *app.MaxPayout
	}
	return c.MaximumPayout
}

// TargetEarnings is the tier payout for views, capped by maxPayout when set.
func TargetEarnings(tiers []payout.Tier, views, maxPayout int64) int64 {
	target := payout.ComputeEarnings(tiers, views)
	if maxPayout > 0 && target > maxPayout {
		target = maxPayout
	}
	return target
}

func positiveDelta(observed, prior int64) int64 {
	if observed > prior {
		return observed - prior
	}
	return 0
}

// ApplyEarningsDelta credits one application in a single transaction: it
// re-reads application and campaign under row locks, clamps the increment to
// the remaining budget and updates application, campaign, the creator-campaign
// aggregate and the four daily analytics rows together. A retried run can
// only ever credit and roll up what the previous attempt did not.
func (s *Service) ApplyEarningsDelta(ctx context.Context, in Input) (*Result, error) {
	zapLog := logger.FromContext(ctx,
		zap.String("run_id", in.RunID),
		zap.String("application_id", in.ApplicationID),
	)

	checkedAt := in.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now()
	}
	date := in.Date
	if date == "" {
		date = checkedAt.UTC().Format(analytics.DateLayout)
	}

	var res *Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		appTx := s.application.WithTrx(tx)
		campaignTx := s.campaign.WithTrx(tx)

		app, err := appTx.FindOne(ctx, &application.Application{ID: in.ApplicationID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if app == nil {
			return errutil.NotFound("application not found", nil)
		}

		c, err := campaignTx.FindOne(ctx, &campaign.Campaign{ID: app.CampaignID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if c == nil {
			return errutil.NotFound("campaign not found", nil)
		}

		target := TargetEarnings(c.Tiers(), in.Observed.Views, EffectiveMaxPayout(app, c))
		rawDelta := positiveDelta(target, app.Earnings)
		realized := min(rawDelta, c.RemainingBudget())

		delta := Counters{
			Views:    positiveDelta(in.Observed.Views, app.Views),
			Likes:    positiveDelta(in.Observed.Likes, app.Likes),
			Comments: positiveDelta(in.Observed.Comments, app.Comments),
			Shares:   positiveDelta(in.Observed.Shares, app.Shares),
		}

		res = &Result{
			Earnings:        realized,
			Requested:       rawDelta,
			Delta:           delta,
			BudgetExhausted: realized < rawDelta,
			TotalEarnings:   app.Earnings + realized,
			ApplicationID:   app.ID,
			CampaignID:      c.ID,
			BusinessID:      c.BusinessID,
			CreatorID:       app.CreatorID,
		}

		if realized > 0 {
			update := tx.Model(&campaign.Campaign{}).
				Where("id = ? AND budget_claimed + ? <= total_budget", c.ID, realized).
				Update("budget_claimed", gorm.Expr("budget_claimed + ?", realized))
			if update.Error != nil {
				return update.Error
			}
			if update.RowsAffected != 1 {
				return errutil.Conflict("campaign budget conflict", ErrBudgetConflict)
			}
		}

		statusID, err := s.upsertUserCampaignStatus(ctx, tx, app, realized, delta)
		if err != nil {
			return err
		}

		appUpdates := map[string]any{
			"earnings":        gorm.Expr("earnings + ?", realized),
			"views":           app.Views + delta.Views,
			"likes":           app.Likes + delta.Likes,
			"comments":        app.Comments + delta.Comments,
			"shares":          app.Shares + delta.Shares,
			"last_checked_at": checkedAt,
		}
		if app.UserCampaignStatusID != statusID {
			appUpdates["user_campaign_status_id"] = statusID
		}
		if err := appTx.Update(ctx, app.ID, appUpdates); err != nil {
			return err
		}

		if realized > 0 {
			entryID, err := s.appendEntry(ctx, tx, in.RunID, app, realized, rawDelta, in.Observed.Views)
			if err != nil {
				return err
			}
			res.EntryID = entryID
		}

		if s.analytics == nil {
			return nil
		}
		return s.analytics.FanOut(ctx, tx, date, analytics.Keys{
			Application: res.ApplicationID,
			Campaign:    res.CampaignID,
			Business:    res.BusinessID,
			Creator:     res.CreatorID,
		}, analytics.Delta{
			Views:    delta.Views,
			Likes:    delta.Likes,
			Comments: delta.Comments,
			Shares:   delta.Shares,
			Earnings: realized,
		})
	})
	if err != nil {
		zapLog.Error("failed to apply earnings delta", zap.Error(err))
		return nil, err
	}

	zapLog.Info("earnings delta applied",
		zap.Int64("requested", res.Requested),
		zap.Int64("realized", res.Earnings),
		zap.Bool("budget_exhausted", res.BudgetExhausted),
	)

	if res.Earnings > 0 {
		s.publishCredited(ctx, in.RunID, res)
	}

	return res, nil
}

func (s *Service) upsertUserCampaignStatus(ctx context.Context, tx *gorm.DB, app *application.Application, realized int64, delta Counters) (string, error) {
	statusTx := s.status.WithTrx(tx)

	query := &UserCampaignStatus{CreatorID: app.CreatorID, CampaignID: app.CampaignID}
	if app.UserCampaignStatusID != "" {
		query = &UserCampaignStatus{ID: app.UserCampaignStatusID}
	}

	current, err := statusTx.FindOne(ctx, query, option.WithLockingUpdate())
	if err != nil {
		return "", err
	}

	if current == nil {
		current = &UserCampaignStatus{
			ID:            s.node.Generate().String(),
			CreatorID:     app.CreatorID,
			CampaignID:    app.CampaignID,
			TotalEarnings: realized,
			TotalViews:    delta.Views,
			TotalLikes:    delta.Likes,
			TotalComments: delta.Comments,
			TotalShares:   delta.Shares,
		}
		if err := statusTx.Create(ctx, current); err != nil {
			return "", fmt.Errorf("create user campaign status: %w", err)
		}
		return current.ID, nil
	}

	err = statusTx.Update(ctx, current.ID, map[string]any{
		"total_earnings": gorm.Expr("total_earnings + ?", realized),
		"total_views":    gorm.Expr("total_views + ?", delta.Views),
		"total_likes":    gorm.Expr("total_likes + ?", delta.Likes),
		"total_comments": gorm.Expr("total_comments + ?", delta.Comments),
		"total_shares":   gorm.Expr("total_shares + ?", delta.Shares),
	})
	return current.ID, err
}

func (s *Service) lastEntry(ctx context.Context, tx *gorm.DB, applicationID string) (*EarningEntry, error) {
	return s.entry.WithTrx(tx).FindOne(ctx, &EarningEntry{ApplicationID: applicationID},
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.WithLockingUpdate(),
	)
}

func (s *Service) appendEntry(ctx context.Context, tx *gorm.DB, runID string, app *application.Application, realized, requested, views int64) (string, error) {
	last, err := s.lastEntry(ctx, tx, app.ID)
	if err != nil {
		return "", err
	}

	entry := &EarningEntry{
		ID:            s.node.Generate().String(),
		ApplicationID: app.ID,
		CampaignID:    app.CampaignID,
		CreatorID:     app.CreatorID,
		RunID:         runID,
		Amount:        realized,
		Requested:     requested,
		TotalViews:    views,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
	if last != nil {
		entry.PreviousHash = last.Hash
	}
	entry.Hash = entry.GenerateHash()

	if err := s.entry.WithTrx(tx).Create(ctx, entry); err != nil {
		return "", fmt.Errorf("append earning entry: %w", err)
	}
	return entry.ID, nil
}

func (s *Service) publishCredited(ctx context.Context, runID string, res *Result) {
	if s.publisher == nil {
		return
	}

	event := EarningsCredited{
		EntryID:       res.EntryID,
		RunID:         runID,
		ApplicationID: res.ApplicationID,
		CampaignID:    res.CampaignID,
		BusinessID:    res.BusinessID,
		CreatorID:     res.CreatorID,
		Amount:        res.Earnings,
		TotalEarnings: res.TotalEarnings,
		OccurredAt:    time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, res.ApplicationID, event); err != nil {
		zap.L().Warn("failed to publish earnings.credited",
			zap.String("application_id", res.ApplicationID),
			zap.String("entry_id", res.EntryID),
			zap.Error(err),
		)
	}
}

// ListEntries returns the credit history of an application, oldest first.
func (s *Service) ListEntries(ctx context.Context, applicationID string) ([]*EarningEntry, error) {
	return s.entry.Find(ctx, &EarningEntry{ApplicationID: applicationID}, option.WithSortBy(option.QuerySortBy{OrderBy: "asc"}))
}

// VerifyChain recomputes every entry hash of an application and checks the
// previous-hash links.
func (s *Service) VerifyChain(ctx context.Context, applicationID string) error {
	entries, err := s.ListEntries(ctx, applicationID)
	if err != nil {
		return err
	}

	prev := ""
	for _, e := range entries {
		if e.PreviousHash != prev {
			return errutil.Conflict(fmt.Sprintf("earning entry %s breaks the chain", e.ID), nil)
		}
		if e.GenerateHash() != e.Hash {
			return errutil.Conflict(fmt.Sprintf("earning entry %s hash mismatch", e.ID), nil)
		}
		prev = e.Hash
	}
	return nil
}
