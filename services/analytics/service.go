package analytics

import (
	"context"
	"fmt"
	"time"

	"ugc-marketplace/pkg/errutil"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DateLayout = "2006-01-02"

// Keys identifies the four entities a processed application rolls up into.
type Keys struct {
	Application string
	Campaign    string
	Business    string
	Creator     string
}

func (k Keys) entity(kind Kind) string {
	switch kind {
	case KindApplication:
		return k.Application
	case KindCampaign:
		return k.Campaign
	case KindBusiness:
		return k.Business
	case KindCreator:
		return k.Creator
	}
	return ""
}

type Service struct {
	db *gorm.DB
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB}
}

// RecordDailySnapshot adds d to the (entityID, date) row of kind, creating the
// row when missing. tx may be nil to run outside a transaction.
func (s *Service) RecordDailySnapshot(ctx context.Context, tx *gorm.DB, kind Kind, entityID, date string, d Delta) error {
	table, err := kind.Table()
	if err != nil {
		return err
	}
	if entityID == "" {
		return errutil.BadRequest(fmt.Sprintf("missing %s id for analytics snapshot", kind), nil)
	}
	if tx == nil {
		tx = s.db
	}

	row := map[string]any{
		"entity_id":  entityID,
		"date":       date,
		"views":      d.Views,
		"likes":      d.Likes,
		"comments":   d.Comments,
		"shares":     d.Shares,
		"earnings":   d.Earnings,
		"updated_at": time.Now().UTC(),
	}

	return tx.WithContext(ctx).Table(table).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]any{
			"views":      gorm.Expr("views + ?", d.Views),
			"likes":      gorm.Expr("likes + ?", d.Likes),
			"comments":   gorm.Expr("comments + ?", d.Comments),
			"shares":     gorm.Expr("shares + ?", d.Shares),
			"earnings":   gorm.Expr("earnings + ?", d.Earnings),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(row).Error
}

// FanOut writes the same delta to all four dimensions. When tx is non-nil the
// rows join the caller's transaction, so they commit or roll back together
// with the ledger credit that produced d.
func (s *Service) FanOut(ctx context.Context, tx *gorm.DB, date string, keys Keys, d Delta) error {
	write := func(tx *gorm.DB) error {
		for _, kind := range Kinds {
			if err := s.RecordDailySnapshot(ctx, tx, kind, keys.entity(kind), date, d); err != nil {
				return fmt.Errorf("record %s snapshot: %w", kind, err)
			}
		}
		return nil
	}

	var err error
	if tx != nil {
		err = write(tx)
	} else {
		err = s.db.WithContext(ctx).Transaction(write)
	}
	if err != nil {
		zap.L().Error("analytics fan-out failed",
			zap.String("application_id", keys.Application),
			zap.String("date", date),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// ListSnapshots returns the daily rows of one entity between from and to
// (inclusive, YYYY-MM-DD), oldest first.
func (s *Service) ListSnapshots(ctx context.Context, kind Kind, entityID, from, to string) ([]Snapshot, error) {
	table, err := kind.Table()
	if err != nil {
		return nil, errutil.BadRequest(err.Error(), nil)
	}
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, d); err != nil {
			return nil, errutil.BadRequest("dates must be YYYY-MM-DD", err)
		}
	}

	q := s.db.WithContext(ctx).Table(table).Where("entity_id = ?", entityID)
	if from != "" {
		q = q.Where("date >= ?", from)
	}
	if to != "" {
		q = q.Where("date <= ?", to)
	}

	var out []Snapshot
	if err := q.Order("date ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Totals sums the daily rows of one entity over a date range.
func (s *Service) Totals(ctx context.Context, kind Kind, entityID, from, to string) (Delta, error) {
	rows, err := s.ListSnapshots(ctx, kind, entityID, from, to)
	if err != nil {
		return Delta{}, err
	}

	var total Delta
	for _, r := range rows {
		total.Views += r.Views
		total.Likes += r.Likes
		total.Comments += r.Comments
		total.Shares += r.Shares
		total.Earnings += r.Earnings
	}
	return total, nil
}
