package campaign

import (
	"time"

	"ugc-marketplace/services/payout"

	"gorm.io/datatypes"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused, CampaignStatusCompleted:
		return true
	}
	return false
}

// Campaign is a brand campaign funded with a depletable budget. Amounts are in
// cents. BudgetClaimed only moves up, and only inside the earnings ledger
// transaction.
type Campaign struct {
	ID            string                           `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	BusinessID    string                           `gorm:"column:business_id;index;not null" json:"business_id"`
	Name          string                           `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Status        CampaignStatus                   `gorm:"column:status;type:varchar(20);not null;default:'draft'" json:"status"`
	TotalBudget   int64                            `gorm:"column:total_budget;not null" json:"total_budget"`
	BudgetClaimed int64                            `gorm:"column:budget_claimed;not null;default:0" json:"budget_claimed"`
	MaximumPayout int64                            `gorm:"column:maximum_payout;not null;default:0" json:"maximum_payout"`
	PayoutTiers   datatypes.JSONSlice[payout.Tier] `gorm:"column:payout_tiers" json:"payout_tiers"`
	CreatedAt     time.Time                        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// RemainingBudget is the only supported view of unclaimed budget.
func (c *Campaign) RemainingBudget() int64 {
	remaining := c.TotalBudget - c.BudgetClaimed
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (c *Campaign) Tiers() []payout.Tier {
	return []payout.Tier(c.PayoutTiers)
}
