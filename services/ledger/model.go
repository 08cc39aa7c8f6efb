package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// UserCampaignStatus aggregates everything one creator earned in one campaign.
type UserCampaignStatus struct {
	ID            string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	CreatorID     string    `gorm:"column:creator_id;uniqueIndex:idx_ucs_creator_campaign;not null" json:"creator_id"`
	CampaignID    string    `gorm:"column:campaign_id;uniqueIndex:idx_ucs_creator_campaign;not null" json:"campaign_id"`
	TotalEarnings int64     `gorm:"column:total_earnings;not null;default:0" json:"total_earnings"`
	TotalViews    int64     `gorm:"column:total_views;not null;default:0" json:"total_views"`
	TotalLikes    int64     `gorm:"column:total_likes;not null;default:0" json:"total_likes"`
	TotalComments int64     `gorm:"column:total_comments;not null;default:0" json:"total_comments"`
	TotalShares   int64     `gorm:"column:total_shares;not null;default:0" json:"total_shares"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// EarningEntry records one realized credit. Entries of an application form a
// hash chain ordered by id.
type EarningEntry struct {
	ID            string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	ApplicationID string    `gorm:"column:application_id;index;not null" json:"application_id"`
	CampaignID    string    `gorm:"column:campaign_id;index;not null" json:"campaign_id"`
	CreatorID     string    `gorm:"column:creator_id;not null" json:"creator_id"`
	RunID         string    `gorm:"column:run_id;index" json:"run_id"`
	Amount        int64     `gorm:"column:amount;not null" json:"amount"`
	Requested     int64     `gorm:"column:requested;not null" json:"requested"`
	TotalViews    int64     `gorm:"column:total_views;not null" json:"total_views"`
	PreviousHash  string    `gorm:"column:previous_hash" json:"previous_hash"`
	Hash          string    `gorm:"column:hash" json:"hash"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

func (e *EarningEntry) HashFields() map[string]string {
	return map[string]string{
		"id":             e.ID,
		"application_id": e.ApplicationID,
		"campaign_id":    e.CampaignID,
		"creator_id":     e.CreatorID,
		"run_id":         e.RunID,
		"amount":         fmt.Sprintf("%d", e.Amount),
		"requested":      fmt.Sprintf("%d", e.Requested),
		"total_views":    fmt.Sprintf("%d", e.TotalViews),
		"created_at":     e.CreatedAt.UTC().Format(time.RFC3339Nano),
		"previous_hash":  e.PreviousHash,
	}
}

func (e *EarningEntry) GenerateHash() string {
	fields := e.HashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}

// Counters are cumulative engagement totals or deltas of them.
type Counters struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
}

// EarningsCredited is published after a non-zero credit commits.
type EarningsCredited struct {
	EntryID       string    `json:"entry_id"`
	RunID         string    `json:"run_id"`
	ApplicationID string    `json:"application_id"`
	CampaignID    string    `json:"campaign_id"`
	BusinessID    string    `json:"business_id"`
	CreatorID     string    `json:"creator_id"`
	Amount        int64     `json:"amount"`
	TotalEarnings int64     `json:"total_earnings"`
	OccurredAt    time.Time `json:"occurred_at"`
}
