package application

import (
	"strings"
	"time"
)

type Status string

const (
	StatusPendingSubmission Status = "pending_submission"
	StatusUnderReview       Status = "under_review"
	StatusChangesRequested  Status = "changes_requested"
	StatusReadyToPost       Status = "ready_to_post"
	StatusEarning           Status = "earning"
)

var transitions = map[Status][]Status{
	StatusPendingSubmission: {StatusUnderReview},
	StatusUnderReview:       {StatusChangesRequested, StatusReadyToPost},
	StatusChangesRequested:  {StatusUnderReview},
	StatusReadyToPost:       {StatusEarning},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPendingSubmission, StatusUnderReview, StatusChangesRequested, StatusReadyToPost, StatusEarning:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Application is a creator's participation in one campaign. Cumulative
// counters and Earnings are written only by the earnings ledger.
type Application struct {
	ID                   string     `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	CreatorID            string     `gorm:"column:creator_id;index;not null" json:"creator_id"`
	CampaignID           string     `gorm:"column:campaign_id;index;not null" json:"campaign_id"`
	UserCampaignStatusID string     `gorm:"column:user_campaign_status_id" json:"user_campaign_status_id,omitempty"`
	Status               Status     `gorm:"column:status;type:varchar(32);index;not null" json:"status"`
	InstagramURL         *string    `gorm:"column:instagram_url" json:"instagram_url,omitempty"`
	TikTokURL            *string    `gorm:"column:tiktok_url" json:"tiktok_url,omitempty"`
	TrackingTag          *string    `gorm:"column:tracking_tag" json:"tracking_tag,omitempty"`
	MaxPayout            *int64     `gorm:"column:max_payout" json:"max_payout,omitempty"`
	Views                int64      `gorm:"column:views;not null;default:0" json:"views"`
	Likes                int64      `gorm:"column:likes;not null;default:0" json:"likes"`
	Comments             int64      `gorm:"column:comments;not null;default:0" json:"comments"`
	Shares               int64      `gorm:"column:shares;not null;default:0" json:"shares"`
	Earnings             int64      `gorm:"column:earnings;not null;default:0" json:"earnings"`
	LastCheckedAt        *time.Time `gorm:"column:last_checked_at" json:"last_checked_at,omitempty"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// normalize trims v and maps blank input to nil.
func normalize(v *string) *string {
	if t := deref(v); t != "" {
		return &t
	}
	return nil
}

func (a *Application) InstagramReference() string { return deref(a.InstagramURL) }
func (a *Application) TikTokReference() string    { return deref(a.TikTokURL) }
func (a *Application) Tag() string                { return deref(a.TrackingTag) }

// Eligible reports whether the daily reconciliation should look at the
// application: it must be earning and have at least one posted URL.
func (a *Application) Eligible() bool {
	return a.Status == StatusEarning && (a.InstagramReference() != "" || a.TikTokReference() != "")
}
