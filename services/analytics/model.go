package analytics

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindApplication Kind = "application"
	KindCampaign    Kind = "campaign"
	KindBusiness    Kind = "business"
	KindCreator     Kind = "creator"
)

// Kinds lists every rollup dimension in fan-out order.
var Kinds = []Kind{KindApplication, KindCampaign, KindBusiness, KindCreator}

func (k Kind) Table() (string, error) {
	switch k {
	case KindApplication:
		return ApplicationDailyAnalytics{}.TableName(), nil
	case KindCampaign:
		return CampaignDailyAnalytics{}.TableName(), nil
	case KindBusiness:
		return BusinessDailyAnalytics{}.TableName(), nil
	case KindCreator:
		return CreatorDailyAnalytics{}.TableName(), nil
	}
	return "", fmt.Errorf("unknown analytics kind %q", k)
}

// Delta is the per-application increment written to every dimension.
type Delta struct {
	Views    int64 `gorm:"column:views;not null;default:0" json:"views"`
	Likes    int64 `gorm:"column:likes;not null;default:0" json:"likes"`
	Comments int64 `gorm:"column:comments;not null;default:0" json:"comments"`
	Shares   int64 `gorm:"column:shares;not null;default:0" json:"shares"`
	Earnings int64 `gorm:"column:earnings;not null;default:0" json:"earnings"`
}

// Snapshot is one (entity, day) row of any dimension.
type Snapshot struct {
	EntityID  string    `gorm:"column:entity_id;primaryKey;type:varchar(32)" json:"entity_id"`
	Date      string    `gorm:"column:date;primaryKey;type:varchar(10)" json:"date"`
	Delta     `gorm:"embedded"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

type ApplicationDailyAnalytics struct{ Snapshot `gorm:"embedded"` }
type CampaignDailyAnalytics struct{ Snapshot `gorm:"embedded"` }
type BusinessDailyAnalytics struct{ Snapshot `gorm:"embedded"` }
type CreatorDailyAnalytics struct{ Snapshot `gorm:"embedded"` }

func (ApplicationDailyAnalytics) TableName() string { return "application_daily_analytics" }
func (CampaignDailyAnalytics) TableName() string    { return "campaign_daily_analytics" }
func (BusinessDailyAnalytics) TableName() string    { return "business_daily_analytics" }
func (CreatorDailyAnalytics) TableName() string     { return "creator_daily_analytics" }

// Models returns every table owned by the fan-out, for migrations.
func Models() []any {
	return []any{
		&ApplicationDailyAnalytics{},
		&CampaignDailyAnalytics{},
		&BusinessDailyAnalytics{},
		&CreatorDailyAnalytics{},
	}
}
