package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"ugc-marketplace/pkg/db/option"
	"ugc-marketplace/pkg/errutil"
	"ugc-marketplace/pkg/repository"
	"ugc-marketplace/services/application"
	"ugc-marketplace/services/campaign"
	"ugc-marketplace/services/payout"
	"ugc-marketplace/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type repoMock[T any] struct {
	withTrxFn func(tx *gorm.DB) repository.Repository[T]
	findFn    func(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	findOneFn func(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	createFn  func(ctx context.Context, resource *T) error
	updateFn  func(ctx context.Context, resourceID string, resource any) error
}

func (m *repoMock[T]) WithTrx(tx *gorm.DB) repository.Repository[T] {
	if m.withTrxFn != nil {
		return m.withTrxFn(tx)
	}
	return m
}

func (m *repoMock[T]) Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	if m.findFn != nil {
		return m.findFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *repoMock[T]) Create(ctx context.Context, resource *T) error {
	if m.createFn != nil {
		return m.createFn(ctx, resource)
	}
	return nil
}

func (m *repoMock[T]) Update(ctx context.Context, resourceID string, resource any) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, resourceID, resource)
	}
	return nil
}

func (m *repoMock[T]) BatchCreate(ctx context.Context, resources []*T) error { return nil }
func (m *repoMock[T]) BatchUpdate(ctx context.Context, resources []*T) error { return nil }
func (m *repoMock[T]) Count(ctx context.Context, query *T) (int64, error)    { return 0, nil }

type publisherMock struct {
	events []EarningsCredited
	err    error
}

func (p *publisherMock) Publish(_ context.Context, _ string, event any) error {
	if e, ok := event.(EarningsCredited); ok {
		p.events = append(p.events, e)
	}
	return p.err
}

type fixture struct {
	svc  *Service
	db   *gorm.DB
	node *snowflake.Node
	pub  *publisherMock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t, &application.Application{}, &campaign.Campaign{}, &UserCampaignStatus{}, &EarningEntry{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	pub := &publisherMock{}
	return &fixture{
		svc:  NewService(ServiceParams{DB: db, Node: node, Publisher: pub}),
		db:   db,
		node: node,
		pub:  pub,
	}
}

func (f *fixture) campaign(t *testing.T, total, maxPayout int64, tiers ...payout.Tier) *campaign.Campaign {
	t.Helper()
	c := &campaign.Campaign{
		ID:            f.node.Generate().String(),
		BusinessID:    "biz-1",
		Name:          "launch",
		Status:        campaign.CampaignStatusActive,
		TotalBudget:   total,
		MaximumPayout: maxPayout,
		PayoutTiers:   datatypes.JSONSlice[payout.Tier](tiers),
	}
	require.NoError(t, f.db.Create(c).Error)
	return c
}

func (f *fixture) application(t *testing.T, campaignID string, earnings int64) *application.Application {
	t.Helper()
	a := &application.Application{
		ID:         f.node.Generate().String(),
		CreatorID:  "creator-" + f.node.Generate().String(),
		CampaignID: campaignID,
		Status:     application.StatusEarning,
		Earnings:   earnings,
	}
	require.NoError(t, f.db.Create(a).Error)
	return a
}

func (f *fixture) reload(t *testing.T, a *application.Application, c *campaign.Campaign) (*application.Application, *campaign.Campaign) {
	t.Helper()
	var app application.Application
	require.NoError(t, f.db.First(&app, "id = ?", a.ID).Error)
	var camp campaign.Campaign
	require.NoError(t, f.db.First(&camp, "id = ?", c.ID).Error)
	return &app, &camp
}

func TestApplyEarningsDeltaBudgetClamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.campaign(t, 100, 0, payout.Tier{ViewThreshold: 1_000, PayoutAmount: 80})
	first := f.application(t, c.ID, 0)
	second := f.application(t, c.ID, 0)

	res1, err := f.svc.ApplyEarningsDelta(ctx, Input{RunID: "run-1", ApplicationID: first.ID, Observed: Counters{Views: 1_500}})
	require.NoError(t, err)
	require.Equal(t, int64(80), res1.Earnings)
	require.False(t, res1.BudgetExhausted)

	res2, err := f.svc.ApplyEarningsDelta(ctx, Input{RunID: "run-1", ApplicationID: second.ID, Observed: Counters{Views: 2_000}})
	require.NoError(t, err)
	require.Equal(t, int64(20), res2.Earnings)
	require.Equal(t, int64(80), res2.Requested)
	require.True(t, res2.BudgetExhausted)

	_, camp := f.reload(t, first, c)
	require.Equal(t, int64(100), camp.BudgetClaimed)
	require.Zero(t, camp.RemainingBudget())

	third := f.application(t, c.ID, 0)
	res3, err := f.svc.ApplyEarningsDelta(ctx, Input{RunID: "run-1", ApplicationID: third.ID, Observed: Counters{Views: 5_000}})
	require.NoError(t, err)
	require.Zero(t, res3.Earnings)
	require.Empty(t, res3.EntryID)

	require.Len(t, f.pub.events, 2)
	require.Equal(t, "biz-1", f.pub.events[0].BusinessID)
}

func TestApplyEarningsDeltaMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.campaign(t, 1_000, 0,
		payout.Tier{ViewThreshold: 100, PayoutAmount: 30},
		payout.Tier{ViewThreshold: 1_000, PayoutAmount: 50},
	)
	a := f.application(t, c.ID, 50)
	require.NoError(t, f.db.Model(a).Updates(map[string]any{"views": 1_200, "likes": 40}).Error)

	res, err := f.svc.ApplyEarningsDelta(ctx, Input{ApplicationID: a.ID, Observed: Counters{Views: 300, Likes: 45}})
	require.NoError(t, err)
	require.Zero(t, res.Earnings)
	require.Zero(t, res.Requested)
	require.Equal(t, Counters{Likes: 5}, res.Delta)

	app, camp := f.reload(t, a, c)
	require.Equal(t, int64(50), app.Earnings)
	require.Equal(t, int64(1_200), app.Views)
	require.Equal(t, int64(45), app.Likes)
	require.NotNil(t, app.LastCheckedAt)
	require.Zero(t, camp.BudgetClaimed)
}

func TestApplyEarningsDeltaRerunIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.campaign(t, 10_000, 0, payout.Tier{ViewThreshold: 1_000, PayoutAmount: 500})
	a := f.application(t, c.ID, 0)
	in := Input{RunID: "run-1", ApplicationID: a.ID, Observed: Counters{Views: 1_000, Likes: 10, Comments: 2, Shares: 1}}

	res, err := f.svc.ApplyEarningsDelta(ctx, in)
	require.NoError(t, err)
	require.Equal(t, int64(500), res.Earnings)
	require.Equal(t, Counters{Views: 1_000, Likes: 10, Comments: 2, Shares: 1}, res.Delta)

	res, err = f.svc.ApplyEarningsDelta(ctx, in)
	require.NoError(t, err)
	require.Zero(t, res.Earnings)
	require.Equal(t, Counters{}, res.Delta)

	var status UserCampaignStatus
	require.NoError(t, f.db.First(&status, "creator_id = ? AND campaign_id = ?", a.CreatorID, c.ID).Error)
	require.Equal(t, int64(500), status.TotalEarnings)
	require.Equal(t, int64(1_000), status.TotalViews)

	app, _ := f.reload(t, a, c)
	require.Equal(t, status.ID, app.UserCampaignStatusID)
}

func TestApplyEarningsDeltaMaxPayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.campaign(t, 100_000, 700, payout.Tier{ViewThreshold: 10, PayoutAmount: 1_000})
	a := f.application(t, c.ID, 0)

	res, err := f.svc.ApplyEarningsDelta(ctx, Input{ApplicationID: a.ID, Observed: Counters{Views: 50}})
	require.NoError(t, err)
	require.Equal(t, int64(700), res.Earnings)

	override := int64(900)
	b := f.application(t, c.ID, 0)
	require.NoError(t, f.db.Model(b).Update("max_payout", override).Error)

	res, err = f.svc.ApplyEarningsDelta(ctx, Input{ApplicationID: b.ID, Observed: Counters{Views: 50}})
	require.NoError(t, err)
	require.Equal(t, int64(900), res.Earnings)
}

func TestApplyEarningsDeltaNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ApplyEarningsDelta(context.Background(), Input{ApplicationID: "missing"})
	require.True(t, errutil.IsNotFound(err))
}

func TestApplyEarningsDeltaPublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	c := f.campaign(t, 1_000, 0, payout.Tier{ViewThreshold: 1, PayoutAmount: 10})
	a := f.application(t, c.ID, 0)

	res, err := f.svc.ApplyEarningsDelta(context.Background(), Input{ApplicationID: a.ID, Observed: Counters{Views: 5}})
	require.NoError(t, err)
	require.Equal(t, int64(10), res.Earnings)
}

func TestEntriesFormValidChain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.campaign(t, 10_000, 0,
		payout.Tier{ViewThreshold: 100, PayoutAmount: 100},
		payout.Tier{ViewThreshold: 1_000, PayoutAmount: 400},
	)
	a := f.application(t, c.ID, 0)

	for _, views := range []int64{150, 150, 2_000} {
		_, err := f.svc.ApplyEarningsDelta(ctx, Input{RunID: "run", ApplicationID: a.ID, Observed: Counters{Views: views}})
		require.NoError(t, err)
	}

	entries, err := f.svc.ListEntries(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(100), entries[0].Amount)
	require.Equal(t, int64(300), entries[1].Amount)
	require.Equal(t, entries[0].Hash, entries[1].PreviousHash)

	require.NoError(t, f.svc.VerifyChain(ctx, a.ID))
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	first := &EarningEntry{ID: "1", ApplicationID: "app", Amount: 100, CreatedAt: time.Now()}
	first.Hash = first.GenerateHash()

	second := &EarningEntry{ID: "2", ApplicationID: "app", Amount: 50, PreviousHash: first.Hash, CreatedAt: time.Now()}
	second.Hash = second.GenerateHash()

	svc := &Service{
		entry: &repoMock[EarningEntry]{
			findFn: func(ctx context.Context, _ *EarningEntry, opts ...option.QueryOption) ([]*EarningEntry, error) {
				return []*EarningEntry{first, second}, nil
			},
		},
	}
	require.NoError(t, svc.VerifyChain(context.Background(), "app"))

	second.Amount = 5_000
	err := svc.VerifyChain(context.Background(), "app")
	require.Equal(t, errutil.StatusConflict, errutil.StatusOf(err))

	second.Amount = 50
	second.PreviousHash = "forged"
	require.Error(t, svc.VerifyChain(context.Background(), "app"))
}

func TestTargetEarnings(t *testing.T) {
	tiers := []payout.Tier{{ViewThreshold: 1_000, PayoutAmount: 10}, {ViewThreshold: 5_000, PayoutAmount: 30}, {ViewThreshold: 10_000, PayoutAmount: 60}}

	require.Equal(t, int64(10), TargetEarnings(tiers, 4_999, 0))
	require.Equal(t, int64(60), TargetEarnings(tiers, 10_000, 0))
	require.Equal(t, int64(0), TargetEarnings(tiers, 500, 0))
	require.Equal(t, int64(25), TargetEarnings(tiers, 10_000, 25))
}
