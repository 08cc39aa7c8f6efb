package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"ugc-marketplace/pkg/config"
	"ugc-marketplace/services/analytics"
	"ugc-marketplace/services/application"
	"ugc-marketplace/services/campaign"
	"ugc-marketplace/services/ledger"
	"ugc-marketplace/services/payout"
	"ugc-marketplace/services/socialmetrics"
	"ugc-marketplace/services/testutil"
	"ugc-marketplace/services/tracking"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func ptr[T any](v T) *T { return &v }

var tiers = datatypes.JSONSlice[payout.Tier]{
	{ViewThreshold: 1_000, PayoutAmount: 50},
	{ViewThreshold: 2_000, PayoutAmount: 100},
	{ViewThreshold: 10_000, PayoutAmount: 400},
}

type harness struct {
	db        *gorm.DB
	node      *snowflake.Node
	analytics *analytics.Service
	ledger    *ledger.Service
	orch      *Orchestrator

	instagram *socialmetrics.MockPlatform
	tiktok    *socialmetrics.MockPlatform
}

func newPlatformMock(ctrl *gomock.Controller, name string, ref func(*application.Application) string) *socialmetrics.MockPlatform {
	m := socialmetrics.NewMockPlatform(ctrl)
	m.EXPECT().Name().Return(name).AnyTimes()
	m.EXPECT().Reference(gomock.Any()).DoAndReturn(ref).AnyTimes()
	m.EXPECT().IsAuthentic(gomock.Any(), gomock.Any()).DoAndReturn(func(tag string, pm *socialmetrics.PostMetrics) bool {
		return tracking.IsAuthentic(tag, pm.Caption, pm.Hashtags)
	}).AnyTimes()
	return m
}

func newHarness(t *testing.T, pageSize int) *harness {
	t.Helper()

	models := append([]any{
		&application.Application{},
		&campaign.Campaign{},
		&ledger.UserCampaignStatus{},
		&ledger.EarningEntry{},
	}, analytics.Models()...)
	db := testutil.NewTestDB(t, models...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	rollups := analytics.NewService(analytics.ServiceParams{DB: db})
	h := &harness{
		db:        db,
		node:      node,
		analytics: rollups,
		ledger:    ledger.NewService(ledger.ServiceParams{DB: db, Node: node, Analytics: rollups}),
		instagram: newPlatformMock(ctrl, socialmetrics.PlatformInstagram, (*application.Application).InstagramReference),
		tiktok:    newPlatformMock(ctrl, socialmetrics.PlatformTikTok, (*application.Application).TikTokReference),
	}

	cfg := &config.Config{}
	cfg.Reconcile.PageSize = pageSize
	h.orch = NewOrchestrator(Params{
		Config:    cfg,
		Source:    application.NewService(application.ServiceParams{DB: db, Node: node}),
		Campaigns: campaign.NewService(campaign.ServiceParams{DB: db, Node: node}),
		Platforms: socialmetrics.NewRegistry(h.instagram, h.tiktok),
		Ledger:    h.ledger,
		Node:      node,
	})
	h.orch.now = func() time.Time { return time.Date(2026, 10, 16, 1, 0, 0, 0, time.UTC) }
	return h
}

func (h *harness) campaign(t *testing.T, total, claimed int64) *campaign.Campaign {
	t.Helper()
	c := &campaign.Campaign{
		ID:            h.node.Generate().String(),
		BusinessID:    "biz-1",
		Name:          "launch",
		Status:        campaign.CampaignStatusActive,
		TotalBudget:   total,
		BudgetClaimed: claimed,
		PayoutTiers:   tiers,
	}
	require.NoError(t, h.db.Create(c).Error)
	return c
}

func (h *harness) application(t *testing.T, campaignID string, ig, tt, tag *string) *application.Application {
	t.Helper()
	a := &application.Application{
		ID:           h.node.Generate().String(),
		CreatorID:    "creator-1",
		CampaignID:   campaignID,
		Status:       application.StatusEarning,
		InstagramURL: ig,
		TikTokURL:    tt,
		TrackingTag:  tag,
	}
	require.NoError(t, h.db.Create(a).Error)
	return a
}

func (h *harness) reload(t *testing.T, v any, id string) {
	t.Helper()
	require.NoError(t, h.db.First(v, "id = ?", id).Error)
}

func TestRunPartialPlatformFailure(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()

	c := h.campaign(t, 10_000, 0)
	app := h.application(t, c.ID, ptr("ig-1"), ptr("tt-1"), nil)

	h.instagram.EXPECT().Fetch(gomock.Any(), "ig-1").Return(nil, errors.New("connection reset"))
	h.tiktok.EXPECT().Fetch(gomock.Any(), "tt-1").Return(&socialmetrics.PostMetrics{ViewCount: 2_000, LikeCount: 9}, nil)

	report, err := h.orch.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
	require.Equal(t, 0, report.Failed)
	require.Equal(t, int64(100), report.TotalEarnings)

	var got application.Application
	h.reload(t, &got, app.ID)
	require.Equal(t, int64(2_000), got.Views)
	require.Equal(t, int64(100), got.Earnings)

	snaps, err := h.analytics.ListSnapshots(ctx, analytics.KindApplication, app.ID, "2026-10-16", "2026-10-16")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, analytics.Delta{Views: 2_000, Likes: 9, Earnings: 100}, snaps[0].Delta)

	for _, kind := range analytics.Kinds {
		total, err := h.analytics.Totals(ctx, kind, map[analytics.Kind]string{
			analytics.KindApplication: app.ID,
			analytics.KindCampaign:    c.ID,
			analytics.KindBusiness:    "biz-1",
			analytics.KindCreator:     "creator-1",
		}[kind], "", "")
		require.NoError(t, err)
		require.Equal(t, snaps[0].Delta, total, kind)
	}
}

func TestRunSkipsBeforeFetching(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()

	exhausted := h.campaign(t, 500, 500)
	h.application(t, exhausted.ID, ptr("ig-1"), nil, nil)
	h.application(t, "missing-campaign", ptr("ig-2"), nil, nil)

	// no Fetch expectation: gomock fails the test on any fetch

	report, err := h.orch.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Scanned)
	require.Equal(t, 1, report.SkippedBudgetExhausted)
	require.Equal(t, 1, report.SkippedCampaignNotFound)
	require.Equal(t, 0, report.Processed)
}

func TestRunTagMismatchContributesNothing(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()

	c := h.campaign(t, 10_000, 0)
	app := h.application(t, c.ID, ptr("ig-1"), ptr("tt-1"), ptr("#BrandX"))

	h.instagram.EXPECT().Fetch(gomock.Any(), "ig-1").Return(&socialmetrics.PostMetrics{ViewCount: 50_000, Caption: "unrelated"}, nil)
	h.tiktok.EXPECT().Fetch(gomock.Any(), "tt-1").Return(&socialmetrics.PostMetrics{ViewCount: 1_500, Hashtags: []string{"brandx"}}, nil)

	report, err := h.orch.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)

	var got application.Application
	h.reload(t, &got, app.ID)
	require.Equal(t, int64(1_500), got.Views)
	require.Equal(t, int64(50), got.Earnings)
}

func TestRunNotFoundPostContributesNothing(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()

	c := h.campaign(t, 10_000, 0)
	app := h.application(t, c.ID, ptr("ig-1"), nil, nil)

	h.instagram.EXPECT().Fetch(gomock.Any(), "ig-1").Return(nil, nil)

	report, err := h.orch.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
	require.Zero(t, report.TotalEarnings)

	var got application.Application
	h.reload(t, &got, app.ID)
	require.Zero(t, got.Earnings)
	require.NotNil(t, got.LastCheckedAt)
}

func TestRunIsolatesPanicsAndContinues(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	c := h.campaign(t, 10_000, 0)
	first := h.application(t, c.ID, ptr("ig-boom"), nil, nil)
	second := h.application(t, c.ID, ptr("ig-ok"), nil, nil)

	h.instagram.EXPECT().Fetch(gomock.Any(), "ig-boom").DoAndReturn(func(context.Context, string) (*socialmetrics.PostMetrics, error) {
		panic("vendor sdk blew up")
	})
	h.instagram.EXPECT().Fetch(gomock.Any(), "ig-ok").Return(&socialmetrics.PostMetrics{ViewCount: 10_000}, nil)

	report, err := h.orch.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Pages)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Processed)
	require.Len(t, report.Failures, 1)
	require.Equal(t, first.ID, report.Failures[0].ApplicationID)
	require.Contains(t, report.Failures[0].Error, "vendor sdk blew up")

	var got application.Application
	h.reload(t, &got, second.ID)
	require.Equal(t, int64(400), got.Earnings)
}

func TestRunBudgetClampAcrossApplications(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()

	c := h.campaign(t, 150, 0)
	a := h.application(t, c.ID, ptr("ig-a"), nil, nil)
	b := h.application(t, c.ID, ptr("ig-b"), nil, nil)

	h.instagram.EXPECT().Fetch(gomock.Any(), "ig-a").Return(&socialmetrics.PostMetrics{ViewCount: 2_000}, nil)
	h.instagram.EXPECT().Fetch(gomock.Any(), "ig-b").Return(&socialmetrics.PostMetrics{ViewCount: 2_000}, nil)

	report, err := h.orch.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(150), report.TotalEarnings)

	var gotA, gotB application.Application
	h.reload(t, &gotA, a.ID)
	h.reload(t, &gotB, b.ID)
	require.Equal(t, int64(100), gotA.Earnings)
	require.Equal(t, int64(50), gotB.Earnings)

	var gotC campaign.Campaign
	h.reload(t, &gotC, c.ID)
	require.Equal(t, int64(150), gotC.BudgetClaimed)
	require.Zero(t, gotC.RemainingBudget())
}

func TestRerunIsMonotonic(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()

	c := h.campaign(t, 10_000, 0)
	app := h.application(t, c.ID, ptr("ig-1"), nil, nil)

	h.instagram.EXPECT().Fetch(gomock.Any(), "ig-1").Return(&socialmetrics.PostMetrics{ViewCount: 2_000}, nil).Times(2)

	_, err := h.orch.RunWithID(ctx, "run-1")
	require.NoError(t, err)
	report, err := h.orch.RunWithID(ctx, "run-2")
	require.NoError(t, err)
	require.Zero(t, report.TotalEarnings)

	var got application.Application
	h.reload(t, &got, app.ID)
	require.Equal(t, int64(100), got.Earnings)

	total, err := h.analytics.Totals(ctx, analytics.KindCampaign, c.ID, "", "")
	require.NoError(t, err)
	require.Equal(t, analytics.Delta{Views: 2_000, Earnings: 100}, total)
}

func (h *harness) requireRollups(t *testing.T, c *campaign.Campaign, want analytics.Delta) {
	t.Helper()
	ctx := context.Background()

	var apps []application.Application
	require.NoError(t, h.db.Where("campaign_id = ?", c.ID).Find(&apps).Error)
	var perApp analytics.Delta
	for _, a := range apps {
		total, err := h.analytics.Totals(ctx, analytics.KindApplication, a.ID, "", "")
		require.NoError(t, err)
		require.Equal(t, a.Earnings, total.Earnings, a.ID)
		perApp.Views += total.Views
		perApp.Earnings += total.Earnings
	}
	require.Equal(t, want.Views, perApp.Views)
	require.Equal(t, want.Earnings, perApp.Earnings)

	ids := map[analytics.Kind]string{
		analytics.KindCampaign: c.ID,
		analytics.KindBusiness: c.BusinessID,
		analytics.KindCreator:  "creator-1",
	}
	for kind, id := range ids {
		total, err := h.analytics.Totals(ctx, kind, id, "", "")
		require.NoError(t, err)
		require.Equal(t, want, total, kind)
	}

	var got campaign.Campaign
	h.reload(t, &got, c.ID)
	require.Equal(t, want.Earnings, got.BudgetClaimed)
}

type flakyLedger struct {
	ledgerWriter
	failFor string
	calls   []string
}

func (l *flakyLedger) ApplyEarningsDelta(ctx context.Context, in ledger.Input) (*ledger.Result, error) {
	l.calls = append(l.calls, in.ApplicationID)
	if in.ApplicationID == l.failFor {
		return nil, errors.New("deadlock detected")
	}
	return l.ledgerWriter.ApplyEarningsDelta(ctx, in)
}

func TestRunLedgerFailureIsolatedWithinPage(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()

	c := h.campaign(t, 10_000, 0)
	first := h.application(t, c.ID, ptr("ig-1"), nil, nil)
	second := h.application(t, c.ID, ptr("ig-2"), nil, nil)
	third := h.application(t, c.ID, ptr("ig-3"), nil, nil)

	for _, ref := range []string{"ig-1", "ig-2", "ig-3"} {
		h.instagram.EXPECT().Fetch(gomock.Any(), ref).Return(&socialmetrics.PostMetrics{ViewCount: 2_000}, nil)
	}

	flaky := &flakyLedger{ledgerWriter: h.orch.ledger, failFor: second.ID}
	h.orch.ledger = flaky

	report, err := h.orch.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, report.Scanned)
	require.Equal(t, 2, report.Processed)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, int64(200), report.TotalEarnings)
	require.Len(t, report.Failures, 1)
	require.Equal(t, second.ID, report.Failures[0].ApplicationID)
	require.Contains(t, report.Failures[0].Error, "deadlock detected")
	require.ElementsMatch(t, []string{first.ID, second.ID, third.ID}, flaky.calls)

	for id, want := range map[string]int64{first.ID: 100, second.ID: 0, third.ID: 100} {
		var got application.Application
		h.reload(t, &got, id)
		require.Equal(t, want, got.Earnings, id)
	}
	h.requireRollups(t, c, analytics.Delta{Views: 4_000, Earnings: 200})
}

func TestRetriedRunRollsUpEveryCredit(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()

	c := h.campaign(t, 10_000, 0)
	app := h.application(t, c.ID, ptr("ig-1"), nil, nil)

	gomock.InOrder(
		h.instagram.EXPECT().Fetch(gomock.Any(), "ig-1").Return(&socialmetrics.PostMetrics{ViewCount: 2_000}, nil),
		h.instagram.EXPECT().Fetch(gomock.Any(), "ig-1").Return(&socialmetrics.PostMetrics{ViewCount: 10_000}, nil),
	)

	// first attempt credits the application, then loses the store mid-run
	source := h.orch.source
	h.orch.source = &failingSource{pages: []application.Page{{Applications: []*application.Application{app}, NextCursor: "next"}}}
	_, err := h.orch.RunWithID(ctx, "job-1")
	require.Error(t, err)

	h.orch.source = source
	report, err := h.orch.RunWithID(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, 1, report.Processed)
	require.Equal(t, int64(300), report.TotalEarnings)

	var got application.Application
	h.reload(t, &got, app.ID)
	require.Equal(t, int64(400), got.Earnings)
	h.requireRollups(t, c, analytics.Delta{Views: 10_000, Earnings: 400})
}

func TestRunRollupFailureRollsBackCredit(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()

	c := h.campaign(t, 10_000, 0)
	require.NoError(t, h.db.Model(c).Update("business_id", "").Error)
	app := h.application(t, c.ID, ptr("ig-1"), nil, nil)

	h.instagram.EXPECT().Fetch(gomock.Any(), "ig-1").Return(&socialmetrics.PostMetrics{ViewCount: 2_000}, nil)

	report, err := h.orch.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Zero(t, report.TotalEarnings)

	var got application.Application
	h.reload(t, &got, app.ID)
	require.Zero(t, got.Earnings)
	require.Zero(t, got.Views)

	var gotC campaign.Campaign
	h.reload(t, &gotC, c.ID)
	require.Zero(t, gotC.BudgetClaimed)

	entries, err := h.ledger.ListEntries(ctx, app.ID)
	require.NoError(t, err)
	require.Empty(t, entries)

	total, err := h.analytics.Totals(ctx, analytics.KindApplication, app.ID, "", "")
	require.NoError(t, err)
	require.Zero(t, total)
}

type failingSource struct {
	pages []application.Page
	calls int
}

func (s *failingSource) NextPage(ctx context.Context, cursor string, size int) (application.Page, error) {
	defer func() { s.calls++ }()
	if s.calls < len(s.pages) {
		return s.pages[s.calls], nil
	}
	return application.Page{}, errors.New("store unavailable")
}

func TestRunAbortsOnPaginationError(t *testing.T) {
	h := newHarness(t, 50)
	ctx := context.Background()

	c := h.campaign(t, 10_000, 0)
	app := h.application(t, c.ID, ptr("ig-1"), nil, nil)
	h.orch.source = &failingSource{pages: []application.Page{{Applications: []*application.Application{app}, NextCursor: "next"}}}

	h.instagram.EXPECT().Fetch(gomock.Any(), "ig-1").Return(&socialmetrics.PostMetrics{ViewCount: 1_000}, nil)

	report, err := h.orch.Run(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "store unavailable")
	require.Equal(t, 1, report.Pages)
	require.Equal(t, 1, report.Processed)
	require.False(t, report.FinishedAt.IsZero())

	var got application.Application
	h.reload(t, &got, app.ID)
	require.Equal(t, int64(50), got.Earnings)
}

func TestPagesStopsWhenConsumerBreaks(t *testing.T) {
	src := &failingSource{pages: []application.Page{{NextCursor: "a"}, {NextCursor: "b"}, {Done: true}}}

	n := 0
	for _, err := range Pages(context.Background(), src, 10) {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	require.Equal(t, 2, src.calls)

	src = &failingSource{pages: []application.Page{{NextCursor: "a"}, {Done: true}}}
	n = 0
	for _, err := range Pages(context.Background(), src, 10) {
		require.NoError(t, err)
		n++
	}
	require.Equal(t, 2, n)
}
