package analytics

import (
	"context"
	"errors"
	"testing"

	"ugc-marketplace/pkg/errutil"
	"ugc-marketplace/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(ServiceParams{DB: testutil.NewTestDB(t, Models()...)})
}

var keys = Keys{Application: "app-1", Campaign: "cmp-1", Business: "biz-1", Creator: "cr-1"}

func TestRecordDailySnapshotIncrements(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.RecordDailySnapshot(ctx, nil, KindCampaign, "cmp-1", "2026-10-16", Delta{Views: 100, Earnings: 5}))
	require.NoError(t, svc.RecordDailySnapshot(ctx, nil, KindCampaign, "cmp-1", "2026-10-16", Delta{Views: 50, Likes: 3, Earnings: 2}))
	require.NoError(t, svc.RecordDailySnapshot(ctx, nil, KindCampaign, "cmp-1", "2026-10-17", Delta{Views: 7}))

	rows, err := svc.ListSnapshots(ctx, KindCampaign, "cmp-1", "2026-10-16", "2026-10-16")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, Delta{Views: 150, Likes: 3, Earnings: 7}, rows[0].Delta)

	total, err := svc.Totals(ctx, KindCampaign, "cmp-1", "", "")
	require.NoError(t, err)
	require.Equal(t, int64(157), total.Views)
}

func TestRecordDailySnapshotRejectsBadInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.Error(t, svc.RecordDailySnapshot(ctx, nil, Kind("region"), "x", "2026-10-16", Delta{}))
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(svc.RecordDailySnapshot(ctx, nil, KindBusiness, "", "2026-10-16", Delta{})))

	_, err := svc.ListSnapshots(ctx, KindBusiness, "biz-1", "16/10/2026", "")
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))
}

func TestFanOutWritesIdenticalRows(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	d := Delta{Views: 2_000, Likes: 20, Comments: 4, Shares: 1, Earnings: 300}

	require.NoError(t, svc.FanOut(ctx, nil, "2026-10-16", keys, d))
	require.NoError(t, svc.FanOut(ctx, nil, "2026-10-16", keys, d))

	for _, kind := range Kinds {
		rows, err := svc.ListSnapshots(ctx, kind, keys.entity(kind), "", "")
		require.NoError(t, err)
		require.Len(t, rows, 1, kind)
		require.Equal(t, Delta{Views: 4_000, Likes: 40, Comments: 8, Shares: 2, Earnings: 600}, rows[0].Delta, kind)
	}
}

func TestFanOutRollsBackOnMissingKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	broken := keys
	broken.Business = ""
	require.Error(t, svc.FanOut(ctx, nil, "2026-10-16", broken, Delta{Views: 1}))

	rows, err := svc.ListSnapshots(ctx, KindApplication, keys.Application, "", "")
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestFanOutJoinsCallerTransaction(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	failed := errors.New("credit failed")
	err := svc.db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, svc.FanOut(ctx, tx, "2026-10-16", keys, Delta{Views: 5, Earnings: 1}))
		return failed
	})
	require.ErrorIs(t, err, failed)

	for _, kind := range Kinds {
		rows, err := svc.ListSnapshots(ctx, kind, keys.entity(kind), "", "")
		require.NoError(t, err)
		require.Empty(t, rows, kind)
	}
}
