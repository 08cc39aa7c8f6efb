package reconcile

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"ugc-marketplace/pkg/config"
	"ugc-marketplace/pkg/errutil"
	"ugc-marketplace/pkg/logger"
	"ugc-marketplace/services/analytics"
	"ugc-marketplace/services/application"
	"ugc-marketplace/services/campaign"
	"ugc-marketplace/services/ledger"
	"ugc-marketplace/services/socialmetrics"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultPageSize = 50

var tracer = otel.Tracer("ugc-marketplace/services/reconcile")

type ledgerWriter interface {
	ApplyEarningsDelta(ctx context.Context, in ledger.Input) (*ledger.Result, error)
}

// Orchestrator runs one reconciliation pass over every eligible application.
// Applications are handled one at a time; a failing application never stops
// the run, only a pagination failure does.
type Orchestrator struct {
	source    application.Source
	campaigns campaign.Lookup
	platforms *socialmetrics.Registry
	ledger    ledgerWriter
	node      *snowflake.Node

	pageSize int
	loc      *time.Location
	now      func() time.Time
}

type Params struct {
	fx.In
	Config    *config.Config
	Source    application.Source
	Campaigns campaign.Lookup
	Platforms *socialmetrics.Registry
	Ledger    *ledger.Service
	Node      *snowflake.Node
}

func NewOrchestrator(p Params) *Orchestrator {
	pageSize := p.Config.Reconcile.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	loc := time.UTC
	if tz := p.Config.Reconcile.Timezone; tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			zap.L().Warn("invalid reconcile timezone, using UTC", zap.String("timezone", tz), zap.Error(err))
		}
	}

	return &Orchestrator{
		source:    p.Source,
		campaigns: p.Campaigns,
		platforms: p.Platforms,
		ledger:    p.Ledger,
		node:      p.Node,
		pageSize:  pageSize,
		loc:       loc,
		now:       time.Now,
	}
}

func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	return o.RunWithID(ctx, o.node.Generate().String())
}

// RunWithID runs a pass under a caller-chosen id. Re-running with the same id
// credits and rolls up only the growth since the previous attempt.
func (o *Orchestrator) RunWithID(ctx context.Context, runID string) (*RunReport, error) {
	ctx, span := tracer.Start(ctx, "reconcile.Run", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()

	report := &RunReport{RunID: runID, StartedAt: o.now()}
	date := report.StartedAt.In(o.loc).Format(analytics.DateLayout)

	zapLog := logger.FromContext(ctx, zap.String("run_id", runID))
	zapLog.Info("reconciliation run started", zap.String("date", date), zap.Int("page_size", o.pageSize))

	var runErr error
	for page, err := range Pages(ctx, o.source, o.pageSize) {
		if err != nil {
			runErr = fmt.Errorf("fetch page %d: %w", report.Pages+1, err)
			break
		}

		report.Pages++
		zapLog.Info("page started", zap.Int("page", report.Pages), zap.Int("size", len(page.Applications)))

		for _, app := range page.Applications {
			report.Scanned++
			result, earned, err := o.safeProcess(ctx, runID, date, app)
			report.record(result)
			applicationsTotal.WithLabelValues(result).Inc()
			report.TotalEarnings += earned
			if err != nil {
				report.Failures = append(report.Failures, Failure{ApplicationID: app.ID, Error: err.Error()})
			}
		}

		zapLog.Info("page finished",
			zap.Int("page", report.Pages),
			zap.Int("scanned", report.Scanned),
			zap.Int("failed", report.Failed),
		)
	}

	report.FinishedAt = o.now()
	runDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())

	fields := []zap.Field{
		zap.Int("pages", report.Pages),
		zap.Int("scanned", report.Scanned),
		zap.Int("processed", report.Processed),
		zap.Int("skipped_campaign_not_found", report.SkippedCampaignNotFound),
		zap.Int("skipped_budget_exhausted", report.SkippedBudgetExhausted),
		zap.Int("failed", report.Failed),
		zap.Int64("total_earnings", report.TotalEarnings),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	}
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		zapLog.Error("reconciliation run aborted", append(fields, zap.Error(runErr))...)
		return report, runErr
	}

	zapLog.Info("reconciliation run finished", fields...)
	return report, nil
}

// safeProcess turns a panic in one application into a failure of that
// application only.
func (o *Orchestrator) safeProcess(ctx context.Context, runID, date string, app *application.Application) (result string, earned int64, err error) {
	ctx, span := tracer.Start(ctx, "reconcile.Application", trace.WithAttributes(
		attribute.String("application_id", app.ID),
		attribute.String("campaign_id", app.CampaignID),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			result, earned = ResultFailed, 0
			err = fmt.Errorf("panic: %v", r)
			zap.L().Error("application panicked",
				zap.String("run_id", runID),
				zap.String("application_id", app.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("result", result))
	}()

	result, earned, err = o.process(ctx, runID, date, app)
	if err != nil {
		zap.L().Error("application failed",
			zap.String("run_id", runID),
			zap.String("application_id", app.ID),
			zap.Error(err),
		)
	}
	return result, earned, err
}

func (o *Orchestrator) process(ctx context.Context, runID, date string, app *application.Application) (string, int64, error) {
	zapLog := logger.FromContext(ctx,
		zap.String("run_id", runID),
		zap.String("application_id", app.ID),
		zap.String("campaign_id", app.CampaignID),
	)

	c, err := o.campaigns.GetCampaign(ctx, app.CampaignID)
	if err != nil {
		if errutil.IsNotFound(err) {
			zapLog.Warn("campaign not found, skipping application")
			return ResultSkippedCampaignNotFound, 0, nil
		}
		return ResultFailed, 0, fmt.Errorf("lookup campaign: %w", err)
	}

	if remaining := c.RemainingBudget(); remaining <= 0 {
		zapLog.Info("campaign budget exhausted, skipping application",
			zap.Int64("total_budget", c.TotalBudget),
			zap.Int64("budget_claimed", c.BudgetClaimed),
		)
		return ResultSkippedBudgetExhausted, 0, nil
	}

	observed := o.collect(ctx, zapLog, app)

	res, err := o.ledger.ApplyEarningsDelta(ctx, ledger.Input{
		RunID:         runID,
		ApplicationID: app.ID,
		Observed:      observed,
		CheckedAt:     o.now(),
		Date:          date,
	})
	if err != nil {
		return ResultFailed, 0, fmt.Errorf("apply earnings delta: %w", err)
	}
	earningsCreditedTotal.Add(float64(res.Earnings))

	zapLog.Info("application processed",
		zap.Int64("views", observed.Views),
		zap.Int64("earnings", res.Earnings),
		zap.Int64("requested", res.Requested),
		zap.Bool("budget_exhausted", res.BudgetExhausted),
	)
	return ResultProcessed, res.Earnings, nil
}

// collect sums the counters of every platform that returned an authentic
// post. Failing platforms contribute nothing.
func (o *Orchestrator) collect(ctx context.Context, zapLog *zap.Logger, app *application.Application) ledger.Counters {
	var total ledger.Counters
	tag := app.Tag()

	for _, p := range o.platforms.Platforms() {
		ref := p.Reference(app)
		if ref == "" {
			continue
		}

		log := zapLog.With(zap.String("platform", p.Name()), zap.String("reference", ref))
		outcome := OutcomeOK

		m, err := p.Fetch(ctx, ref)
		switch {
		case err != nil:
			outcome = OutcomeFetchFailed
			log.Warn("metrics fetch failed", zap.String("outcome", outcome), zap.Error(err))
		case m == nil:
			outcome = OutcomeNotFound
			log.Warn("post not found", zap.String("outcome", outcome))
		case !p.IsAuthentic(tag, m):
			outcome = OutcomeTagMissing
			log.Warn("tracking tag missing, metrics discarded", zap.String("outcome", outcome), zap.String("tag", tag))
		default:
			total.Views += m.ViewCount
			total.Likes += m.LikeCount
			total.Comments += m.CommentCount
			total.Shares += m.ShareCount
			log.Info("metrics fetched",
				zap.String("outcome", outcome),
				zap.Int64("views", m.ViewCount),
				zap.Int64("likes", m.LikeCount),
			)
		}
		platformFetchTotal.WithLabelValues(p.Name(), outcome).Inc()
	}
	return total
}
