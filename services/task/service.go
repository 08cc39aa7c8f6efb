package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ugc-marketplace/pkg/config"
	"ugc-marketplace/pkg/db/option"
	"ugc-marketplace/pkg/db/pagination"
	"ugc-marketplace/pkg/errutil"
	"ugc-marketplace/pkg/featureflags"
	"ugc-marketplace/pkg/minio"
	pkgredis "ugc-marketplace/pkg/redis"
	"ugc-marketplace/pkg/rediskey"
	"ugc-marketplace/pkg/repository"
	"ugc-marketplace/pkg/sequence"
	pkgtask "ugc-marketplace/pkg/task"
	"ugc-marketplace/pkg/taskname"
	"ugc-marketplace/services/reconcile"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxRetry = 3

// Runner executes a reconciliation pass under a given run id.
type Runner interface {
	RunWithID(ctx context.Context, runID string) (*reconcile.RunReport, error)
}

type Service struct {
	node     *snowflake.Node
	cfg      *config.Config
	enqueuer pkgtask.Enqueuer
	runner   Runner

	locker pkgredis.Locker
	flags  featureflags.FeatureFlag
	store  minio.ObjectStore
	codes  sequence.Generator

	job repository.Repository[Job]
}

type Params struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Enqueuer pkgtask.Enqueuer
	Runner   *reconcile.Orchestrator

	Locker pkgredis.Locker          `optional:"true"`
	Flags  featureflags.FeatureFlag `optional:"true"`
	Store  minio.ObjectStore        `optional:"true"`
	Codes  sequence.Generator       `optional:"true"`
}

func NewService(p Params) *Service {
	return &Service{
		node:     p.Node,
		cfg:      p.Config,
		enqueuer: p.Enqueuer,
		runner:   p.Runner,

		locker: p.Locker,
		flags:  p.Flags,
		store:  p.Store,
		codes:  p.Codes,

		job: repository.ProvideStore[Job](p.DB),
	}
}

type runPayload struct {
	JobID string `json:"job_id"`
}

// TriggerNow records a pending job and enqueues the reconciliation task for it.
func (s *Service) TriggerNow(ctx context.Context, trigger string) (*Job, error) {
	job := &Job{
		ID:        s.node.Generate().String(),
		Trigger:   trigger,
		TriggerID: uuid.NewString(),
		Status:    JobStatusPending,
	}
	job.Code = s.nextCode(ctx, job.ID)

	if err := s.job.Create(ctx, job); err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(runPayload{JobID: job.ID})
	info, err := s.enqueuer.Enqueue(ctx, asynq.NewTask(taskname.ReconcileRun, payload),
		asynq.Queue(s.cfg.Reconcile.Queue),
		asynq.TaskID(job.ID),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(s.lockTTL()),
	)
	if err != nil {
		_ = s.job.Update(ctx, job.ID, map[string]any{
			"status":    JobStatusFailed,
			"error_msg": err.Error(),
		})
		zap.L().Error("failed to enqueue reconciliation", zap.String("job_id", job.ID), zap.Error(err))
		return nil, err
	}

	zap.L().Info("enqueued reconciliation",
		zap.String("job_id", job.ID),
		zap.String("code", job.Code),
		zap.String("trigger", trigger),
		zap.String("queue", info.Queue),
	)
	return job, nil
}

func (s *Service) nextCode(ctx context.Context, jobID string) string {
	if s.codes != nil {
		code, err := s.codes.NextRunCode(ctx)
		if err == nil {
			return code
		}
		zap.L().Warn("failed to allocate run code", zap.Error(err))
	}
	return "RUN-" + jobID
}

func (s *Service) lockTTL() time.Duration {
	if s.cfg.Reconcile.LockTTL > 0 {
		return s.cfg.Reconcile.LockTTL
	}
	return 6 * time.Hour
}

// HandleReconcileTask is the asynq handler. It only decodes the payload and
// delegates to RunJob.
func (s *Service) HandleReconcileTask(ctx context.Context, t *asynq.Task) error {
	var payload runPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("invalid reconcile payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	return s.RunJob(ctx, payload.JobID)
}

// RunJob executes a recorded job. A disabled feature flag or a held run lock
// marks the job skipped. The run report is stored on the job and archived to
// object storage.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	job, err := s.job.FindOne(ctx, &Job{ID: jobID})
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found: %w", jobID, asynq.SkipRetry)
	}

	zapLog := zap.L().With(zap.String("job_id", job.ID), zap.String("code", job.Code))

	switch job.Status {
	case JobStatusSuccess, JobStatusSkipped:
		zapLog.Info("job already finished", zap.String("status", string(job.Status)))
		return nil
	}

	if s.flags != nil && !s.flags.IsEnabled(ctx, s.cfg.Reconcile.FeatureFlag, true) {
		zapLog.Warn("reconciliation disabled by feature flag", zap.String("flag", s.cfg.Reconcile.FeatureFlag))
		return s.finish(ctx, job, JobStatusSkipped, "disabled by feature flag", nil)
	}

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, rediskey.BuildReconcileLockKey(), s.lockTTL())
		switch {
		case err != nil:
			// best effort only
			zapLog.Warn("run lock unavailable, continuing", zap.Error(err))
		case !ok:
			zapLog.Warn("another reconciliation holds the run lock")
			return s.finish(ctx, job, JobStatusSkipped, "another run is in progress", nil)
		default:
			defer release()
		}
	}

	now := time.Now()
	if err := s.job.Update(ctx, job.ID, map[string]any{
		"status":     JobStatusRunning,
		"started_at": now,
		"attempts":   gorm.Expr("attempts + 1"),
	}); err != nil {
		return err
	}

	report, runErr := s.runner.RunWithID(ctx, job.ID)
	if report != nil {
		job.ReportObject = s.archive(ctx, job, report)
	}

	if runErr != nil {
		if err := s.finish(ctx, job, JobStatusFailed, runErr.Error(), report); err != nil {
			zapLog.Error("failed to record job failure", zap.Error(err))
		}
		return runErr
	}
	return s.finish(ctx, job, JobStatusSuccess, "", report)
}

func (s *Service) archive(ctx context.Context, job *Job, report *reconcile.RunReport) string {
	if s.store == nil {
		return ""
	}

	key := fmt.Sprintf("reconciliations/%s/%s.json",
		report.StartedAt.UTC().Format("2006/01/02"),
		slug.Make(job.Code),
	)
	object, err := s.store.PutJSON(ctx, key, report)
	if err != nil {
		zap.L().Warn("failed to archive run report", zap.String("job_id", job.ID), zap.String("key", key), zap.Error(err))
		return ""
	}
	return object
}

func (s *Service) finish(ctx context.Context, job *Job, status JobStatus, msg string, report *reconcile.RunReport) error {
	updates := map[string]any{
		"status":       status,
		"error_msg":    msg,
		"completed_at": time.Now(),
	}
	if report != nil {
		b, err := json.Marshal(report)
		if err != nil {
			return err
		}
		updates["metadata"] = datatypes.JSON(b)
	}
	if job.ReportObject != "" {
		updates["report_object"] = job.ReportObject
	}
	return s.job.Update(ctx, job.ID, updates)
}

func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	job, err := s.job.FindOne(ctx, &Job{ID: id})
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, errutil.NotFound("reconciliation job not found", nil)
	}
	return job, nil
}

type ListJobsRequest struct {
	Status  string `form:"status"`
	Trigger string `form:"trigger"`
	pagination.Pagination
}

func (s *Service) ListJobs(ctx context.Context, req ListJobsRequest) ([]*Job, *pagination.PageInfo, error) {
	query := &Job{Status: JobStatus(req.Status), Trigger: req.Trigger}

	rows, err := s.job.Find(ctx, query, option.ApplyPagination(req.Pagination))
	if err != nil {
		return nil, nil, err
	}

	return pagination.BuildCursorPage(rows, req.Limit, func(j *Job) pagination.Cursor {
		return pagination.Cursor{ID: j.ID}
	})
}
