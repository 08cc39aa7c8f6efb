package dashboard

import (
	"net/http"

	"ugc-marketplace/pkg/errutil"
	"ugc-marketplace/services/analytics"
	"ugc-marketplace/services/application"
	"ugc-marketplace/services/campaign"
	"ugc-marketplace/services/ledger"
	"ugc-marketplace/services/task"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

type Handler struct {
	campaigns    *campaign.Service
	applications *application.Service
	analytics    *analytics.Service
	ledger       *ledger.Service
	jobs         *task.Service
}

type Params struct {
	fx.In
	Campaigns    *campaign.Service
	Applications *application.Service
	Analytics    *analytics.Service
	Ledger       *ledger.Service
	Jobs         *task.Service
}

func NewHandler(p Params) *Handler {
	return &Handler{
		campaigns:    p.Campaigns,
		applications: p.Applications,
		analytics:    p.Analytics,
		ledger:       p.Ledger,
		jobs:         p.Jobs,
	}
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	v1 := r.Group("/v1")

	v1.POST("/reconciliations", h.TriggerReconciliation)
	v1.GET("/reconciliations", h.ListReconciliations)
	v1.GET("/reconciliations/:id", h.GetReconciliation)

	v1.POST("/campaigns", h.CreateCampaign)
	v1.GET("/campaigns", h.ListCampaigns)
	v1.GET("/campaigns/:id", h.GetCampaign)
	v1.GET("/campaigns/:id/overview", h.CampaignOverview)

	v1.POST("/applications", h.CreateApplication)
	v1.GET("/applications/:id", h.GetApplication)
	v1.POST("/applications/:id/status", h.UpdateApplicationStatus)
	v1.GET("/applications/:id/earnings", h.ListEarnings)

	v1.GET("/analytics/:kind/:id", h.ListAnalytics)
}

type listResponse[T any] struct {
	Data     []*T `json:"data"`
	PageInfo any  `json:"page_info"`
}

func (h *Handler) TriggerReconciliation(c *gin.Context) {
	job, err := h.jobs.TriggerNow(c.Request.Context(), task.TriggerManual)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) ListReconciliations(c *gin.Context) {
	var req task.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	jobs, info, err := h.jobs.ListJobs(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, listResponse[task.Job]{Data: jobs, PageInfo: info})
}

func (h *Handler) GetReconciliation(c *gin.Context) {
	job, err := h.jobs.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// CampaignView exposes the computed remaining budget next to the stored totals.
type CampaignView struct {
	*campaign.Campaign
	RemainingBudget int64 `json:"remaining_budget"`
}

func viewOf(c *campaign.Campaign) CampaignView {
	return CampaignView{Campaign: c, RemainingBudget: c.RemainingBudget()}
}

func (h *Handler) CreateCampaign(c *gin.Context) {
	var req campaign.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	created, err := h.campaigns.CreateCampaign(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(created))
}

func (h *Handler) ListCampaigns(c *gin.Context) {
	var req campaign.ListCampaignsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid query", err))
		return
	}

	rows, info, err := h.campaigns.ListCampaigns(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	views := make([]*CampaignView, 0, len(rows))
	for _, row := range rows {
		v := viewOf(row)
		views = append(views, &v)
	}
	c.JSON(http.StatusOK, listResponse[CampaignView]{Data: views, PageInfo: info})
}

func (h *Handler) GetCampaign(c *gin.Context) {
	found, err := h.campaigns.GetCampaign(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, viewOf(found))
}

type CampaignOverview struct {
	Campaign CampaignView         `json:"campaign"`
	Totals   analytics.Delta      `json:"totals"`
	Daily    []analytics.Snapshot `json:"daily"`
}

// CampaignOverview loads the campaign, its lifetime totals and the daily rows
// of the requested range concurrently.
func (h *Handler) CampaignOverview(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	from, to := c.Query("from"), c.Query("to")

	var (
		out   CampaignOverview
		found *campaign.Campaign
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		found, err = h.campaigns.GetCampaign(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		out.Totals, err = h.analytics.Totals(gctx, analytics.KindCampaign, id, "", "")
		return err
	})
	g.Go(func() (err error) {
		out.Daily, err = h.analytics.ListSnapshots(gctx, analytics.KindCampaign, id, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		_ = c.Error(err)
		return
	}

	out.Campaign = viewOf(found)
	c.JSON(http.StatusOK, out)
}

func (h *Handler) CreateApplication(c *gin.Context) {
	var req application.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	ctx := c.Request.Context()
	if _, err := h.campaigns.GetCampaign(ctx, req.CampaignID); err != nil {
		_ = c.Error(err)
		return
	}

	created, err := h.applications.CreateApplication(ctx, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetApplication(c *gin.Context) {
	app, err := h.applications.GetApplication(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (h *Handler) UpdateApplicationStatus(c *gin.Context) {
	var req application.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	app, err := h.applications.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, app)
}

type EarningsResponse struct {
	Entries    []*ledger.EarningEntry `json:"entries"`
	ChainValid bool                   `json:"chain_valid"`
}

func (h *Handler) ListEarnings(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, err := h.applications.GetApplication(ctx, id); err != nil {
		_ = c.Error(err)
		return
	}

	entries, err := h.ledger.ListEntries(ctx, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, EarningsResponse{
		Entries:    entries,
		ChainValid: h.ledger.VerifyChain(ctx, id) == nil,
	})
}

type AnalyticsResponse struct {
	Kind     analytics.Kind       `json:"kind"`
	EntityID string               `json:"entity_id"`
	Totals   analytics.Delta      `json:"totals"`
	Daily    []analytics.Snapshot `json:"daily"`
}

func (h *Handler) ListAnalytics(c *gin.Context) {
	kind := analytics.Kind(c.Param("kind"))
	id := c.Param("id")

	rows, err := h.analytics.ListSnapshots(c.Request.Context(), kind, id, c.Query("from"), c.Query("to"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := AnalyticsResponse{Kind: kind, EntityID: id, Daily: rows}
	for _, r := range rows {
		resp.Totals.Views += r.Views
		resp.Totals.Likes += r.Likes
		resp.Totals.Comments += r.Comments
		resp.Totals.Shares += r.Shares
		resp.Totals.Earnings += r.Earnings
	}
	c.JSON(http.StatusOK, resp)
}
