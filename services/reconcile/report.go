package reconcile

import "time"

// Fetch outcomes per platform call.
const (
	OutcomeOK          = "ok"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeNotFound    = "not_found"
	OutcomeTagMissing  = "tag_missing"
)

// Application outcomes.
const (
	ResultProcessed               = "processed"
	ResultSkippedCampaignNotFound = "skipped_campaign_not_found"
	ResultSkippedBudgetExhausted  = "skipped_budget_exhausted"
	ResultFailed                  = "failed"
)

type Failure struct {
	ApplicationID string `json:"application_id"`
	Error         string `json:"error"`
}

type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Pages                   int `json:"pages"`
	Scanned                 int `json:"scanned"`
	Processed               int `json:"processed"`
	SkippedCampaignNotFound int `json:"skipped_campaign_not_found"`
	SkippedBudgetExhausted  int `json:"skipped_budget_exhausted"`
	Failed                  int `json:"failed"`

	TotalEarnings int64     `json:"total_earnings"`
	Failures      []Failure `json:"failures,omitempty"`
}

func (r *RunReport) record(result string) {
	switch result {
	case ResultProcessed:
		r.Processed++
	case ResultSkippedCampaignNotFound:
		r.SkippedCampaignNotFound++
	case ResultSkippedBudgetExhausted:
		r.SkippedBudgetExhausted++
	case ResultFailed:
		r.Failed++
	}
}
