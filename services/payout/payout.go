package payout

import (
	"fmt"
	"sort"

	"ugc-marketplace/pkg/errutil"
)

// Tier pays PayoutAmount (cents) once an application's cumulative views reach
// ViewThreshold. Tiers are not additive.
type Tier struct {
	ViewThreshold int64 `json:"view_threshold"`
	PayoutAmount  int64 `json:"payout_amount"`
}

// ComputeEarnings returns the payout of the highest tier whose threshold is at
// or below totalViews, or 0 when no tier is reached. Tier order in the slice
// does not matter.
func ComputeEarnings(tiers []Tier, totalViews int64) int64 {
	var (
		best    int64
		reached bool
		top     int64
	)
	for _, t := range tiers {
		if t.ViewThreshold > totalViews {
			continue
		}
		if !reached || t.ViewThreshold >= top {
			top = t.ViewThreshold
			best = t.PayoutAmount
			reached = true
		}
	}
	return best
}

// ValidateTiers rejects tier lists that are not strictly ascending by
// threshold or that carry negative values.
func ValidateTiers(tiers []Tier) error {
	var details []errutil.Detail
	for i, t := range tiers {
		if t.ViewThreshold < 0 {
			details = append(details, errutil.Detail{Field: fmt.Sprintf("payout_tiers[%d].view_threshold", i), Message: "must be non-negative"})
		}
		if t.PayoutAmount < 0 {
			details = append(details, errutil.Detail{Field: fmt.Sprintf("payout_tiers[%d].payout_amount", i), Message: "must be non-negative"})
		}
		if i > 0 && t.ViewThreshold <= tiers[i-1].ViewThreshold {
			details = append(details, errutil.Detail{Field: fmt.Sprintf("payout_tiers[%d].view_threshold", i), Message: "must be greater than the previous tier"})
		}
	}
	if len(details) > 0 {
		return errutil.ValidationFailed("invalid payout tiers", nil, errutil.WithDetails(details...))
	}
	return nil
}

// Sorted returns a copy of tiers ordered by ascending threshold.
func Sorted(tiers []Tier) []Tier {
	out := append([]Tier(nil), tiers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ViewThreshold < out[j].ViewThreshold })
	return out
}
