// Package policy maps an aggregated confidence score onto a processing action.
package policy

import "fmt"

// Status is the lifecycle state of one album within a batch run
type Status string

const (
	StatusPending     Status = "pending"
	StatusCompleted   Status = "completed"
	StatusNeedsReview Status = "needs_review"
	StatusSkipped     Status = "skipped"
	StatusFailed      Status = "failed"
)

// Band distinguishes the two review reasons that share the NEEDS_REVIEW state
type Band string

const (
	BandNone   Band = ""
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// Thresholds are the configurable confidence bounds, all on a 0..100 scale
type Thresholds struct {
	AutoApply float64
	Review    float64
	Skip      float64
}

// DefaultThresholds returns the 95/70/40 banding
func DefaultThresholds() Thresholds {
	return Thresholds{AutoApply: 95, Review: 70, Skip: 40}
}

// Validate checks that thresholds are within range and ordered
func (t Thresholds) Validate() error {
	for name, v := range map[string]float64{"auto-apply": t.AutoApply, "review": t.Review, "skip": t.Skip} {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s threshold %.1f outside [0,100]", name, v)
		}
	}
	if !(t.Skip <= t.Review && t.Review <= t.AutoApply) {
		return fmt.Errorf("thresholds must satisfy skip (%.1f) <= review (%.1f) <= auto-apply (%.1f)",
			t.Skip, t.Review, t.AutoApply)
	}
	return nil
}

// Decision is the outcome of classifying one confidence value
type Decision struct {
	Status Status
	Band   Band
	Reason string
	// Priority orders the manual review queue; higher is reviewed first
	Priority int
}

// Classify maps confidence to an action using t
func Classify(confidence float64, t Thresholds) Decision {
	switch {
	case confidence >= t.AutoApply:
		return Decision{Status: StatusCompleted}
	case confidence >= t.Review:
		return Decision{
			Status:   StatusNeedsReview,
			Band:     BandMedium,
			Reason:   fmt.Sprintf("medium confidence (%.1f%%) - requires manual review", confidence),
			Priority: 2,
		}
	case confidence >= t.Skip:
		return Decision{
			Status:   StatusNeedsReview,
			Band:     BandLow,
			Reason:   fmt.Sprintf("low confidence (%.1f%%) - uncertain match", confidence),
			Priority: 1,
		}
	default:
		return Decision{
			Status: StatusSkipped,
			Reason: fmt.Sprintf("no reliable match found (%.1f%%)", confidence),
		}
	}
}
