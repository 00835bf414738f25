package policy

import (
	"strings"
	"testing"
)

func TestClassifyDefaultBanding(t *testing.T) {
	tests := []struct {
		confidence float64
		status     Status
		band       Band
		reason     string
	}{
		{96, StatusCompleted, BandNone, ""},
		{95, StatusCompleted, BandNone, ""},
		{80, StatusNeedsReview, BandMedium, "medium confidence"},
		{70, StatusNeedsReview, BandMedium, "medium confidence"},
		{50, StatusNeedsReview, BandLow, "low confidence"},
		{40, StatusNeedsReview, BandLow, "low confidence"},
		{10, StatusSkipped, BandNone, "no reliable match found"},
		{0, StatusSkipped, BandNone, "no reliable match found"},
	}

	for _, tt := range tests {
		d := Classify(tt.confidence, DefaultThresholds())
		if d.Status != tt.status {
			t.Errorf("Classify(%v) status = %s, want %s", tt.confidence, d.Status, tt.status)
		}
		if d.Band != tt.band {
			t.Errorf("Classify(%v) band = %q, want %q", tt.confidence, d.Band, tt.band)
		}
		if !strings.HasPrefix(d.Reason, tt.reason) {
			t.Errorf("Classify(%v) reason = %q, want prefix %q", tt.confidence, d.Reason, tt.reason)
		}
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	th := Thresholds{AutoApply: 80, Review: 60, Skip: 20}
	if got := Classify(85, th).Status; got != StatusCompleted {
		t.Errorf("expected completed at 85 with auto-apply 80, got %s", got)
	}
	if got := Classify(25, th).Band; got != BandLow {
		t.Errorf("expected low band at 25, got %q", got)
	}
	if got := Classify(19.9, th).Status; got != StatusSkipped {
		t.Errorf("expected skipped below 20, got %s", got)
	}
}

func TestReviewPriority(t *testing.T) {
	medium := Classify(80, DefaultThresholds())
	low := Classify(50, DefaultThresholds())
	if medium.Priority <= low.Priority {
		t.Errorf("medium band priority %d should exceed low band %d", medium.Priority, low.Priority)
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Errorf("default thresholds invalid: %v", err)
	}
	if err := (Thresholds{AutoApply: 60, Review: 70, Skip: 40}).Validate(); err == nil {
		t.Error("expected error for review above auto-apply")
	}
	if err := (Thresholds{AutoApply: 120, Review: 70, Skip: 40}).Validate(); err == nil {
		t.Error("expected error for threshold above 100")
	}
}
