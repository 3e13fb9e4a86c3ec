package priority

import (
	"testing"

	"github.com/spec-kit/servicedesk/internal/domain"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		urgency, impact int
		score           int
		category        domain.PriorityCategory
	}{
		{1, 1, 1, domain.PriorityLow},
		{1, 5, 5, domain.PriorityLow},
		{2, 3, 6, domain.PriorityMedium},
		{3, 3, 9, domain.PriorityMedium},
		{2, 5, 10, domain.PriorityMedium},
		{3, 4, 12, domain.PriorityHigh},
		{5, 3, 15, domain.PriorityHigh},
		{4, 4, 16, domain.PriorityMajor},
		{5, 5, 25, domain.PriorityMajor},
	}
	for _, tc := range cases {
		score, category := Compute(tc.urgency, tc.impact)
		if score != tc.score || category != tc.category {
			t.Errorf("Compute(%d,%d) = (%d,%s), want (%d,%s)",
				tc.urgency, tc.impact, score, category, tc.score, tc.category)
		}
	}
}

func TestComputeFullGrid(t *testing.T) {
	for urgency := 1; urgency <= 5; urgency++ {
		for impact := 1; impact <= 5; impact++ {
			score, category := Compute(urgency, impact)
			if score != urgency*impact {
				t.Fatalf("Compute(%d,%d) score = %d", urgency, impact, score)
			}
			var want domain.PriorityCategory
			switch {
			case score <= 5:
				want = domain.PriorityLow
			case score <= 10:
				want = domain.PriorityMedium
			case score <= 15:
				want = domain.PriorityHigh
			default:
				want = domain.PriorityMajor
			}
			if category != want {
				t.Fatalf("Compute(%d,%d) category = %s, want %s", urgency, impact, category, want)
			}
		}
	}
}

func TestComputeOutOfRange(t *testing.T) {
	// Out-of-range inputs are not rejected; zero falls outside every banded
	// range and lands in the major bucket.
	if _, category := Compute(0, 0); category != domain.PriorityMajor {
		t.Errorf("Compute(0,0) category = %s, want major", category)
	}
	if score, category := Compute(6, 6); score != 36 || category != domain.PriorityMajor {
		t.Errorf("Compute(6,6) = (%d,%s), want (36,major)", score, category)
	}
}
