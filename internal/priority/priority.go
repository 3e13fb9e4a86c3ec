// Package priority computes ticket priority from urgency and impact.
package priority

import "github.com/spec-kit/servicedesk/internal/domain"

// Compute returns the priority score and banded category for the given
// urgency and impact. Inputs are expected in [1,5] but are not validated;
// out-of-range values still produce a score and fall into the major band.
func Compute(urgency, impact int) (int, domain.PriorityCategory) {
	score := urgency * impact
	switch {
	case score >= 1 && score <= 5:
		return score, domain.PriorityLow
	case score >= 6 && score <= 10:
		return score, domain.PriorityMedium
	case score >= 11 && score <= 15:
		return score, domain.PriorityHigh
	default:
		return score, domain.PriorityMajor
	}
}
