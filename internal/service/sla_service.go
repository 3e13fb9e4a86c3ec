package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
)

// SLAResult carries the computed due time. All fields are nil when no policy
// is configured for the (opd, priority) pair.
type SLAResult struct {
	Due        *time.Time
	TargetDate *string
	TargetTime *string
}

// SLAService computes advisory resolution deadlines from per-OPD policy rows.
type SLAService struct {
	policies repository.SLARepository
	logger   *zap.Logger
}

// NewSLAService constructs the service.
func NewSLAService(policies repository.SLARepository, logger *zap.Logger) *SLAService {
	return &SLAService{policies: policies, logger: logger}
}

// Due resolves the SLA deadline for a ticket starting at start. A missing
// policy row or a lookup failure yields an all-nil result; SLA is advisory and
// never blocks ticket creation. The arithmetic is flat hours, not
// business-hours-aware.
func (s *SLAService) Due(ctx context.Context, priority domain.PriorityCategory, opdID string, start time.Time) SLAResult {
	policy, err := s.policies.GetPolicy(ctx, opdID, priority)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("no SLA policy configured; defaulting to null",
				zap.String("opd_id", opdID),
				zap.String("priority", string(priority)))
		} else {
			s.logger.Error("SLA policy lookup failed; defaulting to null",
				zap.String("opd_id", opdID),
				zap.String("priority", string(priority)),
				zap.Error(err))
		}
		return SLAResult{}
	}
	if policy.ResolutionTime <= 0 {
		s.logger.Warn("SLA policy has no resolution time; defaulting to null",
			zap.String("opd_id", opdID),
			zap.String("priority", string(priority)))
		return SLAResult{}
	}

	due := start.Add(time.Duration(policy.ResolutionTime) * time.Hour)
	targetDate := due.Format("2006-01-02")
	targetTime := due.Format("15:04:05")
	return SLAResult{Due: &due, TargetDate: &targetDate, TargetTime: &targetTime}
}
