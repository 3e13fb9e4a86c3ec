package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// ApprovalRepository manages approval workflow steps.
//
// Approve and Reject resolve the pending step for (ticket, role) and apply the
// resulting ticket transition inside one transaction. The ticket row is locked
// FOR UPDATE first: at READ COMMITTED two concurrent final approvals would
// otherwise each count the other's step as still pending and neither would
// open the ticket. The lock serializes them, so the second count sees the
// first's committed write.
type ApprovalRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ApprovalStep, error)
	// Approve marks the step approved and reports whether that completed the
	// workflow (every step approved), in which case the ticket has been moved
	// to open. Returns pgx.ErrNoRows when no pending step matches the role.
	Approve(ctx context.Context, ticketID string, role domain.Role, approverID, notes string) (*domain.ApprovalStep, bool, error)
	// Reject marks the step rejected and moves the ticket to rejected with
	// closed_at stamped, regardless of other steps.
	Reject(ctx context.Context, ticketID string, role domain.Role, approverID, notes string) (*domain.ApprovalStep, error)
}

type approvalRepository struct {
	pool *pgxpool.Pool
}

// NewApprovalRepository instantiates repository.
func NewApprovalRepository(pool *pgxpool.Pool) ApprovalRepository {
	return &approvalRepository{pool: pool}
}

func (r *approvalRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ApprovalStep, error) {
	const query = `
        SELECT id, ticket_id, workflow_level, approver_role, status,
               approver_id, notes, responded_at, created_at
        FROM approval_workflows WHERE ticket_id=$1 ORDER BY workflow_level ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ApprovalStep
	for rows.Next() {
		var step domain.ApprovalStep
		if err := scanApprovalStep(rows, &step); err != nil {
			return nil, err
		}
		result = append(result, step)
	}
	return result, rows.Err()
}

func (r *approvalRepository) Approve(ctx context.Context, ticketID string, role domain.Role, approverID, notes string) (*domain.ApprovalStep, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockTicket(ctx, tx, ticketID); err != nil {
		return nil, false, err
	}

	step, err := resolveStep(ctx, tx, ticketID, role, domain.ApprovalApproved, approverID, notes)
	if err != nil {
		return nil, false, err
	}

	var remaining int
	const pendingCount = `
        SELECT COUNT(*) FROM approval_workflows
        WHERE ticket_id=$1 AND status <> 'approved'`
	if err := tx.QueryRow(ctx, pendingCount, ticketID).Scan(&remaining); err != nil {
		return nil, false, err
	}

	allApproved := remaining == 0
	if allApproved {
		const openTicket = `
            UPDATE tickets SET status='open', updated_at=NOW()
            WHERE id=$1 AND status='pending_approval'`
		if _, err := tx.Exec(ctx, openTicket, ticketID); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return step, allApproved, nil
}

func (r *approvalRepository) Reject(ctx context.Context, ticketID string, role domain.Role, approverID, notes string) (*domain.ApprovalStep, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockTicket(ctx, tx, ticketID); err != nil {
		return nil, err
	}

	step, err := resolveStep(ctx, tx, ticketID, role, domain.ApprovalRejected, approverID, notes)
	if err != nil {
		return nil, err
	}

	const closeTicket = `
        UPDATE tickets SET status='rejected', closed_at=NOW(), updated_at=NOW()
        WHERE id=$1`
	if _, err := tx.Exec(ctx, closeTicket, ticketID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return step, nil
}

// lockTicket serializes concurrent resolutions of the same ticket's workflow.
func lockTicket(ctx context.Context, tx pgx.Tx, ticketID string) error {
	var id string
	return tx.QueryRow(ctx, `SELECT id FROM tickets WHERE id=$1 FOR UPDATE`, ticketID).Scan(&id)
}

func resolveStep(ctx context.Context, tx pgx.Tx, ticketID string, role domain.Role, status domain.ApprovalStatus, approverID, notes string) (*domain.ApprovalStep, error) {
	const query = `
        UPDATE approval_workflows
        SET status=$1, approver_id=$2, notes=$3, responded_at=NOW()
        WHERE ticket_id=$4 AND approver_role=$5 AND status='pending'
        RETURNING id, ticket_id, workflow_level, approver_role, status,
                  approver_id, notes, responded_at, created_at`
	var step domain.ApprovalStep
	if err := scanApprovalStep(tx.QueryRow(ctx, query, status, approverID, notes, ticketID, role), &step); err != nil {
		return nil, err
	}
	return &step, nil
}

func scanApprovalStep(row pgx.Row, step *domain.ApprovalStep) error {
	return row.Scan(
		&step.ID,
		&step.TicketID,
		&step.WorkflowLevel,
		&step.ApproverRole,
		&step.Status,
		&step.ApproverID,
		&step.Notes,
		&step.RespondedAt,
		&step.CreatedAt,
	)
}
