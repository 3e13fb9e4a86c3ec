package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Types       []domain.TicketType
	Statuses    []domain.TicketStatus
	Priorities  []domain.PriorityCategory
	OPDID       *string
	ReporterID  *string
	AssignedTo  *string
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// CreateWithApprovalSteps inserts the ticket and its approval steps in a
	// single transaction so a pending_approval ticket can never exist without
	// its full step set.
	CreateWithApprovalSteps(ctx context.Context, ticket *domain.Ticket, levels []domain.Role) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, ticket_number, type, title, description, urgency, impact,
       priority_score, priority, status, verification_status, opd_id,
       service_item_id, service_detail, reporter_id, reporter_name,
       reporter_email, reporter_phone, assigned_to, sla_due, sla_target_date,
       sla_target_time, created_at, updated_at, resolved_at, closed_at`

const ticketInsert = `
        INSERT INTO tickets (ticket_number, type, title, description, urgency, impact,
            priority_score, priority, status, verification_status, opd_id,
            service_item_id, service_detail, reporter_id, reporter_name,
            reporter_email, reporter_phone, sla_due, sla_target_date, sla_target_time)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
        RETURNING id, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.pool.QueryRow(ctx, ticketInsert, ticketInsertArgs(ticket)...).
		Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) CreateWithApprovalSteps(ctx context.Context, ticket *domain.Ticket, levels []domain.Role) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.QueryRow(ctx, ticketInsert, ticketInsertArgs(ticket)...).
		Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}

	const stepInsert = `
        INSERT INTO approval_workflows (ticket_id, workflow_level, approver_role, status)
        VALUES ($1,$2,$3,'pending')`
	for i, role := range levels {
		if _, err := tx.Exec(ctx, stepInsert, ticket.ID, i+1, role); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func ticketInsertArgs(ticket *domain.Ticket) []any {
	return []any{
		ticket.TicketNumber,
		ticket.Type,
		ticket.Title,
		ticket.Description,
		ticket.Urgency,
		ticket.Impact,
		ticket.PriorityScore,
		ticket.Priority,
		ticket.Status,
		ticket.VerificationStatus,
		ticket.OPDID,
		ticket.ServiceItemID,
		ticket.ServiceDetail,
		ticket.ReporterID,
		ticket.ReporterName,
		ticket.ReporterEmail,
		ticket.ReporterPhone,
		ticket.SLADue,
		ticket.SLATargetDate,
		ticket.SLATargetTime,
	}
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, description=$2, urgency=$3, impact=$4,
            priority_score=$5, priority=$6, status=$7, verification_status=$8,
            assigned_to=$9, sla_due=$10, sla_target_date=$11, sla_target_time=$12,
            resolved_at=$13, closed_at=$14, updated_at=NOW()
        WHERE id=$15`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Urgency,
		ticket.Impact,
		ticket.PriorityScore,
		ticket.Priority,
		ticket.Status,
		ticket.VerificationStatus,
		ticket.AssignedTo,
		ticket.SLADue,
		ticket.SLATargetDate,
		ticket.SLATargetTime,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE ticket_number=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, number)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Types) > 0 {
		clauses = append(clauses, inClause("type", filter.Types, &args))
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, inClause("status", filter.Statuses, &args))
	}
	if len(filter.Priorities) > 0 {
		clauses = append(clauses, inClause("priority", filter.Priorities, &args))
	}
	if filter.OPDID != nil {
		args = append(args, *filter.OPDID)
		clauses = append(clauses, fmt.Sprintf("opd_id=$%d", len(args)))
	}
	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s OR LOWER(ticket_number) LIKE %s)", placeholder, placeholder, placeholder))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func inClause[T ~string](column string, values []T, args *[]any) string {
	placeholders := make([]string, len(values))
	for i, v := range values {
		*args = append(*args, v)
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.TicketNumber,
		&ticket.Type,
		&ticket.Title,
		&ticket.Description,
		&ticket.Urgency,
		&ticket.Impact,
		&ticket.PriorityScore,
		&ticket.Priority,
		&ticket.Status,
		&ticket.VerificationStatus,
		&ticket.OPDID,
		&ticket.ServiceItemID,
		&ticket.ServiceDetail,
		&ticket.ReporterID,
		&ticket.ReporterName,
		&ticket.ReporterEmail,
		&ticket.ReporterPhone,
		&ticket.AssignedTo,
		&ticket.SLADue,
		&ticket.SLATargetDate,
		&ticket.SLATargetTime,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
