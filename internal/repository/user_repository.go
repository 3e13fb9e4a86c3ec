package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/servicedesk/internal/domain"
)

// UserRepository reads principals for auth and notification recipient lookup.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// ListHelpdesk returns active helpdesk and admin users, the broadcast
	// audience for new-ticket notifications.
	ListHelpdesk(ctx context.Context) ([]domain.User, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates repository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
        SELECT id, username, full_name, email, phone, role, opd_id, is_active, created_at
        FROM users WHERE id=$1`
	var user domain.User
	if err := scanUser(r.pool.QueryRow(ctx, query, id), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListHelpdesk(ctx context.Context) ([]domain.User, error) {
	const query = `
        SELECT id, username, full_name, email, phone, role, opd_id, is_active, created_at
        FROM users WHERE role IN ('helpdesk','admin_kota') AND is_active=TRUE`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := scanUser(rows, &user); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}

func scanUser(row pgx.Row, user *domain.User) error {
	return row.Scan(
		&user.ID,
		&user.Username,
		&user.FullName,
		&user.Email,
		&user.Phone,
		&user.Role,
		&user.OPDID,
		&user.IsActive,
		&user.CreatedAt,
	)
}
