package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/infrastructure/resilience"
)

type UserRepository struct {
	db       *sql.DB
	executor *resilience.Executor
}

func NewUserRepository(db *sql.DB, executor *resilience.Executor) *UserRepository {
	return &UserRepository{db: db, executor: executor}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "get user", `SELECT id, username, full_name, role, created_at FROM users WHERE id = $1`, id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "find user", `SELECT id, username, full_name, role, created_at FROM users WHERE lower(username) = lower($1)`, username)
}

func (r *UserRepository) getOne(ctx context.Context, operation, query, key string) (*domain.User, error) {
	user, err := resilience.Query(ctx, r.executor, "postgres.user.get", func(ctx context.Context) (*domain.User, error) {
		user, err := scanUser(r.db.QueryRowContext(ctx, query, key))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(operation, key)
		}
		return user, err
	}, classifyPostgresError)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, resilience.WrapTemporary(operation, fmt.Errorf("%s: %w", operation, err), classifyPostgresError)
	}
	return user, nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	users, err := resilience.Query(ctx, r.executor, "postgres.user.list", func(ctx context.Context) ([]domain.User, error) {
		rows, err := r.db.QueryContext(ctx, `
SELECT id, username, full_name, role, created_at FROM users WHERE role = $1 ORDER BY username
`, string(role))
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		out := make([]domain.User, 0)
		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				return nil, err
			}
			out = append(out, *user)
		}
		return out, rows.Err()
	}, classifyPostgresError)
	if err != nil {
		return nil, resilience.WrapTemporary("list users", fmt.Errorf("list users: %w", err), classifyPostgresError)
	}
	return users, nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, username, full_name, role, created_at) VALUES ($1,$2,$3,$4,$5)
`, user.ID, user.Username, user.FullName, string(user.Role), user.CreatedAt)
	if err != nil {
		return mapWriteError("insert user", err)
	}
	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var role string
	if err := row.Scan(&user.ID, &user.Username, &user.FullName, &role, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.Role = domain.Role(role)
	return &user, nil
}
