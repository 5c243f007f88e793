package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// UserRepository defines persistence access for users and their pairing.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Pair links a and b to each other. It fails with ErrConflict when either
	// is already paired with someone else.
	Pair(ctx context.Context, a, b string) error
	// Unpair clears the pairing on both sides.
	Unpair(ctx context.Context, id string) error
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const selectUser = `
        SELECT id, name, email, password_hash, timezone, partner_id, notification_handle, created_at, updated_at
        FROM users`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, name, email, password_hash, timezone, notification_handle)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Timezone,
		user.NotificationHandle,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("user email %s: %w", user.Email, apperrors.ErrConflict)
	}
	user.CreatedAt, user.UpdatedAt = user.CreatedAt.UTC(), user.UpdatedAt.UTC()
	return err
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET name=$1, timezone=$2, notification_handle=$3, updated_at=NOW()
        WHERE id=$4
        RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Name,
		user.Timezone,
		user.NotificationHandle,
		user.ID,
	).Scan(&user.UpdatedAt)
	if err != nil {
		return notFound("user", user.ID, err)
	}
	user.UpdatedAt = user.UpdatedAt.UTC()
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, selectUser+" WHERE id=$1", id))
	if err != nil {
		return nil, notFound("user", id, err)
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, selectUser+" WHERE email=$1", email))
	if err != nil {
		return nil, notFound("user", email, err)
	}
	return user, nil
}

func (r *userRepository) Pair(ctx context.Context, a, b string) error {
	const query = `
        UPDATE users
        SET partner_id = CASE WHEN id = $1 THEN $2::uuid ELSE $1::uuid END, updated_at = NOW()
        WHERE id IN ($1, $2) AND (partner_id IS NULL OR partner_id IN ($1, $2))`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cmd, err := tx.Exec(ctx, query, a, b)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() != 2 {
		return fmt.Errorf("pair %s with %s: %w", a, b, apperrors.ErrConflict)
	}
	return tx.Commit(ctx)
}

func (r *userRepository) Unpair(ctx context.Context, id string) error {
	const query = `
        UPDATE users SET partner_id = NULL, updated_at = NOW()
        WHERE id = $1 OR partner_id = $1`

	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Timezone,
		&user.PartnerID,
		&user.NotificationHandle,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.CreatedAt, user.UpdatedAt = user.CreatedAt.UTC(), user.UpdatedAt.UTC()
	return &user, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// notFound rewrites a missing row into ErrNotFound and passes other
// failures through. A key that is not a valid uuid cannot name a row, so
// Postgres' invalid_text_representation counts as missing too.
func notFound(kind, key string, err error) error {
	var pgErr *pgconn.PgError
	if errors.Is(err, pgx.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == "22P02") {
		return fmt.Errorf("%s %s: %w", kind, key, apperrors.ErrNotFound)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
