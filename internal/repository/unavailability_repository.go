package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// UnavailabilityRepository stores unavailability rules. Update is
// conditional on the rule's Version and fails with ErrConflict when the
// stored row has moved on.
type UnavailabilityRepository interface {
	Create(ctx context.Context, rule *domain.UnavailabilityRule) error
	Update(ctx context.Context, rule *domain.UnavailabilityRule) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.UnavailabilityRule, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.UnavailabilityRule, error)
}

type unavailabilityRepository struct {
	pool *pgxpool.Pool
}

// NewUnavailabilityRepository builds repository.
func NewUnavailabilityRepository(pool *pgxpool.Pool) UnavailabilityRepository {
	return &unavailabilityRepository{pool: pool}
}

const selectRule = `
        SELECT id, user_id, start_at, end_at, is_all_day, recurrence_type, days_of_week, timezone,
            version, created_at, updated_at
        FROM unavailability_rules`

func (r *unavailabilityRepository) Create(ctx context.Context, rule *domain.UnavailabilityRule) error {
	const query = `
        INSERT INTO unavailability_rules (id, user_id, start_at, end_at, is_all_day, recurrence_type,
            days_of_week, timezone, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1,$9,$9)`
	kind, days := domain.EncodeRecurrence(rule.Recurrence)
	if _, err := r.pool.Exec(ctx, query,
		rule.ID,
		rule.UserID,
		rule.Start,
		rule.End,
		rule.IsAllDay,
		kind,
		toInt32s(days),
		rule.Timezone,
		rule.CreatedAt,
	); err != nil {
		return err
	}
	rule.Version = 1
	rule.UpdatedAt = rule.CreatedAt
	return nil
}

func (r *unavailabilityRepository) Update(ctx context.Context, rule *domain.UnavailabilityRule) error {
	const query = `
        UPDATE unavailability_rules SET start_at=$1, end_at=$2, is_all_day=$3, recurrence_type=$4,
            days_of_week=$5, timezone=$6, version=version+1, updated_at=$7
        WHERE id=$8 AND version=$9`
	kind, days := domain.EncodeRecurrence(rule.Recurrence)
	cmd, err := r.pool.Exec(ctx, query,
		rule.Start,
		rule.End,
		rule.IsAllDay,
		kind,
		toInt32s(days),
		rule.Timezone,
		rule.UpdatedAt,
		rule.ID,
		rule.Version,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("unavailability rule %s: %w", rule.ID, apperrors.ErrConflict)
	}
	rule.Version++
	return nil
}

func (r *unavailabilityRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, "DELETE FROM unavailability_rules WHERE id=$1", id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("unavailability rule %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *unavailabilityRepository) GetByID(ctx context.Context, id string) (*domain.UnavailabilityRule, error) {
	rule, err := scanRule(r.pool.QueryRow(ctx, selectRule+" WHERE id=$1", id))
	if err != nil {
		return nil, notFound("unavailability rule", id, err)
	}
	return rule, nil
}

func (r *unavailabilityRepository) ListByUser(ctx context.Context, userID string) ([]*domain.UnavailabilityRule, error) {
	rows, err := r.pool.Query(ctx, selectRule+" WHERE user_id=$1 ORDER BY start_at ASC, id ASC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.UnavailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}

func scanRule(row rowScanner) (*domain.UnavailabilityRule, error) {
	var (
		rule domain.UnavailabilityRule
		kind string
		days []int32
	)
	if err := row.Scan(
		&rule.ID,
		&rule.UserID,
		&rule.Start,
		&rule.End,
		&rule.IsAllDay,
		&kind,
		&days,
		&rule.Timezone,
		&rule.Version,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec, err := domain.ParseRecurrence(kind, fromInt32s(days))
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	rule.Recurrence = rec
	rule.Start, rule.End = rule.Start.UTC(), rule.End.UTC()
	rule.CreatedAt, rule.UpdatedAt = rule.CreatedAt.UTC(), rule.UpdatedAt.UTC()
	return &rule, nil
}

func toInt32s(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}

func fromInt32s(in []int32) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
