package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// LessonFilter selects lessons in which any of UserIDs holds a role
// (proposer, confirmer or canceller), optionally restricted to lessons
// starting in [From, To).
type LessonFilter struct {
	UserIDs []string
	From    *time.Time
	To      *time.Time
}

// Matches applies the filter in memory.
func (f LessonFilter) Matches(l *domain.Lesson) bool {
	if f.From != nil && l.Start.Before(*f.From) {
		return false
	}
	if f.To != nil && !l.Start.Before(*f.To) {
		return false
	}
	for _, id := range f.UserIDs {
		if l.ProposedBy == id ||
			(l.ConfirmedBy != nil && *l.ConfirmedBy == id) ||
			(l.CancelledBy != nil && *l.CancelledBy == id) {
			return true
		}
	}
	return false
}

// LessonGuard inspects and mutates a freshly read lesson. Returning an error
// aborts the surrounding transaction without writing.
type LessonGuard func(*domain.Lesson) error

// LessonRepository encapsulates lesson persistence. Mutate and DeleteIf run
// the guard and the write atomically: two callers racing on the same lesson
// can never both succeed, and the loser sees ErrConflict or the guard's own
// error.
type LessonRepository interface {
	Create(ctx context.Context, lesson *domain.Lesson) error
	GetByID(ctx context.Context, id string) (*domain.Lesson, error)
	List(ctx context.Context, filter LessonFilter) ([]*domain.Lesson, error)
	Mutate(ctx context.Context, id string, guard LessonGuard) (*domain.Lesson, error)
	DeleteIf(ctx context.Context, id string, guard LessonGuard) (*domain.Lesson, error)
}

type lessonRepository struct {
	pool *pgxpool.Pool
}

// NewLessonRepository instantiates repository.
func NewLessonRepository(pool *pgxpool.Pool) LessonRepository {
	return &lessonRepository{pool: pool}
}

const selectLesson = `
        SELECT id, proposed_by, confirmed_by, cancelled_by, start_at, end_at, status,
            cancellation_reason, version, created_at, updated_at
        FROM lessons`

func (r *lessonRepository) Create(ctx context.Context, lesson *domain.Lesson) error {
	const query = `
        INSERT INTO lessons (id, proposed_by, confirmed_by, cancelled_by, start_at, end_at, status,
            cancellation_reason, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1,$9,$9)`
	if _, err := r.pool.Exec(ctx, query,
		lesson.ID,
		lesson.ProposedBy,
		lesson.ConfirmedBy,
		lesson.CancelledBy,
		lesson.Start,
		lesson.End,
		lesson.Status,
		lesson.CancellationReason,
		lesson.CreatedAt,
	); err != nil {
		return err
	}
	lesson.Version = 1
	lesson.UpdatedAt = lesson.CreatedAt
	return nil
}

func (r *lessonRepository) GetByID(ctx context.Context, id string) (*domain.Lesson, error) {
	lesson, err := scanLesson(r.pool.QueryRow(ctx, selectLesson+" WHERE id=$1", id))
	if err != nil {
		return nil, notFound("lesson", id, err)
	}
	return lesson, nil
}

func (r *lessonRepository) List(ctx context.Context, filter LessonFilter) ([]*domain.Lesson, error) {
	if len(filter.UserIDs) == 0 {
		return nil, nil
	}
	clauses := []string{"(proposed_by = ANY($1::uuid[]) OR confirmed_by = ANY($1::uuid[]) OR cancelled_by = ANY($1::uuid[]))"}
	args := []any{filter.UserIDs}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("start_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("start_at < $%d", len(args)))
	}
	query := selectLesson + " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY start_at ASC, id ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*domain.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, lesson)
	}
	return result, rows.Err()
}

func (r *lessonRepository) Mutate(ctx context.Context, id string, guard LessonGuard) (*domain.Lesson, error) {
	const update = `
        UPDATE lessons SET confirmed_by=$1, cancelled_by=$2, start_at=$3, end_at=$4, status=$5,
            cancellation_reason=$6, version=version+1, updated_at=$7
        WHERE id=$8 AND version=$9`

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lesson, err := scanLesson(tx.QueryRow(ctx, selectLesson+" WHERE id=$1 FOR UPDATE", id))
	if err != nil {
		return nil, notFound("lesson", id, err)
	}
	if err := guard(lesson); err != nil {
		return nil, err
	}
	cmd, err := tx.Exec(ctx, update,
		lesson.ConfirmedBy,
		lesson.CancelledBy,
		lesson.Start,
		lesson.End,
		lesson.Status,
		lesson.CancellationReason,
		lesson.UpdatedAt,
		lesson.ID,
		lesson.Version,
	)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, fmt.Errorf("lesson %s: %w", id, apperrors.ErrConflict)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	lesson.Version++
	return lesson, nil
}

func (r *lessonRepository) DeleteIf(ctx context.Context, id string, guard LessonGuard) (*domain.Lesson, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lesson, err := scanLesson(tx.QueryRow(ctx, selectLesson+" WHERE id=$1 FOR UPDATE", id))
	if err != nil {
		return nil, notFound("lesson", id, err)
	}
	if err := guard(lesson); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM lessons WHERE id=$1", id); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return lesson, nil
}

func scanLesson(row rowScanner) (*domain.Lesson, error) {
	var lesson domain.Lesson
	if err := row.Scan(
		&lesson.ID,
		&lesson.ProposedBy,
		&lesson.ConfirmedBy,
		&lesson.CancelledBy,
		&lesson.Start,
		&lesson.End,
		&lesson.Status,
		&lesson.CancellationReason,
		&lesson.Version,
		&lesson.CreatedAt,
		&lesson.UpdatedAt,
	); err != nil {
		return nil, err
	}
	lesson.Start, lesson.End = lesson.Start.UTC(), lesson.End.UTC()
	lesson.CreatedAt, lesson.UpdatedAt = lesson.CreatedAt.UTC(), lesson.UpdatedAt.UTC()
	return &lesson, nil
}
