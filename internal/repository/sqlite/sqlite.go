// Package sqlite implements the repositories on an embedded SQLite database
// (modernc.org/sqlite). Instants are stored as UTC microseconds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/repository"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	return time.UnixMicro(v).UTC()
}

func notFound(kind, key string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, key, apperrors.ErrNotFound)
	}
	return err
}

func isConstraint(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}

// Users implements repository.UserRepository.
type Users struct {
	db *sql.DB
}

// NewUserRepository wraps db.
func NewUserRepository(db *sql.DB) *Users {
	return &Users{db: db}
}

var _ repository.UserRepository = (*Users)(nil)

const selectUser = `SELECT id, name, email, password_hash, timezone, partner_id, notification_handle, created_at, updated_at FROM users`

func (r *Users) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO users (id, name, email, password_hash, timezone, partner_id, notification_handle, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, NULL, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Timezone,
		user.NotificationHandle, toMicros(user.CreatedAt), toMicros(user.CreatedAt))
	if isConstraint(err) {
		return fmt.Errorf("user email %s: %w", user.Email, apperrors.ErrConflict)
	}
	if err != nil {
		return err
	}
	user.UpdatedAt = user.CreatedAt
	return nil
}

func (r *Users) Update(ctx context.Context, user *domain.User) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE users SET name = ?, timezone = ?, notification_handle = ?, updated_at = ? WHERE id = ?`,
		user.Name, user.Timezone, user.NotificationHandle, toMicros(user.UpdatedAt), user.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", user.ID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *Users) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, selectUser+" WHERE id = ?", id))
	if err != nil {
		return nil, notFound("user", id, err)
	}
	return user, nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, selectUser+" WHERE email = ?", email))
	if err != nil {
		return nil, notFound("user", email, err)
	}
	return user, nil
}

func (r *Users) Pair(ctx context.Context, a, b string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer rollback(tx)

	res, err := tx.ExecContext(ctx, `
        UPDATE users SET partner_id = CASE WHEN id = ? THEN ? ELSE ? END, updated_at = ?
        WHERE id IN (?, ?) AND (partner_id IS NULL OR partner_id IN (?, ?))`,
		a, b, a, toMicros(time.Now()), a, b, a, b)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n != 2 {
		return fmt.Errorf("pair %s with %s: %w", a, b, apperrors.ErrConflict)
	}
	return tx.Commit()
}

func (r *Users) Unpair(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
        UPDATE users SET partner_id = NULL, updated_at = ? WHERE id = ? OR partner_id = ?`,
		toMicros(time.Now()), id, id)
	return err
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		user             domain.User
		created, updated int64
		partner, handle  sql.NullString
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Timezone,
		&partner, &handle, &created, &updated); err != nil {
		return nil, err
	}
	if partner.Valid {
		user.PartnerID = &partner.String
	}
	if handle.Valid {
		user.NotificationHandle = &handle.String
	}
	user.CreatedAt, user.UpdatedAt = fromMicros(created), fromMicros(updated)
	return &user, nil
}

// Lessons implements repository.LessonRepository with optimistic version
// checks inside a transaction.
type Lessons struct {
	db *sql.DB
}

// NewLessonRepository wraps db.
func NewLessonRepository(db *sql.DB) *Lessons {
	return &Lessons{db: db}
}

var _ repository.LessonRepository = (*Lessons)(nil)

const selectLesson = `SELECT id, proposed_by, confirmed_by, cancelled_by, start_at, end_at, status, cancellation_reason, version, created_at, updated_at FROM lessons`

func (r *Lessons) Create(ctx context.Context, l *domain.Lesson) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO lessons (id, proposed_by, confirmed_by, cancelled_by, start_at, end_at, status,
            cancellation_reason, version, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		l.ID, l.ProposedBy, l.ConfirmedBy, l.CancelledBy, toMicros(l.Start), toMicros(l.End),
		string(l.Status), l.CancellationReason, toMicros(l.CreatedAt), toMicros(l.CreatedAt))
	if isConstraint(err) {
		return fmt.Errorf("lesson %s: %w", l.ID, apperrors.ErrConflict)
	}
	if err != nil {
		return err
	}
	l.Version = 1
	l.UpdatedAt = l.CreatedAt
	return nil
}

func (r *Lessons) GetByID(ctx context.Context, id string) (*domain.Lesson, error) {
	l, err := scanLesson(r.db.QueryRowContext(ctx, selectLesson+" WHERE id = ?", id))
	if err != nil {
		return nil, notFound("lesson", id, err)
	}
	return l, nil
}

func (r *Lessons) List(ctx context.Context, filter repository.LessonFilter) ([]*domain.Lesson, error) {
	if len(filter.UserIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.UserIDs)), ",")
	clauses := []string{fmt.Sprintf("(proposed_by IN (%[1]s) OR confirmed_by IN (%[1]s) OR cancelled_by IN (%[1]s))", placeholders)}
	var args []any
	for i := 0; i < 3; i++ {
		for _, id := range filter.UserIDs {
			args = append(args, id)
		}
	}
	if filter.From != nil {
		clauses = append(clauses, "start_at >= ?")
		args = append(args, toMicros(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "start_at < ?")
		args = append(args, toMicros(*filter.To))
	}
	query := selectLesson + " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY start_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Lessons) Mutate(ctx context.Context, id string, guard repository.LessonGuard) (*domain.Lesson, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer rollback(tx)

	l, err := scanLesson(tx.QueryRowContext(ctx, selectLesson+" WHERE id = ?", id))
	if err != nil {
		return nil, notFound("lesson", id, err)
	}
	if err := guard(l); err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, `
        UPDATE lessons SET confirmed_by = ?, cancelled_by = ?, start_at = ?, end_at = ?, status = ?,
            cancellation_reason = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND version = ?`,
		l.ConfirmedBy, l.CancelledBy, toMicros(l.Start), toMicros(l.End), string(l.Status),
		l.CancellationReason, toMicros(l.UpdatedAt), l.ID, l.Version)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("lesson %s: %w", id, apperrors.ErrConflict)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	l.Version++
	return l, nil
}

func (r *Lessons) DeleteIf(ctx context.Context, id string, guard repository.LessonGuard) (*domain.Lesson, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer rollback(tx)

	l, err := scanLesson(tx.QueryRowContext(ctx, selectLesson+" WHERE id = ?", id))
	if err != nil {
		return nil, notFound("lesson", id, err)
	}
	if err := guard(l); err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM lessons WHERE id = ? AND version = ?", id, l.Version)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("lesson %s: %w", id, apperrors.ErrConflict)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return l, nil
}

func scanLesson(row rowScanner) (*domain.Lesson, error) {
	var (
		l                                domain.Lesson
		confirmedBy, cancelledBy, reason sql.NullString
		status                           string
		start, end, created, updated     int64
	)
	if err := row.Scan(&l.ID, &l.ProposedBy, &confirmedBy, &cancelledBy, &start, &end, &status,
		&reason, &l.Version, &created, &updated); err != nil {
		return nil, err
	}
	l.Status = domain.LessonStatus(status)
	if confirmedBy.Valid {
		l.ConfirmedBy = &confirmedBy.String
	}
	if cancelledBy.Valid {
		l.CancelledBy = &cancelledBy.String
	}
	if reason.Valid {
		l.CancellationReason = &reason.String
	}
	l.Start, l.End = fromMicros(start), fromMicros(end)
	l.CreatedAt, l.UpdatedAt = fromMicros(created), fromMicros(updated)
	return &l, nil
}

// Rules implements repository.UnavailabilityRepository.
type Rules struct {
	db *sql.DB
}

// NewUnavailabilityRepository wraps db.
func NewUnavailabilityRepository(db *sql.DB) *Rules {
	return &Rules{db: db}
}

var _ repository.UnavailabilityRepository = (*Rules)(nil)

const selectRule = `SELECT id, user_id, start_at, end_at, is_all_day, recurrence_type, days_of_week, timezone, version, created_at, updated_at FROM unavailability_rules`

func (r *Rules) Create(ctx context.Context, rule *domain.UnavailabilityRule) error {
	kind, days := domain.EncodeRecurrence(rule.Recurrence)
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO unavailability_rules (id, user_id, start_at, end_at, is_all_day, recurrence_type,
            days_of_week, timezone, version, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		rule.ID, rule.UserID, toMicros(rule.Start), toMicros(rule.End), rule.IsAllDay, kind,
		joinDays(days), rule.Timezone, toMicros(rule.CreatedAt), toMicros(rule.CreatedAt))
	if isConstraint(err) {
		return fmt.Errorf("unavailability rule %s: %w", rule.ID, apperrors.ErrConflict)
	}
	if err != nil {
		return err
	}
	rule.Version = 1
	rule.UpdatedAt = rule.CreatedAt
	return nil
}

func (r *Rules) Update(ctx context.Context, rule *domain.UnavailabilityRule) error {
	kind, days := domain.EncodeRecurrence(rule.Recurrence)
	res, err := r.db.ExecContext(ctx, `
        UPDATE unavailability_rules SET start_at = ?, end_at = ?, is_all_day = ?, recurrence_type = ?,
            days_of_week = ?, timezone = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND version = ?`,
		toMicros(rule.Start), toMicros(rule.End), rule.IsAllDay, kind, joinDays(days), rule.Timezone,
		toMicros(rule.UpdatedAt), rule.ID, rule.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unavailability rule %s: %w", rule.ID, apperrors.ErrConflict)
	}
	rule.Version++
	return nil
}

func (r *Rules) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM unavailability_rules WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unavailability rule %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func (r *Rules) GetByID(ctx context.Context, id string) (*domain.UnavailabilityRule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, selectRule+" WHERE id = ?", id))
	if err != nil {
		return nil, notFound("unavailability rule", id, err)
	}
	return rule, nil
}

func (r *Rules) ListByUser(ctx context.Context, userID string) ([]*domain.UnavailabilityRule, error) {
	rows, err := r.db.QueryContext(ctx, selectRule+" WHERE user_id = ? ORDER BY start_at ASC, id ASC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.UnavailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func scanRule(row rowScanner) (*domain.UnavailabilityRule, error) {
	var (
		rule                         domain.UnavailabilityRule
		kind, days                   string
		start, end, created, updated int64
	)
	if err := row.Scan(&rule.ID, &rule.UserID, &start, &end, &rule.IsAllDay, &kind, &days,
		&rule.Timezone, &rule.Version, &created, &updated); err != nil {
		return nil, err
	}
	parsedDays, err := splitDays(days)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	rec, err := domain.ParseRecurrence(kind, parsedDays)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	rule.Recurrence = rec
	rule.Start, rule.End = fromMicros(start), fromMicros(end)
	rule.CreatedAt, rule.UpdatedAt = fromMicros(created), fromMicros(updated)
	return &rule, nil
}

func joinDays(days []int) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ",")
}

func splitDays(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		d, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("days_of_week %q: %w", s, err)
		}
		out[i] = d
	}
	return out, nil
}
