package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

func TestNotFound(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		missing bool
	}{
		{"no rows", pgx.ErrNoRows, true},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), true},
		{"malformed uuid", &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"connection refused", errors.New("dial tcp: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := notFound("lesson", "abc", tt.err)
			if errors.Is(got, apperrors.ErrNotFound) != tt.missing {
				t.Fatalf("notFound(%v) = %v, missing=%v", tt.err, got, tt.missing)
			}
			if !tt.missing && got != tt.err {
				t.Fatalf("expected error to pass through, got %v", got)
			}
		})
	}
}

func TestMalformedIDIsNotRetried(t *testing.T) {
	calls := 0
	_, err := ReadWithRetry(context.Background(), fastPolicy, func(context.Context) (string, error) {
		calls++
		return "", notFound("lesson", "abc", &pgconn.PgError{Code: "22P02"})
	})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if code := apperrors.ToDomainError(err).Code; code != apperrors.CodeNotFound {
		t.Fatalf("expected %s, got %s", apperrors.CodeNotFound, code)
	}
}
