package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/lesson-scheduler/internal/config"
	"github.com/spec-kit/lesson-scheduler/internal/persistence"
	"github.com/spec-kit/lesson-scheduler/internal/repository/repotest"
)

func TestStores(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repotest.Stores {
		path := filepath.Join(t.TempDir(), "lessons.db")
		store, err := persistence.NewSQLite(context.Background(), config.SQLiteConfig{Path: path}, zap.NewNop())
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(store.Close)
		return repotest.Stores{
			Users:   NewUserRepository(store.DB),
			Lessons: NewLessonRepository(store.DB),
			Rules:   NewUnavailabilityRepository(store.DB),
		}
	})
}

func TestDaysCodec(t *testing.T) {
	if got := joinDays([]int{0, 3, 6}); got != "0,3,6" {
		t.Fatalf("unexpected join %q", got)
	}
	days, err := splitDays("1,5")
	if err != nil || len(days) != 2 || days[0] != 1 || days[1] != 5 {
		t.Fatalf("unexpected split %v (%v)", days, err)
	}
	if d, err := splitDays(""); err != nil || d != nil {
		t.Fatalf("empty should decode to nil, got %v (%v)", d, err)
	}
	if _, err := splitDays("1,x"); err == nil {
		t.Fatal("expected error for malformed days")
	}
}
