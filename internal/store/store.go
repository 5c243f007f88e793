// Package store opens the document store selected by STORE_DRIVER and hands
// out its repositories.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/lesson-scheduler/internal/config"
	"github.com/spec-kit/lesson-scheduler/internal/persistence"
	"github.com/spec-kit/lesson-scheduler/internal/repository"
	"github.com/spec-kit/lesson-scheduler/internal/repository/memory"
	"github.com/spec-kit/lesson-scheduler/internal/repository/sqlite"
)

// Pinger is a backend the readiness probe can check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store is an open backend.
type Store struct {
	Driver  string
	Users   repository.UserRepository
	Lessons repository.LessonRepository
	Rules   repository.UnavailabilityRepository

	checks  map[string]Pinger
	closers []func()
}

// Open connects the configured driver. Reads on networked and file-backed
// drivers are wrapped in the bounded read retry.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Store, error) {
	s := &Store{Driver: cfg.Store.Driver, checks: map[string]Pinger{}}

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		s.Users = repository.NewUserRepository(pg.Pool)
		s.Lessons = repository.NewLessonRepository(pg.Pool)
		s.Rules = repository.NewUnavailabilityRepository(pg.Pool)
		s.checks["postgres"] = pg
		s.closers = append(s.closers, pg.Close)
	case config.StoreDriverSQLite:
		db, err := persistence.NewSQLite(ctx, cfg.SQLite, logger)
		if err != nil {
			return nil, err
		}
		s.Users = sqlite.NewUserRepository(db.DB)
		s.Lessons = sqlite.NewLessonRepository(db.DB)
		s.Rules = sqlite.NewUnavailabilityRepository(db.DB)
		s.checks["sqlite"] = db
		s.closers = append(s.closers, db.Close)
	case config.StoreDriverMemory:
		logger.Warn("using the in-memory store; data is lost on exit")
		s.Users = memory.NewUserRepository()
		s.Lessons = memory.NewLessonRepository()
		s.Rules = memory.NewUnavailabilityRepository()
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	policy := repository.DefaultRetryPolicy()
	s.Users = repository.WithUserReadRetry(s.Users, policy)
	s.Lessons = repository.WithLessonReadRetry(s.Lessons, policy)
	s.Rules = repository.WithUnavailabilityReadRetry(s.Rules, policy)
	return s, nil
}

// Checks lists the backends behind the store by name.
func (s *Store) Checks() map[string]Pinger {
	out := make(map[string]Pinger, len(s.checks))
	for name, p := range s.checks {
		out[name] = p
	}
	return out
}

// Close releases every backend handle.
func (s *Store) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
