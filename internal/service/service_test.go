package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/lesson-scheduler/internal/config"
	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/events"
	"github.com/spec-kit/lesson-scheduler/internal/repository/memory"
	"github.com/spec-kit/lesson-scheduler/internal/repository/repotest"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

var testNow = time.Date(2026, time.January, 5, 1, 0, 0, 0, time.UTC)

type recordedEvents struct {
	mu  sync.Mutex
	all []events.Event
}

func (r *recordedEvents) handle(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, ev)
	return nil
}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, len(r.all))
	for i, ev := range r.all {
		out[i] = ev.Type
	}
	return out
}

type env struct {
	deps   Dependencies
	events *recordedEvents
	now    time.Time
	users  *memory.Users
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{events: &recordedEvents{}, now: testNow, users: memory.NewUserRepository()}
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	all := append([]events.EventType{
		events.EventUnavailabilityCreated,
		events.EventUnavailabilityUpdated,
		events.EventUnavailabilityDeleted,
		events.EventTardinessAlert,
	}, events.LessonEventTypes...)
	for _, typ := range all {
		dispatcher.Subscribe(typ, e.events.handle)
	}
	e.deps = Dependencies{
		Users:      e.users,
		Lessons:    memory.NewLessonRepository(),
		Rules:      memory.NewUnavailabilityRepository(),
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Now:        func() time.Time { return e.now },
	}
	return e
}

// pair creates two paired users: a tutor in Seoul and a student in Manila.
func (e *env) pair(t *testing.T) (*domain.User, *domain.User) {
	t.Helper()
	tutor := repotest.NewUser(t, e.users, "tutor", "Asia/Seoul")
	student := repotest.NewUser(t, e.users, "student", "Asia/Manila")
	if err := e.users.Pair(context.Background(), tutor.ID, student.ID); err != nil {
		t.Fatalf("pair: %v", err)
	}
	return tutor, student
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	e := newEnv(t)
	svc := NewAuthService(config.AuthConfig{JWTSecret: "s", AccessTokenTTLMinutes: 5, BcryptCost: 4}, e.deps)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "Mina", Email: "mina@example.com", Password: "long-enough"})
	expectCode(t, err, apperrors.CodeValidation)

	_, err = svc.Register(ctx, RegisterInput{Name: "Mina", Email: "mina@example.com", Password: "long-enough", Timezone: "Mars/Base"})
	expectCode(t, err, apperrors.CodeValidation)

	_, err = svc.Register(ctx, RegisterInput{Name: "Mina", Email: "mina@example.com", Password: "short", Timezone: "Asia/Seoul"})
	expectCode(t, err, apperrors.CodeValidation)

	session, err := svc.Register(ctx, RegisterInput{Name: "Mina", Email: " Mina@Example.com ", Password: "long-enough", Timezone: "Asia/Seoul", NotificationHandle: "tok"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if session.Token == "" || session.User.Email != "mina@example.com" || !session.User.CanNotify() {
		t.Fatalf("unexpected session %+v", session.User)
	}
	claims, err := svc.TokenManager().ParseToken(session.Token)
	if err != nil || claims.Subject != session.User.ID {
		t.Fatalf("token subject mismatch: %v", err)
	}

	_, err = svc.Register(ctx, RegisterInput{Name: "Other", Email: "mina@example.com", Password: "long-enough", Timezone: "UTC"})
	expectCode(t, err, apperrors.CodeConflict)

	if _, err := svc.Login(ctx, "MINA@example.com", "long-enough"); err != nil {
		t.Fatalf("login: %v", err)
	}
	_, err = svc.Login(ctx, "mina@example.com", "wrong-password")
	expectCode(t, err, apperrors.CodeUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "long-enough")
	expectCode(t, err, apperrors.CodeUnauthorized)
}

func TestProfileAndPairing(t *testing.T) {
	e := newEnv(t)
	svc := NewUserService(e.deps)
	ctx := context.Background()
	a := repotest.NewUser(t, e.users, "a", "Asia/Seoul")
	b := repotest.NewUser(t, e.users, "b", "Asia/Manila")
	c := repotest.NewUser(t, e.users, "c", "UTC")

	_, err := svc.Pair(ctx, a.ID, a.ID)
	expectCode(t, err, apperrors.CodeValidation)
	_, err = svc.Pair(ctx, a.ID, "missing")
	expectCode(t, err, apperrors.CodeNotFound)

	paired, err := svc.Pair(ctx, a.ID, b.ID)
	if err != nil || !paired.IsPartnerOf(b.ID) {
		t.Fatalf("pair: %v", err)
	}
	_, err = svc.Pair(ctx, c.ID, b.ID)
	expectCode(t, err, apperrors.CodeValidation)

	if _, err := svc.Get(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("partner profile should be visible: %v", err)
	}
	_, err = svc.Get(ctx, c.ID, a.ID)
	expectCode(t, err, apperrors.CodeForbidden)

	bad := "Nowhere/Land"
	_, err = svc.UpdateProfile(ctx, a.ID, ProfilePatch{Timezone: &bad})
	expectCode(t, err, apperrors.CodeValidation)
	_, err = svc.UpdateProfile(ctx, a.ID, ProfilePatch{})
	expectCode(t, err, apperrors.CodeValidation)

	zone, empty := "Europe/London", ""
	updated, err := svc.UpdateProfile(ctx, a.ID, ProfilePatch{Timezone: &zone, NotificationHandle: &empty})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Timezone != zone || updated.CanNotify() {
		t.Fatalf("unexpected profile %+v", updated)
	}

	unpaired, err := svc.Unpair(ctx, b.ID)
	if err != nil || unpaired.HasPartner() {
		t.Fatalf("unpair: %v", err)
	}
	_, err = svc.Unpair(ctx, a.ID)
	expectCode(t, err, apperrors.CodeValidation)
}
