// Package repotest is a behavioural suite shared by every repository
// implementation.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/lifecycle"
	"github.com/spec-kit/lesson-scheduler/internal/repository"
	apperrors "github.com/spec-kit/lesson-scheduler/pkg/util/errorutil"
)

// Stores bundles one implementation of each repository.
type Stores struct {
	Users   repository.UserRepository
	Lessons repository.LessonRepository
	Rules   repository.UnavailabilityRepository
}

var epoch = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

// Run exercises the stores returned by factory; each subtest gets fresh ones.
func Run(t *testing.T, factory func(t *testing.T) Stores) {
	t.Run("users", func(t *testing.T) { testUsers(t, factory(t)) })
	t.Run("pairing", func(t *testing.T) { testPairing(t, factory(t)) })
	t.Run("rules", func(t *testing.T) { testRules(t, factory(t)) })
	t.Run("lessons", func(t *testing.T) { testLessons(t, factory(t)) })
	t.Run("lesson filter", func(t *testing.T) { testLessonFilter(t, factory(t)) })
	t.Run("concurrent confirm", func(t *testing.T) { testConcurrentConfirm(t, factory(t)) })
}

// NewUser creates and stores a user.
func NewUser(t *testing.T, repo repository.UserRepository, name, zone string) *domain.User {
	t.Helper()
	handle := "token-" + name
	u := &domain.User{
		ID:                 uuid.NewString(),
		Name:               name,
		Email:              name + "@example.com",
		PasswordHash:       "hash",
		Timezone:           zone,
		NotificationHandle: &handle,
		CreatedAt:          epoch,
		UpdatedAt:          epoch,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func testUsers(t *testing.T, s Stores) {
	ctx := context.Background()
	alice := NewUser(t, s.Users, "alice", "Asia/Seoul")

	got, err := s.Users.GetByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != "alice@example.com" || got.Timezone != "Asia/Seoul" || got.HasPartner() {
		t.Fatalf("unexpected user %+v", got)
	}
	if got.NotificationHandle == nil || *got.NotificationHandle != "token-alice" {
		t.Fatalf("unexpected handle %v", got.NotificationHandle)
	}

	byEmail, err := s.Users.GetByEmail(ctx, "alice@example.com")
	if err != nil || byEmail.ID != alice.ID {
		t.Fatalf("get by email: %+v (%v)", byEmail, err)
	}

	dup := *alice
	dup.ID = uuid.NewString()
	if err := s.Users.Create(ctx, &dup); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	got.Timezone = "Asia/Manila"
	got.NotificationHandle = nil
	got.UpdatedAt = epoch.Add(time.Hour)
	if err := s.Users.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := s.Users.GetByID(ctx, alice.ID)
	if again.Timezone != "Asia/Manila" || again.NotificationHandle != nil {
		t.Fatalf("update not persisted: %+v", again)
	}

	if _, err := s.Users.GetByID(ctx, uuid.NewString()); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testPairing(t *testing.T, s Stores) {
	ctx := context.Background()
	alice := NewUser(t, s.Users, "alice", "Asia/Seoul")
	bob := NewUser(t, s.Users, "bob", "Asia/Manila")
	carol := NewUser(t, s.Users, "carol", "UTC")

	if err := s.Users.Pair(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("pair: %v", err)
	}
	a, _ := s.Users.GetByID(ctx, alice.ID)
	b, _ := s.Users.GetByID(ctx, bob.ID)
	if !a.IsPartnerOf(bob.ID) || !b.IsPartnerOf(alice.ID) {
		t.Fatalf("pairing not symmetric: %v %v", a.PartnerID, b.PartnerID)
	}

	if err := s.Users.Pair(ctx, carol.ID, bob.ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict re-pairing bob, got %v", err)
	}
	c, _ := s.Users.GetByID(ctx, carol.ID)
	if c.HasPartner() {
		t.Fatal("failed pairing must not touch carol")
	}

	if err := s.Users.Unpair(ctx, alice.ID); err != nil {
		t.Fatalf("unpair: %v", err)
	}
	a, _ = s.Users.GetByID(ctx, alice.ID)
	b, _ = s.Users.GetByID(ctx, bob.ID)
	if a.HasPartner() || b.HasPartner() {
		t.Fatal("unpair must clear both sides")
	}
}

func testRules(t *testing.T, s Stores) {
	ctx := context.Background()
	owner := NewUser(t, s.Users, "owner", "Asia/Seoul")
	weekly, _ := domain.NewWeekly([]int{1, 3})

	rule := &domain.UnavailabilityRule{
		ID:         uuid.NewString(),
		UserID:     owner.ID,
		Start:      epoch.Add(time.Hour),
		End:        epoch.Add(2 * time.Hour),
		Recurrence: weekly,
		Timezone:   "Asia/Seoul",
		CreatedAt:  epoch,
	}
	if err := s.Rules.Create(ctx, rule); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rule.Version != 1 {
		t.Fatalf("expected version 1, got %d", rule.Version)
	}
	daily := &domain.UnavailabilityRule{
		ID: uuid.NewString(), UserID: owner.ID,
		Start: epoch, End: epoch.Add(24 * time.Hour), IsAllDay: true,
		Recurrence: domain.Daily{}, Timezone: "UTC", CreatedAt: epoch,
	}
	if err := s.Rules.Create(ctx, daily); err != nil {
		t.Fatalf("create daily: %v", err)
	}

	list, err := s.Rules.ListByUser(ctx, owner.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %d (%v)", len(list), err)
	}
	if list[0].ID != daily.ID {
		t.Fatal("rules should be ordered by start")
	}
	got, _ := s.Rules.GetByID(ctx, rule.ID)
	w, ok := got.Recurrence.(domain.Weekly)
	if !ok || len(w.Days) != 2 || w.Days[0] != time.Monday || w.Days[1] != time.Wednesday {
		t.Fatalf("weekly recurrence not preserved: %#v", got.Recurrence)
	}
	if !got.Start.Equal(rule.Start) || got.Timezone != "Asia/Seoul" {
		t.Fatalf("unexpected rule %+v", got)
	}

	stale := *got
	got.End = got.End.Add(30 * time.Minute)
	got.Recurrence = domain.Weekdays{}
	got.UpdatedAt = epoch.Add(time.Hour)
	if err := s.Rules.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("expected version 2, got %d", got.Version)
	}
	if err := s.Rules.Update(ctx, &stale); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict on stale update, got %v", err)
	}
	fresh, _ := s.Rules.GetByID(ctx, rule.ID)
	if fresh.Recurrence.Kind() != domain.RecurrenceWeekdays {
		t.Fatalf("stale update must not win, got %s", fresh.Recurrence.Kind())
	}

	if err := s.Rules.Delete(ctx, rule.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Rules.GetByID(ctx, rule.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Rules.Delete(ctx, rule.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func newLesson(t *testing.T, repo repository.LessonRepository, proposer string, start time.Time) *domain.Lesson {
	t.Helper()
	l, err := lifecycle.Propose(proposer, start, start.Add(time.Hour), epoch)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	l.ID = uuid.NewString()
	if err := repo.Create(context.Background(), l); err != nil {
		t.Fatalf("create lesson: %v", err)
	}
	return l
}

func testLessons(t *testing.T, s Stores) {
	ctx := context.Background()
	alice := NewUser(t, s.Users, "alice", "Asia/Seoul")
	bob := NewUser(t, s.Users, "bob", "Asia/Manila")
	l := newLesson(t, s.Lessons, alice.ID, epoch.Add(10*time.Hour))

	got, err := s.Lessons.GetByID(ctx, l.ID)
	if err != nil || got.Status != domain.LessonStatusPending || got.Version != 1 {
		t.Fatalf("get: %+v (%v)", got, err)
	}

	guardErr := errors.New("refused")
	if _, err := s.Lessons.Mutate(ctx, l.ID, func(l *domain.Lesson) error {
		l.Status = domain.LessonStatusRejected
		return guardErr
	}); !errors.Is(err, guardErr) {
		t.Fatalf("expected guard error, got %v", err)
	}
	unchanged, _ := s.Lessons.GetByID(ctx, l.ID)
	if unchanged.Status != domain.LessonStatusPending || unchanged.Version != 1 {
		t.Fatal("a failed guard must not write")
	}

	confirmed, err := s.Lessons.Mutate(ctx, l.ID, func(l *domain.Lesson) error {
		return lifecycle.Confirm(l, bob.ID, epoch.Add(time.Hour))
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Version != 2 || confirmed.ConfirmedBy == nil || *confirmed.ConfirmedBy != bob.ID {
		t.Fatalf("unexpected confirmed lesson %+v", confirmed)
	}
	stored, _ := s.Lessons.GetByID(ctx, l.ID)
	if stored.Status != domain.LessonStatusConfirmed || !stored.UpdatedAt.Equal(epoch.Add(time.Hour)) {
		t.Fatalf("confirm not persisted: %+v", stored)
	}

	if _, err := s.Lessons.DeleteIf(ctx, l.ID, func(l *domain.Lesson) error {
		return lifecycle.CheckDelete(l, alice.ID)
	}); !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition deleting confirmed lesson, got %v", err)
	}

	cancelled, err := s.Lessons.Mutate(ctx, l.ID, func(l *domain.Lesson) error {
		return lifecycle.Cancel(l, bob.ID, "sick", epoch.Add(2*time.Hour))
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.CancellationReason == nil || *cancelled.CancellationReason != "sick" {
		t.Fatalf("unexpected cancelled lesson %+v", cancelled)
	}

	other := newLesson(t, s.Lessons, alice.ID, epoch.Add(30*time.Hour))
	deleted, err := s.Lessons.DeleteIf(ctx, other.ID, func(l *domain.Lesson) error {
		return lifecycle.CheckDelete(l, alice.ID)
	})
	if err != nil || deleted.ID != other.ID {
		t.Fatalf("delete: %+v (%v)", deleted, err)
	}
	if _, err := s.Lessons.GetByID(ctx, other.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Lessons.Mutate(ctx, other.ID, func(*domain.Lesson) error { return nil }); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound mutating deleted lesson, got %v", err)
	}
}

func testLessonFilter(t *testing.T, s Stores) {
	ctx := context.Background()
	alice := NewUser(t, s.Users, "alice", "Asia/Seoul")
	bob := NewUser(t, s.Users, "bob", "Asia/Manila")
	carol := NewUser(t, s.Users, "carol", "UTC")

	late := newLesson(t, s.Lessons, alice.ID, epoch.Add(48*time.Hour))
	early := newLesson(t, s.Lessons, alice.ID, epoch.Add(2*time.Hour))
	byBob := newLesson(t, s.Lessons, bob.ID, epoch.Add(24*time.Hour))
	newLesson(t, s.Lessons, carol.ID, epoch.Add(3*time.Hour))

	if _, err := s.Lessons.Mutate(ctx, byBob.ID, func(l *domain.Lesson) error {
		return lifecycle.Confirm(l, alice.ID, epoch)
	}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	got, err := s.Lessons.List(ctx, repository.LessonFilter{UserIDs: []string{alice.ID}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if ids := lessonIDs(got); len(ids) != 3 || ids[0] != early.ID || ids[1] != byBob.ID || ids[2] != late.ID {
		t.Fatalf("unexpected lessons for alice: %v", ids)
	}

	from, to := epoch.Add(time.Hour), epoch.Add(24*time.Hour)
	got, _ = s.Lessons.List(ctx, repository.LessonFilter{UserIDs: []string{alice.ID}, From: &from, To: &to})
	if ids := lessonIDs(got); len(ids) != 1 || ids[0] != early.ID {
		t.Fatalf("unexpected ranged lessons: %v", ids)
	}

	got, _ = s.Lessons.List(ctx, repository.LessonFilter{UserIDs: []string{carol.ID}})
	if len(got) != 1 {
		t.Fatalf("expected carol's single lesson, got %d", len(got))
	}
	got, _ = s.Lessons.List(ctx, repository.LessonFilter{})
	if len(got) != 0 {
		t.Fatalf("empty filter must match nothing, got %d", len(got))
	}
}

func lessonIDs(ls []*domain.Lesson) []string {
	ids := make([]string, len(ls))
	for i, l := range ls {
		ids[i] = l.ID
	}
	return ids
}

func testConcurrentConfirm(t *testing.T, s Stores) {
	ctx := context.Background()
	alice := NewUser(t, s.Users, "alice", "Asia/Seoul")
	l := newLesson(t, s.Lessons, alice.ID, epoch.Add(5*time.Hour))

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Lessons.Mutate(ctx, l.ID, func(l *domain.Lesson) error {
				return lifecycle.Confirm(l, uuid.NewString(), epoch)
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("exactly one confirm may win, got %d", successes)
	}
	stored, _ := s.Lessons.GetByID(ctx, l.ID)
	if stored.Version != 2 {
		t.Fatalf("expected a single write, version %d", stored.Version)
	}
}
