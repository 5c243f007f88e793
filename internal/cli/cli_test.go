package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/lesson-scheduler/internal/config"
	"github.com/spec-kit/lesson-scheduler/internal/domain"
	"github.com/spec-kit/lesson-scheduler/internal/repository/repotest"
	"github.com/spec-kit/lesson-scheduler/internal/service"
	"github.com/spec-kit/lesson-scheduler/internal/store"
	"github.com/spec-kit/lesson-scheduler/internal/timezone"
)

func setupTestContext(t *testing.T) (*Context, *bytes.Buffer) {
	t.Helper()
	cfg := config.Config{
		Store:  config.StoreConfig{Driver: config.StoreDriverSQLite},
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "cli.db")},
	}
	st, err := store.Open(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)

	var out bytes.Buffer
	ctx := NewContext(context.Background(), cfg, st, &out, zap.NewNop())
	ctx.Now = func() time.Time { return time.Date(2026, time.January, 5, 1, 0, 0, 0, time.UTC) }
	return ctx, &out
}

func TestPairAndDay(t *testing.T) {
	ctx, out := setupTestContext(t)
	tutor := repotest.NewUser(t, ctx.Store.Users, "tutor", "Asia/Seoul")
	student := repotest.NewUser(t, ctx.Store.Users, "student", "Asia/Manila")

	if err := (&PairCmd{First: "TUTOR@example.com", Second: student.Email}).Run(ctx); err != nil {
		t.Fatalf("pair: %v", err)
	}
	if !strings.Contains(out.String(), "paired tutor (Asia/Seoul) with student (Asia/Manila)") {
		t.Fatalf("unexpected output %q", out.String())
	}

	date, _ := timezone.ParseDate("2026-01-05")
	_, err := ctx.Availability.Create(ctx.Ctx, student.ID, service.RuleInput{
		Date:       date,
		StartTime:  timezone.Clock{Hour: 9},
		EndTime:    timezone.Clock{Hour: 10},
		Recurrence: domain.Daily{},
	})
	if err != nil {
		t.Fatalf("create rule: %v", err)
	}

	out.Reset()
	if err := (&DayCmd{Email: student.Email, Date: "today", Viewer: tutor.Email}).Run(ctx); err != nil {
		t.Fatalf("day: %v", err)
	}
	// "today" in Seoul at 01:00Z is 2026-01-05; 09:00 Manila is 10:00 Seoul.
	if !strings.Contains(out.String(), "student on 2026-01-05 (Asia/Seoul)") || !strings.Contains(out.String(), "10:00-11:00") {
		t.Fatalf("unexpected day output:\n%s", out.String())
	}

	out.Reset()
	if err := (&DayCmd{Email: tutor.Email, Date: "2026-01-06"}).Run(ctx); err != nil {
		t.Fatalf("own day: %v", err)
	}
	if !strings.Contains(out.String(), "available all day") {
		t.Fatalf("unexpected output %q", out.String())
	}

	if err := (&DayCmd{Email: tutor.Email, Date: "06/01/2026"}).Run(ctx); err == nil {
		t.Fatal("expected error for a bad date")
	}

	out.Reset()
	if err := (&UnpairCmd{Email: student.Email}).Run(ctx); err != nil {
		t.Fatalf("unpair: %v", err)
	}
	if err := (&DayCmd{Email: student.Email, Viewer: tutor.Email}).Run(ctx); err == nil {
		t.Fatal("former partner should no longer see the day")
	}
}

func TestICSExport(t *testing.T) {
	ctx, out := setupTestContext(t)
	user := repotest.NewUser(t, ctx.Store.Users, "ana", "Asia/Manila")
	date, _ := timezone.ParseDate("2026-01-07")
	if _, err := ctx.Availability.Create(ctx.Ctx, user.ID, service.RuleInput{Date: date, IsAllDay: true, Recurrence: domain.None{}}); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	if err := (&ICSCmd{Email: user.Email, Output: "-"}).Run(ctx); err != nil {
		t.Fatalf("ics: %v", err)
	}
	if !strings.Contains(out.String(), "BEGIN:VCALENDAR") || !strings.Contains(out.String(), "DTSTART;VALUE=DATE:20260107") {
		t.Fatalf("unexpected feed:\n%s", out.String())
	}

	path := filepath.Join(t.TempDir(), "ana.ics")
	out.Reset()
	if err := (&ICSCmd{Email: user.Email, Output: path}).Run(ctx); err != nil {
		t.Fatalf("ics to file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(data), "BEGIN:VEVENT") {
		t.Fatalf("file not written: %v", err)
	}
	if !strings.Contains(out.String(), "wrote 1 rules and 0 lessons") {
		t.Fatalf("unexpected summary %q", out.String())
	}
}

func TestMigrateAndUnknownUser(t *testing.T) {
	ctx, out := setupTestContext(t)
	if err := (&MigrateCmd{}).Run(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out.String(), "sqlite schema ready") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if err := (&PairCmd{First: "nobody@example.com", Second: "else@example.com"}).Run(ctx); err == nil {
		t.Fatal("expected error for unknown user")
	}
}
