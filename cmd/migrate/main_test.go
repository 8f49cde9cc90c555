package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

type fakeMigrator struct {
	version  int64
	dirty    bool
	upSteps  []int
	down     []int
	upErr    error
	statErr  error
	deleted  []int
	stale    []int
	pruneErr error
	before   time.Time
}

func (f *fakeMigrator) MigrateUp(_ context.Context, steps int) error {
	f.upSteps = append(f.upSteps, steps)
	if f.upErr != nil {
		return f.upErr
	}
	f.version = 2
	return nil
}

func (f *fakeMigrator) MigrateDown(_ context.Context, steps int) error {
	f.down = append(f.down, steps)
	f.version -= int64(steps)
	return nil
}

func (f *fakeMigrator) MigrationStatus(context.Context) (int64, bool, error) {
	return f.version, f.dirty, f.statErr
}

func (f *fakeMigrator) DeleteStale(_ context.Context, before time.Time, limit int) (int, error) {
	f.before = before
	if f.pruneErr != nil {
		return 0, f.pruneErr
	}
	if len(f.stale) == 0 {
		return 0, nil
	}
	n := f.stale[0]
	f.stale = f.stale[1:]
	if n > limit {
		n = limit
	}
	f.deleted = append(f.deleted, n)
	return n, nil
}

func noEnv(string) string { return "" }

func TestParseConfig(t *testing.T) {
	cfg, err := parseConfig([]string{"-dsn", " postgres://x "}, noEnv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.direction != "up" || cfg.dsn != "postgres://x" || cfg.olderThan != defaultPruneAge || cfg.batch != 500 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	env := func(key string) string {
		if key == dsnEnv {
			return "postgres://from-env"
		}
		return ""
	}
	cfg, err = parseConfig([]string{"-direction", " PRUNE ", "-older-than", "72h", "-batch", "10"}, env)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.direction != "prune" || cfg.dsn != "postgres://from-env" || cfg.olderThan != 72*time.Hour || cfg.batch != 10 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing dsn", args: []string{"-direction=status"}, want: dsnEnv},
		{name: "negative steps", args: []string{"-dsn=x", "-steps=-1"}, want: "steps"},
		{name: "bad direction", args: []string{"-dsn=x", "-direction=sideways"}, want: "unsupported direction"},
		{name: "zero prune age", args: []string{"-dsn=x", "-direction=prune", "-older-than=0s"}, want: "older-than"},
		{name: "zero batch", args: []string{"-dsn=x", "-direction=prune", "-batch=0"}, want: "batch"},
		{name: "unknown flag", args: []string{"-dsn=x", "-force"}, want: "force"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseConfig(tc.args, noEnv)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestRun_UpDownStatus(t *testing.T) {
	ctx := context.Background()
	m := &fakeMigrator{}
	var out bytes.Buffer

	if err := run(ctx, config{direction: "up"}, m, m, time.Now(), &out); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := run(ctx, config{direction: "down"}, m, m, time.Now(), &out); err != nil {
		t.Fatalf("down: %v", err)
	}
	if err := run(ctx, config{direction: "status"}, m, m, time.Now(), &out); err != nil {
		t.Fatalf("status: %v", err)
	}

	if len(m.upSteps) != 1 || m.upSteps[0] != 0 {
		t.Fatalf("up must apply all migrations, got %v", m.upSteps)
	}
	if len(m.down) != 1 || m.down[0] != 1 {
		t.Fatalf("down defaults to one step, got %v", m.down)
	}
	want := "migrate up ok: version=2 dirty=false\n" +
		"migrate down ok: version=1 dirty=false\n" +
		"migration status: version=1 dirty=false\n"
	if out.String() != want {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestRun_Failures(t *testing.T) {
	ctx := context.Background()

	m := &fakeMigrator{upErr: errors.New("dirty database")}
	if err := run(ctx, config{direction: "up"}, m, m, time.Now(), &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "migrate up failed") {
		t.Fatalf("expected up failure, got %v", err)
	}

	m = &fakeMigrator{statErr: errors.New("no connection")}
	if err := run(ctx, config{direction: "status"}, m, m, time.Now(), &bytes.Buffer{}); err == nil || !strings.Contains(err.Error(), "migration status failed") {
		t.Fatalf("expected status failure, got %v", err)
	}
}

func TestRun_PruneDeletesInBatches(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	m := &fakeMigrator{stale: []int{10, 10, 3}}
	var out bytes.Buffer

	cfg := config{direction: "prune", olderThan: 48 * time.Hour, batch: 10}
	if err := run(context.Background(), cfg, m, m, now, &out); err != nil {
		t.Fatalf("prune: %v", err)
	}

	if len(m.deleted) != 3 {
		t.Fatalf("expected three batches, got %v", m.deleted)
	}
	if !m.before.Equal(now.Add(-48 * time.Hour)) {
		t.Fatalf("unexpected cutoff %s", m.before)
	}
	if want := "prune ok: deleted=23 before=2024-05-08T12:00:00Z\n"; out.String() != want {
		t.Fatalf("unexpected output %q", out.String())
	}

	m = &fakeMigrator{pruneErr: errors.New("lock timeout")}
	if err := run(context.Background(), cfg, m, m, now, &out); err == nil || !strings.Contains(err.Error(), "prune sessions failed") {
		t.Fatalf("expected prune failure, got %v", err)
	}
}

func TestFailExits(t *testing.T) {
	if os.Getenv("MIGRATE_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "MIGRATE_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	if err == nil {
		t.Fatal("expected subprocess to exit with error")
	}
	if exitErr, ok := err.(*exec.ExitError); !ok || exitErr.ExitCode() == 0 {
		t.Fatalf("expected non-zero exit code, got %v", err)
	}
}
