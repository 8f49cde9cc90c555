// Command migrate применяет и откатывает миграции схемы хранилища сессий
// и чистит строки брошенных корзин.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const (
	defaultTimeout  = 30 * time.Second
	dsnEnv          = "STOREFRONT_POSTGRES_DSN"
	defaultPruneAge = 30 * 24 * time.Hour
)

type config struct {
	direction string
	steps     int
	dsn       string
	olderThan time.Duration
	batch     int
}

// migrator — операции над схемой, которые нужны команде.
type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (int64, bool, error)
}

// sessionPruner удаляет сессии, не обновлявшиеся с момента before.
type sessionPruner interface {
	DeleteStale(ctx context.Context, before time.Time, limit int) (int, error)
}

func parseConfig(args []string, getenv func(string) string) (config, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var cfg config
	fs.StringVar(&cfg.direction, "direction", "up", "migration direction: up|down|status|prune")
	fs.IntVar(&cfg.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	fs.StringVar(&cfg.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+dsnEnv+")")
	fs.DurationVar(&cfg.olderThan, "older-than", defaultPruneAge, "prune: delete sessions idle longer than this")
	fs.IntVar(&cfg.batch, "batch", 500, "prune: rows deleted per statement")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.direction = strings.ToLower(strings.TrimSpace(cfg.direction))
	cfg.dsn = strings.TrimSpace(cfg.dsn)
	if cfg.dsn == "" {
		cfg.dsn = strings.TrimSpace(getenv(dsnEnv))
	}

	switch {
	case cfg.dsn == "":
		return cfg, fmt.Errorf("%s (or -dsn) is required", dsnEnv)
	case cfg.steps < 0:
		return cfg, errors.New("steps must be >= 0")
	case cfg.direction == "prune" && cfg.olderThan <= 0:
		return cfg, errors.New("older-than must be > 0")
	case cfg.direction == "prune" && cfg.batch <= 0:
		return cfg, errors.New("batch must be > 0")
	}

	switch cfg.direction {
	case "up", "down", "status", "prune":
		return cfg, nil
	default:
		return cfg, fmt.Errorf("unsupported direction: %s (use up|down|status|prune)", cfg.direction)
	}
}

func run(ctx context.Context, cfg config, m migrator, pruner sessionPruner, now time.Time, out io.Writer) error {
	switch cfg.direction {
	case "up":
		if err := m.MigrateUp(ctx, cfg.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		return printStatus(ctx, m, out, "migrate up ok")
	case "down":
		steps := cfg.steps
		if steps <= 0 {
			steps = 1
		}
		if err := m.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		return printStatus(ctx, m, out, "migrate down ok")
	case "status":
		return printStatus(ctx, m, out, "migration status")
	case "prune":
		before := now.Add(-cfg.olderThan)
		total := 0
		for {
			n, err := pruner.DeleteStale(ctx, before, cfg.batch)
			if err != nil {
				return fmt.Errorf("prune sessions failed after %d rows: %w", total, err)
			}
			total += n
			if n < cfg.batch {
				break
			}
		}
		_, _ = fmt.Fprintf(out, "prune ok: deleted=%d before=%s\n", total, before.Format(time.RFC3339))
		return nil
	default:
		return fmt.Errorf("unsupported direction: %s", cfg.direction)
	}
}

func printStatus(ctx context.Context, m migrator, out io.Writer, prefix string) error {
	version, dirty, err := m.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "%s: version=%d dirty=%t\n", prefix, version, dirty)
	return nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Getenv)
	if err != nil {
		fail("invalid arguments: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, cfg.dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	if err := run(ctx, cfg, store, postgres.NewKVStoreFactory(store), time.Now().UTC(), os.Stdout); err != nil {
		fail("%v", err)
	}
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
