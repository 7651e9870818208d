package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/receipts-redactor/internal/common"
)

type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// ParseDSN splits a ledger DSN into its ent dialect and driver source.
// "sqlite:<path>" selects SQLite; "postgres://", "postgresql://" and
// "postgres:<conninfo>" select Postgres.
func ParseDSN(dsn string) (string, string, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		path := strings.TrimPrefix(dsn, "sqlite:")
		if path == "" {
			return "", "", common.NewAppError("CONFIG_ERROR", "sqlite ledger needs a path", common.ErrInvalidInput)
		}
		return dialect.SQLite, path, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return dialect.Postgres, dsn, nil
	case strings.HasPrefix(dsn, "postgres:"):
		return dialect.Postgres, strings.TrimPrefix(dsn, "postgres:"), nil
	default:
		return "", "", common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported ledger dsn %q", dsn), common.ErrInvalidInput)
	}
}

// Open connects to the ledger database and wraps it in an ent SQL driver.
// Postgres goes through a pgx pool; SQLite uses a single connection.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	name, source, err := ParseDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	logger.Info("connecting to ledger", "dialect", name)

	l := &Ledger{dialect: name, logger: logger}
	var db *sql.DB
	switch name {
	case dialect.Postgres:
		pc, err := pgxpool.ParseConfig(source)
		if err != nil {
			logger.Error("failed to parse ledger dsn", "error", err)
			return nil, err
		}
		if cfg.MaxConns > 0 {
			pc.MaxConns = cfg.MaxConns
		}
		if cfg.MaxConnLifetime > 0 {
			pc.MaxConnLifetime = cfg.MaxConnLifetime
		}
		pc.ConnConfig.RuntimeParams["application_name"] = "receipts-redactor"

		dialCtx := ctx
		if cfg.DialTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
			defer cancel()
		}
		pool, err := pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			logger.Error("failed to connect to ledger", "error", err)
			return nil, err
		}
		l.pool = pool
		db = stdlib.OpenDBFromPool(pool)
	default:
		db, err = sql.Open("sqlite", source+"?_pragma=busy_timeout(5000)")
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
	}

	l.drv = entsql.OpenDB(name, db)
	if err := l.migrate(ctx); err != nil {
		l.Close()
		return nil, common.WrapError(err, "migrate ledger")
	}
	logger.Info("ledger ready", "dialect", name)
	return l, nil
}

// Close closes the database connections gracefully
func (l *Ledger) Close() {
	if l.drv != nil {
		if err := l.drv.Close(); err != nil {
			l.logger.Error("failed to close ledger driver", "error", err)
		}
	}
	if l.pool != nil {
		l.pool.Close()
	}
}

// HealthCheck pings the database.
func (l *Ledger) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return l.drv.DB().PingContext(ctx)
}
