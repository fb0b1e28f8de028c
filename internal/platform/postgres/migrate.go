package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migration commands accepted by Migrate
const (
	MigrateUp     = "up"
	MigrateDown   = "down"
	MigrateStatus = "status"
)

// zapGooseLogger forwards goose output to zap
type zapGooseLogger struct {
	log *zap.SugaredLogger
}

// Printf implements goose.Logger
func (l *zapGooseLogger) Printf(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

// Fatalf implements goose.Logger. It does not exit; the error is returned by Migrate.
func (l *zapGooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Errorf(format, v...)
}

// Migrate runs one goose command against the embedded migrations
func Migrate(ctx context.Context, db *sql.DB, command string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(&zapGooseLogger{log: log.Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	var err error
	switch command {
	case MigrateUp:
		err = goose.UpContext(ctx, db, migrationsDir)
	case MigrateDown:
		err = goose.DownContext(ctx, db, migrationsDir)
	case MigrateStatus:
		err = goose.StatusContext(ctx, db, migrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
