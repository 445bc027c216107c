// Package migrations carries the lending schema and applies it in filename
// order, once per file.
package migrations

import (
	"bufio"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

//go:embed *.sql
var files embed.FS

const downMarker = "-- +migrate Down"

// Apply runs every pending migration in its own transaction and returns the
// filenames it applied.
func Apply(ctx context.Context, db *sqlx.DB, log logrus.FieldLogger) ([]string, error) {
	return apply(ctx, db, files, log)
}

func apply(ctx context.Context, db *sqlx.DB, source fs.FS, log logrus.FieldLogger) ([]string, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY, applied_at TIMESTAMPTZ DEFAULT NOW())`); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations: %w", err)
	}
	names, err := fs.Glob(source, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var applied []string
	for _, name := range names {
		var exists bool
		if err := db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, name); err != nil {
			return applied, fmt.Errorf("read migration state: %w", err)
		}
		if exists {
			continue
		}
		content, err := fs.ReadFile(source, name)
		if err != nil {
			return applied, err
		}
		if err := applyFile(ctx, db, name, string(content)); err != nil {
			return applied, fmt.Errorf("apply %s: %w", name, err)
		}
		log.WithField("migration", name).Info("applied migration")
		applied = append(applied, name)
	}
	return applied, nil
}

func applyFile(ctx context.Context, db *sqlx.DB, name, content string) error {
	up, _, _ := strings.Cut(content, downMarker)
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(up) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// splitSQL breaks a script into statements on lines ending in ';'. Comment
// lines are dropped.
func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	out := statements[:0]
	for _, stmt := range statements {
		if strings.TrimSpace(stmt) != "" {
			out = append(out, stmt)
		}
	}
	return out
}
