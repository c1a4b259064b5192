// Package migrations embeds the SQL schema for the content database (MySQL)
// and the chat database (Postgres) and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed mysql/*.sql
var mysqlMigrations embed.FS

//go:embed postgres/*.sql
var postgresMigrations embed.FS

const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

// goose keeps dialect and base FS in package globals.
var mu sync.Mutex

// Up applies every pending migration of the given dialect.
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	mu.Lock()
	defer mu.Unlock()

	switch dialect {
	case DialectMySQL:
		if err := goose.SetDialect("mysql"); err != nil {
			return err
		}
		goose.SetBaseFS(mysqlMigrations)
		return goose.UpContext(ctx, db, "mysql")
	case DialectPostgres:
		if err := goose.SetDialect("postgres"); err != nil {
			return err
		}
		goose.SetBaseFS(postgresMigrations)
		return goose.UpContext(ctx, db, "postgres")
	}
	return fmt.Errorf("unsupported migration dialect %q", dialect)
}

// UpAll applies the content schema and, when pool is set, the chat schema.
func UpAll(ctx context.Context, db *sql.DB, pool *pgxpool.Pool) error {
	if err := Up(ctx, db, DialectMySQL); err != nil {
		return fmt.Errorf("content schema: %w", err)
	}
	if pool == nil {
		return nil
	}
	pg := stdlib.OpenDBFromPool(pool)
	defer pg.Close()
	if err := Up(ctx, pg, DialectPostgres); err != nil {
		return fmt.Errorf("chat schema: %w", err)
	}
	return nil
}

// Version returns the current schema version of db.
func Version(ctx context.Context, db *sql.DB, dialect string) (int64, error) {
	mu.Lock()
	defer mu.Unlock()

	if err := goose.SetDialect(dialect); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}
