package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"geodash/internal/record"
	"geodash/internal/sqlcgen"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite is a file-backed store with the same table operations as the
// Postgres queries. It is meant for local development and tests.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// migrations. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := path + "?_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	s := &SQLite{db: conn, path: path}
	if err := s.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// EnsureTable creates an address table that the migrations do not cover.
func (s *SQLite) EnsureTable(ctx context.Context, table string) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+quoteIdent(table)+` (
  "id" INTEGER PRIMARY KEY AUTOINCREMENT,
  "Geändert am" TEXT,
  "Zugriffsdatum" TEXT,
  "Sparte" TEXT,
  "Ort" TEXT,
  "PLZ" TEXT,
  "Strasse" TEXT,
  "Haus-Nr" TEXT,
  "Ort, Strasse Haus-Nr" TEXT,
  "Datum" TEXT,
  "Notiz" TEXT,
  "KW-Zahl" NUMERIC,
  "Art" TEXT,
  "latitude" REAL,
  "longitude" REAL
)`)
	return err
}

func (s *SQLite) ListTableRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	if limit <= 0 || limit > sqlcgen.MaxRows {
		limit = sqlcgen.MaxRows
	}
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM `+quoteIdent(table)+` LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *SQLite) FetchTable(ctx context.Context, table string) ([]map[string]any, error) {
	return s.ListTableRows(ctx, table, sqlcgen.MaxRows)
}

func (s *SQLite) UpdateCoords(ctx context.Context, table string, u record.CoordUpdate) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE `+quoteIdent(table)+`
SET latitude = ?, longitude = ?
WHERE CAST("PLZ" AS TEXT) = ? AND "Ort" = ? AND "Strasse" = ? AND CAST("Haus-Nr" AS TEXT) = ?`,
		u.Latitude, u.Longitude, u.PLZ, u.Ort, u.Strasse, u.HausNr)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLite) ListTableColumns(ctx context.Context, table string) ([]sqlcgen.Column, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, type, "notnull", pk FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sqlcgen.Column
	for rows.Next() {
		var (
			c       sqlcgen.Column
			notNull int
			pk      int
		)
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &pk); err != nil {
			return nil, err
		}
		c.Nullable = notNull == 0 && pk == 0
		c.PrimaryKey = pk > 0
		out = append(out, c)
	}
	return out, rows.Err()
}

func insertSQL(table string, cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return `INSERT INTO ` + quoteIdent(table) + ` (` + strings.Join(quoted, ", ") + `) VALUES (` + marks + `)`
}

func (s *SQLite) InsertRecord(ctx context.Context, table string, r record.Record) error {
	cols, args := sqlcgen.InsertArgs(r)
	_, err := s.db.ExecContext(ctx, insertSQL(table, cols), args...)
	return err
}

// InsertRecords inserts records inside one transaction.
func (s *SQLite) InsertRecords(ctx context.Context, table string, records []record.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		cols, args := sqlcgen.InsertArgs(r)
		if _, err := tx.ExecContext(ctx, insertSQL(table, cols), args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return tx.Commit()
}
