package sqlcgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"geodash/internal/record"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// MaxRows caps how many rows a table read returns.
const MaxRows = 10000

// Table names cannot be bound as parameters, so every statement is built
// around a sanitized identifier.
func ident(table string) string {
	return pgx.Identifier{table}.Sanitize()
}

const listTableRows = `-- name: ListTableRows :many
SELECT * FROM %s LIMIT $1
`

func (q *Queries) ListTableRows(ctx context.Context, table string, limit int) ([]map[string]any, error) {
	if limit <= 0 || limit > MaxRows {
		limit = MaxRows
	}
	rows, err := q.db.Query(ctx, fmt.Sprintf(listTableRows, ident(table)), limit)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out, nil
}

// FetchTable reads up to MaxRows rows of table.
func (q *Queries) FetchTable(ctx context.Context, table string) ([]map[string]any, error) {
	return q.ListTableRows(ctx, table, MaxRows)
}

const updateCoords = `-- name: UpdateCoords :execrows
UPDATE %s
SET latitude = $1, longitude = $2
WHERE "PLZ"::text = $3 AND "Ort"::text = $4 AND "Strasse"::text = $5 AND "Haus-Nr"::text = $6
`

// UpdateCoords sets the coordinates of every row matching the compound key and
// returns the number of rows touched.
func (q *Queries) UpdateCoords(ctx context.Context, table string, arg record.CoordUpdate) (int64, error) {
	tag, err := q.db.Exec(ctx, fmt.Sprintf(updateCoords, ident(table)),
		arg.Latitude,
		arg.Longitude,
		arg.PLZ,
		arg.Ort,
		arg.Strasse,
		arg.HausNr,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listTableColumns = `-- name: ListTableColumns :many
SELECT
  c.column_name,
  c.data_type,
  c.is_nullable = 'YES' AS nullable,
  EXISTS (
    SELECT 1
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage k
      ON k.constraint_name = tc.constraint_name
     AND k.table_schema = tc.table_schema
     AND k.table_name = tc.table_name
    WHERE tc.constraint_type = 'PRIMARY KEY'
      AND tc.table_schema = c.table_schema
      AND tc.table_name = c.table_name
      AND k.column_name = c.column_name
  ) AS primary_key
FROM information_schema.columns c
WHERE c.table_schema = current_schema() AND c.table_name = $1
ORDER BY c.ordinal_position
`

func (q *Queries) ListTableColumns(ctx context.Context, table string) ([]Column, error) {
	rows, err := q.db.Query(ctx, listTableColumns, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable, &c.PrimaryKey); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const insertRecord = `-- name: InsertRecord :exec
INSERT INTO %s (%s) VALUES (%s)
`

// InsertRecord appends r to table using the exchange column set.
func (q *Queries) InsertRecord(ctx context.Context, table string, r record.Record) error {
	cols, args := InsertArgs(r)
	quoted := make([]string, len(cols))
	params := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = ident(c)
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf(insertRecord, ident(table), strings.Join(quoted, ", "), strings.Join(params, ", "))
	_, err := q.db.Exec(ctx, sql, args...)
	return err
}

// InsertArgs returns the columns and bind values used to insert r. Blank text
// becomes NULL; a parseable KW value is stored as a number.
func InsertArgs(r record.Record) ([]string, []any) {
	values := r.Values()
	args := make([]any, len(record.Fields))
	for i, col := range record.Fields {
		switch col {
		case record.ColLatitude:
			args[i] = r.Latitude
		case record.ColLongitude:
			args[i] = r.Longitude
		case record.ColKW:
			if kw, ok := r.KWValue(); ok {
				args[i] = kw
			} else {
				args[i] = nullable(values[i])
			}
		default:
			args[i] = nullable(values[i])
		}
	}
	cols := make([]string, len(record.Fields))
	copy(cols, record.Fields)
	return cols, args
}

func nullable(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
