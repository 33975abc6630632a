package seeder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"skill-exchange/internal/database"
)

var ErrSchemaMismatch = errors.New("schema mismatch")

// RequireColumns fails with ErrSchemaMismatch, naming every missing column,
// when table lacks any of columns. Seeders call it so a stale schema fails
// loudly instead of half-seeding.
func RequireColumns(ctx context.Context, db database.DB, table string, columns ...string) error {
	if db == nil {
		return errors.New("nil db")
	}
	if strings.TrimSpace(table) == "" || len(columns) == 0 {
		return errors.New("table and columns are required")
	}

	rows, err := db.Query(
		ctx,
		`SELECT want FROM unnest($2::text[]) AS want
		 WHERE want NOT IN (
			SELECT column_name FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1
		 )
		 ORDER BY want`,
		table,
		columns,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return err
		}
		missing = append(missing, col)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s lacks %s", ErrSchemaMismatch, table, strings.Join(missing, ", "))
	}
	return nil
}
