package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
)

const createTableTemplate = `CREATE TABLE IF NOT EXISTS %s (
	id TEXT NOT NULL,
	"offset" BIGINT NOT NULL,
	length BIGINT,
	path TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	deferred_size BOOLEAN NOT NULL,
	is_partial BOOLEAN NOT NULL,
	is_final BOOLEAN NOT NULL,
	parts TEXT[],
	storage TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (id)
)`

// queries holds the statements for one table. Identifiers are quoted into
// the SQL text; all values are bind parameters.
type queries struct {
	table  string
	create string
	insert string
	update string
	get    string
	remove string
}

func newQueries(schema, table string) queries {
	qualified := pgx.Identifier{schema, table}.Sanitize()

	quoted := lo.Map(columns, func(column string, _ int) string {
		return pgx.Identifier{column}.Sanitize()
	})
	placeholders := lo.Map(columns, func(_ string, i int) string {
		return fmt.Sprintf("$%d", i+1)
	})
	assignments := lo.Map(quoted[1:], func(column string, i int) string {
		return fmt.Sprintf("%s = $%d", column, i+2)
	})

	columnList := strings.Join(quoted, ", ")

	return queries{
		table:  qualified,
		create: fmt.Sprintf(createTableTemplate, qualified),
		insert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qualified, columnList, strings.Join(placeholders, ", ")),
		update: fmt.Sprintf("UPDATE %s SET %s WHERE %s = $1", qualified, strings.Join(assignments, ", "), quoted[0]),
		get:    fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", columnList, qualified, quoted[0]),
		remove: fmt.Sprintf("DELETE FROM %s WHERE %s = $1", qualified, quoted[0]),
	}
}
