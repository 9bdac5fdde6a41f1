package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueries(t *testing.T) {
	q := newQueries("uploads", "file_info")

	assert.Equal(t, `"uploads"."file_info"`, q.table)
	assert.Contains(t, q.create, `CREATE TABLE IF NOT EXISTS "uploads"."file_info"`)
	assert.Contains(t, q.create, `"offset" BIGINT NOT NULL`)
	assert.Contains(t, q.create, `metadata JSONB NOT NULL DEFAULT '{}'::jsonb`)
	assert.Contains(t, q.create, `PRIMARY KEY (id)`)

	assert.Equal(t,
		`INSERT INTO "uploads"."file_info" ("id", "offset", "length", "path", "created_at", "deferred_size", "is_partial", "is_final", "parts", "storage", "metadata") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		q.insert)
	assert.Equal(t,
		`UPDATE "uploads"."file_info" SET "offset" = $2, "length" = $3, "path" = $4, "created_at" = $5, "deferred_size" = $6, "is_partial" = $7, "is_final" = $8, "parts" = $9, "storage" = $10, "metadata" = $11 WHERE "id" = $1`,
		q.update)
	assert.Equal(t,
		`SELECT "id", "offset", "length", "path", "created_at", "deferred_size", "is_partial", "is_final", "parts", "storage", "metadata" FROM "uploads"."file_info" WHERE "id" = $1`,
		q.get)
	assert.Equal(t, `DELETE FROM "uploads"."file_info" WHERE "id" = $1`, q.remove)
}

func TestQueriesQuoteIdentifiers(t *testing.T) {
	q := newQueries(`public`, `file_info"; DROP TABLE users; --`)

	assert.Equal(t, `"public"."file_info""; DROP TABLE users; --"`, q.table)
}
