package infostoretest

import (
	"flag"
	"os"
)

// PostgresConnStr is the test database connection string. Postgres tests are
// skipped when it is empty.
var PostgresConnStr = flag.String("postgres-test-db", os.Getenv("INFOSTORE_POSTGRES_TEST"), "PostgreSQL test database connection string")
