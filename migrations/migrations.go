// Package migrations embeds the SQL schema so binaries can apply it
// without shipping files alongside the executable.
package migrations

import "embed"

//go:embed postgres/*.sql
var Postgres embed.FS

// PostgresDir is the directory inside Postgres holding the migration files.
const PostgresDir = "postgres"
