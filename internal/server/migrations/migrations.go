// Package migrations embeds the goose SQL migrations for each supported
// database driver.
package migrations

import "embed"

// Migrations holds one directory of migrations per dialect.
//
//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
