// Package migrations holds the schema of the session journal and the quiz catalog.
// Table structs here are frozen copies; later schema changes get a new migration file.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
