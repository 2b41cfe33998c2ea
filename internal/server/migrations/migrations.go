// Package migrations embeds the goose SQL migrations for the account store.
// The statements stay within the SQL subset shared by PostgreSQL and SQLite.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
