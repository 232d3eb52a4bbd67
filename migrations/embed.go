// Package migrations embeds the SQL schema of the non-volatile store so the
// firmware image carries it.
package migrations

import "embed"

// FS holds every *.sql migration at its root. Pass it to database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
