// Package migrations embeds the SQL migrations of the catalog database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
