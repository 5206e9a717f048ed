// Package migrations embeds the goose SQL migrations for the postgres
// session storage backend.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
