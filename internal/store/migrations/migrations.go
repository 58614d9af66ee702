// Package migrations embeds the goose migrations for the system tables.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
