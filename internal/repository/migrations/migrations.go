// Package migrations embeds the PostgreSQL schema applied at startup.
package migrations

import "embed"

// FS holds the numbered up/down SQL files
//
//go:embed *.sql
var FS embed.FS
