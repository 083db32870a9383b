package migrations

import "embed"

// FS embeds the SQLite schema for the key/value storage backend.
//
//go:embed *.sql
var FS embed.FS
