// Package migrations ships the chunk table schema for the SQLite store.
package migrations

import "embed"

// FS holds the numbered up/down scripts applied by sqlite.NewStore.
//
//go:embed *.sql
var FS embed.FS
