// Package migrations embeds the SQL migrations of the sync ledger.
package migrations

import "embed"

// FS holds the *.sql files of this directory.
//
//go:embed *.sql
var FS embed.FS
