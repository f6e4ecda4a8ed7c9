// Package migrations embeds the SQL migration files that define the message
// log and user profile schema.
package migrations

import "embed"

// FS holds the embedded SQL migration files, applied in order at startup.
//
//go:embed *.sql
var FS embed.FS
