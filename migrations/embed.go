package migrations

import "embed"

// FS embeds the SQL migration files so the server binary can bootstrap its
// schema without external files on disk.
//
//go:embed *.sql
var FS embed.FS
