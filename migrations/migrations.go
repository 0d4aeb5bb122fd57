// Package migrations embeds the goose SQL migrations for the accounts and
// revoked token tables.
package migrations

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed *.sql
var FS embed.FS

// Source returns dir on disk when set, otherwise the embedded migrations.
func Source(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return FS
}
