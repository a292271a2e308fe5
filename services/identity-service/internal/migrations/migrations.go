// Package migrations embeds the identity schema and applies it on boot.
package migrations

import (
	"embed"

	"github.com/d-castillo/trimbook/libs/db"
)

//go:embed *.sql
var files embed.FS

func Apply(databaseURL string) error {
	return db.Migrate(files, ".", databaseURL)
}
