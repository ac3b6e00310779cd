// Package migrations embeds the goose SQL migrations so the server binary
// and the test database helpers can apply them without locating the source
// tree on disk.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
