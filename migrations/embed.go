// Package migrations embeds the run-log schema migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
