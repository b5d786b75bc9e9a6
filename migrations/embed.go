// Package migrations embeds the SQL schema for rules, entity documents, the
// audit log and the outbox. Tests apply the *.up.sql files in name order.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
