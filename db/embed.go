// Package db embeds the schema applied on service start.
package db

import _ "embed"

// Schema holds the DDL for the payment and enrollment tables. Statements are
// idempotent (IF NOT EXISTS) so reapplying on boot is safe.
//
//go:embed migrations/001_schema.sql
var Schema string
