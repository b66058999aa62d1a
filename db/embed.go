// Package db provides the embedded schema of the settings database.
package db

import _ "embed"

// Schema contains the DDL statements for all tables.
//
//go:embed migrations/001_schema.sql
var Schema string
