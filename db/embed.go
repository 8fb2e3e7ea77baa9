// Package db provides the embedded database schema for the PostgreSQL
// state store.
package db

import _ "embed"

// Schema contains the DDL for the key_value state table.
//
//go:embed migrations/001_schema.sql
var Schema string
