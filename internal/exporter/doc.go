// Package exporter writes the normalized relational tables produced by the
// pipeline to disk.
//
// This package contains three main components:
//
// CSVWriter: Core CSV writing functionality with support for headers,
// streaming, and UTF-8 BOM for Excel compatibility.
//
// TableSet: An ordered collection of named tables with schemaless rows.
// Flushing a table derives its column set as the sorted union of keys across
// all rows and records every written table in a manifest.
//
// XLSXWriter: Multi-sheet workbook output for dashboard extracts.
package exporter
