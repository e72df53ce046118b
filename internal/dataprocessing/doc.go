// Package dataprocessing turns the wide compensation extract into third
// normal form in a single pass over the source worksheet.
//
// The Splitter drives the pass: it resolves the header row against the field
// catalog, interns dimension members through Dimension, appends event facts
// row by row, folds deduped facts through MergeFact, and records every
// value-level anomaly in the QualityLog. Nothing in this package aborts on
// bad values; structural workbook defects surface from the workbook package
// as FormatError.
package dataprocessing
