// Package export writes extracted records to an xlsx workbook.
//
// Records are sorted newest first, pivoted into one column per field and
// written to a single worksheet named "Sheet" with a header row.
package export
