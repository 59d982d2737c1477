// Package model defines the data structures shared by newsharvest packages.
//
// This package contains the following main types:
//   - Date: a calendar date that is safe to compare and use as a map key
//   - SearchConfig: the query and lookback window of one run
//   - NewsRecord: one extracted article
//   - ResultSet: the set of unique records collected during a run
//   - RunReport: the summary of a run, stored in the history database
//
// The models are serializable to JSON for report output and database storage.
package model
