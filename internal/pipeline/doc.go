// Package pipeline runs one search query through a sequence of steps.
//
// The default pipeline scrapes the search results with a browser session,
// exports the surviving records to a spreadsheet and archives the downloaded
// images. Each step receives the shared *model.RunReport and fills in its
// part of it. BatchProcessor runs several queries with errgroup, one
// pipeline and one browser session per query.
package pipeline
