// Package main provides the entry point for the newsharvest CLI.
//
// newsharvest searches a news site for a phrase, collects the articles
// published inside a lookback window, and writes them to a spreadsheet
// together with a zip archive of their pictures.
//
// Usage:
//
//	newsharvest run "climate change" -n 3
//	newsharvest history
//
// See --help for all available options.
package main

// main is the entry point for newsharvest.
func main() {
	Execute()
}
