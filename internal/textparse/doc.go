// Package textparse turns raw text scraped from search result cards into
// clean titles and descriptions, article dates and currency mentions.
//
// Every function here is total: malformed input degrades to a documented
// default instead of returning an error. The date parser reports such
// defaults explicitly through model.DateResult.
package textparse
