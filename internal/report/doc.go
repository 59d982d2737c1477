// Package report renders run reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: styled text for terminal display
//   - MarkdownWriter: Markdown with tables and a mermaid chart
//   - JSONWriter: structured JSON for tool integration
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
