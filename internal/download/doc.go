// Package download fetches article images.
//
// Image URLs found on result pages are often relative. Downloader resolves
// them against the site URL, normalizes them with purell and fetches them
// with resty. Requests can be throttled and routed through a SOCKS5 proxy.
package download
