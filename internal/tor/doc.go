// Package tor runs a Tor daemon for the duration of a harvest.
//
// The daemon is started with tornago and exposes a SOCKS5 address that the
// image downloader can use as its proxy. Starting Tor requires the tor
// binary on PATH and usually takes one to three minutes.
package tor
