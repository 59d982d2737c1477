package download

import "errors"

var (
	// ErrEmptyURL is returned when there is no image URL to fetch.
	ErrEmptyURL = errors.New("empty image url")

	// ErrNotFound is returned for HTTP 404 responses.
	ErrNotFound = errors.New("image not found")

	// ErrUnexpectedStatus is returned for any other non-2xx response.
	ErrUnexpectedStatus = errors.New("unexpected http status")

	// ErrInvalidProxyAddress is returned when the proxy is not in "host:port" form.
	ErrInvalidProxyAddress = errors.New("invalid proxy address: must be host:port")
)
