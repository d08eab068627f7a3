// Package fetch retrieves raw CRL bytes from a distribution point URI,
// dispatching by URL scheme to an HTTP or LDAP transport.
package fetch

import (
	"context"
	"fmt"
)

// Fetcher retrieves the raw DER bytes found at uri.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// FetchError wraps a transport failure with the URI that produced it,
// so a caller logging at the validator level doesn't need to parse Err.
type FetchError struct {
	URI string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URI, e.Err) }

func (e *FetchError) Unwrap() error { return e.Err }
