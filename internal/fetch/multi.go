package fetch

import (
	"context"
	"fmt"
	"net/url"
)

// MultiSchemeFetcher dispatches to HTTP or LDAP based on uri's scheme.
type MultiSchemeFetcher struct {
	HTTP *HTTPFetcher
	LDAP *LDAPFetcher
}

// NewMultiSchemeFetcher builds a dispatcher over the given transports.
func NewMultiSchemeFetcher(httpFetcher *HTTPFetcher, ldapFetcher *LDAPFetcher) *MultiSchemeFetcher {
	return &MultiSchemeFetcher{HTTP: httpFetcher, LDAP: ldapFetcher}
}

func (f *MultiSchemeFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: fmt.Errorf("parse URI: %w", err)}
	}
	switch parsed.Scheme {
	case "http", "https":
		return f.HTTP.Fetch(ctx, uri)
	case "ldap", "ldaps":
		return f.LDAP.Fetch(ctx, uri)
	default:
		return nil, &FetchError{URI: uri, Err: fmt.Errorf("unsupported scheme %q", parsed.Scheme)}
	}
}
