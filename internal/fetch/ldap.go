package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// LDAPFetcher retrieves a CRL published as the certificateRevocationList
// attribute of a directory entry, per RFC 4523. Many European
// government and corporate PKIs (the domain this library was built
// for) publish CRLs this way in addition to, or instead of, HTTP.
type LDAPFetcher struct {
	DialTimeout time.Duration
	TLSConfig   *tls.Config
}

// NewLDAPFetcher returns a fetcher with the given connection timeout.
func NewLDAPFetcher(dialTimeout time.Duration) *LDAPFetcher {
	return &LDAPFetcher{DialTimeout: dialTimeout}
}

const attrCertificateRevocationList = "certificateRevocationList;binary"

// Fetch dials uri (ldap:// or ldaps://), reads the DN's path component
// as the search base, and returns the first certificateRevocationList
// value found.
func (f *LDAPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: fmt.Errorf("parse LDAP URI: %w", err)}
	}

	opts := []ldap.DialOpt{ldap.DialWithDialer(&net.Dialer{Timeout: f.dialTimeout()})}
	if parsed.Scheme == "ldaps" {
		opts = append(opts, ldap.DialWithTLSConfig(f.TLSConfig))
	}

	conn, err := ldap.DialURL(uri, opts...)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: fmt.Errorf("dial: %w", err)}
	}
	defer conn.Close()

	base := dnFromPath(parsed.Path)
	if base == "" {
		return nil, &FetchError{URI: uri, Err: fmt.Errorf("no distinguished name in LDAP URI")}
	}

	req := ldap.NewSearchRequest(
		base,
		ldap.ScopeBaseObject, ldap.NeverDerefAliases, 0, 0, false,
		"(objectClass=*)",
		[]string{attrCertificateRevocationList},
		nil,
	)
	result, err := conn.SearchWithContext(ctx, req)
	if err != nil {
		return nil, &FetchError{URI: uri, Err: fmt.Errorf("search: %w", err)}
	}
	if len(result.Entries) == 0 {
		return nil, &FetchError{URI: uri, Err: fmt.Errorf("entry not found: %s", base)}
	}

	raw := result.Entries[0].GetRawAttributeValue(attrCertificateRevocationList)
	if len(raw) == 0 {
		return nil, &FetchError{URI: uri, Err: fmt.Errorf("%s attribute empty or absent", attrCertificateRevocationList)}
	}
	return raw, nil
}

func (f *LDAPFetcher) dialTimeout() time.Duration {
	if f.DialTimeout <= 0 {
		return 10 * time.Second
	}
	return f.DialTimeout
}

func dnFromPath(path string) string {
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return path
	}
	return decoded
}
