// Package crlcache caches parsed CRLs keyed by (distribution point URI,
// issuer subject DN), with at-most-one-fetch-in-flight semantics per
// key and bounded memory via an LRU eviction policy.
package crlcache

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// key identifies one cache slot. Two issuers publishing their CRLs at
// the same URI (which happens) must not collide, so the issuer's
// subject DN (its raw DER encoding, to avoid any ambiguity a
// normalized string form could introduce) is part of the key.
type key struct {
	uri           string
	issuerSubject string
}

// entry is one cached, parsed CRL together with its raw encoding (the
// raw form is what gets handed to RevocationData for archival).
type entry struct {
	crl *x509.RevocationList
	raw []byte
}

// Fetcher retrieves the raw DER bytes published at uri. Satisfied by
// internal/fetch.Fetcher; declared locally so this package does not
// depend on internal/fetch.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Cache fetches and parses CRLs on demand, reusing a cached copy while
// it remains valid for the queried time and collapsing concurrent
// requests for the same (URI, issuer) into a single fetch.
type Cache struct {
	fetcher Fetcher
	lru     *lru.Cache[key, entry]
	group   singleflight.Group
}

// New builds a cache bounded to size entries, fetching misses via fetcher.
func New(fetcher Fetcher, size int) (*Cache, error) {
	l, err := lru.New[key, entry](size)
	if err != nil {
		return nil, fmt.Errorf("build CRL cache: %w", err)
	}
	return &Cache{fetcher: fetcher, lru: l}, nil
}

// fresh reports whether e's CRL is still valid for validationTime,
// i.e. thisUpdate <= validationTime <= nextUpdate.
func fresh(e entry, validationTime time.Time) bool {
	return !validationTime.Before(e.crl.ThisUpdate) && !validationTime.After(e.crl.NextUpdate)
}

// Get returns the CRL published at uri by the certificate with subject
// issuerSubject, valid as of validationTime. A cached entry is reused
// only while validationTime still falls in its [thisUpdate, nextUpdate]
// window; otherwise it is re-fetched. Returns the parsed CRL and its
// raw encoding, or an error if fetching or parsing failed — there is
// no silent nil,nil result, so callers can distinguish "not found"
// from "found but unusable."
func (c *Cache) Get(ctx context.Context, uri string, issuerSubject []byte, validationTime time.Time) (*x509.RevocationList, []byte, error) {
	k := key{uri: uri, issuerSubject: string(issuerSubject)}

	if cached, ok := c.lru.Get(k); ok && fresh(cached, validationTime) {
		return cached.crl, cached.raw, nil
	}

	// Length-prefix uri so a coincidental substring match between uri and
	// issuerSubject can never make two distinct keys collide.
	groupKey := fmt.Sprintf("%d:%s:%s", len(k.uri), k.uri, k.issuerSubject)
	v, err, _ := c.group.Do(groupKey, func() (interface{}, error) {
		if cached, ok := c.lru.Get(k); ok && fresh(cached, validationTime) {
			return cached, nil
		}

		raw, err := c.fetcher.Fetch(ctx, uri)
		if err != nil {
			return nil, fmt.Errorf("fetch CRL %s: %w", uri, err)
		}
		crl, err := x509.ParseRevocationList(raw)
		if err != nil {
			return nil, fmt.Errorf("parse CRL %s: %w", uri, err)
		}
		e := entry{crl: crl, raw: raw}
		c.lru.Add(k, e)
		return e, nil
	})
	if err != nil {
		return nil, nil, err
	}
	e := v.(entry)
	return e.crl, e.raw, nil
}

// Invalidate drops any cached entry for (uri, issuerSubject), forcing
// the next Get for that pair to fetch.
func (c *Cache) Invalidate(uri string, issuerSubject []byte) {
	c.lru.Remove(key{uri: uri, issuerSubject: string(issuerSubject)})
}
