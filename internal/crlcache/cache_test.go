package crlcache

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// buildCRL returns a DER-encoded CRL signed by a freshly generated
// issuer named cn, together with that issuer's raw subject DN — the
// second component of the cache key under test.
func buildCRL(t *testing.T, cn string, number int64, thisUpdate, nextUpdate time.Time) (der []byte, issuerSubject []byte) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	issuer := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	issuerDER, err := x509.CreateCertificate(rand.Reader, issuer, issuer, &key.PublicKey, key)
	require.NoError(t, err)
	issuerCert, err := x509.ParseCertificate(issuerDER)
	require.NoError(t, err)

	template := &x509.RevocationList{
		SignatureAlgorithm: x509.ECDSAWithSHA256,
		Number:             big.NewInt(number),
		ThisUpdate:         thisUpdate,
		NextUpdate:         nextUpdate,
	}
	crlDER, err := x509.CreateRevocationList(rand.Reader, template, issuerCert, key)
	require.NoError(t, err)
	return crlDER, issuerCert.RawSubject
}

type countingFetcher struct {
	mu    sync.Mutex
	calls int32
	data  map[string][]byte
	delay time.Duration
}

func (f *countingFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data[uri], nil
}

func (f *countingFetcher) callCount() int32 { return atomic.LoadInt32(&f.calls) }

func TestCache_FetchesOnMiss(t *testing.T) {
	now := time.Now()
	der, issuerSubject := buildCRL(t, "Test Issuer", 1, now.Add(-time.Hour), now.Add(time.Hour))
	fetcher := &countingFetcher{data: map[string][]byte{"uri1": der}}

	c, err := New(fetcher, 8)
	require.NoError(t, err)

	crl, raw, err := c.Get(context.Background(), "uri1", issuerSubject, now)
	require.NoError(t, err)
	require.NotNil(t, crl)
	require.Equal(t, der, raw)
	require.EqualValues(t, 1, fetcher.callCount())
}

func TestCache_ReusesFreshEntry(t *testing.T) {
	now := time.Now()
	der, issuerSubject := buildCRL(t, "Test Issuer", 1, now.Add(-time.Hour), now.Add(time.Hour))
	fetcher := &countingFetcher{data: map[string][]byte{"uri1": der}}

	c, err := New(fetcher, 8)
	require.NoError(t, err)

	_, _, err = c.Get(context.Background(), "uri1", issuerSubject, now)
	require.NoError(t, err)
	_, _, err = c.Get(context.Background(), "uri1", issuerSubject, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, fetcher.callCount(), "second call should hit cache")
}

func TestCache_RefetchesWhenStale(t *testing.T) {
	past := time.Now().Add(-3 * time.Hour)
	staleDER, issuerSubject := buildCRL(t, "Test Issuer", 1, past.Add(-time.Hour), past.Add(time.Hour))
	fresh := time.Now()
	freshDER, _ := buildCRL(t, "Test Issuer", 2, fresh.Add(-time.Hour), fresh.Add(time.Hour))

	fetcher := &countingFetcher{data: map[string][]byte{"uri1": staleDER}}
	c, err := New(fetcher, 8)
	require.NoError(t, err)

	_, _, err = c.Get(context.Background(), "uri1", issuerSubject, past)
	require.NoError(t, err)
	require.EqualValues(t, 1, fetcher.callCount())

	// Serve the newer CRL on the next fetch and query at a time past the
	// first entry's NextUpdate; the cache must treat it as stale and refetch.
	fetcher.mu.Lock()
	fetcher.data["uri1"] = freshDER
	fetcher.mu.Unlock()

	crl, _, err := c.Get(context.Background(), "uri1", issuerSubject, fresh)
	require.NoError(t, err)
	require.EqualValues(t, 2, fetcher.callCount())
	require.Equal(t, int64(2), crl.Number.Int64())
}

func TestCache_RejectsEntryBeforeThisUpdate(t *testing.T) {
	now := time.Now()
	// thisUpdate is in the future relative to the queried time: the
	// entry must not be considered fresh even though it's before nextUpdate.
	der, issuerSubject := buildCRL(t, "Test Issuer", 1, now.Add(time.Hour), now.Add(2*time.Hour))
	fetcher := &countingFetcher{data: map[string][]byte{"uri1": der}}

	c, err := New(fetcher, 8)
	require.NoError(t, err)

	_, _, err = c.Get(context.Background(), "uri1", issuerSubject, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, fetcher.callCount())

	// Querying again at the same (still-too-early) time must refetch
	// rather than reuse the cached entry, since now is before thisUpdate.
	_, _, err = c.Get(context.Background(), "uri1", issuerSubject, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, fetcher.callCount())
}

func TestCache_SingleflightDedupsConcurrentMisses(t *testing.T) {
	now := time.Now()
	der, issuerSubject := buildCRL(t, "Test Issuer", 1, now.Add(-time.Hour), now.Add(time.Hour))
	fetcher := &countingFetcher{data: map[string][]byte{"uri1": der}, delay: 50 * time.Millisecond}

	c, err := New(fetcher, 8)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.Get(context.Background(), "uri1", issuerSubject, now)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, fetcher.callCount(), "concurrent misses for the same key must collapse into one fetch")
}

func TestCache_Invalidate(t *testing.T) {
	now := time.Now()
	der, issuerSubject := buildCRL(t, "Test Issuer", 1, now.Add(-time.Hour), now.Add(time.Hour))
	fetcher := &countingFetcher{data: map[string][]byte{"uri1": der}}

	c, err := New(fetcher, 8)
	require.NoError(t, err)

	_, _, err = c.Get(context.Background(), "uri1", issuerSubject, now)
	require.NoError(t, err)
	c.Invalidate("uri1", issuerSubject)
	_, _, err = c.Get(context.Background(), "uri1", issuerSubject, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, fetcher.callCount())
}

func TestCache_DistinctURIsFetchedIndependently(t *testing.T) {
	now := time.Now()
	der1, issuer1 := buildCRL(t, "Issuer One", 1, now.Add(-time.Hour), now.Add(time.Hour))
	der2, issuer2 := buildCRL(t, "Issuer Two", 2, now.Add(-time.Hour), now.Add(time.Hour))
	fetcher := &countingFetcher{data: map[string][]byte{"uri1": der1, "uri2": der2}}

	c, err := New(fetcher, 8)
	require.NoError(t, err)

	_, _, err = c.Get(context.Background(), "uri1", issuer1, now)
	require.NoError(t, err)
	_, _, err = c.Get(context.Background(), "uri2", issuer2, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, fetcher.callCount())
}

func TestCache_SameURIDistinctIssuersDoNotCollide(t *testing.T) {
	now := time.Now()
	const sharedURI = "http://crl.example.com/shared.crl"
	der1, issuer1 := buildCRL(t, "Issuer One", 1, now.Add(-time.Hour), now.Add(time.Hour))
	der2, issuer2 := buildCRL(t, "Issuer Two", 2, now.Add(-time.Hour), now.Add(time.Hour))

	// Both issuers happen to publish at the same distribution-point URI;
	// the fetcher distinguishes by whichever request arrives, but the
	// cache must still keep the two issuers' entries apart so a request
	// for issuer2's CRL never gets served issuer1's cached entry.
	servedForIssuer2 := false
	fetcher := &fetcherFunc{fn: func(ctx context.Context, uri string) ([]byte, error) {
		if !servedForIssuer2 {
			servedForIssuer2 = true
			return der1, nil
		}
		return der2, nil
	}}

	c, err := New(fetcher, 8)
	require.NoError(t, err)

	crl1, _, err := c.Get(context.Background(), sharedURI, issuer1, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), crl1.Number.Int64())

	crl2, _, err := c.Get(context.Background(), sharedURI, issuer2, now)
	require.NoError(t, err)
	require.Equal(t, int64(2), crl2.Number.Int64(), "issuer2's lookup must not reuse issuer1's cached entry for the same URI")
}

type fetcherFunc struct {
	fn func(ctx context.Context, uri string) ([]byte, error)
}

func (f *fetcherFunc) Fetch(ctx context.Context, uri string) ([]byte, error) { return f.fn(ctx, uri) }
