package jtrust

import (
	"context"
	"crypto/x509"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/Fedict/jtrust/internal/crlcache"
	"github.com/Fedict/jtrust/internal/crlext"
)

// CRLTrustLinker decides revocation status from CRLs published in the
// child certificate's CRLDistributionPoints extension, recursing into
// FreshestCRL-named delta CRLs when the base CRL points to one.
//
// It is the reference TrustLinker for this package; register it with
// TrustValidator.AddTrustLinker. An OCSP-based alternative satisfying
// the same contract lives in internal/ocsplinker.
type CRLTrustLinker struct {
	cache     *crlcache.Cache
	algPolicy AlgorithmPolicy
	log       *zap.SugaredLogger
}

// NewCRLTrustLinker builds a linker backed by cache. algPolicy may be
// nil to use DefaultAlgorithmPolicy. log may be nil to use a no-op logger.
func NewCRLTrustLinker(cache *crlcache.Cache, algPolicy AlgorithmPolicy, log *zap.SugaredLogger) *CRLTrustLinker {
	if algPolicy == nil {
		algPolicy = DefaultAlgorithmPolicy()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CRLTrustLinker{cache: cache, algPolicy: algPolicy, log: log}
}

// HasTrustLink implements TrustLinker.
func (l *CRLTrustLinker) HasTrustLink(ctx context.Context, child, issuer *x509.Certificate, validationTime time.Time, revData *RevocationData) (TrustLinkerResult, error) {
	uri, err := firstCRLDistributionPointURI(child)
	if err != nil {
		return TrustLinkerResult{}, fmt.Errorf("parse CRLDistributionPoints on %s: %w", child.Subject, err)
	}
	if uri == "" {
		return Abstain(), nil
	}
	return l.processCRL(ctx, uri, child, issuer, validationTime, revData, nil)
}

// firstCRLDistributionPointURI returns the first
// uniformResourceIdentifier Full-Name from child's CRLDistributionPoints.
// Go's stdlib x509 package already flattens every DistributionPoint's
// URI GeneralNames into this slice, so no ASN.1 re-parsing is needed
// for the child certificate's own extension — only the CRL's own
// extensions require cryptobyte (see internal/crlext).
func firstCRLDistributionPointURI(child *x509.Certificate) (string, error) {
	if len(child.CRLDistributionPoints) == 0 {
		return "", nil
	}
	return child.CRLDistributionPoints[0], nil
}

// processCRL implements the §4.D algorithm: lookup, integrity check,
// algorithm check, indirect-CRL check, delta linkage check, revocation
// lookup, then recursion into FreshestCRL delta distribution points
// when processing a base CRL. baseCRLNumber is nil on the initial,
// non-recursive call and non-nil when processCRL has recursed to
// evaluate a delta named by a base CRL's FreshestCRL extension.
func (l *CRLTrustLinker) processCRL(ctx context.Context, uri string, child, issuer *x509.Certificate, t time.Time, revData *RevocationData, baseCRLNumber *big.Int) (TrustLinkerResult, error) {
	crl, raw, err := l.cache.Get(ctx, uri, issuer.RawSubject, t)
	if err != nil {
		l.log.Warnw("CRL lookup failed, abstaining", "uri", uri, "error", err)
		return Abstain(), nil
	}

	if !integrityOK(crl, issuer, t) {
		l.log.Debugw("CRL integrity check failed, abstaining", "uri", uri)
		return Abstain(), nil
	}

	if res := l.algPolicy.CheckCRLAlgorithm(crl.SignatureAlgorithm); res.IsUntrusted() {
		return res, nil
	}

	indirect, err := crlext.IsIndirectCRL(crl)
	if err != nil {
		return TrustLinkerResult{}, fmt.Errorf("parse IssuingDistributionPoint on CRL %s: %w", uri, err)
	}
	if indirect {
		l.log.Debugw("indirect CRL unsupported, abstaining", "uri", uri)
		return Abstain(), nil
	}

	deltaIndicator, isDelta, err := crlext.DeltaCRLIndicator(crl)
	if err != nil {
		return TrustLinkerResult{}, fmt.Errorf("parse DeltaCRLIndicator on CRL %s: %w", uri, err)
	}
	if baseCRLNumber != nil {
		if !isDelta || deltaIndicator.Cmp(baseCRLNumber) != 0 {
			l.log.Debugw("delta CRL number does not match base, abstaining", "uri", uri)
			return Abstain(), nil
		}
	}

	if revData != nil {
		revData.AddCRL(uri, raw)
	}

	revoked, revokedEntry := lookupRevocation(crl, child.SerialNumber, t)

	if isDelta {
		if !revoked {
			// This delta doesn't mention the certificate; the base CRL
			// (evaluated by the caller that recursed into this delta)
			// has the final say.
			return Abstain(), nil
		}
		return Untrusted(ReasonInvalidRevocationStatus, revokedDetail(child, revokedEntry, t)), nil
	}

	// Base CRL: attempt any named delta distribution points before
	// returning our own verdict, since a delta takes precedence when it
	// actually lists the certificate.
	deltaURIs, err := crlext.FreshestCRLURIs(crl.Extensions)
	if err != nil {
		return TrustLinkerResult{}, fmt.Errorf("parse FreshestCRL on CRL %s: %w", uri, err)
	}
	for _, deltaURI := range deltaURIs {
		res, err := l.processCRL(ctx, deltaURI, child, issuer, t, revData, crl.Number)
		if err != nil {
			return TrustLinkerResult{}, err
		}
		if !res.IsAbstain() {
			return res, nil
		}
	}

	if revoked {
		return Untrusted(ReasonInvalidRevocationStatus, revokedDetail(child, revokedEntry, t)), nil
	}
	return Trusted(), nil
}

// integrityOK enforces the four §4.D integrity predicates: issuer
// name match, signature, freshness window, and cRLSign key usage.
func integrityOK(crl *x509.RevocationList, issuer *x509.Certificate, t time.Time) bool {
	if string(crl.RawIssuer) != string(issuer.RawSubject) {
		return false
	}
	if err := crl.CheckSignatureFrom(issuer); err != nil {
		return false
	}
	if crl.NextUpdate.IsZero() {
		// No nextUpdate is treated as already expired (§9 Open Question 2).
		return false
	}
	if t.Before(crl.ThisUpdate) || t.After(crl.NextUpdate) {
		return false
	}
	if issuer.KeyUsage&x509.KeyUsageCRLSign == 0 {
		return false
	}
	return true
}

// lookupRevocation reports whether serial appears in crl with a
// revocation date at or before t. A revocation date strictly after t
// is treated as not-yet-revoked, per §4.D edge policy.
func lookupRevocation(crl *x509.RevocationList, serial *big.Int, t time.Time) (bool, *x509.RevocationListEntry) {
	for i := range crl.RevokedCertificateEntries {
		entry := &crl.RevokedCertificateEntries[i]
		if entry.SerialNumber.Cmp(serial) != 0 {
			continue
		}
		if entry.RevocationTime.After(t) {
			return false, nil
		}
		return true, entry
	}
	return false, nil
}

func revokedDetail(child *x509.Certificate, entry *x509.RevocationListEntry, t time.Time) string {
	serial := FormatSerialBig(child.SerialNumber)
	if entry == nil {
		return serial
	}
	return fmt.Sprintf("%s revoked at %s (reason %d)", serial, entry.RevocationTime.UTC().Format(time.RFC3339), entry.ReasonCode)
}
