// Package ocsplinker provides an optional OCSP-based trust linker.
// It satisfies jtrust.TrustLinker directly, the same contract the
// CRL linker does, and exists to demonstrate the pipeline is genuinely
// pluggable; no validator construction path wires it in by default.
package ocsplinker

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/ocsp"

	"github.com/Fedict/jtrust"
)

// Linker queries an OCSP responder named by the child certificate's
// AuthorityInformationAccess extension. It implements jtrust.TrustLinker,
// so it can be registered with TrustValidator.AddTrustLinker exactly
// like the CRL linker (even ahead of it, since the pipeline consults
// linkers in registration order and stops at the first non-abstain).
type Linker struct {
	Client *http.Client
	log    *zap.SugaredLogger
}

// New builds a Linker with the given HTTP client (nil uses
// http.DefaultClient) and logger (nil uses a no-op logger).
func New(client *http.Client, log *zap.SugaredLogger) *Linker {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Linker{Client: client, log: log}
}

// HasTrustLink queries the OCSP responder for child, issued by issuer.
// It abstains when the certificate names no responder, when the
// request fails, or when the responder itself reports Unknown.
func (l *Linker) HasTrustLink(ctx context.Context, child, issuer *x509.Certificate, validationTime time.Time, revData *jtrust.RevocationData) (jtrust.TrustLinkerResult, error) {
	responderURL := firstOCSPResponder(child)
	if responderURL == "" {
		return jtrust.Abstain(), nil
	}

	reqBytes, err := ocsp.CreateRequest(child, issuer, nil)
	if err != nil {
		return jtrust.TrustLinkerResult{}, fmt.Errorf("build OCSP request for %s: %w", child.Subject, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, responderURL, bytes.NewReader(reqBytes))
	if err != nil {
		return jtrust.TrustLinkerResult{}, fmt.Errorf("build OCSP HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/ocsp-request")

	resp, err := l.Client.Do(httpReq)
	if err != nil {
		l.log.Warnw("OCSP request failed, abstaining", "url", responderURL, "error", err)
		return jtrust.Abstain(), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		l.log.Warnw("OCSP response read failed, abstaining", "url", responderURL, "error", err)
		return jtrust.Abstain(), nil
	}

	parsed, err := ocsp.ParseResponseForCert(raw, child, issuer)
	if err != nil {
		l.log.Warnw("OCSP response parse failed, abstaining", "url", responderURL, "error", err)
		return jtrust.Abstain(), nil
	}

	if revData != nil {
		revData.AddOCSP(raw)
	}

	switch parsed.Status {
	case ocsp.Good:
		return jtrust.Trusted(), nil
	case ocsp.Revoked:
		if parsed.RevokedAt.After(validationTime) {
			return jtrust.Trusted(), nil
		}
		return jtrust.Untrusted(
			jtrust.ReasonInvalidRevocationStatus,
			fmt.Sprintf("revoked at %s", parsed.RevokedAt.UTC().Format(time.RFC3339)),
		), nil
	default: // ocsp.Unknown
		return jtrust.Abstain(), nil
	}
}

func firstOCSPResponder(cert *x509.Certificate) string {
	if len(cert.OCSPServer) == 0 {
		return ""
	}
	return cert.OCSPServer[0]
}
