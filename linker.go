package jtrust

import (
	"context"
	"crypto/x509"
	"time"
)

// ReasonCode identifies why a chain or a single link was found untrusted.
type ReasonCode string

// Reason codes surfaced on Untrusted verdicts, per the trust-linker
// contract. Callers match on these rather than parsing Detail.
const (
	ReasonInvalidSignature        ReasonCode = "INVALID_SIGNATURE"
	ReasonInvalidRevocationStatus ReasonCode = "INVALID_REVOCATION_STATUS"
	ReasonInvalidValidityInterval ReasonCode = "INVALID_VALIDITY_INTERVAL"
	ReasonInvalidKeyUsage         ReasonCode = "INVALID_KEY_USAGE"
	ReasonInvalidTrust            ReasonCode = "INVALID_TRUST"
	ReasonInvalidAlgorithm        ReasonCode = "INVALID_ALGORITHM"
	ReasonRootNotTrusted          ReasonCode = "ROOT_NOT_TRUSTED"
)

// Verdict is the tag of a TrustLinkerResult.
type Verdict int

const (
	// VerdictAbstain means the linker has no opinion; the pipeline
	// should advance to the next linker.
	VerdictAbstain Verdict = iota
	// VerdictTrusted means the linker positively established that the
	// child is not revoked for this issuer.
	VerdictTrusted
	// VerdictUntrusted means the linker found a definitive reason to
	// reject the link; this is fatal and short-circuits the chain.
	VerdictUntrusted
)

// TrustLinkerResult is the outcome of one TrustLinker.HasTrustLink call.
type TrustLinkerResult struct {
	Verdict Verdict
	Reason  ReasonCode
	Detail  string
}

// Trusted builds a positive TrustLinkerResult.
func Trusted() TrustLinkerResult {
	return TrustLinkerResult{Verdict: VerdictTrusted}
}

// Abstain builds a no-opinion TrustLinkerResult.
func Abstain() TrustLinkerResult {
	return TrustLinkerResult{Verdict: VerdictAbstain}
}

// Untrusted builds a fatal TrustLinkerResult carrying a reason code and a
// short diagnostic detail (e.g. the offending serial number).
func Untrusted(reason ReasonCode, detail string) TrustLinkerResult {
	return TrustLinkerResult{Verdict: VerdictUntrusted, Reason: reason, Detail: detail}
}

// IsAbstain reports whether this result carries no opinion.
func (r TrustLinkerResult) IsAbstain() bool { return r.Verdict == VerdictAbstain }

// IsTrusted reports whether this result is a positive verdict.
func (r TrustLinkerResult) IsTrusted() bool { return r.Verdict == VerdictTrusted }

// IsUntrusted reports whether this result is a fatal negative verdict.
func (r TrustLinkerResult) IsUntrusted() bool { return r.Verdict == VerdictUntrusted }

// TrustLinker decides the revocation status of one (child, issuer) pair
// at a given validation time, appending any revocation evidence it
// actually consulted to revData. A non-nil error return is an internal,
// fatal failure (e.g. malformed ASN.1 in data that should already have
// been validated) distinct from an Untrusted verdict — it is not a PKI
// decision and is not retried by the pipeline.
//
// Concrete linkers are independent values held in an ordered slice on
// TrustValidator; there is no base type or inheritance involved.
type TrustLinker interface {
	HasTrustLink(ctx context.Context, child, issuer *x509.Certificate, validationTime time.Time, revData *RevocationData) (TrustLinkerResult, error)
}
