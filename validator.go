package jtrust

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// CertificateConstraint is an additional, chain-position-independent
// check run against every certificate in the chain before any
// TrustLinker is consulted (key usage, basic constraints, name
// constraints, or caller-specific policy). A non-nil error fails
// validation for the whole chain; multiple constraint failures for the
// same certificate are aggregated rather than short-circuited on the
// first one, so a caller sees every violation in one pass.
type CertificateConstraint func(cert *x509.Certificate, depth int) error

// RevocationPolicy controls how a TrustValidator reacts when no
// TrustLinker in the pipeline reaches a positive or negative verdict
// for a link (every linker abstained), which in practice means
// revocation status could not be established.
type RevocationPolicy int

const (
	// FailClosed treats "could not determine revocation status" as
	// Untrusted. This is the default: it is the safer failure mode for
	// a trust decision.
	FailClosed RevocationPolicy = iota
	// FailOpen treats "could not determine revocation status" as
	// Trusted. Only appropriate when availability is prioritized over
	// strict revocation enforcement, and must be opted into explicitly.
	FailOpen
)

// Clock supplies the current time; overridable for deterministic tests.
type Clock func() time.Time

// TrustValidator walks a pre-ordered certificate chain (leaf first,
// trust-anchor candidate last) and decides whether it should be
// trusted as of a given validation time.
type TrustValidator struct {
	anchors          *TrustAnchorStore
	linkers          []TrustLinker
	constraints      []CertificateConstraint
	algPolicy        AlgorithmPolicy
	revocationPolicy RevocationPolicy
	clock            Clock
	log              *zap.SugaredLogger
}

// Option configures a TrustValidator at construction time.
type Option func(*TrustValidator)

// WithLogger overrides the default no-op logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(v *TrustValidator) { v.log = log }
}

// WithRevocationPolicy overrides the default FailClosed policy.
func WithRevocationPolicy(p RevocationPolicy) Option {
	return func(v *TrustValidator) { v.revocationPolicy = p }
}

// WithClock overrides the default time.Now-based clock.
func WithClock(c Clock) Option {
	return func(v *TrustValidator) { v.clock = c }
}

// WithAlgorithmPolicy overrides the default algorithm policy.
func WithAlgorithmPolicy(p AlgorithmPolicy) Option {
	return func(v *TrustValidator) { v.algPolicy = p }
}

// NewTrustValidator builds a validator against the given trust anchors.
// Trust linkers are consulted in registration order via AddTrustLinker;
// none is registered by default, so a caller wanting CRL-based
// revocation checking must add a *CRLTrustLinker explicitly.
func NewTrustValidator(anchors *TrustAnchorStore, opts ...Option) *TrustValidator {
	v := &TrustValidator{
		anchors:          anchors,
		algPolicy:        DefaultAlgorithmPolicy(),
		revocationPolicy: FailClosed,
		clock:            time.Now,
		log:              zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// AddTrustLinker appends a linker to the end of the pipeline.
func (v *TrustValidator) AddTrustLinker(l TrustLinker) {
	v.linkers = append(v.linkers, l)
}

// AddCertificateConstraint registers an additional per-certificate check.
func (v *TrustValidator) AddCertificateConstraint(c CertificateConstraint) {
	v.constraints = append(v.constraints, c)
}

// IsTrusted validates chain, which must be ordered leaf-first with the
// trust-anchor candidate last, against validationTime; a zero
// validationTime means the validator's clock time. If revData is
// non-nil, every TrustLinker appends the revocation evidence it
// actually consulted to it; pass nil to discard that evidence.
//
// Validation proceeds in two passes per adjacent pair: first the
// structural checks (validity window, signature algorithm strength,
// parent/child signature, certificate constraints), then, only if
// those pass, the trust-linker pipeline for revocation status. A
// structural failure is reported without ever invoking a linker for
// that pair, since a linker's revocation evidence is meaningless for a
// link that is not even cryptographically valid.
func (v *TrustValidator) IsTrusted(ctx context.Context, chain []*x509.Certificate, validationTime time.Time, revData *RevocationData) (TrustVerdict, error) {
	if len(chain) == 0 {
		return TrustVerdict{Trusted: false, Reason: ReasonInvalidTrust, Detail: "empty chain", FailedAt: -1}, nil
	}
	if validationTime.IsZero() {
		validationTime = v.clock()
	}

	for depth, cert := range chain {
		var merr *multierror.Error
		for _, c := range v.constraints {
			if err := c(cert, depth); err != nil {
				merr = multierror.Append(merr, err)
			}
		}
		if merr.ErrorOrNil() != nil {
			v.log.Warnw("certificate constraint failure", "subject", cert.Subject, "depth", depth, "error", merr)
			return TrustVerdict{
				Trusted:  false,
				Reason:   ReasonInvalidKeyUsage,
				Detail:   merr.Error(),
				FailedAt: depth,
			}, nil
		}
	}

	for i, cert := range chain {
		if validationTime.Before(cert.NotBefore) || validationTime.After(cert.NotAfter) {
			return TrustVerdict{
				Trusted:  false,
				Reason:   ReasonInvalidValidityInterval,
				Detail:   fmt.Sprintf("%s not valid at %s", FormatDN(cert.Subject), validationTime.UTC().Format(time.RFC3339)),
				FailedAt: i,
			}, nil
		}
		if res := v.algPolicy.CheckCertificateAlgorithm(cert.SignatureAlgorithm); res.IsUntrusted() {
			return TrustVerdict{Trusted: false, Reason: res.Reason, Detail: res.Detail, FailedAt: i}, nil
		}
		if i > 0 {
			if !cert.IsCA {
				return TrustVerdict{
					Trusted:  false,
					Reason:   ReasonInvalidTrust,
					Detail:   fmt.Sprintf("%s: BasicConstraints CA=false on non-leaf certificate", FormatDN(cert.Subject)),
					FailedAt: i,
				}, nil
			}
			if cert.MaxPathLen >= 0 || cert.MaxPathLenZero {
				intermediatesBelow := i - 1
				if intermediatesBelow > cert.MaxPathLen {
					return TrustVerdict{
						Trusted:  false,
						Reason:   ReasonInvalidTrust,
						Detail:   fmt.Sprintf("%s: pathLenConstraint exceeded", FormatDN(cert.Subject)),
						FailedAt: i,
					}, nil
				}
			}
		}
	}

	// The presented chain's last element must itself equal a configured
	// trust anchor by certificate equality. This library never builds or
	// completes a chain from a certificate pool — the caller is
	// responsible for presenting a complete, ordered chain.
	last := chain[len(chain)-1]
	if !v.anchors.Contains(last) {
		return TrustVerdict{
			Trusted:  false,
			Reason:   ReasonRootNotTrusted,
			Detail:   FormatDN(last.Subject),
			FailedAt: -1,
		}, nil
	}

	for i := 0; i < len(chain)-1; i++ {
		child, issuer := chain[i], chain[i+1]
		if err := child.CheckSignatureFrom(issuer); err != nil {
			return TrustVerdict{
				Trusted:  false,
				Reason:   ReasonInvalidSignature,
				Detail:   fmt.Sprintf("%s: %v", FormatDN(child.Subject), err),
				FailedAt: i,
			}, nil
		}

		verdict, err := v.linkTrust(ctx, child, issuer, validationTime, revData)
		if err != nil {
			return TrustVerdict{}, &InternalError{Link: &ChainLink{Child: child, Issuer: issuer}, Op: "trust-link", Err: err}
		}
		if !verdict.IsTrusted() {
			return TrustVerdict{
				Trusted:  false,
				Reason:   verdict.Reason,
				Detail:   verdict.Detail,
				FailedAt: i,
			}, nil
		}
	}

	return TrustVerdict{Trusted: true, FailedAt: -1}, nil
}

// linkTrust runs the registered pipeline for one adjacent pair,
// returning the first non-abstaining result. If every linker abstains,
// the configured RevocationPolicy decides the outcome.
func (v *TrustValidator) linkTrust(ctx context.Context, child, issuer *x509.Certificate, validationTime time.Time, revData *RevocationData) (TrustLinkerResult, error) {
	for _, linker := range v.linkers {
		res, err := linker.HasTrustLink(ctx, child, issuer, validationTime, revData)
		if err != nil {
			return TrustLinkerResult{}, err
		}
		if !res.IsAbstain() {
			return res, nil
		}
	}

	if v.revocationPolicy == FailOpen {
		return Trusted(), nil
	}
	return Untrusted(ReasonInvalidRevocationStatus, "no trust linker reached a verdict"), nil
}
