// Package jtrust validates X.509 certificate chains against a configured
// set of trust anchors and produces a trust decision together with the
// revocation evidence that justifies it.
//
// A TrustValidator walks a pre-ordered chain (leaf first, trust-anchor
// candidate last), enforcing certificate validity windows, signature
// algorithm strength, and parent/child signatures, then consults a
// pluggable, ordered pipeline of TrustLinker implementations to decide
// the revocation status of every adjacent pair. The CRL-based linker in
// this package (CRLTrustLinker) is the reference implementation; an
// OCSP-based linker satisfying the same contract lives in
// internal/ocsplinker and can be registered ahead of it.
package jtrust
