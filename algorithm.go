package jtrust

import "crypto/x509"

// AlgorithmPolicy decides whether a signature algorithm is acceptable.
// Certificate signatures (in the chain) and CRL signatures are judged
// separately because legacy CRLs are still commonly SHA-1-signed in
// deployed PKIs while chain certificates are held to a stricter bar.
type AlgorithmPolicy interface {
	CheckCertificateAlgorithm(alg x509.SignatureAlgorithm) TrustLinkerResult
	CheckCRLAlgorithm(alg x509.SignatureAlgorithm) TrustLinkerResult
}

// defaultAlgorithmPolicy rejects MD2, MD5 and UnknownSignatureAlgorithm
// (what Go reports for any OID it does not recognize) unconditionally,
// rejects SHA-1 variants for certificate signatures, and tolerates SHA-1
// variants for CRL signatures only. It is a denylist: every other
// algorithm Go recognizes is accepted, including RSA-PSS and Ed25519.
type defaultAlgorithmPolicy struct{}

// DefaultAlgorithmPolicy returns the library's built-in algorithm
// policy: RSA/ECDSA/DSA with SHA-256 or stronger is always accepted;
// SHA-1 variants are accepted only when checking a CRL signature; MD2,
// MD5, and unrecognized algorithms are always rejected. Algorithms
// outside the RSA/ECDSA/DSA families that Go recognizes (RSA-PSS,
// Ed25519) are not rejected either.
func DefaultAlgorithmPolicy() AlgorithmPolicy {
	return defaultAlgorithmPolicy{}
}

var alwaysWeakAlgorithms = map[x509.SignatureAlgorithm]bool{
	x509.UnknownSignatureAlgorithm: true,
	x509.MD2WithRSA:                true,
	x509.MD5WithRSA:                true,
}

var legacyOnlyAlgorithms = map[x509.SignatureAlgorithm]bool{
	x509.SHA1WithRSA:   true,
	x509.DSAWithSHA1:   true,
	x509.ECDSAWithSHA1: true,
}

func (defaultAlgorithmPolicy) CheckCertificateAlgorithm(alg x509.SignatureAlgorithm) TrustLinkerResult {
	if alwaysWeakAlgorithms[alg] || legacyOnlyAlgorithms[alg] {
		return Untrusted(ReasonInvalidAlgorithm, alg.String())
	}
	return Trusted()
}

func (defaultAlgorithmPolicy) CheckCRLAlgorithm(alg x509.SignatureAlgorithm) TrustLinkerResult {
	if alwaysWeakAlgorithms[alg] {
		return Untrusted(ReasonInvalidAlgorithm, alg.String())
	}
	return Trusted()
}
