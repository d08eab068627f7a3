package jtrust

import (
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultAlgorithmPolicy_CheckCertificateAlgorithm(t *testing.T) {
	policy := DefaultAlgorithmPolicy()

	cases := []struct {
		name    string
		alg     x509.SignatureAlgorithm
		trusted bool
	}{
		{"ecdsa-sha256 accepted", x509.ECDSAWithSHA256, true},
		{"rsa-sha384 accepted", x509.SHA384WithRSA, true},
		{"rsa-sha1 rejected for certificates", x509.SHA1WithRSA, false},
		{"ecdsa-sha1 rejected for certificates", x509.ECDSAWithSHA1, false},
		{"md5 rejected", x509.MD5WithRSA, false},
		{"unknown rejected", x509.UnknownSignatureAlgorithm, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := policy.CheckCertificateAlgorithm(tc.alg)
			assert.Equal(t, tc.trusted, res.IsTrusted())
			if !tc.trusted {
				assert.Equal(t, ReasonInvalidAlgorithm, res.Reason)
			}
		})
	}
}

func TestDefaultAlgorithmPolicy_CheckCRLAlgorithm(t *testing.T) {
	policy := DefaultAlgorithmPolicy()

	// SHA-1 is tolerated for CRL signatures specifically, unlike for
	// certificate signatures above.
	res := policy.CheckCRLAlgorithm(x509.SHA1WithRSA)
	assert.True(t, res.IsTrusted())

	res = policy.CheckCRLAlgorithm(x509.MD5WithRSA)
	assert.True(t, res.IsUntrusted())

	res = policy.CheckCRLAlgorithm(x509.ECDSAWithSHA256)
	assert.True(t, res.IsTrusted())
}
