package crlext

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindExtension(t *testing.T) {
	exts := []pkix.Extension{
		{Id: OIDCRLNumber, Value: []byte{1}},
		{Id: OIDDeltaCRLIndicator, Value: []byte{2}},
	}
	found := FindExtension(exts, OIDDeltaCRLIndicator)
	require.NotNil(t, found)
	assert.Equal(t, []byte{2}, found.Value)

	assert.Nil(t, FindExtension(exts, OIDFreshestCRL))
}

func TestDeltaCRLIndicator(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		crl := &x509.RevocationList{}
		n, ok, err := DeltaCRLIndicator(crl)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, n)
	})

	t.Run("present", func(t *testing.T) {
		encoded, err := asn1.Marshal(big.NewInt(100))
		require.NoError(t, err)
		crl := &x509.RevocationList{Extensions: []pkix.Extension{
			{Id: OIDDeltaCRLIndicator, Value: encoded},
		}}
		n, ok, err := DeltaCRLIndicator(crl)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 0, n.Cmp(big.NewInt(100)))
	})

	t.Run("malformed", func(t *testing.T) {
		crl := &x509.RevocationList{Extensions: []pkix.Extension{
			{Id: OIDDeltaCRLIndicator, Value: []byte{0xFF, 0xFF}},
		}}
		_, ok, err := DeltaCRLIndicator(crl)
		assert.True(t, ok)
		assert.Error(t, err)
	})
}

// issuingDistPointFixture mirrors RFC 5280's IssuingDistributionPoint
// SEQUENCE, used only to build DER test fixtures.
type issuingDistPointFixture struct {
	OnlyContainsUserCerts bool `asn1:"optional,tag:1"`
	OnlyContainsCACerts   bool `asn1:"optional,tag:2"`
	IndirectCRL           bool `asn1:"optional,tag:4"`
}

func TestIsIndirectCRL(t *testing.T) {
	t.Run("absent extension is never indirect", func(t *testing.T) {
		crl := &x509.RevocationList{}
		indirect, err := IsIndirectCRL(crl)
		require.NoError(t, err)
		assert.False(t, indirect)
	})

	t.Run("indirectCRL true", func(t *testing.T) {
		encoded, err := asn1.Marshal(issuingDistPointFixture{IndirectCRL: true})
		require.NoError(t, err)
		crl := &x509.RevocationList{Extensions: []pkix.Extension{
			{Id: OIDIssuingDistributionPoint, Value: encoded},
		}}
		indirect, err := IsIndirectCRL(crl)
		require.NoError(t, err)
		assert.True(t, indirect)
	})

	t.Run("indirectCRL absent defaults false", func(t *testing.T) {
		encoded, err := asn1.Marshal(issuingDistPointFixture{OnlyContainsCACerts: true})
		require.NoError(t, err)
		crl := &x509.RevocationList{Extensions: []pkix.Extension{
			{Id: OIDIssuingDistributionPoint, Value: encoded},
		}}
		indirect, err := IsIndirectCRL(crl)
		require.NoError(t, err)
		assert.False(t, indirect)
	})
}

type distributionPointNameFixture struct {
	FullName []asn1.RawValue `asn1:"optional,tag:0"`
}

type distributionPointFixture struct {
	DistributionPoint distributionPointNameFixture `asn1:"optional,tag:0"`
}

func uriGeneralName(uri string) asn1.RawValue {
	return asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 6, Bytes: []byte(uri)}
}

func TestFreshestCRLURIs(t *testing.T) {
	t.Run("absent extension", func(t *testing.T) {
		uris, err := FreshestCRLURIs(nil)
		require.NoError(t, err)
		assert.Nil(t, uris)
	})

	t.Run("single URI", func(t *testing.T) {
		dp := distributionPointFixture{
			DistributionPoint: distributionPointNameFixture{
				FullName: []asn1.RawValue{uriGeneralName("http://example.com/delta.crl")},
			},
		}
		encoded, err := asn1.Marshal([]distributionPointFixture{dp})
		require.NoError(t, err)
		exts := []pkix.Extension{{Id: OIDFreshestCRL, Value: encoded}}

		uris, err := FreshestCRLURIs(exts)
		require.NoError(t, err)
		require.Len(t, uris, 1)
		assert.Equal(t, "http://example.com/delta.crl", uris[0])
	})

	t.Run("multiple distribution points", func(t *testing.T) {
		dp1 := distributionPointFixture{DistributionPoint: distributionPointNameFixture{
			FullName: []asn1.RawValue{uriGeneralName("http://example.com/delta1.crl")},
		}}
		dp2 := distributionPointFixture{DistributionPoint: distributionPointNameFixture{
			FullName: []asn1.RawValue{uriGeneralName("ldap://example.com/delta2")},
		}}
		encoded, err := asn1.Marshal([]distributionPointFixture{dp1, dp2})
		require.NoError(t, err)
		exts := []pkix.Extension{{Id: OIDFreshestCRL, Value: encoded}}

		uris, err := FreshestCRLURIs(exts)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"http://example.com/delta1.crl", "ldap://example.com/delta2"}, uris)
	})
}
