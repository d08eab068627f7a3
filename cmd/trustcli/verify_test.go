package main

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type genCA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

func writePEMChain(t *testing.T, path string, certs ...*x509.Certificate) {
	t.Helper()
	var buf bytes.Buffer
	for _, c := range certs {
		require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: c.Raw}))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func mustGenCA(t *testing.T, cn string) genCA {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour * 24 * 365),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return genCA{cert: cert, key: key}
}

func mustGenLeaf(t *testing.T, issuer genCA, cn string, serial int64) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour * 24 * 365),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, issuer.cert, &key.PublicKey, issuer.key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestRunVerify_NoRevocationPointsFailsClosed(t *testing.T) {
	dir := t.TempDir()
	root := mustGenCA(t, "Root CA")
	leaf := mustGenLeaf(t, root, "leaf.example.com", 2)

	anchorPath := filepath.Join(dir, "anchors.pem")
	chainPath := filepath.Join(dir, "chain.pem")
	writePEMChain(t, anchorPath, root.cert)
	writePEMChain(t, chainPath, leaf, root.cert)

	cmd := newVerifyCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--anchor", anchorPath, chainPath})
	err := cmd.Execute()
	// The leaf names no CRL distribution point, so the CRL linker abstains
	// and the CLI's FailClosed policy rejects the otherwise valid chain.
	require.ErrorIs(t, err, errUntrustedChain)
	require.Contains(t, out.String(), "UNTRUSTED")
	require.Contains(t, out.String(), "INVALID_REVOCATION_STATUS")
}

func TestRunVerify_UntrustedRoot(t *testing.T) {
	dir := t.TempDir()
	root := mustGenCA(t, "Root CA")
	otherRoot := mustGenCA(t, "Other Root CA")
	leaf := mustGenLeaf(t, root, "leaf.example.com", 2)

	anchorPath := filepath.Join(dir, "anchors.pem")
	chainPath := filepath.Join(dir, "chain.pem")
	writePEMChain(t, anchorPath, otherRoot.cert)
	writePEMChain(t, chainPath, leaf, root.cert)

	cmd := newVerifyCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--anchor", anchorPath, chainPath})
	err := cmd.Execute()
	require.ErrorIs(t, err, errUntrustedChain)
	require.Contains(t, out.String(), "UNTRUSTED")
}

func TestRunVerify_MissingAnchorFlag(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"verify", "chain.pem"})
	err := cmd.Execute()
	require.Error(t, err)
}
