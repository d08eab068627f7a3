package jtrust

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCertPEM(t *testing.T, path string, certs ...*x509.Certificate) {
	t.Helper()
	var buf bytes.Buffer
	for _, c := range certs {
		require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: c.Raw}))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestLoadCertificate(t *testing.T) {
	root := generateTestRoot(t, "Root CA")
	path := filepath.Join(t.TempDir(), "root.pem")
	writeCertPEM(t, path, root.cert)

	got, err := LoadCertificate(path)
	require.NoError(t, err)
	assert.True(t, certificatesEqual(got, root.cert))
}

func TestLoadCertificate_MissingFile(t *testing.T) {
	_, err := LoadCertificate(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}

func TestLoadCertificates_MultipleBlocks(t *testing.T) {
	root := generateTestRoot(t, "Root CA")
	inter := generateTestIntermediate(t, root, "Intermediate CA", 2, "")
	path := filepath.Join(t.TempDir(), "chain.pem")
	writeCertPEM(t, path, inter.cert, root.cert)

	certs, err := LoadCertificates(path)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.True(t, certificatesEqual(certs[0], inter.cert))
	assert.True(t, certificatesEqual(certs[1], root.cert))
}

func TestLoadCertificates_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.pem")
	require.NoError(t, os.WriteFile(path, []byte("not pem data"), 0o600))
	_, err := LoadCertificates(path)
	assert.Error(t, err)
}

func TestFormatSerialBig(t *testing.T) {
	root := generateTestRoot(t, "Root CA")
	s := FormatSerialBig(root.cert.SerialNumber)
	assert.NotEmpty(t, s)
	assert.Equal(t, "00", FormatSerialBig(nil))
}

func TestLoadCRL_RoundTrip(t *testing.T) {
	root := generateTestRoot(t, "Root CA")
	crl := generateTestCRL(t, root, 1, root.cert.NotBefore, root.cert.NotAfter, nil, nil)

	path := filepath.Join(t.TempDir(), "root.crl.pem")
	require.NoError(t, SaveCRLPEM(path, crl.Raw))

	got, err := LoadCRL(path)
	require.NoError(t, err)
	assert.Equal(t, crl.Number.Int64(), got.Number.Int64())
}
