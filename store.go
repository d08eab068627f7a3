package jtrust

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"strings"
)

// LoadCertificate reads a single PEM-encoded X.509 certificate from path.
func LoadCertificate(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("decode PEM block from %s", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse certificate from %s: %w", path, err)
	}
	return cert, nil
}

// LoadCertificates reads every PEM CERTIFICATE block in path, in order.
// Used to load a trust-anchor bundle or a leaf-to-root chain file.
func LoadCertificates(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificates: %w", err)
	}
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate from %s: %w", path, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no CERTIFICATE blocks found in %s", path)
	}
	return certs, nil
}

// LoadCRL reads a PEM-encoded CRL from path.
func LoadCRL(path string) (*x509.RevocationList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CRL: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("decode PEM block from %s", path)
	}
	crl, err := x509.ParseRevocationList(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse CRL: %w", err)
	}
	return crl, nil
}

// SaveCRLPEM writes a DER-encoded CRL as PEM to path, atomically.
// The CRL cache is in-memory only and does not call it.
func SaveCRLPEM(path string, crlDER []byte) error {
	pemBlock := pem.EncodeToMemory(&pem.Block{
		Type:  "X509 CRL",
		Bytes: crlDER,
	})
	return writeFileAtomic(path, pemBlock, 0644)
}

// FormatSerialBig renders a certificate serial number as a lowercase hex
// string, zero-padded to at least 2 digits, for diagnostic messages.
func FormatSerialBig(n *big.Int) string {
	if n == nil {
		return "00"
	}
	s := strings.ToLower(n.Text(16))
	if len(s) < 2 {
		s = "0" + s
	}
	return s
}

// writeFileAtomic writes data to a temporary file then renames it into
// place, so a reader never observes a partially written file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
