package jtrust

import (
	"bytes"
	"crypto/x509"
)

// TrustAnchorStore is a set of self-signed roots accepted as terminal
// authority. Updates are expected to be rare and must be externally
// synchronized; reads during validation take no lock.
type TrustAnchorStore struct {
	anchors []*x509.Certificate
}

// NewTrustAnchorStore builds a store from the given roots.
func NewTrustAnchorStore(anchors ...*x509.Certificate) *TrustAnchorStore {
	return &TrustAnchorStore{anchors: append([]*x509.Certificate(nil), anchors...)}
}

// Add appends a root to the store. Callers must ensure this is not
// called concurrently with a validation in progress.
func (s *TrustAnchorStore) Add(anchor *x509.Certificate) {
	s.anchors = append(s.anchors, anchor)
}

// Contains reports whether cert matches one of the stored anchors by
// exact equality: subject, issuer, serial number, and signature.
func (s *TrustAnchorStore) Contains(cert *x509.Certificate) bool {
	for _, anchor := range s.anchors {
		if certificatesEqual(cert, anchor) {
			return true
		}
	}
	return false
}

// Len reports how many anchors are stored.
func (s *TrustAnchorStore) Len() int { return len(s.anchors) }

func certificatesEqual(a, b *x509.Certificate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.SerialNumber.Cmp(b.SerialNumber) == 0 &&
		bytes.Equal(a.RawSubject, b.RawSubject) &&
		bytes.Equal(a.RawIssuer, b.RawIssuer) &&
		bytes.Equal(a.Signature, b.Signature)
}
