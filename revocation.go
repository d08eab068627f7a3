package jtrust

import "sync"

// CRLRevocationData is one CRL actually consulted while establishing a
// trust verdict, kept in raw encoded form so a caller can archive or
// re-verify it independently of this library's parsed representation.
type CRLRevocationData struct {
	URI string
	Raw []byte
}

// OCSPRevocationData is one raw encoded OCSP response actually consulted.
type OCSPRevocationData struct {
	Raw []byte
}

// RevocationData is an append-only collector of the revocation evidence
// consulted during a single IsTrusted call. It is owned by the caller:
// create one, pass it to TrustValidator.IsTrusted (passing nil discards
// the evidence), and read it back after the call returns. It is not
// safe to share across concurrent validations.
type RevocationData struct {
	mu    sync.Mutex
	crls  []CRLRevocationData
	ocsps []OCSPRevocationData
}

// NewRevocationData returns an empty collector.
func NewRevocationData() *RevocationData {
	return &RevocationData{}
}

// AddCRL records a CRL consulted for a revocation decision.
func (r *RevocationData) AddCRL(uri string, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crls = append(r.crls, CRLRevocationData{URI: uri, Raw: append([]byte(nil), raw...)})
}

// AddOCSP records an OCSP response consulted for a revocation decision.
func (r *RevocationData) AddOCSP(raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ocsps = append(r.ocsps, OCSPRevocationData{Raw: append([]byte(nil), raw...)})
}

// CRLs returns the CRLs collected so far, in consultation order.
func (r *RevocationData) CRLs() []CRLRevocationData {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CRLRevocationData, len(r.crls))
	copy(out, r.crls)
	return out
}

// OCSPResponses returns the OCSP responses collected so far, in
// consultation order.
func (r *RevocationData) OCSPResponses() []OCSPRevocationData {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OCSPRevocationData, len(r.ocsps))
	copy(out, r.ocsps)
	return out
}
