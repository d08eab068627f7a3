// Package crlext parses the CRL extensions Go's standard library
// leaves as raw pkix.Extension values: DeltaCRLIndicator,
// IssuingDistributionPoint, and FreshestCRL. x509.RevocationList
// already exposes Number (CRLNumber) and Extensions, so only these
// three need manual ASN.1 decoding.
package crlext

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// RFC 5280 section 5.2 extension object identifiers.
var (
	OIDCRLNumber                asn1.ObjectIdentifier = []int{2, 5, 29, 20}
	OIDDeltaCRLIndicator        asn1.ObjectIdentifier = []int{2, 5, 29, 27}
	OIDIssuingDistributionPoint asn1.ObjectIdentifier = []int{2, 5, 29, 28}
	OIDFreshestCRL              asn1.ObjectIdentifier = []int{2, 5, 29, 46}
)

// FindExtension returns the first extension in exts matching oid, or
// nil if none matches.
func FindExtension(exts []pkix.Extension, oid asn1.ObjectIdentifier) *pkix.Extension {
	for i := range exts {
		if exts[i].Id.Equal(oid) {
			return &exts[i]
		}
	}
	return nil
}

// DeltaCRLIndicator returns the BaseCRLNumber carried by crl's
// DeltaCRLIndicator extension. ok is false when the extension is
// absent, meaning crl is a base CRL rather than a delta.
func DeltaCRLIndicator(crl *x509.RevocationList) (baseCRLNumber *big.Int, ok bool, err error) {
	ext := FindExtension(crl.Extensions, OIDDeltaCRLIndicator)
	if ext == nil {
		return nil, false, nil
	}
	n := new(big.Int)
	value := cryptobyte.String(ext.Value)
	if !value.ReadASN1Integer(n) {
		return nil, true, errors.New("malformed DeltaCRLIndicator extension")
	}
	return n, true, nil
}

// issuingDistributionPointInfo holds the boolean fields of the ASN.1
// SEQUENCE defined in RFC 5280 section 5.2.5; the other fields are
// skipped in place.
type issuingDistributionPointInfo struct {
	OnlyContainsUserCerts bool
	OnlyContainsCACerts   bool
	IndirectCRL           bool
	OnlyContainsAttrCerts bool
}

// IsIndirectCRL reports whether crl's IssuingDistributionPoint
// extension sets the indirectCRL boolean. A CRL lacking the extension
// is never indirect.
func IsIndirectCRL(crl *x509.RevocationList) (bool, error) {
	ext := FindExtension(crl.Extensions, OIDIssuingDistributionPoint)
	if ext == nil {
		return false, nil
	}
	info, err := parseIssuingDistributionPoint(ext.Value)
	if err != nil {
		return false, fmt.Errorf("malformed IssuingDistributionPoint extension: %w", err)
	}
	return info.IndirectCRL, nil
}

// parseIssuingDistributionPoint walks the outer SEQUENCE, reading each
// implicitly context-tagged field by its tag, and treating any field
// this package does not care about (distributionPoint, onlySomeReasons,
// indirectCRL's sibling booleans when absent) as opaque and skippable.
//
//	IssuingDistributionPoint ::= SEQUENCE {
//	     distributionPoint          [0] DistributionPointName OPTIONAL,
//	     onlyContainsUserCerts      [1] BOOLEAN DEFAULT FALSE,
//	     onlyContainsCACerts        [2] BOOLEAN DEFAULT FALSE,
//	     onlySomeReasons            [3] ReasonFlags OPTIONAL,
//	     indirectCRL                [4] BOOLEAN DEFAULT FALSE,
//	     onlyContainsAttributeCerts [5] BOOLEAN DEFAULT FALSE }
func parseIssuingDistributionPoint(der []byte) (issuingDistributionPointInfo, error) {
	var info issuingDistributionPointInfo
	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, cbasn1.SEQUENCE) {
		return info, errors.New("expected outer SEQUENCE")
	}

	for !seq.Empty() {
		// ReadAnyASN1Element consumes one full TLV (header + content)
		// from seq and reports its tag; elemTLV still carries its own
		// header, which ReadASN1 below strips off.
		var elemTLV cryptobyte.String
		var tag cbasn1.Tag
		if !seq.ReadAnyASN1Element(&elemTLV, &tag) {
			return info, errors.New("malformed element")
		}
		var content cryptobyte.String
		if !elemTLV.ReadASN1(&content, tag) {
			return info, errors.New("malformed element content")
		}
		switch tag {
		case cbasn1.Tag(1).ContextSpecific():
			info.OnlyContainsUserCerts = readBool(content)
		case cbasn1.Tag(2).ContextSpecific():
			info.OnlyContainsCACerts = readBool(content)
		case cbasn1.Tag(4).ContextSpecific():
			info.IndirectCRL = readBool(content)
		case cbasn1.Tag(5).ContextSpecific():
			info.OnlyContainsAttrCerts = readBool(content)
		default:
			// distributionPoint [0] and onlySomeReasons [3] (and
			// anything unrecognized) are not needed by this package.
		}
	}
	return info, nil
}

func readBool(elem cryptobyte.String) bool {
	return len(elem) == 1 && elem[0] != 0x00
}

// readElement consumes one full TLV from s, returning the TLV bytes
// (header included, so the caller can still strip it with ReadASN1
// against the now-known tag) and that tag.
func readElement(s *cryptobyte.String) (tlv cryptobyte.String, tag cbasn1.Tag, ok bool) {
	ok = s.ReadAnyASN1Element(&tlv, &tag)
	return tlv, tag, ok
}

// FreshestCRLURIs returns the uniformResourceIdentifier GeneralName
// values from exts' FreshestCRL (delta CRL distribution point)
// extension, flattened across all DistributionPoints the same way Go's
// stdlib already flattens CRLDistributionPoints.
func FreshestCRLURIs(exts []pkix.Extension) ([]string, error) {
	ext := FindExtension(exts, OIDFreshestCRL)
	if ext == nil {
		return nil, nil
	}
	return parseDistributionPointURIs(ext.Value)
}

// parseDistributionPointURIs implements just enough of RFC 5280's
// CRLDistPointsSyntax to pull out fullName URIs:
//
//	CRLDistPointsSyntax ::= SEQUENCE SIZE (1..MAX) OF DistributionPoint
//	DistributionPoint ::= SEQUENCE {
//	     distributionPoint [0] DistributionPointName OPTIONAL, ... }
//	DistributionPointName ::= CHOICE {
//	     fullName [0] GeneralNames, ... }
//	GeneralName ::= CHOICE { uniformResourceIdentifier [6] IA5String, ... }
func parseDistributionPointURIs(der []byte) ([]string, error) {
	var uris []string
	input := cryptobyte.String(der)
	var outer cryptobyte.String
	if !input.ReadASN1(&outer, cbasn1.SEQUENCE) {
		return nil, errors.New("expected outer SEQUENCE")
	}
	tagDistributionPoint := cbasn1.Tag(0).ContextSpecific().Constructed()
	tagFullName := cbasn1.Tag(0).ContextSpecific().Constructed()
	tagURI := cbasn1.Tag(6).ContextSpecific()

	for !outer.Empty() {
		var dp cryptobyte.String
		if !outer.ReadASN1(&dp, cbasn1.SEQUENCE) {
			return nil, errors.New("malformed DistributionPoint")
		}
		for !dp.Empty() {
			fieldTLV, tag, ok := readElement(&dp)
			if !ok {
				return nil, errors.New("malformed DistributionPoint field")
			}
			if tag != tagDistributionPoint {
				continue
			}
			// distributionPoint [0] DistributionPointName, itself a CHOICE;
			// its content is the fullName [0] GeneralNames we care about.
			var dpName cryptobyte.String
			if !fieldTLV.ReadASN1(&dpName, tag) {
				continue
			}
			for !dpName.Empty() {
				nameTLV, nameTag, ok := readElement(&dpName)
				if !ok {
					break
				}
				if nameTag != tagFullName {
					continue
				}
				var fullName cryptobyte.String
				if !nameTLV.ReadASN1(&fullName, nameTag) {
					continue
				}
				for !fullName.Empty() {
					gnTLV, gnTag, ok := readElement(&fullName)
					if !ok {
						break
					}
					if gnTag != tagURI {
						continue
					}
					var uri cryptobyte.String
					if !gnTLV.ReadASN1(&uri, gnTag) {
						continue
					}
					uris = append(uris, string(uri))
				}
			}
		}
	}
	return uris, nil
}
