package jtrust

import (
	"crypto/x509/pkix"
	"strings"
)

// FormatDN renders a pkix.Name as a comma-separated DN string in
// CN, O, OU, L, ST, C order, skipping empty fields. Used to produce
// human-readable diagnostics on Untrusted verdicts; never parsed back.
func FormatDN(name pkix.Name) string {
	var parts []string
	if name.CommonName != "" {
		parts = append(parts, "CN="+name.CommonName)
	}
	for _, o := range name.Organization {
		parts = append(parts, "O="+o)
	}
	for _, ou := range name.OrganizationalUnit {
		parts = append(parts, "OU="+ou)
	}
	for _, l := range name.Locality {
		parts = append(parts, "L="+l)
	}
	for _, st := range name.Province {
		parts = append(parts, "ST="+st)
	}
	for _, c := range name.Country {
		parts = append(parts, "C="+c)
	}
	return strings.Join(parts, ",")
}
