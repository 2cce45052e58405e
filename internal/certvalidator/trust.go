// Package certvalidator implements the trust-chain check (§4.2) and the
// ordered subject-certificate validator chain (§4.3).
package certvalidator

import (
	"bytes"
	"crypto/x509"

	"github.com/gravitational/webeid-authtoken-validator/internal/errs"
)

// TrustedCAs is an ordered set of intermediate CA certificates treated as
// trust anchors. The set is expected to contain direct issuers: this
// package verifies a single hop and never walks to a root (§4.2, §9).
type TrustedCAs struct {
	certs []*x509.Certificate
}

// NewTrustedCAs builds a TrustedCAs set. At least one certificate is
// required, mirroring the Configuration invariant in §3.
func NewTrustedCAs(certs []*x509.Certificate) (*TrustedCAs, error) {
	if len(certs) == 0 {
		return nil, errs.Newf(errs.CertificateNotTrusted, "trusted CA set must not be empty")
	}
	out := make([]*x509.Certificate, len(certs))
	copy(out, certs)
	return &TrustedCAs{certs: out}, nil
}

// All returns the configured trust anchors, in configuration order.
func (t *TrustedCAs) All() []*x509.Certificate {
	out := make([]*x509.Certificate, len(t.certs))
	copy(out, t.certs)
	return out
}

// FindIssuer finds the trusted certificate whose subject DN matches
// subject's issuer DN and whose public key verifies subject's signature.
// The first candidate that verifies wins; no attempt is made to find a
// "better" candidate if more than one trusted certificate shares the DN.
func (t *TrustedCAs) FindIssuer(subject *x509.Certificate) (*x509.Certificate, error) {
	var sameDN bool
	for _, candidate := range t.certs {
		if !bytes.Equal(candidate.RawSubject, subject.RawIssuer) {
			continue
		}
		sameDN = true
		if err := candidate.CheckSignature(subject.SignatureAlgorithm, subject.RawTBSCertificate, subject.Signature); err == nil {
			return candidate, nil
		}
	}
	if sameDN {
		return nil, errs.Newf(errs.CertificateNotTrusted, "certificate signature does not verify against trusted issuer %q", subject.Issuer)
	}
	return nil, errs.Newf(errs.CertificateNotTrusted, "no trusted CA matches issuer %q", subject.Issuer)
}
