package certvalidator

import (
	"crypto/x509"
	"encoding/asn1"

	"github.com/jonboulle/clockwork"

	"github.com/gravitational/webeid-authtoken-validator/internal/errs"
)

// Result is the explicit output of the subject-certificate validator
// chain: the issuer found by the trust check, stashed for the OCSP
// stages that run after it (§4.3 step 4, §4.4).
type Result struct {
	Issuer *x509.Certificate
}

// Validate runs the fixed, ordered sequence of subject-certificate
// checks described in §4.3: purpose, validity window, policy exclusion,
// trust. It fails at the first failing check.
func Validate(cert *x509.Certificate, trusted *TrustedCAs, disallowedPolicyIDs []asn1.ObjectIdentifier, clock clockwork.Clock) (*Result, error) {
	if err := checkPurpose(cert); err != nil {
		return nil, err
	}
	if err := checkValidityWindow(cert, clock); err != nil {
		return nil, err
	}
	if err := checkPolicy(cert, disallowedPolicyIDs); err != nil {
		return nil, err
	}
	issuer, err := trusted.FindIssuer(cert)
	if err != nil {
		return nil, err
	}
	return &Result{Issuer: issuer}, nil
}

// checkPurpose requires KeyUsage digitalSignature and ExtKeyUsage
// clientAuth (OID 1.3.6.1.5.5.7.3.2), per §4.3 step 1.
func checkPurpose(cert *x509.Certificate) error {
	if cert.KeyUsage&x509.KeyUsageDigitalSignature == 0 {
		return errs.Newf(errs.CertificateNotTrusted, "certificate key usage does not include digitalSignature")
	}
	for _, eku := range cert.ExtKeyUsage {
		if eku == x509.ExtKeyUsageClientAuth {
			return nil
		}
	}
	for _, oid := range cert.UnknownExtKeyUsage {
		if oid.Equal(oidClientAuth) {
			return nil
		}
	}
	return errs.Newf(errs.CertificateNotTrusted, "certificate extended key usage does not include clientAuth")
}

var oidClientAuth = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 2}

// checkValidityWindow requires notBefore <= now <= notAfter, boundary
// inclusive, evaluated in UTC using the injected clock (§4.3 step 2).
func checkValidityWindow(cert *x509.Certificate, clock clockwork.Clock) error {
	now := clock.Now().UTC()
	if now.Before(cert.NotBefore.UTC()) {
		return errs.Newf(errs.CertificateNotYetValid, "certificate is not valid until %s", cert.NotBefore.UTC())
	}
	if now.After(cert.NotAfter.UTC()) {
		return errs.Newf(errs.CertificateExpired, "certificate expired at %s", cert.NotAfter.UTC())
	}
	return nil
}

// checkPolicy rejects any certificatePolicies OID configured as
// disallowed (§4.3 step 3).
func checkPolicy(cert *x509.Certificate, disallowed []asn1.ObjectIdentifier) error {
	if len(disallowed) == 0 {
		return nil
	}
	for _, have := range cert.PolicyIdentifiers {
		for _, bad := range disallowed {
			if have.Equal(bad) {
				return errs.Newf(errs.CertificateDisallowedPolicy, "certificate policy %s is disallowed", have)
			}
		}
	}
	return nil
}
