package ocspclient

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"net/url"

	"github.com/gravitational/webeid-authtoken-validator/internal/errs"
)

// DesignatedService is a responder pinned by configuration and used
// instead of AIA whenever it supports the subject's issuer (§4.4,
// §3 "DesignatedOcspServiceConfig").
type DesignatedService struct {
	ResponderCertificate *x509.Certificate
	URL                  string
	SupportedIssuers     []pkix.Name
	SupportsNonce        bool
}

// Service is the resolved OCSP responder for one validation request:
// either the configured designated service, or one derived from the
// subject certificate's Authority Information Access extension.
type Service struct {
	URL                  string
	SupportsNonce        bool
	Designated           bool
	PinnedResponderCert  *x509.Certificate // non-nil only when Designated
}

// SelectService implements §4.4: prefer the designated service when
// configured and it names the subject's issuer; otherwise fall back to
// the certificate's AIA OCSP URL.
func SelectService(subject *x509.Certificate, designated *DesignatedService, nonceDisabledURLs map[string]bool) (Service, error) {
	if designated != nil && issuerSupported(designated, subject.Issuer) {
		return Service{
			URL:                 designated.URL,
			SupportsNonce:       designated.SupportsNonce,
			Designated:          true,
			PinnedResponderCert: designated.ResponderCertificate,
		}, nil
	}

	aiaURL, err := firstOCSPURL(subject)
	if err != nil {
		return Service{}, err
	}

	return Service{
		URL:           aiaURL,
		SupportsNonce: !nonceDisabledURLs[aiaURL],
	}, nil
}

func issuerSupported(designated *DesignatedService, issuer pkix.Name) bool {
	for _, supported := range designated.SupportedIssuers {
		if supported.String() == issuer.String() {
			return true
		}
	}
	return false
}

// firstOCSPURL extracts the first Authority Information Access URL with
// accessMethod id-ad-ocsp (§9: "selects the first URL and ignores
// others"). crypto/x509 already parses the AIA extension and filters it
// to id-ad-ocsp entries in Certificate.OCSPServer.
func firstOCSPURL(cert *x509.Certificate) (string, error) {
	for _, rawURL := range cert.OCSPServer {
		if _, err := url.Parse(rawURL); err == nil {
			return rawURL, nil
		}
	}
	return "", errs.Newf(errs.OcspUrlMissing, "certificate has no Authority Information Access OCSP URL")
}
