package ocspclient

import (
	"crypto/rand"
	"crypto/x509"

	"github.com/gravitational/trace"
)

// Request is a built OCSPRequest together with the state (CertID, nonce)
// needed to validate the matching response.
type Request struct {
	DER    []byte
	CertID CertID
	// Nonce is the 256-bit value sent in the id-pkix-ocsp-nonce
	// extension, retained for comparison against the response (§4.5,
	// §4.6 step 6). Nil when the service doesn't support nonces.
	Nonce []byte
}

// BuildRequest computes the CertID for issuer/subject and encodes a
// single-entry OCSPRequest, adding a fresh 256-bit nonce when the
// service supports it (§4.5).
func BuildRequest(issuer, subject *x509.Certificate, svc Service) (*Request, error) {
	certID, err := BuildCertID(issuer, subject)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	var nonce []byte
	if svc.SupportsNonce {
		nonce = make([]byte, 32)
		if _, err := rand.Read(nonce); err != nil {
			return nil, trace.Wrap(err, "generating OCSP nonce")
		}
	}

	der, err := encodeRequest(certID, nonce)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	return &Request{DER: der, CertID: certID, Nonce: nonce}, nil
}
