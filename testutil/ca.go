// Package testutil builds throwaway X.509 trust chains and OCSP
// responders for tests across this module's packages.
package testutil

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var oidClientAuth = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 2}
var oidOCSPSigning = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 9}

// CA is a generated, self-signed intermediate certificate authority
// usable as a trust anchor in certvalidator.TrustedCAs.
type CA struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// NewCA builds a self-signed CA valid for the given window.
func NewCA(t *testing.T, notBefore, notAfter time.Time) *CA {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "Test Intermediate CA"},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &CA{Cert: cert, Key: key}
}

// LeafOptions customizes IssueLeaf.
type LeafOptions struct {
	NotBefore        time.Time
	NotAfter         time.Time
	PolicyOIDs       []asn1.ObjectIdentifier
	OmitClientAuth   bool
	OCSPServerURL    string
	SignatureKey     crypto.Signer // defaults to a fresh P-256 key
}

// IssueLeaf issues an authentication certificate signed by ca, with
// digitalSignature + clientAuth key usage unless OmitClientAuth is set.
func (ca *CA) IssueLeaf(t *testing.T, serial int64, opts LeafOptions) (*x509.Certificate, crypto.Signer) {
	t.Helper()

	key := opts.SignatureKey
	if key == nil {
		generated, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		key = generated
	}

	ekus := []x509.ExtKeyUsage{}
	var unknownEKUs []asn1.ObjectIdentifier
	if !opts.OmitClientAuth {
		unknownEKUs = append(unknownEKUs, oidClientAuth)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               pkix.Name{CommonName: "Test Subject"},
		NotBefore:              opts.NotBefore,
		NotAfter:               opts.NotAfter,
		KeyUsage:               x509.KeyUsageDigitalSignature,
		ExtKeyUsage:            ekus,
		UnknownExtKeyUsage:     unknownEKUs,
		PolicyIdentifiers:      opts.PolicyOIDs,
		BasicConstraintsValid:  true,
	}
	if opts.OCSPServerURL != "" {
		tmpl.OCSPServer = []string{opts.OCSPServerURL}
	}

	signerPub := publicKey(key)
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.Cert, signerPub, ca.Key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return cert, key
}

// IssueOCSPResponder issues a certificate with the id-kp-OCSPSigning EKU,
// signed by ca, for use as an OCSP responder in AIA mode.
func (ca *CA) IssueOCSPResponder(t *testing.T, serial int64, notBefore, notAfter time.Time) (*x509.Certificate, crypto.Signer) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(serial),
		Subject:               pkix.Name{CommonName: "Test OCSP Responder"},
		NotBefore:              notBefore,
		NotAfter:               notAfter,
		KeyUsage:               x509.KeyUsageDigitalSignature,
		UnknownExtKeyUsage:     []asn1.ObjectIdentifier{oidOCSPSigning},
		BasicConstraintsValid:  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.Cert, &key.PublicKey, ca.Key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return cert, key
}

func publicKey(signer crypto.Signer) crypto.PublicKey {
	return signer.Public()
}
