package certvalidator_test

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/webeid-authtoken-validator/internal/certvalidator"
	"github.com/gravitational/webeid-authtoken-validator/internal/errs"
	"github.com/gravitational/webeid-authtoken-validator/testutil"
)

func TestNewTrustedCAsRejectsEmptySet(t *testing.T) {
	_, err := certvalidator.NewTrustedCAs(nil)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.CertificateNotTrusted))
}

func TestFindIssuerMatchesBySignature(t *testing.T) {
	ca := testutil.NewCA(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	leaf, _ := ca.IssueLeaf(t, 1, testutil.LeafOptions{
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(time.Hour),
	})

	trusted, err := certvalidator.NewTrustedCAs([]*x509.Certificate{ca.Cert})
	require.NoError(t, err)

	issuer, err := trusted.FindIssuer(leaf)
	require.NoError(t, err)
	require.Equal(t, ca.Cert.Raw, issuer.Raw)
}

func TestFindIssuerRejectsUntrustedSigner(t *testing.T) {
	ca1 := testutil.NewCA(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	ca2 := testutil.NewCA(t, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	leaf, _ := ca2.IssueLeaf(t, 1, testutil.LeafOptions{
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(time.Hour),
	})

	trusted, err := certvalidator.NewTrustedCAs([]*x509.Certificate{ca1.Cert})
	require.NoError(t, err)

	_, err = trusted.FindIssuer(leaf)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.CertificateNotTrusted))
}
