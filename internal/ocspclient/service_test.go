package ocspclient

import (
	"crypto/x509/pkix"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/webeid-authtoken-validator/internal/errs"
	"github.com/gravitational/webeid-authtoken-validator/testutil"
)

func TestSelectServicePrefersDesignated(t *testing.T) {
	now := time.Now()
	ca := testutil.NewCA(t, now.Add(-time.Hour), now.Add(time.Hour))
	leaf, _ := ca.IssueLeaf(t, 1, testutil.LeafOptions{
		NotBefore:     now.Add(-time.Hour),
		NotAfter:      now.Add(time.Hour),
		OCSPServerURL: "http://aia.example.test/ocsp",
	})
	responderCert, _ := ca.IssueOCSPResponder(t, 2, now.Add(-time.Hour), now.Add(time.Hour))

	designated := &DesignatedService{
		ResponderCertificate: responderCert,
		URL:                  "http://designated.example.test/ocsp",
		SupportedIssuers:     []pkix.Name{leaf.Issuer},
		SupportsNonce:        true,
	}

	svc, err := SelectService(leaf, designated, nil)
	require.NoError(t, err)
	require.True(t, svc.Designated)
	require.Equal(t, "http://designated.example.test/ocsp", svc.URL)
}

func TestSelectServiceFallsBackToAIA(t *testing.T) {
	now := time.Now()
	ca := testutil.NewCA(t, now.Add(-time.Hour), now.Add(time.Hour))
	leaf, _ := ca.IssueLeaf(t, 1, testutil.LeafOptions{
		NotBefore:     now.Add(-time.Hour),
		NotAfter:      now.Add(time.Hour),
		OCSPServerURL: "http://aia.example.test/ocsp",
	})

	svc, err := SelectService(leaf, nil, nil)
	require.NoError(t, err)
	require.False(t, svc.Designated)
	require.Equal(t, "http://aia.example.test/ocsp", svc.URL)
	require.True(t, svc.SupportsNonce)
}

func TestSelectServiceNonceDisabledURL(t *testing.T) {
	now := time.Now()
	ca := testutil.NewCA(t, now.Add(-time.Hour), now.Add(time.Hour))
	leaf, _ := ca.IssueLeaf(t, 1, testutil.LeafOptions{
		NotBefore:     now.Add(-time.Hour),
		NotAfter:      now.Add(time.Hour),
		OCSPServerURL: "http://aia.example.test/ocsp",
	})

	svc, err := SelectService(leaf, nil, map[string]bool{"http://aia.example.test/ocsp": true})
	require.NoError(t, err)
	require.False(t, svc.SupportsNonce)
}

func TestSelectServiceMissingAIAURL(t *testing.T) {
	now := time.Now()
	ca := testutil.NewCA(t, now.Add(-time.Hour), now.Add(time.Hour))
	leaf, _ := ca.IssueLeaf(t, 1, testutil.LeafOptions{
		NotBefore: now.Add(-time.Hour),
		NotAfter:  now.Add(time.Hour),
	})

	_, err := SelectService(leaf, nil, nil)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.OcspUrlMissing))
}
