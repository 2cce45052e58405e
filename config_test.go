package webeid_test

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	webeid "github.com/gravitational/webeid-authtoken-validator"
	"github.com/gravitational/webeid-authtoken-validator/internal/ocspclient"
	"github.com/gravitational/webeid-authtoken-validator/testutil"
)

func testCA(t *testing.T) *x509.Certificate {
	t.Helper()
	now := time.Now()
	return testutil.NewCA(t, now.Add(-time.Hour), now.Add(time.Hour)).Cert
}

func TestNewConfigRejectsMissingScheme(t *testing.T) {
	_, err := webeid.NewConfig("relying-party.example", []*x509.Certificate{testCA(t)})
	require.Error(t, err)
}

func TestNewConfigRejectsTrailingSlash(t *testing.T) {
	_, err := webeid.NewConfig("https://relying-party.example/", []*x509.Certificate{testCA(t)})
	require.Error(t, err)
}

func TestNewConfigRejectsEmptyTrustedCAs(t *testing.T) {
	_, err := webeid.NewConfig("https://relying-party.example", nil)
	require.Error(t, err)
}

func TestNewConfigRejectsNegativeTimeout(t *testing.T) {
	_, err := webeid.NewConfig("https://relying-party.example", []*x509.Certificate{testCA(t)},
		webeid.WithOcspRequestTimeout(-time.Second))
	require.Error(t, err)
}

func TestNewConfigAppliesDefaults(t *testing.T) {
	cfg, err := webeid.NewConfig("https://relying-party.example", []*x509.Certificate{testCA(t)})
	require.NoError(t, err)
	require.NotNil(t, cfg)
}

func TestNewConfigAcceptsDesignatedService(t *testing.T) {
	now := time.Now()
	ca := testutil.NewCA(t, now.Add(-time.Hour), now.Add(time.Hour))
	responderCert, _ := ca.IssueOCSPResponder(t, 5, now.Add(-time.Hour), now.Add(time.Hour))

	cfg, err := webeid.NewConfig("https://relying-party.example", []*x509.Certificate{ca.Cert},
		webeid.WithDesignatedOcspService(ocspclient.DesignatedService{
			ResponderCertificate: responderCert,
			URL:                  "http://designated.example.test/ocsp",
			SupportedIssuers:     []pkix.Name{ca.Cert.Subject},
			SupportsNonce:        true,
		}))
	require.NoError(t, err)
	require.NotNil(t, cfg)
}
