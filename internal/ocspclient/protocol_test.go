package ocspclient

import (
	"encoding/asn1"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/webeid-authtoken-validator/testutil"
)

func TestBuildCertIDStable(t *testing.T) {
	now := time.Now()
	ca := testutil.NewCA(t, now.Add(-time.Hour), now.Add(time.Hour))
	leaf, _ := ca.IssueLeaf(t, 42, testutil.LeafOptions{NotBefore: now.Add(-time.Hour), NotAfter: now.Add(time.Hour)})

	id1, err := BuildCertID(ca.Cert, leaf)
	require.NoError(t, err)
	id2, err := BuildCertID(ca.Cert, leaf)
	require.NoError(t, err)
	require.True(t, id1.Equal(id2))
}

func TestCertIDNotEqualOnDifferentSerial(t *testing.T) {
	now := time.Now()
	ca := testutil.NewCA(t, now.Add(-time.Hour), now.Add(time.Hour))
	leaf1, _ := ca.IssueLeaf(t, 1, testutil.LeafOptions{NotBefore: now.Add(-time.Hour), NotAfter: now.Add(time.Hour)})
	leaf2, _ := ca.IssueLeaf(t, 2, testutil.LeafOptions{NotBefore: now.Add(-time.Hour), NotAfter: now.Add(time.Hour)})

	id1, err := BuildCertID(ca.Cert, leaf1)
	require.NoError(t, err)
	id2, err := BuildCertID(ca.Cert, leaf2)
	require.NoError(t, err)
	require.False(t, id1.Equal(id2))
}

func TestEncodeRequestRoundTripsCertID(t *testing.T) {
	now := time.Now()
	ca := testutil.NewCA(t, now.Add(-time.Hour), now.Add(time.Hour))
	leaf, _ := ca.IssueLeaf(t, 7, testutil.LeafOptions{NotBefore: now.Add(-time.Hour), NotAfter: now.Add(time.Hour)})

	certID, err := BuildCertID(ca.Cert, leaf)
	require.NoError(t, err)

	der, err := encodeRequest(certID, []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	require.NotEmpty(t, der)

	var parsed ocspRequestASN1
	rest, err := asn1.Unmarshal(der, &parsed)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Len(t, parsed.TBSRequest.RequestList, 1)
	require.True(t, parsed.TBSRequest.RequestList[0].ReqCert.fromWire().Equal(certID))
}
