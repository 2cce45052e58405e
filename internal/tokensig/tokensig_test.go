package tokensig_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/webeid-authtoken-validator/internal/errs"
	"github.com/gravitational/webeid-authtoken-validator/internal/sigcodec"
	"github.com/gravitational/webeid-authtoken-validator/internal/tokensig"
)

func signES384(t *testing.T, key *ecdsa.PrivateKey, origin string, nonce []byte) []byte {
	t.Helper()
	algo, err := sigcodec.Lookup("ES384")
	require.NoError(t, err)
	h := algo.Hash.New()
	h.Write(tokensig.SignedBlob(algo.Hash, origin, nonce))

	r, s, err := ecdsa.Sign(rand.Reader, key, h.Sum(nil))
	require.NoError(t, err)

	raw := make([]byte, algo.CurveWidth*2)
	rb, sb := r.Bytes(), s.Bytes()
	copy(raw[algo.CurveWidth-len(rb):algo.CurveWidth], rb)
	copy(raw[2*algo.CurveWidth-len(sb):], sb)
	return raw
}

func TestVerifyES384HappyPath(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)

	nonce := []byte("challenge-nonce")
	origin := "https://example.com"
	sig := signES384(t, key, origin, nonce)

	err = tokensig.Verify("ES384", sig, &key.PublicKey, origin, nonce)
	require.NoError(t, err)
}

func TestVerifyRejectsTamperedNonce(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)

	origin := "https://example.com"
	sig := signES384(t, key, origin, []byte("challenge-nonce"))

	err = tokensig.Verify("ES384", sig, &key.PublicKey, origin, []byte("different-nonce"))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.TokenSignatureInvalid))
}

func TestVerifyRejectsTamperedOrigin(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)

	nonce := []byte("challenge-nonce")
	sig := signES384(t, key, "https://example.com", nonce)

	err = tokensig.Verify("ES384", sig, &key.PublicKey, "https://evil.example", nonce)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.TokenSignatureInvalid))
}

func TestVerifyUnsupportedAlgorithm(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)

	err = tokensig.Verify("HS256", []byte{1, 2, 3}, &key.PublicKey, "https://example.com", []byte("n"))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.UnsupportedAlgorithm))
}

func TestVerifyWrongKeyType(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	sig := signES384(t, key, "https://example.com", []byte("n"))

	err = tokensig.Verify("RS256", sig, &key.PublicKey, "https://example.com", []byte("n"))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.TokenSignatureInvalid))
}
