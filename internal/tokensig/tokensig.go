// Package tokensig verifies the token's signature over the
// origin/challenge-nonce binding (§4.7).
package tokensig

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"

	"github.com/gravitational/webeid-authtoken-validator/internal/errs"
	"github.com/gravitational/webeid-authtoken-validator/internal/sigcodec"
)

// SignedBlob computes H(origin) ‖ H(nonce), the exact bytes the smart
// card signs, using the hash implied by alg. origin and nonce are hashed
// as-is: no canonicalization happens here (§4.7, §6).
func SignedBlob(hash crypto.Hash, origin string, nonce []byte) []byte {
	h := hash.New()
	h.Write([]byte(origin))
	originDigest := h.Sum(nil)

	h = hash.New()
	h.Write(nonce)
	nonceDigest := h.Sum(nil)

	blob := make([]byte, 0, len(originDigest)+len(nonceDigest))
	blob = append(blob, originDigest...)
	blob = append(blob, nonceDigest...)
	return blob
}

// Verify checks that signature authenticates origin‖nonce under pub,
// using the scheme alg implies. pub must be an *ecdsa.PublicKey or
// *rsa.PublicKey; any other type fails with UnsupportedAlgorithm.
func Verify(alg string, signature []byte, pub crypto.PublicKey, origin string, nonce []byte) error {
	algo, err := sigcodec.Lookup(alg)
	if err != nil {
		return err
	}

	// The card signs the blob with <scheme>-with-H, so the value handed
	// to the verification primitives is H(blob), not the blob itself.
	h := algo.Hash.New()
	h.Write(SignedBlob(algo.Hash, origin, nonce))
	digest := h.Sum(nil)

	switch algo.Scheme {
	case sigcodec.SchemeECDSA:
		ecdsaPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return errs.Newf(errs.TokenSignatureInvalid, "certificate public key is not ECDSA but algorithm %s requires it", alg)
		}
		return sigcodec.VerifyECDSA(ecdsaPub, digest, signature, algo.CurveWidth)
	case sigcodec.SchemeRSAPSS:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return errs.Newf(errs.TokenSignatureInvalid, "certificate public key is not RSA but algorithm %s requires it", alg)
		}
		return sigcodec.VerifyRSAPSS(rsaPub, algo.Hash, digest, signature)
	case sigcodec.SchemeRSAPKCS1v15:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return errs.Newf(errs.TokenSignatureInvalid, "certificate public key is not RSA but algorithm %s requires it", alg)
		}
		return sigcodec.VerifyRSAPKCS1v15(rsaPub, algo.Hash, digest, signature)
	default:
		return errs.Newf(errs.UnsupportedAlgorithm, "unhandled scheme for algorithm %s", alg)
	}
}
