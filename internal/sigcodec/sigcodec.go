// Package sigcodec maps Web eID JWS algorithm identifiers to a hash and
// signature scheme, and transcodes the ECDSA raw ‖R‖S signature format
// produced by smart cards into ASN.1 DER, the form crypto/ecdsa expects.
package sigcodec

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"math/big"

	"github.com/gravitational/trace"
	"golang.org/x/crypto/cryptobyte"
	casn1 "golang.org/x/crypto/cryptobyte/asn1"

	"github.com/gravitational/webeid-authtoken-validator/internal/errs"
)

// Scheme identifies the signature algorithm family implied by a JWS alg.
type Scheme int

const (
	// SchemeECDSA signs raw ‖R‖S pairs, one per supported curve width.
	SchemeECDSA Scheme = iota
	// SchemeRSAPSS signs with RSA-PSS, MGF1 using the same hash, salt
	// length equal to the hash size.
	SchemeRSAPSS
	// SchemeRSAPKCS1v15 signs with classic RSA PKCS#1 v1.5.
	SchemeRSAPKCS1v15
)

// Algorithm describes one supported JWS alg value.
type Algorithm struct {
	Name   string
	Hash   crypto.Hash
	Scheme Scheme
	// CurveWidth is the fixed byte width of R and S for ECDSA algorithms
	// (32/48/66 for P-256/P-384/P-521); zero for RSA algorithms.
	CurveWidth int
}

var supported = map[string]Algorithm{
	"ES256": {Name: "ES256", Hash: crypto.SHA256, Scheme: SchemeECDSA, CurveWidth: 32},
	"ES384": {Name: "ES384", Hash: crypto.SHA384, Scheme: SchemeECDSA, CurveWidth: 48},
	"ES512": {Name: "ES512", Hash: crypto.SHA512, Scheme: SchemeECDSA, CurveWidth: 66},
	"PS256": {Name: "PS256", Hash: crypto.SHA256, Scheme: SchemeRSAPSS},
	"PS384": {Name: "PS384", Hash: crypto.SHA384, Scheme: SchemeRSAPSS},
	"PS512": {Name: "PS512", Hash: crypto.SHA512, Scheme: SchemeRSAPSS},
	"RS256": {Name: "RS256", Hash: crypto.SHA256, Scheme: SchemeRSAPKCS1v15},
	"RS384": {Name: "RS384", Hash: crypto.SHA384, Scheme: SchemeRSAPKCS1v15},
	"RS512": {Name: "RS512", Hash: crypto.SHA512, Scheme: SchemeRSAPKCS1v15},
}

// Lookup resolves a JWS alg string, failing with errs.UnsupportedAlgorithm
// if alg isn't one of the nine algorithms the validator accepts.
func Lookup(alg string) (Algorithm, error) {
	a, ok := supported[alg]
	if !ok {
		return Algorithm{}, errs.Newf(errs.UnsupportedAlgorithm, "unsupported algorithm %q", alg)
	}
	return a, nil
}

// RawToDER transcodes a fixed-width ‖R‖S ECDSA signature into an ASN.1
// DER SEQUENCE { INTEGER r, INTEGER s }, per §4.1.
func RawToDER(raw []byte, curveWidth int) ([]byte, error) {
	if curveWidth <= 0 {
		return nil, errs.Newf(errs.InvalidSignatureFormat, "raw-to-DER transcoding requires a non-zero curve width")
	}
	if len(raw) != curveWidth*2 {
		return nil, errs.Newf(errs.InvalidSignatureFormat,
			"raw ECDSA signature length %d does not match expected width %d", len(raw), curveWidth*2)
	}

	r := new(big.Int).SetBytes(raw[:curveWidth])
	s := new(big.Int).SetBytes(raw[curveWidth:])

	var b cryptobyte.Builder
	b.AddASN1(casn1.SEQUENCE, func(seq *cryptobyte.Builder) {
		seq.AddASN1BigInt(r)
		seq.AddASN1BigInt(s)
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, trace.Wrap(err, "encoding ECDSA signature as DER")
	}
	return der, nil
}

// DERToRaw is the inverse of RawToDER: it recovers the fixed-width ‖R‖S
// encoding from a DER SEQUENCE { INTEGER r, INTEGER s }. Not required by
// the validation pipeline itself, but kept alongside RawToDER so the
// transcoding is tested both ways and available to callers that need to
// re-derive the wire format (e.g. test fixtures signing with
// crypto/ecdsa, which emits DER).
func DERToRaw(der []byte, curveWidth int) ([]byte, error) {
	input := cryptobyte.String(der)
	var inner cryptobyte.String
	if !input.ReadASN1(&inner, casn1.SEQUENCE) {
		return nil, errs.Newf(errs.InvalidSignatureFormat, "malformed DER ECDSA signature")
	}
	var r, s big.Int
	if !inner.ReadASN1Integer(&r) || !inner.ReadASN1Integer(&s) {
		return nil, errs.Newf(errs.InvalidSignatureFormat, "malformed DER ECDSA signature integers")
	}

	raw := make([]byte, curveWidth*2)
	rb := r.Bytes()
	sb := s.Bytes()
	if len(rb) > curveWidth || len(sb) > curveWidth {
		return nil, errs.Newf(errs.InvalidSignatureFormat, "ECDSA integer wider than curve width %d", curveWidth)
	}
	copy(raw[curveWidth-len(rb):curveWidth], rb)
	copy(raw[2*curveWidth-len(sb):], sb)
	return raw, nil
}

// VerifyECDSA verifies a raw ‖R‖S signature over digest using pub.
func VerifyECDSA(pub *ecdsa.PublicKey, digest, rawSig []byte, curveWidth int) error {
	der, err := RawToDER(rawSig, curveWidth)
	if err != nil {
		return trace.Wrap(err)
	}
	var sig struct{ R, S big.Int }
	input := cryptobyte.String(der)
	var inner cryptobyte.String
	if !input.ReadASN1(&inner, casn1.SEQUENCE) ||
		!inner.ReadASN1Integer(&sig.R) || !inner.ReadASN1Integer(&sig.S) {
		return errs.Newf(errs.InvalidSignatureFormat, "malformed transcoded ECDSA signature")
	}
	if !ecdsa.Verify(pub, digest, &sig.R, &sig.S) {
		return errs.Newf(errs.TokenSignatureInvalid, "ECDSA signature verification failed")
	}
	return nil
}

// VerifyRSAPSS verifies an RSA-PSS signature with salt length equal to
// the hash size, MGF1 using the same hash, per §4.7.
func VerifyRSAPSS(pub *rsa.PublicKey, hash crypto.Hash, digest, sig []byte) error {
	opts := &rsa.PSSOptions{SaltLength: hash.Size(), Hash: hash}
	if err := rsa.VerifyPSS(pub, hash, digest, sig, opts); err != nil {
		return errs.New(errs.TokenSignatureInvalid, err)
	}
	return nil
}

// VerifyRSAPKCS1v15 verifies a classic RSA PKCS#1 v1.5 signature.
func VerifyRSAPKCS1v15(pub *rsa.PublicKey, hash crypto.Hash, digest, sig []byte) error {
	if err := rsa.VerifyPKCS1v15(pub, hash, digest, sig); err != nil {
		return errs.New(errs.TokenSignatureInvalid, err)
	}
	return nil
}
