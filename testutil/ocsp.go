package testutil

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// CertID is a plain-data mirror of ocspclient.CertID: this package must
// not import internal/ocspclient (its own tests import testutil, which
// would form an import cycle), so callers decompose a CertID's exported
// fields into this shape instead.
type CertID struct {
	HashAlgorithm  asn1.ObjectIdentifier
	IssuerNameHash []byte
	IssuerKeyHash  []byte
	SerialNumber   *big.Int
}

var (
	oidPKIXOCSPBasic = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 1}
	oidPKIXOCSPNonce = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 2}
	oidECDSAWithSHA256 = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
)

// These mirror the unexported wire types in internal/ocspclient/protocol.go
// byte-for-byte: a test responder has to emit the same ASN.1 shapes the
// real protocol code parses, without reaching into that package's
// unexported identifiers.
type certIDWire struct {
	HashAlgorithm  pkix.AlgorithmIdentifier
	IssuerNameHash []byte
	IssuerKeyHash  []byte
	SerialNumber   *big.Int
}

type responseBytesWire struct {
	ResponseType asn1.ObjectIdentifier
	Response     []byte
}

type responseWire struct {
	Status        asn1.Enumerated
	ResponseBytes responseBytesWire `asn1:"optional,explicit,tag:0"`
}

type basicResponseWire struct {
	TBSResponseData    asn1.RawValue
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          asn1.BitString
	Certs              []asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

type singleResponseWire struct {
	CertID           certIDWire
	CertStatus       asn1.RawValue
	ThisUpdate       asn1.RawValue
	NextUpdate       asn1.RawValue `asn1:"optional,explicit,tag:0"`
	SingleExtensions []pkix.Extension `asn1:"optional,explicit,tag:1"`
}

type responseDataWire struct {
	Version            int `asn1:"optional,explicit,tag:0,default:0"`
	ResponderID        asn1.RawValue
	ProducedAt         asn1.RawValue
	Responses          []singleResponseWire
	ResponseExtensions []pkix.Extension `asn1:"optional,explicit,tag:1"`
}

func toCertIDWire(id CertID) certIDWire {
	return certIDWire{
		HashAlgorithm:  pkix.AlgorithmIdentifier{Algorithm: id.HashAlgorithm},
		IssuerNameHash: id.IssuerNameHash,
		IssuerKeyHash:  id.IssuerKeyHash,
		SerialNumber:   id.SerialNumber,
	}
}

func generalizedTimeTLV(t *testing.T, when time.Time) asn1.RawValue {
	t.Helper()
	content := []byte(when.UTC().Format("20060102150405Z"))
	require.Less(t, len(content), 128)
	return asn1.RawValue{FullBytes: append([]byte{0x18, byte(len(content))}, content...)}
}

// GoodStatus builds the DER for CertStatus CHOICE good [0] IMPLICIT NULL.
func GoodStatus() asn1.RawValue {
	return asn1.RawValue{FullBytes: []byte{0x80, 0x00}}
}

// RevokedStatus builds the DER for CertStatus CHOICE revoked [1], with an
// explicit CRLReason.
func RevokedStatus(t *testing.T, revocationTime time.Time, reason int) asn1.RawValue {
	t.Helper()
	timeTLV := generalizedTimeTLV(t, revocationTime).FullBytes
	reasonEnum := []byte{0x0A, 0x01, byte(reason)}
	reasonTLV := append([]byte{0xA0, byte(len(reasonEnum))}, reasonEnum...)
	inner := append(append([]byte{}, timeTLV...), reasonTLV...)
	require.Less(t, len(inner), 128)
	return asn1.RawValue{FullBytes: append([]byte{0xA1, byte(len(inner))}, inner...)}
}

// UnknownStatus builds the DER for CertStatus CHOICE unknown [2].
func UnknownStatus() asn1.RawValue {
	return asn1.RawValue{FullBytes: []byte{0x82, 0x00}}
}

// OCSPResponseOptions parameterizes BuildOCSPResponse.
type OCSPResponseOptions struct {
	CertID        CertID
	Status        asn1.RawValue
	ThisUpdate    time.Time
	NextUpdate    *time.Time
	ProducedAt    time.Time
	Nonce         []byte
	ResponderCert *x509.Certificate
	ResponderKey  *ecdsa.PrivateKey
	OmitCert      bool
}

// BuildOCSPResponse assembles and signs a single-entry BasicOCSPResponse
// the way a real OCSP responder would (RFC 6960 §4.2), for use as an
// httptest.Server handler body or direct ValidateResponse input.
func BuildOCSPResponse(t *testing.T, opts OCSPResponseOptions) []byte {
	t.Helper()

	var nextUpdateField asn1.RawValue
	if opts.NextUpdate != nil {
		// A RawValue with FullBytes is emitted verbatim, ignoring the
		// field's explicit tag, so the [0] wrapper is built here.
		nextUpdateField = asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true,
			Bytes: generalizedTimeTLV(t, *opts.NextUpdate).FullBytes}
	}

	single := singleResponseWire{
		CertID:     toCertIDWire(opts.CertID),
		CertStatus: opts.Status,
		ThisUpdate: generalizedTimeTLV(t, opts.ThisUpdate),
		NextUpdate: nextUpdateField,
	}

	data := responseDataWire{
		ResponderID: asn1.RawValue{FullBytes: []byte{0x04, 0x00}},
		ProducedAt:  generalizedTimeTLV(t, opts.ProducedAt),
		Responses:   []singleResponseWire{single},
	}
	if opts.Nonce != nil {
		nonceValue, err := asn1.Marshal(opts.Nonce)
		require.NoError(t, err)
		data.ResponseExtensions = []pkix.Extension{{Id: oidPKIXOCSPNonce, Value: nonceValue}}
	}

	tbs, err := asn1.Marshal(data)
	require.NoError(t, err)

	hash := sha256.Sum256(tbs)
	sig, err := ecdsa.SignASN1(rand.Reader, opts.ResponderKey, hash[:])
	require.NoError(t, err)

	basic := basicResponseWire{
		TBSResponseData:    asn1.RawValue{FullBytes: tbs},
		SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: oidECDSAWithSHA256},
		Signature:          asn1.BitString{Bytes: sig, BitLength: len(sig) * 8},
	}
	if !opts.OmitCert {
		basic.Certs = []asn1.RawValue{{FullBytes: opts.ResponderCert.Raw}}
	}

	basicDER, err := asn1.Marshal(basic)
	require.NoError(t, err)

	resp := responseWire{
		Status: asn1.Enumerated(0), // OCSPResponseStatus ::= ENUMERATED { successful (0), ... }
		ResponseBytes: responseBytesWire{
			ResponseType: oidPKIXOCSPBasic,
			Response:     basicDER,
		},
	}
	out, err := asn1.Marshal(resp)
	require.NoError(t, err)
	return out
}
