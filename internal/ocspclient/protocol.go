// Package ocspclient implements OCSP service selection (§4.4), request
// building (§4.5) and response validation (§4.6) against RFC 6960. The
// wire structures are modeled directly with encoding/asn1 rather than a
// higher-level OCSP library: the pipeline needs the raw CertID fields
// for strict four-way equality (§4.6 step 5), the exact signed
// tbsResponseData bytes (step 4), and the ability to add a nonce
// extension to the request (§4.5) and read it back unmodified from the
// response (step 6) — all of which a request/response object model that
// only exposes parsed high-level fields would have to discard.
package ocspclient

import (
	"crypto/sha1" //nolint:gosec // SHA-1 is mandated by RFC 6960 §4.1.1 for CertID.
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"time"

	"github.com/gravitational/trace"

	"github.com/gravitational/webeid-authtoken-validator/internal/errs"
)

var (
	oidSHA1         = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	oidPKIXOCSPBasic = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 1}
	oidPKIXOCSPNonce = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 2}
	oidOCSPSigningEKU = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 3, 9}
	oidADOCSP        = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1}
)

// CertID is the RFC 6960 identifier for the certificate under status
// check: a hash of the issuer's name, a hash of the issuer's public key,
// and the subject's serial number (§4.5).
type CertID struct {
	HashAlgorithm  asn1.ObjectIdentifier
	IssuerNameHash []byte
	IssuerKeyHash  []byte
	SerialNumber   *big.Int
}

// Equal reports whether two CertIDs are the same hash algorithm,
// issuerNameHash, issuerKeyHash and serialNumber (§4.6 step 5: "all four
// fields").
func (c CertID) Equal(o CertID) bool {
	return c.HashAlgorithm.Equal(o.HashAlgorithm) &&
		bytesEqual(c.IssuerNameHash, o.IssuerNameHash) &&
		bytesEqual(c.IssuerKeyHash, o.IssuerKeyHash) &&
		c.SerialNumber != nil && o.SerialNumber != nil &&
		c.SerialNumber.Cmp(o.SerialNumber) == 0
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// BuildCertID computes the CertID for subject's serial number issued by
// issuer, using SHA-1 as mandated by RFC 6960 §4.1.1.
//
// issuerNameHash = SHA1(issuer subject DN, DER-encoded).
// issuerKeyHash = SHA1(issuer SubjectPublicKeyInfo BIT STRING value,
// excluding the outer tag/length and the unused-bits byte).
func BuildCertID(issuer, subject *x509.Certificate) (CertID, error) {
	var spki struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}
	if _, err := asn1.Unmarshal(issuer.RawSubjectPublicKeyInfo, &spki); err != nil {
		return CertID{}, trace.Wrap(err, "parsing issuer SubjectPublicKeyInfo")
	}

	nameHash := sha1.Sum(issuer.RawSubject)
	keyHash := sha1.Sum(spki.PublicKey.Bytes)

	return CertID{
		HashAlgorithm:  oidSHA1,
		IssuerNameHash: nameHash[:],
		IssuerKeyHash:  keyHash[:],
		SerialNumber:   new(big.Int).Set(subject.SerialNumber),
	}, nil
}

// --- wire structures (RFC 6960 §4.1, §4.2) ---

type certIDASN1 struct {
	HashAlgorithm  pkix.AlgorithmIdentifier
	IssuerNameHash []byte
	IssuerKeyHash  []byte
	SerialNumber   *big.Int
}

func (c CertID) toWire() certIDASN1 {
	return certIDASN1{
		HashAlgorithm:  pkix.AlgorithmIdentifier{Algorithm: c.HashAlgorithm},
		IssuerNameHash: c.IssuerNameHash,
		IssuerKeyHash:  c.IssuerKeyHash,
		SerialNumber:   c.SerialNumber,
	}
}

func (c certIDASN1) fromWire() CertID {
	return CertID{
		HashAlgorithm:  c.HashAlgorithm.Algorithm,
		IssuerNameHash: c.IssuerNameHash,
		IssuerKeyHash:  c.IssuerKeyHash,
		SerialNumber:   c.SerialNumber,
	}
}

type requestASN1 struct {
	ReqCert certIDASN1
}

type tbsRequestASN1 struct {
	Version           int                 `asn1:"optional,explicit,tag:0,default:0"`
	RequestorName     asn1.RawValue       `asn1:"optional,explicit,tag:1"`
	RequestList       []requestASN1
	RequestExtensions []pkix.Extension    `asn1:"optional,explicit,tag:2"`
}

type ocspRequestASN1 struct {
	TBSRequest        tbsRequestASN1
	OptionalSignature asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

// encodeRequest marshals a single-entry OCSPRequest for certID. When
// nonce is non-nil its bytes are carried in an id-pkix-ocsp-nonce
// extension (§4.5).
func encodeRequest(certID CertID, nonce []byte) ([]byte, error) {
	tbs := tbsRequestASN1{
		RequestList: []requestASN1{{ReqCert: certID.toWire()}},
	}
	if nonce != nil {
		nonceValue, err := asn1.Marshal(nonce)
		if err != nil {
			return nil, trace.Wrap(err, "encoding OCSP nonce extension")
		}
		tbs.RequestExtensions = []pkix.Extension{{
			Id:    oidPKIXOCSPNonce,
			Value: nonceValue,
		}}
	}
	der, err := asn1.Marshal(ocspRequestASN1{TBSRequest: tbs})
	if err != nil {
		return nil, trace.Wrap(err, "encoding OCSPRequest")
	}
	return der, nil
}

// --- response structures (RFC 6960 §4.2) ---

type responseASN1 struct {
	Status       asn1.Enumerated
	ResponseBytes responseBytesASN1 `asn1:"optional,explicit,tag:0"`
}

type responseBytesASN1 struct {
	ResponseType asn1.ObjectIdentifier
	Response     []byte
}

type basicResponseASN1 struct {
	TBSResponseData    asn1.RawValue
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          asn1.BitString
	Certs              []asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

type singleResponseASN1 struct {
	CertID           certIDASN1
	CertStatus       asn1.RawValue
	ThisUpdate       asn1.RawValue
	NextUpdate       asn1.RawValue `asn1:"optional,explicit,tag:0"`
	SingleExtensions []pkix.Extension `asn1:"optional,explicit,tag:1"`
}

type responseDataASN1 struct {
	Version            int                 `asn1:"optional,explicit,tag:0,default:0"`
	ResponderID        asn1.RawValue
	ProducedAt         asn1.RawValue
	Responses          []singleResponseASN1
	ResponseExtensions []pkix.Extension `asn1:"optional,explicit,tag:1"`
}

// ResponseStatus is the top-level OCSPResponse.responseStatus (§4.6 step 1).
type ResponseStatus int

const (
	StatusSuccessful       ResponseStatus = 0
	StatusMalformedRequest ResponseStatus = 1
	StatusInternalError    ResponseStatus = 2
	StatusTryLater         ResponseStatus = 3
	StatusSigRequired      ResponseStatus = 5
	StatusUnauthorized     ResponseStatus = 6
)

// CertStatus is the tagged OcspCertStatus variant from §3.
type CertStatus struct {
	Good    bool
	Revoked bool
	Unknown bool
	Reason  string
}

// SingleResponse is the parsed per-certificate entry in a basic response.
type SingleResponse struct {
	CertID     CertID
	Status     CertStatus
	ThisUpdate time.Time
	NextUpdate *time.Time
}

// BasicResponse is the parsed OCSPResponse for the single-request case
// this validator always uses (§3, "OcspBasicResponse").
type BasicResponse struct {
	Status             ResponseStatus
	ResponseType       asn1.ObjectIdentifier
	TBSResponseData    []byte // exact signed bytes, per §4.6 step 4
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          []byte
	Certs              []*x509.Certificate
	ProducedAt         time.Time
	Responses          []SingleResponse
	Nonce              []byte // nil if the response carried no nonce extension
}

// ParseResponse decodes raw into a BasicResponse. It does not verify the
// signature or make any trust decision: that is §4.6's job.
func ParseResponse(raw []byte) (*BasicResponse, error) {
	var resp responseASN1
	if rest, err := asn1.Unmarshal(raw, &resp); err != nil {
		return nil, errs.New(errs.OcspResponseInvalidType, trace.Wrap(err, "parsing OCSPResponse"))
	} else if len(rest) != 0 {
		return nil, errs.Newf(errs.OcspResponseInvalidType, "trailing bytes after OCSPResponse")
	}

	if ResponseStatus(resp.Status) != StatusSuccessful {
		return nil, errs.Newf(errs.OcspResponseInvalidStatus, "OCSP responseStatus = %d", resp.Status)
	}
	if !resp.ResponseBytes.ResponseType.Equal(oidPKIXOCSPBasic) {
		return nil, errs.Newf(errs.OcspResponseInvalidType, "unsupported OCSP response type %s", resp.ResponseBytes.ResponseType)
	}

	var basic basicResponseASN1
	if _, err := asn1.Unmarshal(resp.ResponseBytes.Response, &basic); err != nil {
		return nil, errs.New(errs.OcspResponseInvalidType, trace.Wrap(err, "parsing BasicOCSPResponse"))
	}

	var data responseDataASN1
	if _, err := asn1.Unmarshal(basic.TBSResponseData.FullBytes, &data); err != nil {
		return nil, errs.New(errs.OcspResponseInvalidType, trace.Wrap(err, "parsing ResponseData"))
	}

	producedAt, err := parseASN1Time(data.ProducedAt)
	if err != nil {
		return nil, errs.New(errs.OcspResponseInvalidType, err)
	}

	out := &BasicResponse{
		Status:             ResponseStatus(resp.Status),
		ResponseType:       resp.ResponseBytes.ResponseType,
		TBSResponseData:    basic.TBSResponseData.FullBytes,
		SignatureAlgorithm: basic.SignatureAlgorithm,
		Signature:          basic.Signature.RightAlign(),
		ProducedAt:         producedAt,
	}

	for _, rawCert := range basic.Certs {
		cert, err := x509.ParseCertificate(rawCert.FullBytes)
		if err != nil {
			return nil, errs.New(errs.OcspResponseInvalidType, trace.Wrap(err, "parsing responder certificate"))
		}
		out.Certs = append(out.Certs, cert)
	}

	for _, sr := range data.Responses {
		status, err := parseCertStatus(sr.CertStatus)
		if err != nil {
			return nil, err
		}
		thisUpdate, err := parseASN1Time(sr.ThisUpdate)
		if err != nil {
			return nil, errs.New(errs.OcspResponseInvalidType, err)
		}
		single := SingleResponse{
			CertID:     sr.CertID.fromWire(),
			Status:     status,
			ThisUpdate: thisUpdate,
		}
		if len(sr.NextUpdate.FullBytes) > 0 {
			// nextUpdate is EXPLICIT [0]; the RawValue holds the wrapper,
			// and the GeneralizedTime is its content.
			var inner asn1.RawValue
			if _, err := asn1.Unmarshal(sr.NextUpdate.Bytes, &inner); err != nil {
				return nil, errs.New(errs.OcspResponseInvalidType, trace.Wrap(err, "parsing nextUpdate"))
			}
			nextUpdate, err := parseASN1Time(inner)
			if err != nil {
				return nil, errs.New(errs.OcspResponseInvalidType, err)
			}
			single.NextUpdate = &nextUpdate
		}
		out.Responses = append(out.Responses, single)
	}

	for _, ext := range data.ResponseExtensions {
		if ext.Id.Equal(oidPKIXOCSPNonce) {
			var nonce []byte
			if _, err := asn1.Unmarshal(ext.Value, &nonce); err != nil {
				return nil, errs.New(errs.OcspResponseInvalidType, trace.Wrap(err, "parsing OCSP nonce extension"))
			}
			out.Nonce = nonce
		}
	}

	return out, nil
}

// parseCertStatus interprets the CHOICE { good [0], revoked [1], unknown [2] }.
func parseCertStatus(raw asn1.RawValue) (CertStatus, error) {
	const contextSpecific = 2
	if raw.Class != contextSpecific {
		return CertStatus{}, errs.Newf(errs.OcspResponseInvalidType, "malformed OCSP certStatus")
	}
	switch raw.Tag {
	case 0:
		return CertStatus{Good: true}, nil
	case 1:
		reason := ""
		// RevokedInfo ::= SEQUENCE { revocationTime GeneralizedTime,
		//                            revocationReason [0] EXPLICIT CRLReason OPTIONAL }
		// carried as revoked [1] IMPLICIT RevokedInfo.
		var info struct {
			RevocationTime   asn1.RawValue
			RevocationReason asn1.RawValue `asn1:"optional,explicit,tag:0"`
		}
		if _, err := asn1.UnmarshalWithParams(raw.FullBytes, &info, "tag:1"); err == nil && len(info.RevocationReason.Bytes) > 0 {
			var code asn1.Enumerated
			if _, err := asn1.Unmarshal(info.RevocationReason.Bytes, &code); err == nil {
				reason = crlReasonName(int(code))
			}
		}
		return CertStatus{Revoked: true, Reason: reason}, nil
	case 2:
		return CertStatus{Unknown: true, Reason: "unknown"}, nil
	default:
		return CertStatus{}, errs.Newf(errs.OcspResponseInvalidType, "unrecognized OCSP certStatus tag %d", raw.Tag)
	}
}

func crlReasonName(code int) string {
	names := map[int]string{
		0: "unspecified", 1: "keyCompromise", 2: "cACompromise",
		3: "affiliationChanged", 4: "superseded", 5: "cessationOfOperation",
		6: "certificateHold", 8: "removeFromCRL", 9: "privilegeWithdrawn",
		10: "aACompromise",
	}
	if name, ok := names[code]; ok {
		return name
	}
	return "unspecified"
}

// parseASN1Time decodes a GeneralizedTime or UTCTime tagged value.
func parseASN1Time(raw asn1.RawValue) (time.Time, error) {
	const (
		tagUTCTime         = 23
		tagGeneralizedTime = 24
	)
	s := string(raw.Bytes)
	switch raw.Tag {
	case tagGeneralizedTime:
		return time.Parse("20060102150405Z0700", s)
	case tagUTCTime:
		return time.Parse("060102150405Z0700", s)
	default:
		return time.Time{}, trace.BadParameter("unrecognized ASN.1 time tag %d", raw.Tag)
	}
}
