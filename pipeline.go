// Package webeid validates Web eID authentication tokens: it parses the
// client-submitted X.509 certificate, runs the subject-certificate
// validator chain, optionally checks live revocation status via OCSP,
// and verifies the token's signature over the origin/nonce challenge
// (spec §4.8, the C8 orchestrator).
package webeid

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/gravitational/trace"

	"github.com/gravitational/webeid-authtoken-validator/internal/certvalidator"
	"github.com/gravitational/webeid-authtoken-validator/internal/errs"
	"github.com/gravitational/webeid-authtoken-validator/internal/ocspclient"
	"github.com/gravitational/webeid-authtoken-validator/internal/tokensig"
)

// Result is the outcome of a successful Validate call: the authenticated
// certificate plus the supplemental revocation trace (§9 "Structured
// validation trace").
type Result struct {
	// Certificate is the parsed, trusted, non-revoked, signature-verified
	// subject certificate: the authenticated identity.
	Certificate *x509.Certificate
	// OcspChecked is false when revocation checking was disabled for
	// this Pipeline.
	OcspChecked bool
	// OcspStatus is the certificate status OCSP reported, valid only
	// when OcspChecked is true.
	OcspStatus ocspclient.CertStatus
	// OcspProducedAt is the responder's producedAt timestamp, valid
	// only when OcspChecked is true.
	OcspProducedAt time.Time
}

// Pipeline runs the validation algorithm against one Config. A Pipeline
// is safe for concurrent use: BuildRequest, transport.Do and the cache
// are all independently safe per request, and Config itself is
// immutable after NewConfig returns (§5).
type Pipeline struct {
	cfg       *Config
	transport *ocspclient.Transport
	cache     *ocspclient.Cache
}

// NewPipeline builds a Pipeline from cfg.
func NewPipeline(cfg *Config) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		transport: ocspclient.NewTransport(cfg.ocspRequestTimeout),
		cache:     ocspclient.NewCache(cfg.ocspResponseCacheTTL),
	}
}

// Validate implements the per-request algorithm from §4.8: reject an
// empty nonce, parse the certificate, run the subject-certificate
// validator chain, optionally check revocation, and finally verify the
// token's signature over H(origin) ‖ H(nonce).
func (p *Pipeline) Validate(ctx context.Context, token AuthToken, nonce []byte) (*Result, error) {
	log := p.cfg.logger.With("request_id", uuid.NewString())

	if len(nonce) == 0 {
		return nil, errs.Newf(errs.ChallengeEmpty, "challenge nonce must not be empty")
	}

	cert, err := p.parseCertificate(token.UnverifiedCertificate)
	if err != nil {
		return nil, err
	}
	log.Debug("parsed subject certificate", "subject", cert.Subject.String())

	subjectResult, err := certvalidator.Validate(cert, p.cfg.trustedCAs, p.cfg.disallowedPolicyIDs, p.cfg.clock)
	if err != nil {
		log.Warn("subject certificate validation failed", "subject", cert.Subject.String(), "error", err)
		return nil, err
	}

	result := &Result{Certificate: cert}

	if !p.cfg.disableOcsp {
		status, producedAt, err := p.checkRevocation(ctx, subjectResult.Issuer, cert)
		if err != nil {
			log.Warn("OCSP revocation check failed", "subject", cert.Subject.String(), "error", err)
			return nil, err
		}
		result.OcspChecked = true
		result.OcspStatus = status
		result.OcspProducedAt = producedAt
	}

	sig, err := base64.StdEncoding.DecodeString(token.Signature)
	if err != nil {
		return nil, errs.New(errs.InvalidSignatureFormat, trace.Wrap(err, "decoding token signature"))
	}
	if err := tokensig.Verify(token.Algorithm, sig, cert.PublicKey, p.cfg.siteOrigin, nonce); err != nil {
		log.Warn("token signature verification failed", "subject", cert.Subject.String(), "error", err)
		return nil, err
	}

	log.Info("authentication token validated", "subject", cert.Subject.String())
	return result, nil
}

func (p *Pipeline) parseCertificate(unverifiedCertificate string) (*x509.Certificate, error) {
	der, err := base64.StdEncoding.DecodeString(unverifiedCertificate)
	if err != nil {
		return nil, errs.New(errs.TokenParse, trace.Wrap(err, "decoding unverifiedCertificate"))
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errs.New(errs.TokenParse, trace.Wrap(err, "parsing X.509 certificate"))
	}
	return cert, nil
}

// checkRevocation runs C4 (service selection), C5 (request build), the
// OCSP transport round trip, and C6 (response validation), consulting
// the supplemental cache when one is configured (§4.4-§4.6, §9).
func (p *Pipeline) checkRevocation(ctx context.Context, issuer, subject *x509.Certificate) (ocspclient.CertStatus, time.Time, error) {
	svc, err := ocspclient.SelectService(subject, p.cfg.designatedService, p.cfg.nonceDisabledURLs)
	if err != nil {
		return ocspclient.CertStatus{}, time.Time{}, err
	}

	req, err := ocspclient.BuildRequest(issuer, subject, svc)
	if err != nil {
		return ocspclient.CertStatus{}, time.Time{}, err
	}

	validated, err := p.cache.Fetch(ctx, req.CertID, func(ctx context.Context) (*ocspclient.Validated, error) {
		raw, err := p.transport.Do(ctx, svc.URL, req.DER)
		if err != nil {
			return nil, err
		}
		return ocspclient.ValidateResponse(raw, ocspclient.ValidateOptions{
			Service: svc,
			Request: req,
			Trusted: p.cfg.trustedCAs,
		})
	})
	if err != nil {
		return ocspclient.CertStatus{}, time.Time{}, err
	}

	return validated.Status, validated.ProducedAt, nil
}

// DebugReport renders the full trace.Wrap stack of err for operator
// logs, never for the caller-facing error message (§7: no secret
// material in messages; this is the escape hatch for detailed logging).
func DebugReport(err error) string {
	return trace.DebugReport(err)
}
