package webeid

import (
	"crypto/x509"
	"encoding/asn1"
	"log/slog"
	"net/url"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"

	"github.com/gravitational/webeid-authtoken-validator/internal/certvalidator"
	"github.com/gravitational/webeid-authtoken-validator/internal/ocspclient"
)

// defaultOcspRequestTimeout is the connect+response timeout applied to
// the OCSP HTTP call when the caller doesn't override it (§3, §6).
const defaultOcspRequestTimeout = 5 * time.Second

// Config is the immutable, validated configuration for a Pipeline. Build
// one with NewConfig; it is safe to share across concurrently running
// Pipelines and requires no locking once built (§5, §9 "Builder pattern
// for configuration").
type Config struct {
	siteOrigin           string
	trustedCAs           *certvalidator.TrustedCAs
	disallowedPolicyIDs  []asn1.ObjectIdentifier
	ocspRequestTimeout   time.Duration
	nonceDisabledURLs    map[string]bool
	designatedService    *ocspclient.DesignatedService
	disableOcsp          bool
	ocspResponseCacheTTL time.Duration
	clock                clockwork.Clock
	logger               *slog.Logger
}

// ConfigOption customizes a Config at construction time.
type ConfigOption func(*Config)

// WithDisallowedPolicyIDs forbids the listed certificatePolicies OIDs in
// the subject certificate (§4.3 step 3).
func WithDisallowedPolicyIDs(oids ...asn1.ObjectIdentifier) ConfigOption {
	return func(c *Config) { c.disallowedPolicyIDs = append(c.disallowedPolicyIDs, oids...) }
}

// WithOcspRequestTimeout overrides the default 5s OCSP connect+response
// timeout.
func WithOcspRequestTimeout(d time.Duration) ConfigOption {
	return func(c *Config) { c.ocspRequestTimeout = d }
}

// WithNonceDisabledOcspURLs marks responder URLs that don't support the
// nonce extension; the request builder omits it and the response
// validator doesn't require nonce equality for them (§4.4, §8).
func WithNonceDisabledOcspURLs(urls ...string) ConfigOption {
	return func(c *Config) {
		for _, u := range urls {
			c.nonceDisabledURLs[u] = true
		}
	}
}

// WithDesignatedOcspService pins a responder certificate and URL for the
// listed issuers, used instead of AIA (§4.4).
func WithDesignatedOcspService(svc ocspclient.DesignatedService) ConfigOption {
	return func(c *Config) { c.designatedService = &svc }
}

// WithOcspDisabled skips the revocation check entirely; with this set
// the pipeline never performs network I/O (§8).
func WithOcspDisabled() ConfigOption {
	return func(c *Config) { c.disableOcsp = true }
}

// WithOcspResponseCacheTTL enables the supplemental OCSP response cache
// (§4's C13) with the given ceiling TTL. A response is never cached past
// its own nextUpdate regardless of ttl. Disabled (TTL 0, the default)
// means every call performs a fresh OCSP round trip.
func WithOcspResponseCacheTTL(ttl time.Duration) ConfigOption {
	return func(c *Config) { c.ocspResponseCacheTTL = ttl }
}

// WithClock overrides the clock used for the subject certificate's
// validity-window check. The OCSP responder certificate and response
// freshness are checked against the response's producedAt, not this
// clock. Tests inject a clockwork.FakeClock; production uses the default
// real clock.
func WithClock(clock clockwork.Clock) ConfigOption {
	return func(c *Config) { c.clock = clock }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) ConfigOption {
	return func(c *Config) { c.logger = logger }
}

// NewConfig validates and builds a Config. siteOrigin must be an
// absolute scheme://host[:port] URL with no trailing slash; trustedCAs
// must be non-empty (§3 invariants).
func NewConfig(siteOrigin string, trustedCAs []*x509.Certificate, opts ...ConfigOption) (*Config, error) {
	if err := validateOrigin(siteOrigin); err != nil {
		return nil, trace.Wrap(err)
	}

	cas, err := certvalidator.NewTrustedCAs(trustedCAs)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	c := &Config{
		siteOrigin:         siteOrigin,
		trustedCAs:         cas,
		ocspRequestTimeout: defaultOcspRequestTimeout,
		nonceDisabledURLs:  make(map[string]bool),
		clock:              clockwork.NewRealClock(),
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.ocspRequestTimeout < 0 {
		return nil, trace.BadParameter("ocspRequestTimeout must be >= 0, got %s", c.ocspRequestTimeout)
	}

	return c, nil
}

func validateOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil {
		return trace.BadParameter("siteOrigin %q is not a valid URL: %v", origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return trace.BadParameter("siteOrigin %q must include a scheme and host", origin)
	}
	if len(origin) > 0 && origin[len(origin)-1] == '/' {
		return trace.BadParameter("siteOrigin %q must not have a trailing slash", origin)
	}
	return nil
}
