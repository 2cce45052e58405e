package ocspclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gravitational/trace"

	"github.com/gravitational/webeid-authtoken-validator/internal/errs"
)

const (
	ocspRequestContentType  = "application/ocsp-request"
	ocspResponseContentType = "application/ocsp-response"
)

// Transport sends an OCSP request over HTTP POST and returns the raw
// response bytes (§6, §5: "the only blocking I/O ... must honour the
// configured timeout for both connect and total response").
type Transport struct {
	Client *http.Client
}

// NewTransport builds a Transport whose total per-request deadline is
// timeout; the same client is safe to share across concurrent requests.
func NewTransport(timeout time.Duration) *Transport {
	return &Transport{
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do sends der to url and returns the response body. Cancellation
// (context deadline or caller cancel) must not leak the connection;
// using http.NewRequestWithContext and closing the response body on
// every path satisfies that (§5).
func (t *Transport) Do(ctx context.Context, url string, der []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(der))
	if err != nil {
		return nil, errs.New(errs.OcspHttpError, trace.Wrap(err, "building OCSP request"))
	}
	req.Header.Set("Content-Type", ocspRequestContentType)
	req.Header.Set("Accept", ocspResponseContentType)

	// http.Client.Timeout errors do not wrap context.DeadlineExceeded on
	// every Go version, so a net.Error reporting Timeout() also counts.
	var netErr net.Error
	resp, err := t.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, errs.New(errs.OcspTimeout, trace.Wrap(err, "OCSP request timed out"))
		}
		return nil, errs.New(errs.OcspHttpError, trace.Wrap(err, "sending OCSP request"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.OcspHttpError, "OCSP responder returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, errs.New(errs.OcspTimeout, trace.Wrap(err, "reading OCSP response timed out"))
		}
		return nil, errs.New(errs.OcspHttpError, trace.Wrap(err, "reading OCSP response body"))
	}
	return body, nil
}
