package ocspclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/webeid-authtoken-validator/internal/errs"
)

func TestTransportDoHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, ocspRequestContentType, r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, []byte("request-der"), body)
		w.Header().Set("Content-Type", ocspResponseContentType)
		_, _ = w.Write([]byte("response-der"))
	}))
	t.Cleanup(srv.Close)

	transport := NewTransport(5 * time.Second)
	body, err := transport.Do(context.Background(), srv.URL, []byte("request-der"))
	require.NoError(t, err)
	require.Equal(t, []byte("response-der"), body)
}

func TestTransportDoNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	transport := NewTransport(5 * time.Second)
	_, err := transport.Do(context.Background(), srv.URL, []byte("request-der"))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.OcspHttpError))
}

func TestTransportDoTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	transport := NewTransport(5 * time.Millisecond)
	_, err := transport.Do(context.Background(), srv.URL, []byte("request-der"))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.OcspTimeout))
}
