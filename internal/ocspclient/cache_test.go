package ocspclient

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testCertID() CertID {
	return CertID{
		HashAlgorithm:  oidSHA1,
		IssuerNameHash: []byte{1, 2, 3},
		IssuerKeyHash:  []byte{4, 5, 6},
		SerialNumber:   big.NewInt(1),
	}
}

func TestCacheDisabledAlwaysCallsFn(t *testing.T) {
	cache := NewCache(0)
	var calls int32
	fn := func(ctx context.Context) (*Validated, error) {
		atomic.AddInt32(&calls, 1)
		return &Validated{Status: CertStatus{Good: true}}, nil
	}

	_, err := cache.Fetch(context.Background(), testCertID(), fn)
	require.NoError(t, err)
	_, err = cache.Fetch(context.Background(), testCertID(), fn)
	require.NoError(t, err)

	require.EqualValues(t, 2, calls)
}

func TestCacheReusesFreshEntry(t *testing.T) {
	cache := NewCache(time.Minute)
	var calls int32
	fn := func(ctx context.Context) (*Validated, error) {
		atomic.AddInt32(&calls, 1)
		return &Validated{Status: CertStatus{Good: true}}, nil
	}

	_, err := cache.Fetch(context.Background(), testCertID(), fn)
	require.NoError(t, err)
	_, err = cache.Fetch(context.Background(), testCertID(), fn)
	require.NoError(t, err)

	require.EqualValues(t, 1, calls)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	cache := NewCache(10 * time.Millisecond)
	var calls int32
	fn := func(ctx context.Context) (*Validated, error) {
		atomic.AddInt32(&calls, 1)
		return &Validated{Status: CertStatus{Good: true}}, nil
	}

	_, err := cache.Fetch(context.Background(), testCertID(), fn)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = cache.Fetch(context.Background(), testCertID(), fn)
	require.NoError(t, err)

	require.EqualValues(t, 2, calls)
}

// TestCacheNeverOutlivesNextUpdate ensures the cache never serves a
// response past its own nextUpdate, even when the administrative ceiling
// TTL is far longer than the responder's freshness window (config.go's
// documented invariant: "never cached past its own nextUpdate regardless
// of ttl").
func TestCacheNeverOutlivesNextUpdate(t *testing.T) {
	cache := NewCache(time.Hour)
	nextUpdate := time.Now().Add(10 * time.Millisecond)
	var calls int32
	fn := func(ctx context.Context) (*Validated, error) {
		atomic.AddInt32(&calls, 1)
		return &Validated{Status: CertStatus{Good: true}, NextUpdate: &nextUpdate}, nil
	}

	_, err := cache.Fetch(context.Background(), testCertID(), fn)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = cache.Fetch(context.Background(), testCertID(), fn)
	require.NoError(t, err)

	require.EqualValues(t, 2, calls, "cache must not outlive nextUpdate even though the ceiling TTL has not elapsed")
}

// TestCacheHonorsCeilingTTLBeforeNextUpdate ensures the shorter of the
// two bounds wins when the ceiling TTL is tighter than nextUpdate.
func TestCacheHonorsCeilingTTLBeforeNextUpdate(t *testing.T) {
	cache := NewCache(10 * time.Millisecond)
	nextUpdate := time.Now().Add(time.Hour)
	var calls int32
	fn := func(ctx context.Context) (*Validated, error) {
		atomic.AddInt32(&calls, 1)
		return &Validated{Status: CertStatus{Good: true}, NextUpdate: &nextUpdate}, nil
	}

	_, err := cache.Fetch(context.Background(), testCertID(), fn)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = cache.Fetch(context.Background(), testCertID(), fn)
	require.NoError(t, err)

	require.EqualValues(t, 2, calls, "ceiling TTL must still bound the cache when it is tighter than nextUpdate")
}
