package zwiftpower_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"racepower-backend/lib/zwiftpower"

	"github.com/stretchr/testify/require"
)

// flakyUpstream serves 429 for a configured number of requests before
// succeeding, recording when each attempt arrived.
type flakyUpstream struct {
	mu       sync.Mutex
	failures int
	arrivals []time.Time
	body     string
}

func (f *flakyUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.arrivals = append(f.arrivals, time.Now())
	if len(f.arrivals) <= f.failures {
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}
	fmt.Fprint(w, f.body)
}

func flakyClient(t *testing.T, server *httptest.Server, baseDelay time.Duration) *zwiftpower.Client {
	client, err := zwiftpower.NewClient(context.Background(), zwiftpower.ClientOptions{
		BaseUrl:                 server.URL,
		AuthBaseUrl:             server.URL,
		ActivityBaseUrl:         server.URL,
		RetryBaseDelay:          baseDelay,
		DisableCloudflareBypass: true,
	})
	require.NoError(t, err)
	return client
}

func TestBackoffRecoversFromRateLimit(t *testing.T) {
	upstream := &flakyUpstream{failures: 2, body: `{"datasets":[]}`}
	server := httptest.NewServer(upstream)
	defer server.Close()

	const baseDelay = time.Millisecond * 100
	client := flakyClient(t, server, baseDelay)

	analysis, err := client.RiderAnalysis(context.Background(), "1", "2")
	require.NoError(t, err)
	require.NotNil(t, analysis)

	require.Len(t, upstream.arrivals, 3)
	// delay doubles per attempt: base, then 2x base
	require.GreaterOrEqual(t, upstream.arrivals[1].Sub(upstream.arrivals[0]), baseDelay)
	require.GreaterOrEqual(t, upstream.arrivals[2].Sub(upstream.arrivals[1]), 2*baseDelay)
}

func TestBackoffExhaustsRetries(t *testing.T) {
	upstream := &flakyUpstream{failures: 10, body: `{}`}
	server := httptest.NewServer(upstream)
	defer server.Close()

	client := flakyClient(t, server, time.Millisecond*5)

	_, err := client.RiderAnalysis(context.Background(), "1", "2")
	require.Error(t, err)

	var fetchErr *zwiftpower.FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, zwiftpower.FetchRateLimited, fetchErr.Kind)
	require.Len(t, upstream.arrivals, zwiftpower.DefaultMaxAttempts)
}

func TestNoRetryOnTransportError(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		time.Sleep(time.Millisecond * 200)
	}))
	defer server.Close()

	client, err := zwiftpower.NewClient(context.Background(), zwiftpower.ClientOptions{
		BaseUrl:                 server.URL,
		AuthBaseUrl:             server.URL,
		ActivityBaseUrl:         server.URL,
		Timeout:                 time.Millisecond * 30,
		RetryBaseDelay:          time.Millisecond,
		DisableCloudflareBypass: true,
	})
	require.NoError(t, err)

	_, err = client.RiderAnalysis(context.Background(), "1", "2")
	require.Error(t, err)

	var fetchErr *zwiftpower.FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, zwiftpower.FetchTransport, fetchErr.Kind)
	require.Equal(t, 1, attempts)
}

func TestDefaultRetryBudget(t *testing.T) {
	require.Equal(t, 3, zwiftpower.DefaultMaxAttempts)
	require.Equal(t, time.Second, zwiftpower.DefaultRetryBaseDelay)
}
