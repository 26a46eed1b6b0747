package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/dashboard-aggregation/internal/common"
)

// maxBodySize caps how much of a provider response is read.
const maxBodySize = 4 << 20

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errUnexpected   = errors.New("unexpected status code")
	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
)

// newBreaker returns the circuit breaker settings shared by all providers.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})
}

// doRequest executes a single GET through the circuit breaker and returns the
// response body. There is no retry: the next scheduled poll is the retry. Every
// failure is wrapped in common.ErrNetwork.
func doRequest(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, rawURL string, header http.Header) ([]byte, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: %v", common.ErrNetwork, errNoHTTPClient)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, errRateLimited
		case resp.StatusCode >= 500:
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
		}

		return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v: %v", common.ErrNetwork, errCircuitOpen, err)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrNetwork, err)
	}

	body, ok := result.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected result type from circuit breaker", common.ErrNetwork)
	}
	return body, nil
}

// observedAt converts a unix-seconds timestamp, falling back when it is unset.
func observedAt(unix int64, fallback time.Time) time.Time {
	if unix <= 0 {
		return fallback.UTC()
	}
	return time.Unix(unix, 0).UTC()
}
