package common

import (
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// Backoff computes the wait before retry attemptNum: min * (attemptNum+1)^2, capped at max, with
// 80-120% jitter so clients that failed together do not retry together. A Retry-After header on
// a 429 or 503 response takes precedence. The signature matches retryablehttp.Backoff.
func Backoff(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
		if wait, ok := retryAfter(resp); ok {
			return wait
		}
	}
	n := time.Duration(attemptNum + 1)
	wait := min * n * n
	if wait > max || wait <= 0 {
		wait = max
	}
	jitter := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(wait) * jitter)
}

func retryAfter(resp *http.Response) (time.Duration, bool) {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}
