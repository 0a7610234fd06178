package asr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// ProbeAttempt is the outcome of one probe request. Status is zero when no
// response arrived.
type ProbeAttempt struct {
	Path    string
	Status  int
	Err     error
	Elapsed time.Duration
}

// Responded reports whether the attempt proves the server is reachable.
func (a ProbeAttempt) Responded() bool {
	return a.Err == nil && a.Status != 0 && a.Status != http.StatusRequestTimeout
}

// ProbeResult is the ordered list of attempts made by Probe.
type ProbeResult struct {
	Attempts  []ProbeAttempt
	Reachable bool
}

// Probe GETs each of ProbePaths under serverURL until one answers with any
// status other than 408. A 404 or 405 counts as reachable, since servers
// differ in which of the paths they implement.
func (c *Client) Probe(ctx context.Context, serverURL, apiKey string) ProbeResult {
	base := strings.TrimRight(serverURL, "/")
	var res ProbeResult
	for _, path := range ProbePaths {
		if ctx.Err() != nil {
			break
		}
		a := c.probeOne(ctx, base+path, apiKey)
		a.Path = path
		res.Attempts = append(res.Attempts, a)

		result := "unreachable"
		switch {
		case a.Responded():
			result = "reachable"
		case a.Status == http.StatusRequestTimeout:
			result = "timeout"
		case a.Err != nil && isTimeoutErr(a.Err):
			result = "timeout"
		}
		c.metrics.ProbeAttempts.WithLabelValues(path, result).Inc()
		c.log.Info("probe", "url", base+path, "status", a.Status, "result", result, "elapsed", a.Elapsed, "err", a.Err)

		if a.Responded() {
			res.Reachable = true
			break
		}
	}
	if !res.Reachable {
		c.log.Warn("no responsive endpoints", "url", base)
	}
	return res
}

// TestConnection reports whether Probe found the server reachable.
func (c *Client) TestConnection(ctx context.Context, serverURL, apiKey string) bool {
	return c.Probe(ctx, serverURL, apiKey).Reachable
}

func (c *Client) probeOne(ctx context.Context, url, apiKey string) ProbeAttempt {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ProbeAttempt{Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return ProbeAttempt{Err: c.classify(ctx, url, c.probeTimeout, err), Elapsed: time.Since(start)}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
	return ProbeAttempt{Status: resp.StatusCode, Elapsed: time.Since(start)}
}

func isTimeoutErr(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
