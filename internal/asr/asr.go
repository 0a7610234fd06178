// Package asr is the client for a whisper.cpp style transcription server:
// the multipart upload to /inference and the multi-path reachability probe.
package asr

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/http2"

	"recwhisper/internal/jsonpath"
	"recwhisper/internal/metrics"
)

const (
	InferencePath         = "/inference"
	DefaultRequestTimeout = 5 * time.Minute
	DefaultProbeTimeout   = 10 * time.Second
	userAgent             = "recwhisper/1.0"
)

// ProbePaths are tried in order by Probe.
var ProbePaths = []string{"/", "/health", "/v1/health", "/inference"}

// Request is one transcription upload. Audio must already be in the
// canonical format.
type Request struct {
	Audio     []byte
	FileName  string
	Language  string
	ServerURL string
	APIKey    string
}

// Segment is a timed slice of the transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is a decoded server response. Raw holds the response body.
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Raw      []byte    `json:"-"`
}

// Empty reports whether the server detected no speech.
func (r Result) Empty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
var ErrMalformedResponse = errors.New("asr: malformed response")

// ServerError is a non-2xx response.
type ServerError struct {
	Status int
	Body   []byte
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("asr: server returned %d %s: %s", e.Status, http.StatusText(e.Status), formatResponse(e.Body))
}

// ConnectionError means the server could not be reached.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("asr: could not connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError means the request did not complete within its timeout.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("asr: request to %s timed out after %v", e.URL, e.Timeout)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Its own Timeout should be zero; the
// client applies per-request timeouts.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the upload timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithProbeTimeout sets the per-path probe timeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithTextPath makes the client read the transcript from path instead of
// the "text" field.
func WithTextPath(path string) Option {
	return func(c *Client) { c.textPath = path }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// Client performs uploads and probes.
type Client struct {
	http         *http.Client
	timeout      time.Duration
	probeTimeout time.Duration
	textPath     string
	log          *slog.Logger
	metrics      *metrics.Metrics
}

// New creates a client.
func New(opts ...Option) *Client {
	c := &Client{
		http:         http.DefaultClient,
		timeout:      DefaultRequestTimeout,
		probeTimeout: DefaultProbeTimeout,
		log:          slog.Default(),
		metrics:      metrics.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("component", "asr")
	return c
}

// NewHTTPClient builds the transport used for uploads. Certificate
// verification can be disabled for self-signed servers.
func NewHTTPClient(verifySSL, enableHTTP2 bool) *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if !verifySSL {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if enableHTTP2 {
		_ = http2.ConfigureTransport(tr)
	}
	return &http.Client{Transport: tr}
}

// Transcribe uploads req.Audio to <ServerURL>/inference. An empty transcript
// is returned as a Result with Empty() true, not as an error.
func (c *Client) Transcribe(ctx context.Context, req Request) (Result, error) {
	if req.ServerURL == "" {
		return Result{}, errors.New("asr: server URL is empty")
	}
	endpoint := strings.TrimRight(req.ServerURL, "/") + InferencePath
	body, contentType, err := buildForm(req)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("asr: new request: %w", err)
	}
	hreq.Header.Set("Content-Type", contentType)
	hreq.Header.Set("User-Agent", userAgent)
	if req.APIKey != "" {
		hreq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	c.log.Info("uploading", "url", endpoint, "bytes", len(req.Audio), "language", req.Language)
	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		return Result{}, c.classify(ctx, endpoint, c.timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, c.classify(ctx, endpoint, c.timeout, err)
	}
	c.metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
	c.log.Info("server response", "status", resp.StatusCode, "elapsed", time.Since(start), "bytes", len(raw))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &ServerError{Status: resp.StatusCode, Body: raw}
	}
	return c.decode(raw)
}

func (c *Client) decode(raw []byte) (Result, error) {
	res := Result{Raw: raw}
	if err := json.Unmarshal(raw, &res); err != nil {
		if c.textPath == "" {
			return Result{}, fmt.Errorf("%w: %v: %s", ErrMalformedResponse, err, formatResponse(raw))
		}
	}
	if c.textPath != "" {
		text, ok := jsonpath.ExtractText(raw, c.textPath)
		if !ok {
			c.log.Warn("text path not found in response", "path", c.textPath, "body", formatResponse(raw))
		}
		res.Text = text
	}
	res.Text = strings.TrimSpace(res.Text)
	return res, nil
}

// classify maps a transport error to a ConnectionError or TimeoutError.
// Cancellation of the caller's context is returned as is.
func (c *Client) classify(ctx context.Context, url string, timeout time.Duration, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return &TimeoutError{URL: url, Timeout: timeout, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &ConnectionError{URL: url, Err: err}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func buildForm(req Request) (*bytes.Buffer, string, error) {
	name := req.FileName
	if name == "" {
		name = "audio.wav"
	}
	lang := req.Language
	if lang == "" {
		lang = "auto"
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(name)))
	h.Set("Content-Type", "audio/wav")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("asr: create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, "", fmt.Errorf("asr: write form file: %w", err)
	}
	for _, f := range [][2]string{{"task", "transcribe"}, {"language", lang}, {"output", "json"}} {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("asr: write field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("asr: close form: %w", err)
	}
	return body, w.FormDataContentType(), nil
}

func formatResponse(b []byte) string {
	if len(b) == 0 {
		return "<empty>"
	}
	const maxText = 1000
	const maxBin = 256

	if utf8.Valid(b) {
		s := string(b)
		if len(s) > maxText {
			return fmt.Sprintf("%s... (truncated, total %d bytes)", s[:maxText], len(b))
		}
		return s
	}

	if len(b) > maxBin {
		return fmt.Sprintf("<binary %d bytes, prefix hex: %s...>", len(b), hex.EncodeToString(b[:maxBin]))
	}
	return fmt.Sprintf("<binary %d bytes, hex: %s>", len(b), hex.EncodeToString(b))
}
