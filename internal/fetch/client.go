// Package fetch implements the single bounded HTTP operation every source
// adapter goes through. It owns the timeout, size-cap and retry contract:
// no call blocks past its deadline regardless of retries, and no parser ever
// receives an unbounded byte stream. Callers only ever see the closed
// [*Error] set; raw transport errors never cross this boundary.
package fetch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// ErrorKind enumerates the closed failure set of the fetch layer.
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindConnectionError   ErrorKind = "connection_error"
	KindOversizedResponse ErrorKind = "oversized_response"
	KindDecodeError       ErrorKind = "decode_error"
	KindHTTPStatus        ErrorKind = "http_status"
)

// Error is the only error type returned by the client.
type Error struct {
	Kind       ErrorKind
	URL        string
	StatusCode int // set for KindHTTPStatus
	Err        error
}

func (e *Error) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the fetch error kind from an error chain, or "" if the
// error did not originate in this package.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Config bounds every call made through the client.
type Config struct {
	ConnectTimeout   time.Duration // TCP/TLS dial bound
	ReadTimeout      time.Duration // hard upper bound on one attempt, end to end
	MaxResponseBytes int64         // announced or streamed size past this aborts the call
	MaxRetries       int           // extra attempts after the first, bounded
	UserAgent        string

	// InsecureTLS skips certificate verification. PHIVOLCS serves an
	// incomplete chain, matching the original deployment's verify=false.
	InsecureTLS bool
}

// Observer receives one end-to-end duration per Fetch call, including
// retries. The performance monitor implements it.
type Observer interface {
	ObserveFetch(operation, sourceID string, elapsed time.Duration)
}

// Body is a decoded, size-capped response.
type Body struct {
	Bytes   []byte
	Elapsed time.Duration
}

// Client issues bounded HTTP GETs with retry, backoff and a global outbound
// rate limit shared by all sources.
type Client struct {
	cfg      Config
	http     *http.Client
	limiter  *rate.Limiter
	observer Observer
	jitter   func(time.Duration) time.Duration
}

// NewClient builds a client from cfg. A nil observer disables measurement
// reporting (durations are still returned to the caller).
func NewClient(cfg Config, observer Observer) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.ConnectTimeout,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		MaxIdleConns:        32,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Transport: transport,
			// Per-attempt bound; retries each get their own deadline so the
			// total stays at ReadTimeout*(MaxRetries+1) plus backoff.
			Timeout: cfg.ReadTimeout,
		},
		limiter:  rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
		observer: observer,
		jitter: func(d time.Duration) time.Duration {
			return d/2 + time.Duration(rand.Int63n(int64(d)/2+1))
		},
	}
}

// Request names one bounded GET. Operation and SourceID label the reported
// performance sample.
type Request struct {
	URL       string
	Operation string
	SourceID  string
	Headers   map[string]string
}

// Fetch performs the request with bounded retries. The returned error is
// always a *Error.
func (c *Client) Fetch(ctx context.Context, req Request) (Body, error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveFetch(req.Operation, req.SourceID, time.Since(start))
		}
	}()

	backoff := 500 * time.Millisecond
	var lastErr *Error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if !sleepWithContext(ctx, c.jitter(backoff)) {
				return Body{}, &Error{Kind: KindTimeout, URL: req.URL, Err: ctx.Err()}
			}
			backoff = nextBackoff(backoff, 5*time.Second)
		}

		body, err := c.attempt(ctx, req)
		if err == nil {
			body.Elapsed = time.Since(start)
			return body, nil
		}
		lastErr = err

		// Oversized responses and HTTP 4xx will not improve on retry.
		if err.Kind == KindOversizedResponse {
			break
		}
		if err.Kind == KindHTTPStatus && err.StatusCode >= 400 && err.StatusCode < 500 {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return Body{}, lastErr
}

func (c *Client) attempt(ctx context.Context, req Request) (Body, *Error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Body{}, &Error{Kind: KindTimeout, URL: req.URL, Err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Body{}, &Error{Kind: KindConnectionError, URL: req.URL, Err: err}
	}
	if c.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Body{}, classifyTransportError(req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused, then discard.
		io.CopyN(io.Discard, resp.Body, 512) //nolint:errcheck
		return Body{}, &Error{Kind: KindHTTPStatus, URL: req.URL, StatusCode: resp.StatusCode}
	}

	if resp.ContentLength > c.cfg.MaxResponseBytes {
		return Body{}, &Error{Kind: KindOversizedResponse, URL: req.URL,
			Err: fmt.Errorf("announced %d bytes, cap %d", resp.ContentLength, c.cfg.MaxResponseBytes)}
	}

	// Read one byte past the cap so a stream that exactly fills the limit is
	// distinguishable from one that exceeds it.
	limited := io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return Body{}, classifyTransportError(req.URL, err)
	}
	if int64(len(data)) > c.cfg.MaxResponseBytes {
		return Body{}, &Error{Kind: KindOversizedResponse, URL: req.URL,
			Err: fmt.Errorf("streamed past %d byte cap", c.cfg.MaxResponseBytes)}
	}

	return Body{Bytes: data}, nil
}

// JSON fetches and decodes a JSON body into v. Malformed payloads fail with
// KindDecodeError; the parser only ever sees the size-capped bytes.
func (c *Client) JSON(ctx context.Context, req Request, v any) (time.Duration, error) {
	body, err := c.Fetch(ctx, req)
	if err != nil {
		return body.Elapsed, err
	}
	if err := json.Unmarshal(body.Bytes, v); err != nil {
		return body.Elapsed, &Error{Kind: KindDecodeError, URL: req.URL, Err: err}
	}
	return body.Elapsed, nil
}

// HTML fetches and parses an HTML document. html.Parse tolerates tag soup,
// so decode failures here are rare.
func (c *Client) HTML(ctx context.Context, req Request) (*html.Node, time.Duration, error) {
	body, err := c.Fetch(ctx, req)
	if err != nil {
		return nil, body.Elapsed, err
	}
	doc, err := html.Parse(bytes.NewReader(body.Bytes))
	if err != nil {
		return nil, body.Elapsed, &Error{Kind: KindDecodeError, URL: req.URL, Err: err}
	}
	return doc, body.Elapsed, nil
}

func classifyTransportError(url string, err error) *Error {
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	case errors.As(err, &nerr) && nerr.Timeout():
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	default:
		return &Error{Kind: KindConnectionError, URL: url, Err: err}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
