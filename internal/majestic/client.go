package majestic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// DefaultEndpoint is the public Majestic Million CSV.
const DefaultEndpoint = "https://downloads.majestic.com/majestic_million.csv"

// maxErrorBodySize caps how much of an error response is read.
const maxErrorBodySize = 1 << 20

// Config is the configuration supplied by the host platform.
type Config struct {
	VerifySSL bool `json:"verify_ssl"`
}

// File is a multipart upload part.
type File struct {
	Field   string
	Name    string
	Content []byte
}

// Request describes a single outbound call.
type Request struct {
	Endpoint string
	// Method defaults to GET.
	Method string
	// Data is form-encoded into the body, or sent as form fields when Files is set.
	Data Params
	// Params are sent both as query parameters and as request headers.
	// Existing callers depend on the header copy, so it is kept.
	Params Params
	Files  []File
}

// Observer receives per-request outcomes.
type Observer interface {
	ObserveRequest(method, outcome string, elapsed time.Duration)
}

// Client performs requests against the feed endpoint.
type Client struct {
	httpClient     *http.Client
	limiter        limiter
	logger         *slog.Logger
	observer       Observer
	connectTimeout time.Duration
	readTimeout    time.Duration
}

type limiter interface {
	Wait(context.Context) error
}

type limiterFunc func(context.Context) error

func (f limiterFunc) Wait(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f(ctx)
}

// ClientOption configures optional client behaviour.
type ClientOption func(*Client)

// WithLogger sets the logger used for request logging.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithObserver reports request outcomes to o.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// WithTimeouts overrides the connect and read timeouts. Zero keeps the default.
func WithTimeouts(connect, read time.Duration) ClientOption {
	return func(c *Client) {
		if connect > 0 {
			c.connectTimeout = connect
		}
		if read > 0 {
			c.readTimeout = read
		}
	}
}

// WithLimiter throttles outbound requests through lim. Clients that share lim
// share its budget. A nil lim disables throttling.
func WithLimiter(lim *rate.Limiter) ClientOption {
	return func(c *Client) {
		if lim == nil {
			c.limiter = nil
			return
		}
		c.limiter = lim
	}
}

// WithLimiterWaitFunc sets a custom limiter wait function.
func WithLimiterWaitFunc(wait func(context.Context) error) ClientOption {
	return func(c *Client) {
		if wait == nil {
			c.limiter = nil
			return
		}
		c.limiter = limiterFunc(wait)
	}
}

// NewClient creates a client honouring cfg.VerifySSL.
func NewClient(cfg Config, opts ...ClientOption) *Client {
	c := &Client{
		connectTimeout: defaultConnectTimeout,
		readTimeout:    defaultReadTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.httpClient = newHTTPClient(cfg.VerifySSL, c.connectTimeout, c.readTimeout)

	return c
}

// CloseIdleConnections closes keep-alive connections not in use.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// MakeRequest issues req and returns the response untouched when the status is 2xx.
// Every other outcome is returned as *Error.
func (c *Client) MakeRequest(ctx context.Context, req Request) (*http.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	resp, err := c.do(ctx, method, req)
	if err != nil {
		c.observe(method, err, start)
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.logger.Info("request succeeded", "url", req.Endpoint, "status", resp.StatusCode)
		c.observe(method, nil, start)
		return resp, nil
	}

	err = c.errorFromResponse(resp, req.Endpoint)
	c.observe(method, err, start)
	return nil, err
}

func (c *Client) do(ctx context.Context, method string, req Request) (*http.Response, error) {
	if req.Endpoint == "" {
		return nil, NewError(KindUnknown, "endpoint is required", nil)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, NewError(KindUnknown, fmt.Sprintf("rate limit wait: %v", err), err)
		}
	}

	target, err := withQuery(req.Endpoint, req.Params)
	if err != nil {
		return nil, NewError(KindUnknown, err.Error(), err)
	}

	body, contentType, err := encodeBody(req.Data, req.Files)
	if err != nil {
		return nil, NewError(KindUnknown, err.Error(), err)
	}

	var connected atomic.Bool
	trace := &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) { connected.Store(true) },
	}
	ctx = httptrace.WithClientTrace(ctx, trace)

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, NewError(KindUnknown, err.Error(), err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for _, key := range sortedKeys(req.Params) {
		httpReq.Header.Set(key, req.Params.stringValue(key))
	}

	c.logger.Info("executing request", "method", method, "url", req.Endpoint)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err, connected.Load())
	}
	return resp, nil
}

func (c *Client) errorFromResponse(resp *http.Response, endpoint string) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return ClassifyBodyError(err)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusNotFound:
		return httpClientError(resp.StatusCode, raw, "message")
	case http.StatusUnauthorized:
		return httpClientError(resp.StatusCode, raw, "error", "message")
	}

	var decoded any
	if json.Unmarshal(raw, &decoded) == nil {
		c.logger.Error("unexpected response", "url", endpoint, "status", resp.StatusCode, "body", decoded)
	} else {
		c.logger.Error("unexpected response", "url", endpoint, "status", resp.StatusCode, "body", string(raw))
	}

	msg := string(raw)
	if strings.TrimSpace(msg) == "" {
		msg = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
	}
	return &Error{Kind: KindUnknown, StatusCode: resp.StatusCode, Message: msg}
}

// httpClientError extracts the first non-empty field of fields from a JSON body.
func httpClientError(status int, raw []byte, fields ...string) error {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return &Error{Kind: KindParse, StatusCode: status, Message: fmt.Sprintf("decode error response: %v", err), Err: err}
	}

	for _, field := range fields {
		val, ok := body[field]
		if !ok || val == nil {
			continue
		}
		if s, isString := val.(string); isString && s == "" {
			continue
		}
		return &Error{Kind: KindHTTPClient, StatusCode: status, Message: fmt.Sprint(val)}
	}

	return &Error{
		Kind:       KindParse,
		StatusCode: status,
		Message:    fmt.Sprintf("error response has no %q field", fields[len(fields)-1]),
	}
}

func (c *Client) observe(method string, err error, start time.Time) {
	if c.observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = AsError(err, KindUnknown).Kind.String()
	}
	c.observer.ObserveRequest(method, outcome, time.Since(start))
}

func withQuery(endpoint string, params Params) (string, error) {
	if len(params) == 0 {
		return endpoint, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	q := u.Query()
	for _, key := range sortedKeys(params) {
		q.Set(key, params.stringValue(key))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func encodeBody(data Params, files []File) (io.Reader, string, error) {
	if len(files) == 0 {
		if len(data) == 0 {
			return nil, "", nil
		}
		form := url.Values{}
		for _, key := range sortedKeys(data) {
			form.Set(key, data.stringValue(key))
		}
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, key := range sortedKeys(data) {
		if err := w.WriteField(key, data.stringValue(key)); err != nil {
			return nil, "", fmt.Errorf("write form field: %w", err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("write form file: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

func sortedKeys(p Params) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
