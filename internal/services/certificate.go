package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apperrors "treecert/internal/errors"
	"treecert/internal/models"
)

const (
	// DefaultBaseURL is the local development address of the certificate service.
	DefaultBaseURL = "http://localhost:8000"

	generatePath = "/generate-certificate"
	healthPath   = "/health"

	generateFailedMessage = "certificate generation failed"
	healthFailedMessage   = "health check failed"

	maxErrorBodySize = 1 << 20 // 1 MB
	requestIDHeader  = "X-Request-ID"
	userAgent        = "treecert"
)

var errNilPayload = fmt.Errorf("%w: certificate data is nil", apperrors.ErrInvalidInput)

// Doer executes HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type contextKey string

const requestIDKey contextKey = "requestID"

// ContextWithRequestID attaches a request id that the client sends instead of
// generating a fresh one.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// CertificateClient talks to the remote certificate generation service.
// It holds no mutable state of its own and is safe for concurrent use.
type CertificateClient struct {
	baseURL    string
	httpClient Doer
	sink       Sink
	logger     *zap.Logger
	limiter    *rate.Limiter
	cache      *CacheService
}

// ClientOption configures a CertificateClient.
type ClientOption func(*CertificateClient)

// WithHTTPClient replaces the transport. Timeouts are the transport's business.
func WithHTTPClient(d Doer) ClientOption {
	return func(c *CertificateClient) {
		c.httpClient = d
	}
}

// WithSink sets where DownloadCertificate saves documents.
func WithSink(s Sink) ClientOption {
	return func(c *CertificateClient) {
		c.sink = s
	}
}

// WithLogger sets the diagnostic logger. Nil keeps the no-op default.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *CertificateClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRateLimit caps outbound requests, e.g. WithRateLimit(2, 4) = 2 req/sec with burst of 4.
func WithRateLimit(rps rate.Limit, burst int) ClientOption {
	return func(c *CertificateClient) {
		c.limiter = rate.NewLimiter(rps, burst)
	}
}

// WithDocumentCache reuses documents generated for byte-identical payloads.
func WithDocumentCache(cache *CacheService) ClientOption {
	return func(c *CertificateClient) {
		c.cache = cache
	}
}

// NewCertificateClient creates a client for the service at baseURL.
// An empty baseURL selects DefaultBaseURL. Construction performs no I/O.
func NewCertificateClient(baseURL string, opts ...ClientOption) *CertificateClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &CertificateClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		sink:       NewFileSink("."),
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the service address the client was built with.
func (c *CertificateClient) BaseURL() string {
	return c.baseURL
}

// GenerateCertificate posts data to /generate-certificate and returns the
// rendered document bytes. The body is relayed as-is; its content type is not
// inspected. A non-2xx answer becomes a *errors.StatusError carrying the
// server's error message, or a fixed message when none can be read.
func (c *CertificateClient) GenerateCertificate(ctx context.Context, data *models.CertificateData) ([]byte, error) {
	if data == nil {
		return nil, errNilPayload
	}

	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode certificate data: %w", err)
	}

	var key string
	if c.cache != nil {
		key = CacheKey(body)
		if doc, ok := c.cache.Get(key); ok {
			c.logger.Debug("certificate served from cache", zap.String("treeId", data.Certificate.TreeID))
			return doc, nil
		}
	}

	req, err := c.newRequest(ctx, http.MethodPost, generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &apperrors.StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}

	doc, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read certificate document: %w", err)
	}

	if c.cache != nil {
		c.cache.Set(key, doc)
	}

	c.logger.Info("certificate generated",
		zap.String("treeId", data.Certificate.TreeID),
		zap.Int("bytes", len(doc)),
	)
	return doc, nil
}

// CheckHealth probes /health. Any non-2xx status fails with a fixed message
// and the body is discarded. A 2xx body is decoded without checking the status tag.
func (c *CertificateClient) CheckHealth(ctx context.Context) (*models.HealthResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, healthPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &apperrors.StatusError{
			StatusCode: resp.StatusCode,
			Message:    healthFailedMessage,
		}
	}

	var health models.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &health, nil
}

// DownloadResult describes a saved certificate.
type DownloadResult struct {
	FileName string
	Location string
	Size     int
}

type downloadOptions struct {
	filename *string
}

// DownloadOption customises DownloadCertificate.
type DownloadOption func(*downloadOptions)

// WithFilename overrides the default baum_zertifikat_<treeId>.pdf name.
func WithFilename(name string) DownloadOption {
	return func(o *downloadOptions) {
		o.filename = &name
	}
}

// DownloadCertificate generates the certificate and saves it through the
// configured sink. Failures are logged and returned unchanged.
func (c *CertificateClient) DownloadCertificate(ctx context.Context, data *models.CertificateData, opts ...DownloadOption) (*DownloadResult, error) {
	if data == nil {
		c.logger.Error("certificate download failed", zap.Error(errNilPayload))
		return nil, errNilPayload
	}

	var o downloadOptions
	for _, opt := range opts {
		opt(&o)
	}

	doc, err := c.GenerateCertificate(ctx, data)
	if err != nil {
		c.logger.Error("certificate download failed",
			zap.String("treeId", data.Certificate.TreeID),
			zap.Error(err),
		)
		return nil, err
	}

	name := data.DefaultFileName()
	if o.filename != nil {
		name = *o.filename
	}

	location, err := c.save(ctx, name, doc)
	if err != nil {
		c.logger.Error("certificate download failed",
			zap.String("treeId", data.Certificate.TreeID),
			zap.String("fileName", name),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Info("certificate saved",
		zap.String("fileName", name),
		zap.String("location", location),
	)
	return &DownloadResult{FileName: name, Location: location, Size: len(doc)}, nil
}

// save writes doc through a sink handle. The handle is released exactly once,
// whatever happens between Open and Commit.
func (c *CertificateClient) save(ctx context.Context, name string, doc []byte) (string, error) {
	h, err := c.sink.Open(ctx, name)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := h.Close(); err != nil {
			c.logger.Warn("failed to release document handle", zap.String("fileName", name), zap.Error(err))
		}
	}()

	if _, err := h.Write(doc); err != nil {
		return "", err
	}
	return h.Commit()
}

func (c *CertificateClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	requestID, _ := ctx.Value(requestIDKey).(string)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	req.Header.Set(requestIDHeader, requestID)
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// do applies the rate limit and sends the request. Transport errors are
// returned exactly as the Doer reported them.
func (c *CertificateClient) do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("certificate service unreachable",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("requestId", req.Header.Get(requestIDHeader)),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Debug("certificate service request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("requestId", req.Header.Get(requestIDHeader)),
	)
	return resp, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// errorMessage extracts the "error" field of an ErrorResponse body, falling
// back to a fixed message when the body is empty, malformed or has no message.
func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	if err != nil {
		return generateFailedMessage
	}

	var errResp models.ErrorResponse
	if err := json.Unmarshal(raw, &errResp); err != nil || errResp.Error == "" {
		return generateFailedMessage
	}
	return errResp.Error
}
