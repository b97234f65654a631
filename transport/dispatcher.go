package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"soragen/core"
	"soragen/logging"
)

// DefaultMinRequestDelay is the pacing gap applied between successive
// requests when the caller does not configure one.
const DefaultMinRequestDelay = 500 * time.Millisecond

// DefaultRequestTimeout bounds a single request unless overridden.
const DefaultRequestTimeout = 60 * time.Second

// Dispatcher sends authenticated requests to a single upstream host.
//
// Pacing: a token-bucket limiter with burst 1 enforces a minimum delay
// between request starts. The limiter serializes its check-and-set
// internally, so concurrent callers cannot race past the delay; issuance
// timestamps are monotonically non-decreasing per dispatcher.
//
// Thread Safety: Dispatcher is safe for concurrent use.
type Dispatcher struct {
	baseURL    string
	apiKey     string
	orgID      string
	projectID  string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	production bool
	logger     *logging.Logger
}

// DispatcherConfig holds construction parameters for a Dispatcher.
type DispatcherConfig struct {
	// BaseURL is the upstream host, e.g. "https://api.openai.com".
	// Trailing slashes are trimmed. Required.
	BaseURL string

	// APIKey is the bearer credential. Required.
	APIKey string

	// OrgID and ProjectID populate the optional scoping headers.
	OrgID     string
	ProjectID string

	// MinRequestDelay is the pacing gap between request starts.
	// Zero selects DefaultMinRequestDelay; negative disables pacing.
	MinRequestDelay time.Duration

	// RequestTimeout bounds each request without an explicit timeout.
	// Zero selects DefaultRequestTimeout.
	RequestTimeout time.Duration

	// Production selects the generic-phrase error mode.
	Production bool

	// HTTPClient is the transport (optional; a default client is created).
	HTTPClient *http.Client

	// Logger is optional; nil discards dispatcher logs.
	Logger *logging.Logger
}

// NewDispatcher creates a Dispatcher.
//
// Returns an error when the base URL or credential is missing. The base
// URL's scheme policy is enforced by the client facade at construction;
// the dispatcher only requires that one was provided.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("transport: base URL is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("transport: API key is required")
	}

	minDelay := cfg.MinRequestDelay
	if minDelay == 0 {
		minDelay = DefaultMinRequestDelay
	}
	var limiter *rate.Limiter
	if minDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(minDelay), 1)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Dispatcher{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		orgID:      cfg.OrgID,
		projectID:  cfg.ProjectID,
		httpClient: httpClient,
		limiter:    limiter,
		timeout:    timeout,
		production: cfg.Production,
		logger:     logger.Named("transport"),
	}, nil
}

// DoJSON sends a request and decodes the JSON response into out.
// Passing a nil out discards the response body.
func (d *Dispatcher) DoJSON(ctx context.Context, req Request, out interface{}) error {
	resp, err := d.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("transport: decoding response: %w", err)
	}
	return nil
}

// DoBinary sends a request and returns the raw response body along with
// its Content-Type.
func (d *Dispatcher) DoBinary(ctx context.Context, req Request) ([]byte, string, error) {
	resp, err := d.do(ctx, req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("transport: reading response body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// do paces, builds, issues, and classifies one request. On success the
// caller owns the response body.
func (d *Dispatcher) do(ctx context.Context, req Request) (*http.Response, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, core.NewCancelledError()
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)

	httpReq, err := d.buildRequest(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	correlationID := uuid.NewString()
	d.logger.Debug("dispatching request",
		zap.String("correlation_id", correlationID),
		zap.String("method", httpReq.Method),
		zap.String("url", httpReq.URL.Redacted()),
		zap.String("api_key", logging.RedactAPIKey(d.apiKey)),
	)

	start := time.Now()
	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			d.logger.Debug("request cancelled", zap.String("correlation_id", correlationID))
			return nil, core.NewCancelledError()
		}
		d.logger.Debug("request failed before response",
			zap.String("correlation_id", correlationID),
			zap.Error(err),
		)
		return nil, core.NewNetworkError(err.Error())
	}

	d.logger.Debug("response received",
		zap.String("correlation_id", correlationID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode >= 300 {
		detail := readAPIErrorDetail(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, core.NewAPIError(resp.StatusCode, detail, d.production)
	}

	// Tie the timeout's cancel to body consumption.
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// buildRequest encodes the body and substitutes the {id} placeholder.
func (d *Dispatcher) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	path := req.Path
	if strings.Contains(path, "{id}") {
		if req.ID == "" {
			return nil, fmt.Errorf("transport: path %q requires a resource id", req.Path)
		}
		path = strings.ReplaceAll(path, "{id}", url.PathEscape(req.ID))
	}

	endpoint := d.baseURL + path
	if len(req.Query) > 0 {
		endpoint += "?" + req.Query.Encode()
	}

	var body io.Reader
	contentType := ""
	switch {
	case req.isMultipart():
		if req.JSONBody != nil {
			return nil, fmt.Errorf("transport: request cannot carry both JSON and multipart bodies")
		}
		buf, ct, err := encodeMultipart(req)
		if err != nil {
			return nil, err
		}
		body = buf
		contentType = ct
	case req.JSONBody != nil:
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(req.JSONBody); err != nil {
			return nil, fmt.Errorf("transport: encoding request body: %w", err)
		}
		body = buf
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("transport: building request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)
	if d.orgID != "" {
		httpReq.Header.Set("OpenAI-Organization", d.orgID)
	}
	if d.projectID != "" {
		httpReq.Header.Set("OpenAI-Project", d.projectID)
	}

	return httpReq, nil
}

// encodeMultipart writes fields then file parts into a multipart body.
func encodeMultipart(req Request) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	for field, value := range req.Fields {
		if err := writer.WriteField(field, value); err != nil {
			return nil, "", fmt.Errorf("transport: writing field %q: %w", field, err)
		}
	}

	for _, file := range req.Files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
		if file.ContentType != "" {
			header.Set("Content-Type", file.ContentType)
		}
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("transport: creating part %q: %w", file.Field, err)
		}
		if _, err := io.Copy(part, file.Reader); err != nil {
			return nil, "", fmt.Errorf("transport: copying part %q: %w", file.Field, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("transport: closing multipart body: %w", err)
	}
	return buf, writer.FormDataContentType(), nil
}

// readAPIErrorDetail extracts the upstream error message from an error
// response body, falling back to the raw (trimmed) body text.
func readAPIErrorDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return err.Error()
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return ""
	}
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return trimmed
}

// cancelReadCloser releases a request-scoped context when the response
// body is closed.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
