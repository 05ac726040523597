package jobapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// DefaultBaseURL is where the service listens in local development
	DefaultBaseURL = "http://localhost:5000/api"

	// RequestIDHeader carries a per-request id for server-side correlation
	RequestIDHeader = "X-Request-ID"

	// maxDebugBody limits how much of a response body is logged
	maxDebugBody = 2000
)

// Client is the transcription service API client.
// Deadlines are taken from the request context; the underlying http.Client
// has no timeout of its own unless WithTimeout is given.
type Client struct {
	baseURL    string
	httpClient *http.Client
	debug      bool
	log        zerolog.Logger
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithDebug enables request and response body logging
func WithDebug(debug bool) ClientOption {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a new API client
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		log:        zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", c.baseURL)
	}

	return c, nil
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Transcribe uploads a file for direct transcription
func (c *Client) Transcribe(ctx context.Context, file MediaFile) (*UploadResponse, error) {
	return c.upload(ctx, "/transcribe", file, nil)
}

// TranscribeLarge uploads a file for background transcription.
// A positive trimSeconds asks the server to process only the leading portion.
func (c *Client) TranscribeLarge(ctx context.Context, file MediaFile, trimSeconds int) (*UploadResponse, error) {
	var fields map[string]string
	if trimSeconds > 0 {
		fields = map[string]string{"trim_duration": strconv.Itoa(trimSeconds)}
	}
	return c.upload(ctx, "/transcribe-large", file, fields)
}

func (c *Client) upload(ctx context.Context, path string, file MediaFile, fields map[string]string) (*UploadResponse, error) {
	if file.Open == nil {
		return nil, fmt.Errorf("file %q has no content", file.Name)
	}

	// Build multipart form
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return nil, fmt.Errorf("failed to copy file to form: %w", err)
	}

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	status, respBody, err := c.do(ctx, http.MethodPost, path, body, writer.FormDataContentType())
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, respBody); err != nil {
		return nil, err
	}

	var result UploadResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &DecodeError{Body: string(respBody), Err: err}
	}
	result.Raw = string(respBody)
	return &result, nil
}

// JobStatus fetches the state of a background job.
// Failed jobs are reported with a non-2xx code and a status field; any
// response whose body carries a status is returned as a JobStatus.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}

	status, respBody, err := c.do(ctx, http.MethodGet, "/job-status/"+url.PathEscape(jobID), nil, "")
	if err != nil {
		return nil, err
	}

	var result JobStatus
	decodeErr := json.Unmarshal(respBody, &result)
	if decodeErr == nil && result.Status != "" {
		result.HTTPStatus = status
		return &result, nil
	}

	if err := checkStatus(status, respBody); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, &DecodeError{Body: string(respBody), Err: decodeErr}
	}
	return nil, &DecodeError{Body: string(respBody), Err: fmt.Errorf("missing status field")}
}

// Summarize requests a summary. Zero WordCount and empty Style ask for the server default.
func (c *Client) Summarize(ctx context.Context, req SummaryRequest) (*SummaryResponse, error) {
	var result SummaryResponse
	if err := c.postJSON(ctx, "/summarize", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CustomizeSummary requests a summary with explicit length and style
func (c *Client) CustomizeSummary(ctx context.Context, req SummaryRequest) (*SummaryResponse, error) {
	var result SummaryResponse
	if err := c.postJSON(ctx, "/customize-summary", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Ask poses a question about the transcript
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	var result AskResponse
	if err := c.postJSON(ctx, "/ask", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	status, respBody, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(data), "application/json")
	if err != nil {
		return err
	}
	if err := checkStatus(status, respBody); err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &DecodeError{Body: string(respBody), Err: err}
	}
	return nil
}

// do executes a request and returns the status code and full body
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (int, []byte, error) {
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("url", endpoint).Str("request_id", requestID).Msg("request failed")
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug().
		Str("method", method).
		Str("url", endpoint).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if c.debug {
		if len(respBody) < maxDebugBody {
			c.log.Debug().Str("body", string(respBody)).Msg("response body")
		} else {
			c.log.Debug().Str("body", string(respBody[:maxDebugBody])+"...").Msg("response body (truncated)")
		}
	}

	return resp.StatusCode, respBody, nil
}

// checkStatus converts a non-2xx response into an APIError
func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = strings.TrimSpace(payload.Error)
	}
	return apiErr
}
