package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cuencahub/hub-backend/internal/logging"
	"github.com/cuencahub/hub-backend/internal/metrics"
	"golang.org/x/time/rate"
)

// APIError is a non-2xx answer from the analysis service. Message is the
// service's own text so the UI can show it verbatim.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("analysis API returned HTTP %d: %s", e.StatusCode, e.Message)
}

var ErrEmptyQuestion = errors.New("question is required")

// Upload is an optional file attached to a query.
type Upload struct {
	Name    string
	Content io.Reader
}

// Client calls the external satellite analysis API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a client. ratePerMin bounds outbound calls for the whole
// process; zero disables the limit.
func NewClient(baseURL, apiKey string, timeout time.Duration, ratePerMin int) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratePerMin > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMin)), ratePerMin)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: limiter,
		logger:  logging.For("analysis-client"),
	}
}

// Analyze requests the water-quality indicators for a ring and date range.
func (c *Client) Analyze(ctx context.Context, in Request) (*Result, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	var raw json.RawMessage
	err = c.do(ctx, "analyze", "application/json", bytes.NewReader(body), &raw)
	if err != nil {
		return nil, err
	}
	res, err := decodeResult(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding result: %w", err)
	}
	return res, nil
}

// Query asks a free-text question, optionally with a supporting file.
func (c *Client) Query(ctx context.Context, question string, file *Upload) (*QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("question", question); err != nil {
		return nil, fmt.Errorf("writing question: %w", err)
	}
	if file != nil && file.Content != nil {
		fw, err := mw.CreateFormFile("file", file.Name)
		if err != nil {
			return nil, fmt.Errorf("creating file part: %w", err)
		}
		if _, err := io.Copy(fw, file.Content); err != nil {
			return nil, fmt.Errorf("copying file part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	var out QueryResult
	if err := c.do(ctx, "query", mw.FormDataContentType(), &buf, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, endpoint, contentType string, body io.Reader, out interface{}) (err error) {
	started := time.Now()
	defer func() { metrics.ObserveAnalysis(endpoint, started, err) }()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limit: %w", err)
	}

	url := c.baseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("request", "method", http.MethodPost, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	c.logger.Info("response", "endpoint", endpoint, "status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}

// errorMessage pulls the human message out of an error body. FastAPI-style
// {"detail": ...}, {"error": ...} and {"message": ...} are recognised; any
// other body is returned trimmed.
func errorMessage(raw []byte, status string) string {
	var shaped struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(raw, &shaped) == nil {
		if len(shaped.Detail) > 0 {
			var s string
			if json.Unmarshal(shaped.Detail, &s) == nil {
				return s
			}
			return string(shaped.Detail)
		}
		if shaped.Error != "" {
			return shaped.Error
		}
		if shaped.Message != "" {
			return shaped.Message
		}
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return msg
	}
	return status
}
