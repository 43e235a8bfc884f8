package sora

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public OpenAI API root.
const DefaultBaseURL = "https://api.openai.com/v1"

// Client defines the interface for interacting with the video generation API.
type Client interface {
	// CreateVideo submits a new generation job.
	CreateVideo(ctx context.Context, params CreateParams) (*Video, error)

	// RemixVideo submits a remix of a completed video with a new prompt.
	RemixVideo(ctx context.Context, videoID, prompt string) (*Video, error)

	// GetVideo returns the current state of a video job.
	GetVideo(ctx context.Context, videoID string) (*Video, error)

	// ListVideos returns a page of videos.
	ListVideos(ctx context.Context, params ListParams) (*VideoList, error)

	// DeleteVideo deletes a video on the remote side.
	DeleteVideo(ctx context.Context, videoID string) (*DeletionResult, error)

	// DownloadContent fetches one binary variant of a completed video.
	DownloadContent(ctx context.Context, videoID string, variant Variant) ([]byte, error)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// HTTPClient is the HTTP implementation of the Client interface.
type HTTPClient struct {
	apiKey       string
	baseURL      string
	organization string
	project      string
	httpClient   *http.Client
	maxRetries   int
	baseBackoff  time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom base URL, e.g. a proxy or a test server.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(u, "/")
	}
}

// WithOrganization sets the OpenAI-Organization header.
func WithOrganization(org string) ClientOption {
	return func(hc *HTTPClient) {
		hc.organization = org
	}
}

// WithProject sets the OpenAI-Project header.
func WithProject(project string) ClientOption {
	return func(hc *HTTPClient) {
		hc.project = project
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
// The default is zero: callers own their retry policy.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable OPENAI_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("OPENAI_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// CreateVideo submits a new generation job. With a reference image the
// request is multipart/form-data, otherwise JSON.
func (c *HTTPClient) CreateVideo(ctx context.Context, params CreateParams) (*Video, error) {
	if strings.TrimSpace(params.Prompt) == "" {
		return nil, ErrPromptRequired
	}
	if params.Model == "" {
		params.Model = DefaultModel
	}

	var (
		body        []byte
		contentType string
		err         error
	)
	if params.InputReference != "" {
		body, contentType, err = buildMultipart(params)
	} else {
		body, err = json.Marshal(createRequest{
			Prompt:  params.Prompt,
			Model:   params.Model,
			Seconds: params.Seconds,
			Size:    params.Size,
		})
		contentType = "application/json"
	}
	if err != nil {
		return nil, err
	}

	var video Video
	if err := c.doJSON(ctx, http.MethodPost, "/videos", nil, body, contentType, &video); err != nil {
		return nil, err
	}
	if video.ID == "" {
		return nil, ErrNoVideoIDReturned
	}
	return &video, nil
}

// RemixVideo submits a remix of an existing video.
func (c *HTTPClient) RemixVideo(ctx context.Context, videoID, prompt string) (*Video, error) {
	if videoID == "" {
		return nil, ErrVideoIDRequired
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrPromptRequired
	}

	body, err := json.Marshal(remixRequest{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("sora: marshal request: %w", err)
	}

	var video Video
	path := "/videos/" + url.PathEscape(videoID) + "/remix"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, body, "application/json", &video); err != nil {
		return nil, err
	}
	if video.ID == "" {
		return nil, ErrNoVideoIDReturned
	}
	return &video, nil
}

// GetVideo returns the current state of a video job.
func (c *HTTPClient) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	if videoID == "" {
		return nil, ErrVideoIDRequired
	}

	var video Video
	if err := c.doJSON(ctx, http.MethodGet, "/videos/"+url.PathEscape(videoID), nil, nil, "", &video); err != nil {
		return nil, err
	}
	if video.Status == "" {
		video.Status = StatusUnknown
	}
	return &video, nil
}

// ListVideos returns a page of videos. The After cursor is the LastID of
// the previous page.
func (c *HTTPClient) ListVideos(ctx context.Context, params ListParams) (*VideoList, error) {
	query := url.Values{}
	if params.After != "" {
		query.Set("after", params.After)
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Order != "" {
		query.Set("order", params.Order)
	}

	var list VideoList
	if err := c.doJSON(ctx, http.MethodGet, "/videos", query, nil, "", &list); err != nil {
		return nil, err
	}
	if list.Data == nil {
		list.Data = []Video{}
	}
	return &list, nil
}

// DeleteVideo deletes a video on the remote side. The API rejects
// deletion of queued or in-progress jobs; this method does not pre-check.
func (c *HTTPClient) DeleteVideo(ctx context.Context, videoID string) (*DeletionResult, error) {
	if videoID == "" {
		return nil, ErrVideoIDRequired
	}

	var result DeletionResult
	if err := c.doJSON(ctx, http.MethodDelete, "/videos/"+url.PathEscape(videoID), nil, nil, "", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DownloadContent fetches one binary variant of a completed video.
func (c *HTTPClient) DownloadContent(ctx context.Context, videoID string, variant Variant) ([]byte, error) {
	if videoID == "" {
		return nil, ErrVideoIDRequired
	}
	if variant == "" {
		variant = VariantVideo
	}
	if !variant.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVariant, variant)
	}

	query := url.Values{}
	query.Set("variant", string(variant))

	return c.doRequestWithRetry(ctx, http.MethodGet, "/videos/"+url.PathEscape(videoID)+"/content", query, nil, "")
}

// ReferenceMIMEType returns the MIME type sent for a reference image,
// inferred from the file extension.
func ReferenceMIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// buildMultipart encodes a create request with its reference image.
func buildMultipart(params CreateParams) ([]byte, string, error) {
	data, err := os.ReadFile(params.InputReference) // #nosec G304 - path is supplied by the caller
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrReferenceNotFound, params.InputReference)
		}
		return nil, "", fmt.Errorf("sora: read reference image: %w", err)
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := [][2]string{
		{"prompt", params.Prompt},
		{"model", params.Model},
		{"seconds", params.Seconds},
		{"size", params.Size},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("sora: write field %s: %w", f[0], err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf("form-data; name=%q; filename=%q",
		"input_reference", filepath.Base(params.InputReference)))
	header.Set("Content-Type", ReferenceMIMEType(params.InputReference))
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("sora: create reference part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("sora: write reference part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("sora: close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// doJSON performs a request and decodes the JSON response into result.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, result any) error {
	respBody, err := c.doRequestWithRetry(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("sora: unmarshal response: %w", err)
	}
	return nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) ([]byte, error) {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("sora: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2
			}
		}

		respBody, err := c.doRequest(ctx, method, path, query, body, contentType)
		if err == nil {
			return respBody, nil
		}

		if !isRetryable(err) || ctx.Err() != nil {
			return nil, err
		}

		lastErr = err
	}

	return nil, lastErr
}

// doRequest performs a single HTTP request and returns the raw body.
func (c *HTTPClient) doRequest(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("sora: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}
	if c.project != "" {
		req.Header.Set("OpenAI-Project", c.project)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
