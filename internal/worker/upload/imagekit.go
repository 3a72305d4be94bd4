// Package upload re-hosts source images at ImageKit.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrNoURL is returned when the provider response carries no url
var ErrNoURL = errors.New("upload response has no url")

// Config holds ImageKit settings
type Config struct {
	Endpoint   string
	PrivateKey string
	Timeout    time.Duration
	RateLimit  float64 // requests per second, 0 disables limiting
	Burst      int
}

// Client uploads images by reference; ImageKit fetches the source itself.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type uploadResponse struct {
	URL     string `json:"url"`
	FileID  string `json:"fileId"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// NewClient creates an ImageKit upload client
func NewClient(config *Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

// FileName builds a collision-resistant upload name for a review photo
func FileName(reviewID string, now time.Time) string {
	if reviewID == "" {
		reviewID = "image"
	}
	return fmt.Sprintf("%s-%d.jpg", reviewID, now.UnixMilli())
}

// Upload sends source (a URL or base64 payload) under fileName and returns
// the public URL of the stored file
func (c *Client) Upload(ctx context.Context, source, fileName string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("upload rate limiter: %w", err)
	}

	body, contentType, err := buildForm(source, fileName)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.config.PrivateKey+":")))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse upload response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, parsed.Message)
	}

	if parsed.URL == "" {
		return "", ErrNoURL
	}

	c.logger.Debug("Image uploaded",
		slog.String("file_name", fileName),
		slog.String("file_id", parsed.FileID),
		slog.String("url", parsed.URL),
	)

	return parsed.URL, nil
}

func buildForm(source, fileName string) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := [][2]string{
		{"file", source},
		{"fileName", fileName},
		{"useUniqueFileName", "true"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", f[0], err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}

	return buf, w.FormDataContentType(), nil
}
