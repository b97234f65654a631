package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"soragen/logging"
	"soragen/validation"
)

// Fetcher downloads URL-form image results.
//
// Generated images are hosted on temporary URLs that expire after about an
// hour, so results should be fetched promptly. Every fetch is gated by the
// SSRF validator first; a URL the validator rejects is never requested.
//
// Thread Safety: Fetcher is safe for concurrent use.
type Fetcher struct {
	client       *http.Client
	validator    *validation.URLValidator
	downloadsDir string
	logger       *logging.Logger
}

// FetcherConfig holds construction parameters for a Fetcher.
type FetcherConfig struct {
	// Validator gates every fetch. Required.
	Validator *validation.URLValidator

	// DownloadsDir receives fetched files. Default "downloads".
	DownloadsDir string

	// Timeout bounds one download. Default 60 seconds.
	Timeout time.Duration

	// HTTPClient is optional; a default client is created.
	HTTPClient *http.Client

	// Logger is optional.
	Logger *logging.Logger
}

// NewFetcher creates a Fetcher and ensures the downloads directory exists.
func NewFetcher(cfg FetcherConfig) (*Fetcher, error) {
	if cfg.Validator == nil {
		return nil, fmt.Errorf("images: fetcher requires a URL validator")
	}

	downloadsDir := cfg.DownloadsDir
	if downloadsDir == "" {
		downloadsDir = "downloads"
	}
	if err := os.MkdirAll(downloadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("images: creating downloads directory: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Fetcher{
		client:       client,
		validator:    cfg.Validator,
		downloadsDir: downloadsDir,
		logger:       logger.Named("fetcher"),
	}, nil
}

// DownloadsDir returns the configured downloads directory.
func (f *Fetcher) DownloadsDir() string {
	return f.downloadsDir
}

// Fetch validates the URL and downloads it, returning the raw bytes and
// the Content-Type.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	if rawURL == "" {
		return nil, "", fmt.Errorf("images: url cannot be empty")
	}
	if err := f.validator.Validate(ctx, rawURL); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("images: building fetch request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("images: fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("images: fetch failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("images: reading image data: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// FetchResult describes a file written by FetchToFile.
type FetchResult struct {
	// Path is the local file path of the downloaded image.
	Path string

	// Size is the downloaded size in bytes.
	Size int64

	// ContentType is the MIME type reported by the server.
	ContentType string
}

// FetchToFile validates, downloads, and saves an image under the
// downloads directory. The extension is derived from the Content-Type and
// the write is atomic (tmp file renamed into place).
func (f *Fetcher) FetchToFile(ctx context.Context, rawURL string, filename string) (*FetchResult, error) {
	if filename == "" {
		return nil, fmt.Errorf("images: filename cannot be empty")
	}

	data, contentType, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	ext := extensionFromContentType(contentType)
	if ext == "" {
		ext = ".png"
	}
	fullPath := filepath.Join(f.downloadsDir, sanitizeFilename(filename)+ext)

	tmpPath := fullPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("images: writing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("images: renaming %s: %w", tmpPath, err)
	}

	f.logger.Info("image saved",
		zap.String("path", fullPath),
		zap.Int("bytes", len(data)),
	)

	return &FetchResult{
		Path:        fullPath,
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

// extensionFromContentType returns the file extension for a Content-Type.
func extensionFromContentType(contentType string) string {
	lower := strings.ToLower(contentType)
	if idx := strings.Index(lower, ";"); idx != -1 {
		lower = lower[:idx]
	}
	lower = strings.TrimSpace(lower)

	switch lower {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		if strings.HasPrefix(lower, "image/") {
			return ".png"
		}
		return ""
	}
}

// sanitizeFilename replaces characters that are unsafe for filenames.
func sanitizeFilename(filename string) string {
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", "\n", "\r", "\t"}
	result := filename
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, char, "_")
	}
	if len(result) > 200 {
		result = result[:200]
	}
	if result == "" {
		result = "image"
	}
	return result
}
