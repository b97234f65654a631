package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"soragen/core"
	"soragen/logging"
	"soragen/videos"
)

func testConfig() *core.Config {
	cfg := core.DefaultConfig()
	cfg.APIKey = "sk-test-key-1234"
	cfg.MinRequestDelay = -1
	return &cfg
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*core.Config)
		wantCode string
	}{
		{"missing key", func(c *core.Config) { c.APIKey = "" }, core.ErrCodeMissingAPIKey},
		{"http base url", func(c *core.Config) { c.BaseURL = "http://api.openai.com" }, core.ErrCodeInsecureURL},
		{"malformed base url", func(c *core.Config) { c.BaseURL = "not a url" }, core.ErrCodeInvalidBaseURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := New(cfg, logging.NewNopLogger())
			cfgErr, ok := core.IsConfigError(err)
			if !ok {
				t.Fatalf("New() = %v, want *core.ConfigError", err)
			}
			if cfgErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", cfgErr.Code, tt.wantCode)
			}
		})
	}

	if _, err := New(nil, logging.NewNopLogger()); err == nil {
		t.Error("New(nil config) = nil error, want error")
	}
}

func TestNewWiresServices(t *testing.T) {
	cfg := testConfig()
	cfg.DownloadsDir = t.TempDir()

	cli, err := New(cfg, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cli.Videos() == nil || cli.Images() == nil || cli.Fetcher() == nil || cli.Validator() == nil {
		t.Error("New() left a service nil")
	}
	if cli.Enhancer() != nil {
		t.Error("Enhancer should be nil when enhancement is disabled")
	}

	opts := cli.PollOptions()
	if opts.Interval != cfg.PollInterval || opts.Timeout != cfg.PollTimeout {
		t.Errorf("PollOptions() = %+v", opts)
	}
}

func TestNewEnablesEnhancer(t *testing.T) {
	cfg := testConfig()
	cfg.DownloadsDir = t.TempDir()
	cfg.EnhancePrompts = true

	cli, err := New(cfg, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if cli.Enhancer() == nil {
		t.Error("Enhancer is nil with enhancement enabled")
	}
}

func TestClientEndToEndAgainstLocalServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/videos":
			json.NewEncoder(w).Encode(map[string]string{"id": "video_123", "status": "queued"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/videos/video_123":
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "video_123", "status": "completed", "progress": 100})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.BaseURL = server.URL
	cfg.AllowInsecureBaseURL = true
	cfg.DownloadsDir = t.TempDir()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.PollTimeout = time.Second

	cli, err := New(cfg, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	job, err := cli.Videos().CreateAndWait(ctx, videos.CreateRequest{Prompt: "a fox"}, cli.PollOptions())
	if err != nil {
		t.Fatalf("CreateAndWait() error = %v", err)
	}
	if job.Status != videos.StatusCompleted {
		t.Errorf("Status = %s, want completed", job.Status)
	}
}
