// Package client assembles the configured services behind one entry
// point. Construction validates the configuration up front so a bad API
// key or base URL fails immediately instead of on the first request.
package client

import (
	"fmt"
	"net/http"

	"soragen/core"
	"soragen/images"
	"soragen/logging"
	"soragen/promptgen"
	"soragen/transport"
	"soragen/validation"
	"soragen/videos"
)

// Client bundles the video and image services sharing one dispatcher.
//
// Thread Safety: Client and all its services are safe for concurrent
// use. Requests across services share the same pacing limiter.
type Client struct {
	cfg       *core.Config
	logger    *logging.Logger
	validator *validation.URLValidator

	videos   *videos.Service
	imagesvc *images.Service
	fetcher  *images.Fetcher
	enhancer *promptgen.Enhancer
}

// Option adjusts client construction.
type Option func(*options)

type options struct {
	httpClient *http.Client
	lookup     validation.LookupFunc
}

// WithHTTPClient substitutes the HTTP client used by the dispatcher.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithLookup substitutes the DNS lookup used by the URL validator.
func WithLookup(lookup validation.LookupFunc) Option {
	return func(o *options) { o.lookup = lookup }
}

// New builds a Client from a validated configuration.
//
// Returns a *core.ConfigError when the configuration is unusable
// (missing API key, malformed or non-https base URL).
func New(cfg *core.Config, logger *logging.Logger, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("client: config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	dispatcher, err := transport.NewDispatcher(transport.DispatcherConfig{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		OrgID:           cfg.OrgID,
		ProjectID:       cfg.ProjectID,
		MinRequestDelay: cfg.MinRequestDelay,
		RequestTimeout:  cfg.RequestTimeout,
		Production:      cfg.IsProduction(),
		HTTPClient:      o.httpClient,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("client: building dispatcher: %w", err)
	}

	var validator *validation.URLValidator
	if o.lookup != nil {
		validator = validation.NewURLValidatorWithLookup(o.lookup)
	} else {
		validator = validation.NewURLValidator()
	}

	videoService, err := videos.NewService(dispatcher, logger)
	if err != nil {
		return nil, err
	}
	imageService, err := images.NewService(dispatcher, logger)
	if err != nil {
		return nil, err
	}
	fetcher, err := images.NewFetcher(images.FetcherConfig{
		Validator:    validator,
		DownloadsDir: cfg.DownloadsDir,
		Timeout:      cfg.RequestTimeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:       cfg,
		logger:    logger,
		validator: validator,
		videos:    videoService,
		imagesvc:  imageService,
		fetcher:   fetcher,
	}

	if cfg.EnhancePrompts {
		enhancer, err := promptgen.New(promptgen.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL + "/v1",
			Model:   cfg.PromptModel,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		c.enhancer = enhancer
	}

	return c, nil
}

// Videos returns the video job service.
func (c *Client) Videos() *videos.Service { return c.videos }

// Images returns the image service.
func (c *Client) Images() *images.Service { return c.imagesvc }

// Fetcher returns the SSRF-gated downloader for URL-form image results.
func (c *Client) Fetcher() *images.Fetcher { return c.fetcher }

// Validator returns the shared URL validator.
func (c *Client) Validator() *validation.URLValidator { return c.validator }

// Enhancer returns the prompt enhancer, or nil when enhancement is
// disabled in the configuration.
func (c *Client) Enhancer() *promptgen.Enhancer { return c.enhancer }

// Config returns the configuration the client was built with.
func (c *Client) Config() *core.Config { return c.cfg }

// PollOptions derives poll settings from the configuration.
func (c *Client) PollOptions() videos.PollOptions {
	return videos.PollOptions{
		Interval: c.cfg.PollInterval,
		Timeout:  c.cfg.PollTimeout,
	}
}
