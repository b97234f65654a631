package core

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is the upstream API host. It is trusted and is never run
// through the SSRF validator; only caller-supplied media URLs are.
const DefaultBaseURL = "https://api.openai.com"

// Config holds all configuration values for the client.
//
// Precedence, lowest to highest: built-in defaults, YAML config file,
// environment variables. A .env file (loaded via godotenv) populates the
// environment before the env pass and therefore shares its precedence.
type Config struct {
	// Credential and upstream identity
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	OrgID     string `yaml:"org_id"`
	ProjectID string `yaml:"project_id"`

	// Environment is "development" or "production". Production replaces
	// upstream error detail with fixed generic phrases.
	Environment string `yaml:"environment"`

	// AllowInsecureBaseURL permits a non-https base URL. Intended for
	// tests against local servers; construction fails otherwise.
	AllowInsecureBaseURL bool `yaml:"allow_insecure_base_url"`

	// Request pacing and polling
	MinRequestDelay time.Duration `yaml:"min_request_delay"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollTimeout     time.Duration `yaml:"poll_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`

	// Default models
	VideoModel string `yaml:"video_model"`
	ImageModel string `yaml:"image_model"`

	// EnhancePrompts runs the prompt through a chat model before video
	// submission.
	EnhancePrompts bool   `yaml:"enhance_prompts"`
	PromptModel    string `yaml:"prompt_model"`

	// Local paths
	DownloadsDir  string `yaml:"downloads_dir"`
	HistoryDBPath string `yaml:"history_db_path"`
	LogFile       string `yaml:"log_file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Environment:     "production",
		MinRequestDelay: 500 * time.Millisecond,
		PollInterval:    10 * time.Second,
		PollTimeout:     10 * time.Minute,
		RequestTimeout:  60 * time.Second,
		VideoModel:      "sora-2",
		ImageModel:      "gpt-image-1",
		PromptModel:     "gpt-4o-mini",
		DownloadsDir:    "downloads",
		HistoryDBPath:   "soragen.db",
		LogFile:         "soragen.log",
	}
}

// IsProduction reports whether generic error phrases should replace
// upstream detail.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate checks the parts of the configuration that must be right before
// any request is issued. The credential and base URL checks are
// construction-time fatal per the client contract.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey()
	}

	base := strings.TrimSpace(c.BaseURL)
	parsed, err := url.Parse(base)
	if err != nil {
		return ErrInvalidBaseURL(base, err.Error())
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return ErrInvalidBaseURL(base, "missing scheme or host")
	}
	if parsed.Scheme != "https" && !c.AllowInsecureBaseURL {
		return ErrInsecureBaseURL(base)
	}

	// A negative MinRequestDelay is valid: it disables pacing.
	if c.PollInterval <= 0 {
		return fmt.Errorf("core: poll interval must be positive")
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("core: poll timeout must be positive")
	}
	return nil
}

// fileConfig mirrors Config for YAML decoding. Pointer fields distinguish
// "absent" from "zero" so a sparse file only overrides what it names, and
// durations are accepted in Go syntax ("500ms", "10s").
type fileConfig struct {
	APIKey               *string `yaml:"api_key"`
	BaseURL              *string `yaml:"base_url"`
	OrgID                *string `yaml:"org_id"`
	ProjectID            *string `yaml:"project_id"`
	Environment          *string `yaml:"environment"`
	AllowInsecureBaseURL *bool   `yaml:"allow_insecure_base_url"`
	MinRequestDelay      *string `yaml:"min_request_delay"`
	PollInterval         *string `yaml:"poll_interval"`
	PollTimeout          *string `yaml:"poll_timeout"`
	RequestTimeout       *string `yaml:"request_timeout"`
	VideoModel           *string `yaml:"video_model"`
	ImageModel           *string `yaml:"image_model"`
	EnhancePrompts       *bool   `yaml:"enhance_prompts"`
	PromptModel          *string `yaml:"prompt_model"`
	DownloadsDir         *string `yaml:"downloads_dir"`
	HistoryDBPath        *string `yaml:"history_db_path"`
	LogFile              *string `yaml:"log_file"`
}

// UnmarshalYAML merges a YAML document into the receiver, keeping existing
// values for fields the document does not mention.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw fileConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *string, name string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
		return nil
	}

	setString(&c.APIKey, raw.APIKey)
	setString(&c.BaseURL, raw.BaseURL)
	setString(&c.OrgID, raw.OrgID)
	setString(&c.ProjectID, raw.ProjectID)
	setString(&c.Environment, raw.Environment)
	setBool(&c.AllowInsecureBaseURL, raw.AllowInsecureBaseURL)
	if err := setDuration(&c.MinRequestDelay, raw.MinRequestDelay, "min_request_delay"); err != nil {
		return err
	}
	if err := setDuration(&c.PollInterval, raw.PollInterval, "poll_interval"); err != nil {
		return err
	}
	if err := setDuration(&c.PollTimeout, raw.PollTimeout, "poll_timeout"); err != nil {
		return err
	}
	if err := setDuration(&c.RequestTimeout, raw.RequestTimeout, "request_timeout"); err != nil {
		return err
	}
	setString(&c.VideoModel, raw.VideoModel)
	setString(&c.ImageModel, raw.ImageModel)
	setBool(&c.EnhancePrompts, raw.EnhancePrompts)
	setString(&c.PromptModel, raw.PromptModel)
	setString(&c.DownloadsDir, raw.DownloadsDir)
	setString(&c.HistoryDBPath, raw.HistoryDBPath)
	setString(&c.LogFile, raw.LogFile)
	return nil
}

// LoadConfig builds a Config from defaults, an optional YAML file, and
// environment variables, in that order. configPath may be empty, in which
// case "soragen.yaml" is used when present and silently skipped otherwise.
// An explicitly named file that cannot be read or parsed is an error.
func LoadConfig(configPath string) (*Config, error) {
	// Populate the environment from .env first; absence is not an error.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	explicit := configPath != ""
	if configPath == "" {
		configPath = "soragen.yaml"
	}
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, ErrBadConfigFile(configPath, err.Error())
		}
	case os.IsNotExist(err) && !explicit:
		// No config file is fine; env and defaults cover everything.
	default:
		return nil, ErrBadConfigFile(configPath, err.Error())
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides layers environment variables on top of cfg.
func applyEnvOverrides(cfg *Config) {
	cfg.APIKey = GetEnvOrDefault("OPENAI_API_KEY", cfg.APIKey)
	cfg.BaseURL = GetEnvOrDefault("SORAGEN_BASE_URL", GetEnvOrDefault("OPENAI_BASE_URL", cfg.BaseURL))
	cfg.OrgID = GetEnvOrDefault("OPENAI_ORG_ID", cfg.OrgID)
	cfg.ProjectID = GetEnvOrDefault("OPENAI_PROJECT_ID", cfg.ProjectID)
	cfg.Environment = GetEnvOrDefault("SORAGEN_ENV", cfg.Environment)
	cfg.AllowInsecureBaseURL = ParseBoolEnv("SORAGEN_ALLOW_INSECURE", cfg.AllowInsecureBaseURL)
	cfg.MinRequestDelay = ParseMillisEnv("SORAGEN_MIN_REQUEST_DELAY_MS", cfg.MinRequestDelay)
	cfg.PollInterval = ParseMillisEnv("SORAGEN_POLL_INTERVAL_MS", cfg.PollInterval)
	cfg.PollTimeout = ParseMillisEnv("SORAGEN_POLL_TIMEOUT_MS", cfg.PollTimeout)
	cfg.RequestTimeout = ParseMillisEnv("SORAGEN_REQUEST_TIMEOUT_MS", cfg.RequestTimeout)
	cfg.VideoModel = GetEnvOrDefault("SORAGEN_VIDEO_MODEL", cfg.VideoModel)
	cfg.ImageModel = GetEnvOrDefault("SORAGEN_IMAGE_MODEL", cfg.ImageModel)
	cfg.EnhancePrompts = ParseBoolEnv("SORAGEN_ENHANCE_PROMPTS", cfg.EnhancePrompts)
	cfg.PromptModel = GetEnvOrDefault("SORAGEN_PROMPT_MODEL", cfg.PromptModel)
	cfg.DownloadsDir = GetEnvOrDefault("SORAGEN_DOWNLOADS_DIR", cfg.DownloadsDir)
	cfg.HistoryDBPath = GetEnvOrDefault("SORAGEN_HISTORY_DB", cfg.HistoryDBPath)
	cfg.LogFile = GetEnvOrDefault("SORAGEN_LOG_FILE", cfg.LogFile)
}
