package config

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/kelseyhightower/envconfig"
)

// Config is the service configuration, read from the environment.
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	GoogleAPIKey     string `envconfig:"GOOGLE_API_KEY"`
	GeminiTextModel  string `envconfig:"GEMINI_TEXT_MODEL" default:"gemini-2.5-flash"`
	GeminiImageModel string `envconfig:"GEMINI_IMAGE_MODEL" default:"gemini-2.5-flash-image"`

	OpenAIAPIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `envconfig:"OPENAI_BASE_URL"`
	OpenAITextModel  string `envconfig:"OPENAI_TEXT_MODEL" default:"gpt-4o-mini"`
	OpenAIImageModel string `envconfig:"OPENAI_IMAGE_MODEL" default:"gpt-image-1"`

	// ImageBackends is the image fallback chain in preference order.
	ImageBackends []string `envconfig:"IMAGE_BACKENDS" default:"gemini,openai"`
	VisionBackend string   `envconfig:"VISION_BACKEND"`
	StoryBackend  string   `envconfig:"STORY_BACKEND"`

	ImageSize    string `envconfig:"IMAGE_SIZE" default:"1024x1536"`
	ImageQuality string `envconfig:"IMAGE_QUALITY" default:"low"`

	UpstreamTimeout time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"120s"`
	FetchTimeout    time.Duration `envconfig:"FETCH_TIMEOUT" default:"60s"`

	ImageWorkers       int `envconfig:"IMAGE_WORKERS" default:"4"`
	ImageQueueSize     int `envconfig:"IMAGE_QUEUE_SIZE" default:"64"`
	UpstreamRatePerMin int `envconfig:"UPSTREAM_RATE_PER_MIN" default:"60"`

	StoryOptionCount int    `envconfig:"STORY_OPTION_COUNT" default:"3"`
	PageFormat       string `envconfig:"PAGE_FORMAT" default:"png"`
	CatalogDir       string `envconfig:"CATALOG_DIR"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	for i, b := range c.ImageBackends {
		c.ImageBackends[i] = strings.ToLower(strings.TrimSpace(b))
	}
	c.VisionBackend = strings.ToLower(strings.TrimSpace(c.VisionBackend))
	c.StoryBackend = strings.ToLower(strings.TrimSpace(c.StoryBackend))
	c.PageFormat = strings.ToLower(c.PageFormat)
	if c.PageFormat != "webp" {
		c.PageFormat = "png"
	}
	c.StoryOptionCount = min(max(c.StoryOptionCount, 1), 5)
}

// GeminiKey returns the Gemini key, accepting either variable name.
func (c *Config) GeminiKey() string {
	return cmp.Or(c.GeminiAPIKey, c.GoogleAPIKey)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

// Level maps LOG_LEVEL onto a charmbracelet level, defaulting to info.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Summary logs the configuration without secrets.
func (c *Config) Summary() {
	log.Info("Configuration loaded",
		"port", c.Port,
		"image_backends", strings.Join(c.ImageBackends, ","),
		"vision_backend", c.VisionBackend,
		"story_backend", c.StoryBackend,
		"gemini", c.GeminiKey() != "",
		"openai", c.OpenAIAPIKey != "" || c.OpenAIBaseURL != "",
		"image_size", c.ImageSize,
		"image_quality", c.ImageQuality,
		"upstream_timeout", c.UpstreamTimeout,
		"workers", c.ImageWorkers,
		"catalog_dir", c.CatalogDir,
	)
}
