package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the trip planning service
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Search   SearchConfig   `mapstructure:"search"`
	Tools    ToolsConfig    `mapstructure:"tools"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string   `mapstructure:"address"`
	StaticDir string   `mapstructure:"static_dir"`
	JWTSecret string   `mapstructure:"jwt_secret"`
	Origins   []string `mapstructure:"allow_origins"`
}

// LLMConfig selects the worker backend used by every pipeline stage.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai, groq, anthropic
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SearchConfig contains web search settings
type SearchConfig struct {
	SerperAPIKey  string        `mapstructure:"serper_api_key"`
	Endpoint      string        `mapstructure:"endpoint"`
	MaxResults    int           `mapstructure:"max_results"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
}

// ToolsConfig toggles optional tool capabilities attached to the researcher.
type ToolsConfig struct {
	PageReader PageReaderConfig `mapstructure:"page_reader"`
}

// PageReaderConfig configures the readable-page extraction tool.
type PageReaderConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxChars  int           `mapstructure:"max_chars"`
	UserAgent string        `mapstructure:"user_agent"`
	// Render loads pages in headless Chrome so script-built pages extract.
	Render    bool          `mapstructure:"render"`
}

// PipelineConfig bounds a single request's pipeline run.
type PipelineConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxToolRounds int           `mapstructure:"max_tool_rounds"`
}

// CatalogConfig points at an alternative template catalogue.
// An empty path selects the embedded default.
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// Normalize fills in defaults for unset LLM values.
func (c LLMConfig) Normalize() LLMConfig {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.APIKey == "" {
		switch c.Provider {
		case "groq":
			c.APIKey = os.Getenv("GROQ_API_KEY")
		case "anthropic":
			c.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		default:
			c.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if c.BaseURL == "" && c.Provider == "groq" {
		c.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.Model == "" {
		switch c.Provider {
		case "groq":
			c.Model = "llama-3.3-70b-versatile"
		case "anthropic":
			c.Model = "claude-sonnet-4-5"
		default:
			c.Model = "gpt-4o-mini"
		}
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	return c
}

func (c LLMConfig) Validate() error {
	switch c.Provider {
	case "openai", "groq", "anthropic":
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	return nil
}

// Normalize fills in defaults for unset search values.
func (s SearchConfig) Normalize() SearchConfig {
	if s.SerperAPIKey == "" {
		s.SerperAPIKey = os.Getenv("SERPER_API_KEY")
	}
	if s.Endpoint == "" {
		s.Endpoint = "https://google.serper.dev/search"
	}
	if s.MaxResults <= 0 || s.MaxResults > 25 {
		s.MaxResults = 10
	}
	if s.Timeout <= 0 {
		s.Timeout = 20 * time.Second
	}
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	}
	if s.Burst <= 0 {
		s.Burst = 1
	}
	return s
}

func (s SearchConfig) Validate() error {
	if strings.TrimSpace(s.Endpoint) == "" {
		return fmt.Errorf("search.endpoint required")
	}
	if s.RatePerSecond < 0 {
		return fmt.Errorf("search.rate_per_second cannot be negative")
	}
	return nil
}

// Normalize fills in defaults for the page reader.
func (p PageReaderConfig) Normalize() PageReaderConfig {
	if p.Timeout <= 0 {
		p.Timeout = 15 * time.Second
	}
	if p.MaxChars <= 0 {
		p.MaxChars = 12000
	}
	if strings.TrimSpace(p.UserAgent) == "" {
		p.UserAgent = "tripcrew/1.0"
	}
	return p
}

// Normalize fills in pipeline defaults.
func (p PipelineConfig) Normalize() PipelineConfig {
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Minute
	}
	if p.MaxToolRounds <= 0 {
		p.MaxToolRounds = 4
	}
	return p
}

// Normalize fills in server defaults.
func (s ServerConfig) Normalize() ServerConfig {
	if s.Address == "" {
		s.Address = ":8000"
	}
	if s.Address[0] != ':' && !strings.Contains(s.Address, ":") {
		s.Address = ":" + s.Address
	}
	if len(s.Origins) == 0 {
		s.Origins = []string{"*"}
	}
	return s
}

// Load reads config from file and environment. A missing config file is
// not an error; defaults and TRIPCREW_* variables are enough to run.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("json")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("search.max_retries", 2)
	v.SetDefault("search.rate_per_second", 5)
	v.SetDefault("search.burst", 5)
	v.SetDefault("tools.page_reader.enabled", false)
	v.SetDefault("pipeline.max_tool_rounds", 4)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)                                // bin/
		v.AddConfigPath(filepath.Join(exeDir, "..", "config")) // repo root/config
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("TRIPCREW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // read in environment variables that match (TRIPCREW_*)
	// AutomaticEnv only sees keys viper already knows about.
	for _, key := range []string{"llm.api_key", "llm.base_url", "llm.model", "search.serper_api_key", "server.jwt_secret", "server.static_dir", "catalog.path"} {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize applies every section's defaults in place.
func (c *Config) Normalize() {
	c.Server = c.Server.Normalize()
	c.LLM = c.LLM.Normalize()
	c.Search = c.Search.Normalize()
	c.Tools.PageReader = c.Tools.PageReader.Normalize()
	c.Pipeline = c.Pipeline.Normalize()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	return nil
}
