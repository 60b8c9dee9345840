package model

import "time"

// Config is the complete application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
	Refiner     RefinerConfig     `yaml:"refiner" mapstructure:"refiner"`
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Session     SessionConfig     `yaml:"session" mapstructure:"session"`
	Reveal      RevealConfig      `yaml:"reveal" mapstructure:"reveal"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Authority   AuthorityConfig   `yaml:"authority" mapstructure:"authority"`
}

// ServerConfig configures the HTTP/WebSocket server
type ServerConfig struct {
	Host        string   `yaml:"host" mapstructure:"host"`
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LLMConfig configures the verification/extraction model provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// RefinerConfig configures the thinking refiner (fast, cheap model)
type RefinerConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	Model       string `yaml:"model" mapstructure:"model"`
	APIKey      string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	BufferLimit int    `yaml:"buffer_limit" mapstructure:"buffer_limit"` // chars before a refinement pass
}

// HTTPConfig configures outbound article fetching
type HTTPConfig struct {
	Timeout          time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent        string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RequestsPerHost  float64       `yaml:"requests_per_host" mapstructure:"requests_per_host"` // per second
	RespectRobotsTxt bool          `yaml:"respect_robots_txt" mapstructure:"respect_robots_txt"`
	HTTPProxy        string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy       string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// CacheConfig configures fetch caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir,omitempty" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// SessionConfig configures server-side session lifecycle
type SessionConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"` // idle expiry
	MaxChunkWords int           `yaml:"max_chunk_words" mapstructure:"max_chunk_words"`
}

// RevealConfig paces the client-side text reveal
type RevealConfig struct {
	Interval      time.Duration `yaml:"interval" mapstructure:"interval"`             // per revealed rune
	GraceDelay    time.Duration `yaml:"grace_delay" mapstructure:"grace_delay"`       // after extraction display completes
	SafetyTimeout time.Duration `yaml:"safety_timeout" mapstructure:"safety_timeout"` // forced claim surface
}

// ConcurrencyConfig bounds parallel verification work
type ConcurrencyConfig struct {
	VerificationWorkers  int     `yaml:"verification_workers" mapstructure:"verification_workers"`
	LLMRequestsPerSecond float64 `yaml:"llm_requests_per_second" mapstructure:"llm_requests_per_second"`
}

// AuthorityConfig drives cited-source authority classification
type AuthorityConfig struct {
	PrimaryDomains   []string `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	PrimaryPatterns  []string `yaml:"primary_patterns" mapstructure:"primary_patterns"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "",
			Timeout:     120,
			MaxTokens:   2048,
			Temperature: 0.1,
		},
		Refiner: RefinerConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			BufferLimit: 1000,
		},
		HTTP: HTTPConfig{
			Timeout:          30 * time.Second,
			UserAgent:        "Veristream/0.1 (+https://github.com/ppiankov/veristream)",
			MaxBodyBytes:     2_000_000,
			RequestsPerHost:  1,
			RespectRobotsTxt: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Session: SessionConfig{
			Timeout:       30 * time.Minute,
			MaxChunkWords: 750,
		},
		Reveal: RevealConfig{
			Interval:      15 * time.Millisecond,
			GraceDelay:    500 * time.Millisecond,
			SafetyTimeout: 4 * time.Second,
		},
		Concurrency: ConcurrencyConfig{
			VerificationWorkers:  2,
			LLMRequestsPerSecond: 0.5,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"legislation.gov.uk", "congress.gov", "europa.eu",
				"nature.com", "science.org", "arxiv.org", "pubmed.ncbi.nlm.nih.gov",
			},
			SecondaryDomains: []string{
				"britannica.com", "reuters.com", "apnews.com", "bbc.com",
				"nytimes.com", "theguardian.com", "wikipedia.org",
			},
			PrimaryPatterns: []string{
				`\.gov(\.[a-z]{2})?/`, `\.edu/`, `/statute/`, `/act/`,
			},
		},
	}
}
