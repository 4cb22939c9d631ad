package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"interview-service/internal/llm"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
		// Upload limit for a single video answer, in megabytes
		MaxUploadMB int64 `yaml:"max_upload_mb"`
	} `yaml:"server"`

	Log struct {
		Production bool `yaml:"production"`
	} `yaml:"log"`

	// Multiple providers configuration
	Providers []llm.ProviderConfig `yaml:"providers"`

	// Single provider config (used when providers is empty)
	Gemini struct {
		APIKey            string `yaml:"api_key"`
		ModelName         string `yaml:"model_name"`
		MaxRetries        int    `yaml:"max_retries"`
		RequestsPerMinute int    `yaml:"requests_per_minute"`
	} `yaml:"gemini"`

	MaxFailuresBeforeSwitch int `yaml:"max_failures_before_switch"`

	Speech struct {
		Provider  string `yaml:"provider"` // "gemini" or "whisper"
		APIKey    string `yaml:"api_key"`
		ModelName string `yaml:"model_name"`
		BaseURL   string `yaml:"base_url"`
		Language  string `yaml:"language"`
		// Detect the spoken language of transcripts
		DetectLanguage bool `yaml:"detect_language"`
	} `yaml:"speech"`

	Media struct {
		FFmpegPath  string `yaml:"ffmpeg_path"`
		FFprobePath string `yaml:"ffprobe_path"`
		SampleRate  int    `yaml:"sample_rate"`
		// Peak amplitude (0..32767) at or below which a recording counts as silent
		SilenceThreshold int `yaml:"silence_threshold"`
	} `yaml:"media"`

	Scratch struct {
		Dir             string        `yaml:"dir"`
		ReleaseAttempts int           `yaml:"release_attempts"`
		ReleaseDelay    time.Duration `yaml:"release_delay"`
		SweepCron       string        `yaml:"sweep_cron"`
		MaxAge          time.Duration `yaml:"max_age"`
	} `yaml:"scratch"`

	Evaluation struct {
		CallTimeout time.Duration `yaml:"call_timeout"`
	} `yaml:"evaluation"`

	Database struct {
		Path string `yaml:"path"` // SQLite path or PostgreSQL/MySQL DSN
		Type string `yaml:"type"` // "sqlite", "postgres" or "mysql"
	} `yaml:"database"`
}

// LoadConfig loads configuration from YAML file. Variables from a .env file
// next to the process are loaded first so they can be referenced as ${VAR}.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	// Expand environment variables in secrets
	for i := range config.Providers {
		config.Providers[i].APIKey = os.ExpandEnv(config.Providers[i].APIKey)
	}
	config.Gemini.APIKey = os.ExpandEnv(config.Gemini.APIKey)
	config.Speech.APIKey = os.ExpandEnv(config.Speech.APIKey)
	config.Database.Path = os.ExpandEnv(config.Database.Path)

	if config.Speech.APIKey == "" && config.Speech.Provider == "gemini" {
		config.Speech.APIKey = config.Gemini.APIKey
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}

	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 512
	}

	if c.Gemini.ModelName == "" {
		c.Gemini.ModelName = "gemini-2.0-flash"
	}

	if c.Gemini.MaxRetries == 0 {
		c.Gemini.MaxRetries = 1
	}

	if c.Gemini.RequestsPerMinute == 0 {
		c.Gemini.RequestsPerMinute = 60
	}

	if c.MaxFailuresBeforeSwitch == 0 {
		c.MaxFailuresBeforeSwitch = 3
	}

	if c.Speech.Provider == "" {
		c.Speech.Provider = "gemini"
	}

	if c.Media.FFmpegPath == "" {
		c.Media.FFmpegPath = "ffmpeg"
	}

	if c.Media.FFprobePath == "" {
		c.Media.FFprobePath = "ffprobe"
	}

	if c.Media.SampleRate == 0 {
		c.Media.SampleRate = 16000
	}

	if c.Scratch.Dir == "" {
		c.Scratch.Dir = os.TempDir()
	}

	if c.Scratch.ReleaseAttempts == 0 {
		c.Scratch.ReleaseAttempts = 5
	}

	if c.Scratch.ReleaseDelay == 0 {
		c.Scratch.ReleaseDelay = 400 * time.Millisecond
	}

	if c.Scratch.SweepCron == "" {
		c.Scratch.SweepCron = "@every 10m"
	}

	if c.Scratch.MaxAge == 0 {
		c.Scratch.MaxAge = time.Hour
	}

	if c.Evaluation.CallTimeout == 0 {
		c.Evaluation.CallTimeout = 60 * time.Second
	}

	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}

	if c.Database.Path == "" {
		c.Database.Path = "./data/interviews.db"
	}
}

// Validate reports configuration that makes the service unusable.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 && (c.Gemini.APIKey == "" || c.Gemini.APIKey == "YOUR_API_KEY_HERE") {
		return fmt.Errorf("gemini API key not configured: set gemini.api_key or configure providers")
	}

	for i, p := range c.Providers {
		if p.APIKey == "" {
			return fmt.Errorf("provider %d (%s) has no api_key", i, p.Type)
		}
	}

	switch c.Speech.Provider {
	case "gemini", "whisper":
	default:
		return fmt.Errorf("unknown speech provider %q", c.Speech.Provider)
	}

	if c.Speech.APIKey == "" {
		return fmt.Errorf("speech recognition API key not configured")
	}

	switch c.Database.Type {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}

	if c.Scratch.ReleaseAttempts < 1 {
		return fmt.Errorf("scratch.release_attempts must be at least 1")
	}

	return nil
}
