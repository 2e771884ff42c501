package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	StorageLocal = "local"
	StorageGCS   = "gcs"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported config format")
	ErrInvalidConfig     = errors.New("invalid config")
)

// Config is the server configuration. The filesystem layout under Storage is
// the only state the server keeps.
type Config struct {
	LogLevel int    `yaml:"log_level" toml:"log_level"`
	BaseURL  string `yaml:"base_url" toml:"base_url"`

	Server      ServerConfig      `yaml:"server" toml:"server"`
	Storage     StorageConfig     `yaml:"storage" toml:"storage"`
	Audio       AudioConfig       `yaml:"audio" toml:"audio"`
	Acquisition AcquisitionConfig `yaml:"acquisition" toml:"acquisition"`
	Catalog     CatalogConfig     `yaml:"catalog" toml:"catalog"`
	Auth        AuthConfig        `yaml:"auth" toml:"auth"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" toml:"rate_limit"`

	// set when BaseURL came from Server.Port rather than the file or env
	baseURLDerived bool
}

type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port string `yaml:"port" toml:"port"`
}

type StorageConfig struct {
	// Type of storage: "local" or "gcs". Audio always lands in AudioDir;
	// "gcs" additionally mirrors acquired files to a bucket.
	Type string `yaml:"type" toml:"type"`

	AudioDir string `yaml:"audio_dir" toml:"audio_dir"`
	ImageDir string `yaml:"image_dir" toml:"image_dir"`
	DataDir  string `yaml:"data_dir" toml:"data_dir"`
	TempDir  string `yaml:"temp_dir" toml:"temp_dir"`

	GCS GCSConfig `yaml:"gcs" toml:"gcs"`
}

type GCSConfig struct {
	Bucket          string `yaml:"bucket" toml:"bucket"`
	Prefix          string `yaml:"prefix" toml:"prefix"`
	CredentialsFile string `yaml:"credentials_file" toml:"credentials_file"`
}

type AudioConfig struct {
	FileExtension string `yaml:"file_extension" toml:"file_extension"`
	Bitrate       string `yaml:"bitrate" toml:"bitrate"`
	YtDlpPath     string `yaml:"ytdlp_path" toml:"ytdlp_path"`
	FFmpegPath    string `yaml:"ffmpeg_path" toml:"ffmpeg_path"`
}

type AcquisitionConfig struct {
	Timeout Duration `yaml:"timeout" toml:"timeout"`
}

type CatalogConfig struct {
	TagReadTimeout     Duration `yaml:"tag_read_timeout" toml:"tag_read_timeout"`
	MaxConcurrentReads int      `yaml:"max_concurrent_reads" toml:"max_concurrent_reads"`
}

type AuthConfig struct {
	Users []User `yaml:"users" toml:"users"`
}

// User is a login credential. PasswordHash is a bcrypt hash.
type User struct {
	Username     string `yaml:"username" toml:"username"`
	PasswordHash string `yaml:"password_hash" toml:"password_hash"`
}

// RateLimitConfig limits POST routes per client IP. A RequestsPerSecond of
// zero or less disables limiting; the default only applies when the key is
// absent from the file.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int     `yaml:"burst" toml:"burst"`
}

func defaultRateLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 1, Burst: 5}
}

// Load reads a YAML or TOML file, picked by extension, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Prefilled so keys missing from the file keep their defaults.
	config := &Config{RateLimit: defaultRateLimit()}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".toml":
		err = toml.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{RateLimit: defaultRateLimit()}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == "" {
		c.Server.Port = "3000"
	}

	if env := os.Getenv("MEDIASERVER_BASE_URL"); env != "" {
		c.BaseURL = env
	}
	if c.BaseURL == "" {
		c.baseURLDerived = true
	}
	if c.baseURLDerived {
		c.BaseURL = "http://localhost:" + c.Server.Port
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")

	if c.Storage.Type == "" {
		c.Storage.Type = StorageLocal
	}
	if c.Storage.AudioDir == "" {
		c.Storage.AudioDir = filepath.Join("public", "audios")
	}
	if c.Storage.ImageDir == "" {
		c.Storage.ImageDir = filepath.Join("public", "images")
	}
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = "data"
	}
	if c.Storage.TempDir == "" {
		c.Storage.TempDir = os.TempDir()
	}

	if c.Audio.FileExtension == "" {
		c.Audio.FileExtension = "mp3"
	}
	c.Audio.FileExtension = strings.TrimPrefix(strings.ToLower(c.Audio.FileExtension), ".")
	if c.Audio.Bitrate == "" {
		c.Audio.Bitrate = "128k"
	}
	if c.Audio.YtDlpPath == "" {
		c.Audio.YtDlpPath = "yt-dlp"
	}
	if c.Audio.FFmpegPath == "" {
		c.Audio.FFmpegPath = "ffmpeg"
	}

	if c.Acquisition.Timeout == 0 {
		c.Acquisition.Timeout = Duration(30 * time.Minute)
	}

	if c.Catalog.TagReadTimeout == 0 {
		c.Catalog.TagReadTimeout = Duration(5 * time.Second)
	}
	if c.Catalog.MaxConcurrentReads <= 0 {
		c.Catalog.MaxConcurrentReads = 8
	}

	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultRateLimit().Burst
	}
}

// SetPort overrides the listen port. A base URL derived from the old port
// follows the new one; an explicit base_url or MEDIASERVER_BASE_URL is kept.
func (c *Config) SetPort(port string) {
	if port == "" {
		return
	}
	c.Server.Port = port
	if c.baseURLDerived {
		c.BaseURL = "http://localhost:" + port
	}
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageLocal:
	case StorageGCS:
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("%w: storage.gcs.bucket is required for gcs storage", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage type %q", ErrInvalidConfig, c.Storage.Type)
	}

	if c.Acquisition.Timeout < 0 || c.Catalog.TagReadTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", ErrInvalidConfig)
	}

	for _, u := range c.Auth.Users {
		if u.Username == "" || u.PasswordHash == "" {
			return fmt.Errorf("%w: auth users need a username and password_hash", ErrInvalidConfig)
		}
	}

	return nil
}
