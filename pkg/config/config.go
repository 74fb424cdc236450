package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig
	SQLite        SQLiteConfig
	Redis         RedisConfig
	Fetcher       FetcherConfig
	Admissibility AdmissibilityConfig
	Upload        UploadConfig
	Chunker       ChunkerConfig
	Adequacy      AdequacyConfig
	RateLimit     RateLimitConfig
	Logging       LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	TTLMin   int
}

type FetcherConfig struct {
	TimeoutSec       int
	MaxAttempts      int
	InitialBackoffMs int
	MinContentLength int
	MaxContentLength int
	BatchWarnBytes   int
}

type AdmissibilityConfig struct {
	BlockedDomains []string
}

type UploadConfig struct {
	MaxBytes          int64
	AllowedExtensions []string
}

type ChunkerConfig struct {
	ChunkWords int
}

type AdequacyConfig struct {
	MinimumMinutes int
	WordsPerMinute int
	WordsWeight    float64
	SourcesWeight  float64
	QualityWeight  float64
}

type RateLimitConfig struct {
	MaxRequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/draftpilot")

	viper.SetEnvPrefix("DRAFTPILOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 52428800)

	viper.SetDefault("sqlite.path", "./data/research.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.ttlMin", 60)

	viper.SetDefault("fetcher.timeoutSec", 10)
	viper.SetDefault("fetcher.maxAttempts", 3)
	viper.SetDefault("fetcher.initialBackoffMs", 1000)
	viper.SetDefault("fetcher.minContentLength", 100)
	viper.SetDefault("fetcher.maxContentLength", 1500)
	viper.SetDefault("fetcher.batchWarnBytes", 15000)

	viper.SetDefault("admissibility.blockedDomains", []string{
		"facebook.com",
		"twitter.com",
		"x.com",
		"instagram.com",
		"tiktok.com",
		"linkedin.com",
		"pinterest.com",
		"docs.google.com",
		"drive.google.com",
		"dropbox.com",
		"notion.so",
		"nytimes.com",
		"wsj.com",
		"ft.com",
		"bloomberg.com",
	})

	viper.SetDefault("upload.maxBytes", int64(50*1024*1024))
	viper.SetDefault("upload.allowedExtensions", []string{"pdf", "docx", "doc", "txt", "json"})

	viper.SetDefault("chunker.chunkWords", 500)

	viper.SetDefault("adequacy.minimumMinutes", 35)
	viper.SetDefault("adequacy.wordsPerMinute", 80)
	viper.SetDefault("adequacy.wordsWeight", 0.5)
	viper.SetDefault("adequacy.sourcesWeight", 0.3)
	viper.SetDefault("adequacy.qualityWeight", 0.2)

	viper.SetDefault("ratelimit.maxRequestsPerMinute", 120)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
