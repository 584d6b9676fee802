package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	once    sync.Once
	initErr error
)

// Init initializes the configuration system.
// This should be called once at application startup.
func Init() error {
	once.Do(func() {
		// Set default values
		setDefaults()

		// Set up environment variable reading for overrides
		viper.SetEnvPrefix("ROZHLASD")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		// Load config from fixed location (cleaned for safety)
		configPath := filepath.Clean("./config/settings.yaml")
		viper.SetConfigFile(configPath)

		// Try to read the config file
		if err := viper.ReadInConfig(); err != nil {
			// If the config file doesn't exist, just use defaults and env vars
			if !os.IsNotExist(err) {
				initErr = fmt.Errorf("error reading config file %s: %w", configPath, err)
				return
			}
			// Config file doesn't exist, which is fine - we'll use defaults
		}

		// Validate the configuration
		if err := validate(); err != nil {
			initErr = fmt.Errorf("invalid configuration: %w", err)
		}
	})

	return initErr
}

// GetConfig returns the current configuration as a struct.
// Init() must be called before using this.
func GetConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &config, nil
}

// Get returns a config value by key using Viper directly
func Get(key string) any {
	return viper.Get(key)
}

// GetString returns a string config value
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a time.Duration config value
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// validate validates the configuration using Viper values
func validate() error {
	port := viper.GetInt("web_port")
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid web port: %d", port)
	}

	if viper.GetString("db_url") == "" {
		return fmt.Errorf("db_url must not be empty")
	}

	if rps := viper.GetFloat64("rate_limit_rps"); rps <= 0 {
		return fmt.Errorf("rate_limit_rps must be positive, got %v", rps)
	}

	// Library manager key without a URL is a misconfiguration worth flagging
	// early; the other direction (URL without key) is allowed for unsecured
	// instances.
	if viper.GetString("library_manager_api_key") != "" && viper.GetString("library_manager_url") == "" {
		fmt.Println("Warning: library_manager_api_key is set but library_manager_url is empty")
	}

	// Auto-correct interval values that would stall the scheduler
	if viper.GetInt("crawl_interval_minutes") <= 0 {
		viper.Set("crawl_interval_minutes", 60)
	}
	if viper.GetInt("download_interval_minutes") <= 0 {
		viper.Set("download_interval_minutes", 5)
	}
	if viper.GetInt("availability_interval_hours") <= 0 {
		viper.Set("availability_interval_hours", 6)
	}

	// Auto-correct invalid worker count
	if viper.GetInt("download_parallelism") <= 0 {
		viper.Set("download_parallelism", 3)
	}

	// Auto-correct invalid batch sizes
	if viper.GetInt("job_batch_size") <= 0 {
		viper.Set("job_batch_size", 10)
	}
	if viper.GetInt("probe_batch_size") <= 0 {
		viper.Set("probe_batch_size", 50)
	}

	return nil
}

// Validate validates a Config struct (for testing)
func (c *Config) Validate() error {
	if c.WebPort <= 0 || c.WebPort > 65535 {
		return fmt.Errorf("invalid web port: %d", c.WebPort)
	}

	if c.DBURL == "" {
		return fmt.Errorf("db_url must not be empty")
	}

	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("rate_limit_rps must be positive, got %v", c.RateLimitRPS)
	}

	if c.DownloadParallelism <= 0 {
		c.DownloadParallelism = 3
	}

	if c.JobBatchSize <= 0 {
		c.JobBatchSize = 10
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Storage defaults
	viper.SetDefault("db_url", "./data/catalog.db")
	viper.SetDefault("library_dir", "./library")
	viper.SetDefault("download_dir", "./downloads")

	// Scheduler defaults
	viper.SetDefault("crawl_interval_minutes", 60)
	viper.SetDefault("download_interval_minutes", 5)
	viper.SetDefault("availability_interval_hours", 6)

	// Public-host politeness defaults. Half a request per second with a
	// small burst keeps the daemon under the radar of the upstream CDN.
	viper.SetDefault("rate_limit_rps", 0.5)
	viper.SetDefault("rate_limit_burst", 2)
	viper.SetDefault("user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	viper.SetDefault("http_timeout", 30*time.Second)

	// Library manager defaults (disabled until configured)
	viper.SetDefault("library_manager_url", "")
	viper.SetDefault("library_manager_api_key", "")

	// Link grabber defaults (disabled until configured)
	viper.SetDefault("link_grabber_host", "")
	viper.SetDefault("link_grabber_port", 3128)

	// Control-plane server defaults
	viper.SetDefault("web_host", "0.0.0.0")
	viper.SetDefault("web_port", 8080)
	viper.SetDefault("shutdown_timeout", 10*time.Second)

	// Extractor defaults
	viper.SetDefault("yt_dlp_path", "yt-dlp")
	viper.SetDefault("ffprobe_path", "ffprobe")
	viper.SetDefault("extract_timeout", 90*time.Second)
	viper.SetDefault("download_timeout", 30*time.Minute)

	// Executor defaults
	viper.SetDefault("download_parallelism", 3)
	viper.SetDefault("job_batch_size", 10)

	// Availability sweep defaults
	viper.SetDefault("probe_batch_size", 50)

	// Event bus defaults
	viper.SetDefault("event_buffer_size", 64)

	// Logging defaults
	viper.SetDefault("verbose", false)
}
