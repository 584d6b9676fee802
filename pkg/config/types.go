package config

import "time"

// Config represents the complete daemon configuration. Keys are flat;
// every one of them can be overridden with a ROZHLASD_<KEY> environment
// variable.
type Config struct {
	// Catalog database. Plain file paths get the SQLite pragma set
	// appended (WAL, synchronous=NORMAL, foreign keys).
	DBURL string `mapstructure:"db_url"`

	// Final library root the tagger moves finished assets into.
	LibraryDir string `mapstructure:"library_dir"`

	// Scratch root for in-flight downloads, one subdirectory per episode.
	DownloadDir string `mapstructure:"download_dir"`

	// Scheduler cadence.
	CrawlIntervalMinutes      int `mapstructure:"crawl_interval_minutes"`
	DownloadIntervalMinutes   int `mapstructure:"download_interval_minutes"`
	AvailabilityIntervalHours int `mapstructure:"availability_interval_hours"`

	// Token bucket applied to every request that reaches a public host.
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	UserAgent      string        `mapstructure:"user_agent"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`

	// Library manager (Audiobookshelf). Empty URL disables the notifier.
	LibraryManagerURL    string `mapstructure:"library_manager_url"`
	LibraryManagerAPIKey string `mapstructure:"library_manager_api_key"`

	// Link grabber (JDownloader REST). Empty host disables the backend.
	LinkGrabberHost string `mapstructure:"link_grabber_host"`
	LinkGrabberPort int    `mapstructure:"link_grabber_port"`

	// Control-plane HTTP server.
	WebHost         string        `mapstructure:"web_host"`
	WebPort         int           `mapstructure:"web_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Extractor subprocess.
	YtDlpPath       string        `mapstructure:"yt_dlp_path"`
	FFProbePath     string        `mapstructure:"ffprobe_path"`
	ExtractTimeout  time.Duration `mapstructure:"extract_timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`

	// Download executor.
	DownloadParallelism int `mapstructure:"download_parallelism"`
	JobBatchSize        int `mapstructure:"job_batch_size"`

	// Availability sweep.
	ProbeBatchSize int `mapstructure:"probe_batch_size"`

	// Event bus per-subscriber buffer.
	EventBufferSize int `mapstructure:"event_buffer_size"`

	// Verbose enables SQL logging and debug output.
	Verbose bool `mapstructure:"verbose"`
}

// CrawlInterval returns the crawl tick cadence as a duration.
func (c *Config) CrawlInterval() time.Duration {
	return time.Duration(c.CrawlIntervalMinutes) * time.Minute
}

// DownloadInterval returns the download tick cadence as a duration.
func (c *Config) DownloadInterval() time.Duration {
	return time.Duration(c.DownloadIntervalMinutes) * time.Minute
}

// AvailabilityInterval returns the availability sweep cadence as a duration.
func (c *Config) AvailabilityInterval() time.Duration {
	return time.Duration(c.AvailabilityIntervalHours) * time.Hour
}

// LinkGrabberEnabled reports whether a JDownloader endpoint is configured.
func (c *Config) LinkGrabberEnabled() bool {
	return c.LinkGrabberHost != ""
}

// LibraryManagerEnabled reports whether a library manager endpoint is configured.
func (c *Config) LibraryManagerEnabled() bool {
	return c.LibraryManagerURL != ""
}
