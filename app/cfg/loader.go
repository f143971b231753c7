package cfg

import (
	"cmp"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Destination store
	DBPath string `long:"db-path" env:"DB_PATH" default:"./post-migrate.db" description:"SQLite database file for migrated posts"`

	// Source corpus
	SourceType    string `long:"source-type" env:"SOURCE_TYPE" default:"rest" choice:"rest" choice:"feed" description:"Source corpus collaborator"`
	SourceURL     string `long:"source-url" env:"SOURCE_URL" description:"Legacy CMS base URL (rest) or export feed URL (feed)" required:"true"`
	SourceRetries int    `long:"source-retries" env:"SOURCE_RETRIES" default:"3" description:"Attempts per source page fetch"`

	// Media hosts
	LegacyHost       string `long:"legacy-host" env:"LEGACY_HOST" description:"Host serving legacy media (e.g., blog.example.com)" required:"true"`
	UploadPathPrefix string `long:"upload-path-prefix" env:"UPLOAD_PATH_PREFIX" default:"/wp-content/uploads/" description:"Path prefix of legacy uploads"`
	PublicBaseURL    string `long:"public-base-url" env:"PUBLIC_BASE_URL" description:"Public base URL of re-hosted media (e.g., https://cdn.example.com)" required:"true"`

	// Object storage
	S3Bucket    string `long:"s3-bucket" env:"S3_BUCKET" description:"Destination bucket for re-hosted media"`
	S3Region    string `long:"s3-region" env:"AWS_REGION" default:"us-east-1" description:"Object storage region"`
	S3Endpoint  string `long:"s3-endpoint" env:"S3_ENDPOINT" description:"Custom S3-compatible endpoint (optional)"`
	S3KeyPrefix string `long:"s3-key-prefix" env:"S3_KEY_PREFIX" description:"Key prefix prepended to uploaded objects"`

	// Migration run
	PageSize           int    `long:"page-size" env:"PAGE_SIZE" default:"20" description:"Posts per source page"`
	MaxConcurrency     int    `long:"max-concurrency" env:"MAX_CONCURRENCY" default:"5" description:"Posts migrated concurrently"`
	StartPage          int    `long:"start-page" env:"START_PAGE" default:"0" description:"Zero-based page to start from"`
	RequestTimeout     int    `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"30" description:"Per-call network timeout in seconds"`
	FetchRetries       int    `long:"fetch-retries" env:"FETCH_RETRIES" default:"2" description:"Retries for transient image fetch failures"`
	RetryDelay         int    `long:"retry-delay" env:"RETRY_DELAY" default:"500" description:"Base retry delay in milliseconds"`
	ExcerptLength      int    `long:"excerpt-length" env:"EXCERPT_LENGTH" default:"160" description:"Maximum excerpt length in characters"`
	RecoverEmptyBodies bool   `long:"recover-empty-bodies" env:"RECOVER_EMPTY_BODIES" description:"Recover empty post bodies from their permalink"`
	ReportFile         string `long:"report" env:"REPORT_FILE" description:"Write the run summary as YAML to this file"`

	// Status API
	Serve        bool   `long:"serve" env:"SERVE" description:"Run the status API instead of a one-shot migration"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Post Migrate/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments (nil means os.Args) and environment.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		SourceType:         raw.SourceType,
		SourceURL:          strings.TrimRight(raw.SourceURL, "/"),
		SourceRetries:      raw.SourceRetries,
		LegacyHost:         strings.ToLower(raw.LegacyHost),
		UploadPathPrefix:   raw.UploadPathPrefix,
		PublicBaseURL:      strings.TrimRight(raw.PublicBaseURL, "/"),
		S3Bucket:           raw.S3Bucket,
		S3Region:           raw.S3Region,
		S3Endpoint:         raw.S3Endpoint,
		S3KeyPrefix:        raw.S3KeyPrefix,
		PageSize:           raw.PageSize,
		MaxConcurrency:     raw.MaxConcurrency,
		StartPage:          raw.StartPage,
		RequestTimeout:     time.Duration(raw.RequestTimeout) * time.Second,
		FetchRetries:       raw.FetchRetries,
		RetryDelay:         time.Duration(raw.RetryDelay) * time.Millisecond,
		ExcerptLength:      raw.ExcerptLength,
		RecoverEmptyBodies: raw.RecoverEmptyBodies,
		ReportFile:         raw.ReportFile,
		Serve:              raw.Serve,
		Port:               raw.Port,
		APIAccessKey:       raw.APIAccessKey,
		UserAgent:          raw.UserAgent,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// DestinationHost returns the host part of PublicBaseURL.
func (c *Cfg) DestinationHost() string {
	u, err := url.Parse(c.PublicBaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

func (c *Cfg) Validate() error {
	if c.LegacyHost == "" {
		return fmt.Errorf("legacy host is required")
	}
	if strings.Contains(c.LegacyHost, "/") {
		return fmt.Errorf("legacy host must be a bare host name, got %q", c.LegacyHost)
	}

	u, err := url.Parse(c.PublicBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("public base URL must be an absolute http(s) URL, got %q", c.PublicBaseURL)
	}
	if strings.EqualFold(u.Host, c.LegacyHost) {
		return fmt.Errorf("public base URL must not point at the legacy host")
	}

	if !strings.HasPrefix(c.UploadPathPrefix, "/") || !strings.HasSuffix(c.UploadPathPrefix, "/") {
		return fmt.Errorf("upload path prefix must start and end with '/', got %q", c.UploadPathPrefix)
	}

	positiveFields := map[string]int{
		"page size":       c.PageSize,
		"max concurrency": c.MaxConcurrency,
		"excerpt length":  c.ExcerptLength,
		"source retries":  c.SourceRetries,
	}
	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	nonNegativeFields := map[string]int{
		"start page":    c.StartPage,
		"fetch retries": c.FetchRetries,
	}
	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
