package cfg

import "time"

type Cfg struct {
	// Destination store
	DBPath string

	// Source corpus
	SourceType    string
	SourceURL     string
	SourceRetries int

	// Media hosts
	LegacyHost       string
	UploadPathPrefix string
	PublicBaseURL    string

	// Object storage
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3KeyPrefix string

	// Migration run
	PageSize           int
	MaxConcurrency     int
	StartPage          int
	RequestTimeout     time.Duration
	FetchRetries       int
	RetryDelay         time.Duration
	ExcerptLength      int
	RecoverEmptyBodies bool
	ReportFile         string

	// Status API
	Serve        bool
	Port         string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
