// Package config provides the windstream configuration file format.
//
// Configuration is resolved in three layers: Default values, then an
// optional YAML file, then command-line flags applied by the caller.
// Secrets never live in the file; MinIO and Swift credentials are read from
// the environment variables the file names, and S3 uses the AWS default
// credential chain.
package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/input-output-hk/catalyst-forge-libs/windstream/errors"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/gfs"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/grib"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/source"
	"github.com/input-output-hk/catalyst-forge-libs/windstream/upload"
)

// Backend names.
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
	BackendSwift = "swift"
)

// Config is the complete windstream configuration.
type Config struct {
	// StartDate and EndDate bound the inclusive YYYY-MM-DD date range.
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`

	// Hours are the cycles processed per day.
	// Default: 0, 6, 12, 18
	Hours []int `yaml:"hours"`

	// SourceURL is the archive root; http(s) URLs are downloaded, anything
	// else is read from the local filesystem.
	// Default: https://data.rda.ucar.edu/ds084.1
	SourceURL string `yaml:"source_url"`

	// Backend selects the object store: s3, minio or swift.
	// Default: s3
	Backend string `yaml:"backend"`

	// Bucket is the destination bucket (the container for Swift).
	Bucket string `yaml:"bucket"`

	// Prefix is prepended to every object key.
	Prefix string `yaml:"prefix"`

	// PartSize is the multipart flush threshold in bytes.
	// Default: 5MiB
	PartSize int `yaml:"part_size"`

	// Concurrency is the number of files processed at once.
	// Default: 1
	Concurrency int `yaml:"concurrency"`

	// MaxRecordSize is the largest plausible GRIB2 record in bytes.
	// Default: 1GB
	MaxRecordSize uint64 `yaml:"max_record_size"`

	// ContentType and Metadata are attached to every uploaded object.
	ContentType string            `yaml:"content_type"`
	Metadata    map[string]string `yaml:"metadata"`

	HTTP  HTTPConfig  `yaml:"http"`
	S3    S3Config    `yaml:"s3"`
	Minio MinioConfig `yaml:"minio"`
	Swift SwiftConfig `yaml:"swift"`
	Log   LogConfig   `yaml:"log"`
}

// HTTPConfig configures downloads.
type HTTPConfig struct {
	// Timeout bounds one whole download.
	// Default: 10m
	Timeout time.Duration `yaml:"timeout"`

	// ChunkSize is the read buffer size in bytes.
	// Default: 64KiB
	ChunkSize int `yaml:"chunk_size"`

	UserAgent string `yaml:"user_agent"`
}

// S3Config configures the AWS S3 backend.
type S3Config struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
	MaxRetries   int    `yaml:"max_retries"`
	StorageClass string `yaml:"storage_class"`

	// SSE is "", "AES256" or "aws:kms".
	SSE      string `yaml:"sse"`
	KMSKeyID string `yaml:"kms_key_id"`
}

// MinioConfig configures the MinIO backend.
type MinioConfig struct {
	Endpoint string `yaml:"endpoint"`
	Region   string `yaml:"region"`
	UseSSL   bool   `yaml:"use_ssl"`

	// AccessKeyEnv and SecretKeyEnv name the environment variables holding
	// the credentials.
	// Default: MINIO_ACCESS_KEY, MINIO_SECRET_KEY
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
}

// SwiftConfig configures the OpenStack Swift backend.
type SwiftConfig struct {
	AuthURL  string `yaml:"auth_url"`
	UserName string `yaml:"user_name"`
	Domain   string `yaml:"domain"`
	Tenant   string `yaml:"tenant"`
	Region   string `yaml:"region"`

	// SegmentContainer holds the parts of uploaded objects.
	// Default: <bucket>_segments
	SegmentContainer string `yaml:"segment_container"`

	// APIKeyEnv names the environment variable holding the API key.
	// Default: SWIFT_API_KEY
	APIKeyEnv string `yaml:"api_key_env"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Hours:         append([]int(nil), gfs.DefaultHours...),
		SourceURL:     gfs.DefaultBaseURL,
		Backend:       BackendS3,
		PartSize:      upload.DefaultPartSize,
		Concurrency:   1,
		MaxRecordSize: grib.DefaultMaxRecordSize,
		HTTP: HTTPConfig{
			Timeout:   source.DefaultHTTPTimeout,
			ChunkSize: source.DefaultChunkSize,
			UserAgent: "windstream",
		},
		S3: S3Config{
			MaxRetries: 3,
		},
		Minio: MinioConfig{
			AccessKeyEnv: "MINIO_ACCESS_KEY",
			SecretKeyEnv: "MINIO_SECRET_KEY",
		},
		Swift: SwiftConfig{
			APIKeyEnv: "SWIFT_API_KEY",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.InvalidInput("loadConfig", "failed to read %s: %v", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.InvalidInput("loadConfig", "failed to parse %s: %v", path, err)
	}
	return cfg, nil
}

// Cycles returns the GFS cycles selected by the date range and hours.
func (c *Config) Cycles() ([]gfs.Cycle, error) {
	start, err := gfs.ParseDate(c.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := gfs.ParseDate(c.EndDate)
	if err != nil {
		return nil, err
	}
	return gfs.Cycles(start, end, c.Hours)
}

// SegmentContainer returns the Swift segment container.
func (c *Config) SegmentContainer() string {
	if c.Swift.SegmentContainer != "" {
		return c.Swift.SegmentContainer
	}
	return c.Bucket + "_segments"
}

// Credentials returns the MinIO access and secret keys from the environment.
func (m MinioConfig) Credentials() (accessKey, secretKey string, err error) {
	accessKey = os.Getenv(m.AccessKeyEnv)
	secretKey = os.Getenv(m.SecretKeyEnv)
	if accessKey == "" || secretKey == "" {
		return "", "", errors.InvalidInput("minioCredentials",
			"environment variables %s and %s must be set", m.AccessKeyEnv, m.SecretKeyEnv)
	}
	return accessKey, secretKey, nil
}

// APIKey returns the Swift API key from the environment.
func (s SwiftConfig) APIKey() (string, error) {
	key := os.Getenv(s.APIKeyEnv)
	if key == "" {
		return "", errors.InvalidInput("swiftAPIKey", "environment variable %s must be set", s.APIKeyEnv)
	}
	return key, nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if _, err := c.Cycles(); err != nil {
		add("%s", causeOf(err))
	}

	switch c.Backend {
	case BackendS3, BackendMinio:
		if err := validation.ValidateBucketName(c.Bucket); err != nil {
			add("%s", causeOf(err))
		}
	case BackendSwift:
		if c.Bucket == "" {
			add("bucket (Swift container) is required")
		}
		if c.Swift.AuthURL == "" {
			add("swift.auth_url is required")
		}
	default:
		add("unknown backend %q (use s3, minio or swift)", c.Backend)
	}

	if c.Backend == BackendMinio && c.Minio.Endpoint == "" {
		add("minio.endpoint is required")
	}

	if c.PartSize < upload.MinPartSize {
		add("part_size %d is below the %d byte minimum", c.PartSize, upload.MinPartSize)
	}
	if c.Concurrency < 1 {
		add("concurrency must be at least 1")
	}
	if c.MaxRecordSize < grib.MinRecordSize {
		add("max_record_size must be at least %d", grib.MinRecordSize)
	}

	switch c.S3.SSE {
	case "", "AES256", "aws:kms":
	default:
		add("unknown s3.sse %q", c.S3.SSE)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("unknown log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("unknown log format %q", c.Log.Format)
	}

	if len(problems) > 0 {
		return errors.InvalidInput("validateConfig", "%s", strings.Join(problems, "; "))
	}
	return nil
}

// causeOf strips the operation prefix from a package error.
func causeOf(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}
