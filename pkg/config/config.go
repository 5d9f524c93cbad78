package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
)

// LeafLink API roots.
const (
	// ProductionAPIURL is the default API root
	ProductionAPIURL = "https://app.leaflink.com/api/v2"
	// SandboxAPIURL is the sandbox API root
	SandboxAPIURL = "https://www.sandbox.leaflink.com/api/v2"
	// IntegrationsSandboxAPIURL is the integrations sandbox API root
	IntegrationsSandboxAPIURL = "https://www.leaflink-integrations.leaflink.com/api/v2"
)

// Output sink types understood by the sink registry.
const (
	OutputSinger = "singer"
	OutputJSONL  = "jsonl"
	OutputS3     = "s3"
	OutputKafka  = "kafka"
)

// startDateLayouts are the accepted start_date formats, most specific first.
var startDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// TapConfig is the complete configuration of a tap run.
type TapConfig struct {
	// APIKey is the LeafLink application key (secret, required)
	APIKey string `yaml:"api_key" json:"api_key"`
	// APIURL overrides the API root (production, sandbox or integrations sandbox)
	APIURL string `yaml:"api_url" json:"api_url"`
	// StartDate bounds incremental streams when no prior state exists
	StartDate string `yaml:"start_date" json:"start_date"`
	// Streams restricts the sync to the named streams (empty = all)
	Streams []string `yaml:"streams" json:"streams"`
	// UserAgent is sent with every request
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// SchemaPath points to an OpenAPI document used for SCHEMA messages
	SchemaPath string `yaml:"schema_path" json:"schema_path"`
	// StatePath is the Singer state file read at start and updated per stream
	StatePath string `yaml:"state_path" json:"state_path"`

	// Timeouts define various timeout durations
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Reliability settings for client-side throttling
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// Output selects and configures the record sink
	Output OutputConfig `yaml:"output" json:"output"`
}

// TimeoutConfig contains all timeout-related settings.
// These prevent a page request from blocking indefinitely.
type TimeoutConfig struct {
	// Request bounds a single page request, including reading the body
	Request time.Duration `yaml:"request" json:"request"`
	// Connection bounds dialing the API host
	Connection time.Duration `yaml:"connection" json:"connection"`
	// TLSHandshake bounds the TLS handshake
	TLSHandshake time.Duration `yaml:"tls_handshake" json:"tls_handshake"`
	// Idle closes pooled connections after this long
	Idle time.Duration `yaml:"idle" json:"idle"`
	// Run bounds the whole sync (0 = unbounded)
	Run time.Duration `yaml:"run" json:"run"`
}

// ReliabilityConfig contains client-side throttling settings.
// Failed requests are never retried; see the errors package.
type ReliabilityConfig struct {
	// RateLimitPerSec limits requests per second (0 = unlimited)
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec"`
	// RateBurst is the maximum burst above the steady rate
	RateBurst int `yaml:"rate_burst" json:"rate_burst"`
	// EnableHTTP2 negotiates HTTP/2 with the API when available
	EnableHTTP2 bool `yaml:"enable_http2" json:"enable_http2"`
}

// ObservabilityConfig contains monitoring and observability settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogEncoding is json or console
	LogEncoding string `yaml:"log_encoding" json:"log_encoding"`
	// MetricsAddr serves Prometheus metrics when set (e.g. ":9102")
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// EnableTracing exports spans to stderr
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// OutputConfig configures the record sink.
type OutputConfig struct {
	// Type is one of singer, jsonl, s3 or kafka
	Type string `yaml:"type" json:"type"`

	// Path is the output directory of the jsonl sink
	Path string `yaml:"path" json:"path"`
	// Compression is none, gzip, zstd, snappy or lz4 (jsonl and s3 sinks)
	Compression string `yaml:"compression" json:"compression"`

	// Bucket, Prefix and Region configure the s3 sink
	Bucket string `yaml:"bucket" json:"bucket"`
	Prefix string `yaml:"prefix" json:"prefix"`
	Region string `yaml:"region" json:"region"`

	// Brokers and TopicPrefix configure the kafka sink
	Brokers     []string `yaml:"brokers" json:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix" json:"topic_prefix"`
}

// NewTapConfig creates a TapConfig with production defaults.
func NewTapConfig() *TapConfig {
	return &TapConfig{
		APIURL:    ProductionAPIURL,
		UserAgent: "tap-leaflink/" + Version,
		Timeouts: TimeoutConfig{
			Request:      30 * time.Second,
			Connection:   10 * time.Second,
			TLSHandshake: 10 * time.Second,
			Idle:         90 * time.Second,
		},
		Reliability: ReliabilityConfig{
			RateLimitPerSec: 0,
			RateBurst:       1,
			EnableHTTP2:     true,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogEncoding:       "json",
			TracingSampleRate: 1.0,
		},
		Output: OutputConfig{
			Type:        OutputSinger,
			Compression: "none",
			TopicPrefix: "leaflink.",
		},
	}
}

// Version is the tap version reported by the CLI and the User-Agent.
var Version = "0.1.0"

// Validate checks the configuration before any request is attempted.
// All failures are ErrorTypeConfig.
func (c *TapConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New(errors.ErrorTypeConfig, "api_key is required")
	}

	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New(errors.ErrorTypeConfig, "api_url must be an absolute URL").
			WithDetail("api_url", c.APIURL)
	}

	if c.StartDate != "" {
		if _, err := ParseStartDate(c.StartDate); err != nil {
			return err
		}
	}

	if c.Timeouts.Request <= 0 {
		return errors.New(errors.ErrorTypeConfig, "timeouts.request must be positive")
	}
	if c.Reliability.RateLimitPerSec < 0 {
		return errors.New(errors.ErrorTypeConfig, "reliability.rate_limit_per_sec cannot be negative")
	}

	switch c.Output.Type {
	case OutputSinger:
	case OutputJSONL:
		if c.Output.Path == "" {
			return errors.New(errors.ErrorTypeConfig, "output.path is required for the jsonl sink")
		}
	case OutputS3:
		if c.Output.Bucket == "" {
			return errors.New(errors.ErrorTypeConfig, "output.bucket is required for the s3 sink")
		}
	case OutputKafka:
		if len(c.Output.Brokers) == 0 {
			return errors.New(errors.ErrorTypeConfig, "output.brokers is required for the kafka sink")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown output type %q", c.Output.Type)
	}

	return nil
}

// BaseURL returns the API root without a trailing slash; resource paths
// carry their own leading slash.
func (c *TapConfig) BaseURL() string {
	return strings.TrimRight(c.APIURL, "/")
}

// ParseStartDate parses an ISO date or datetime.
func ParseStartDate(s string) (time.Time, error) {
	for _, layout := range startDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New(errors.ErrorTypeConfig, "start_date must be an ISO date or datetime").
		WithDetail("start_date", s)
}
