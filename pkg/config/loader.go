package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
)

// EnvPrefix is the prefix of environment overrides, e.g. LEAFLINK_API_KEY.
const EnvPrefix = "LEAFLINK"

// Load reads a YAML (or JSON) configuration file on top of NewTapConfig
// defaults. ${VAR_NAME} references are replaced with environment values
// before parsing.
func Load(filePath string) (*TapConfig, error) {
	cfg := NewTapConfig()
	if filePath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the --config flag
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}

	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file").
			WithDetail("path", filePath)
	}

	return cfg, nil
}

// Save writes cfg as YAML. The API key is written as-is; callers that
// persist configs should prefer a ${LEAFLINK_API_KEY} reference.
func Save(filePath string, cfg *TapConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal config")
	}

	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write config file").
			WithDetail("path", filePath)
	}

	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}

// NewViper returns a viper instance reading LEAFLINK_* environment
// variables, with dots in keys mapped to underscores
// (output.type -> LEAFLINK_OUTPUT_TYPE). Callers bind CLI flags to it.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Override keys understood by Resolve.
const (
	KeyAPIKey         = "api_key"
	KeyAPIURL         = "api_url"
	KeyStartDate      = "start_date"
	KeyStreams        = "streams"
	KeyStatePath      = "state_path"
	KeySchemaPath     = "schema_path"
	KeyUserAgent      = "user_agent"
	KeyLogLevel       = "log_level"
	KeyLogEncoding    = "log_encoding"
	KeyMetricsAddr    = "metrics_addr"
	KeyTracing        = "enable_tracing"
	KeyRateLimit      = "rate_limit_per_sec"
	KeyRequestTimeout = "timeouts.request"
	KeyOutputType     = "output.type"
	KeyOutputPath     = "output.path"
	KeyCompression    = "output.compression"
	KeyBucket         = "output.bucket"
	KeyPrefix         = "output.prefix"
	KeyRegion         = "output.region"
	KeyBrokers        = "output.brokers"
	KeyTopicPrefix    = "output.topic_prefix"
)

// Resolve applies every value explicitly set in v (changed flags or
// LEAFLINK_* environment variables) on top of cfg. File values and
// defaults are left untouched for keys that are not set.
func Resolve(cfg *TapConfig, v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	list := func(key string, dst *[]string) {
		if !v.IsSet(key) {
			return
		}
		var out []string
		for _, s := range v.GetStringSlice(key) {
			for _, part := range strings.Split(s, ",") {
				if part = strings.TrimSpace(part); part != "" {
					out = append(out, part)
				}
			}
		}
		*dst = out
	}

	str(KeyAPIKey, &cfg.APIKey)
	str(KeyAPIURL, &cfg.APIURL)
	str(KeyStartDate, &cfg.StartDate)
	list(KeyStreams, &cfg.Streams)
	str(KeyStatePath, &cfg.StatePath)
	str(KeySchemaPath, &cfg.SchemaPath)
	str(KeyUserAgent, &cfg.UserAgent)

	str(KeyLogLevel, &cfg.Observability.LogLevel)
	str(KeyLogEncoding, &cfg.Observability.LogEncoding)
	str(KeyMetricsAddr, &cfg.Observability.MetricsAddr)
	if v.IsSet(KeyTracing) {
		cfg.Observability.EnableTracing = v.GetBool(KeyTracing)
	}

	if v.IsSet(KeyRateLimit) {
		cfg.Reliability.RateLimitPerSec = v.GetFloat64(KeyRateLimit)
	}
	if v.IsSet(KeyRequestTimeout) {
		cfg.Timeouts.Request = v.GetDuration(KeyRequestTimeout)
	}

	str(KeyOutputType, &cfg.Output.Type)
	str(KeyOutputPath, &cfg.Output.Path)
	str(KeyCompression, &cfg.Output.Compression)
	str(KeyBucket, &cfg.Output.Bucket)
	str(KeyPrefix, &cfg.Output.Prefix)
	str(KeyRegion, &cfg.Output.Region)
	list(KeyBrokers, &cfg.Output.Brokers)
	str(KeyTopicPrefix, &cfg.Output.TopicPrefix)
}
