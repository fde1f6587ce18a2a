package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Chapsvision-dev/qdrant-dump/internal/retry"
)

// Defaults.
const (
	DefaultCollection   = "all"
	DefaultOutDir       = "./backups"
	DefaultRemotePrefix = "qdrant/snapshots"
	DefaultLogLevel     = "warn"
	DefaultLogFormat    = "console"
	DefaultAWSRegion    = "us-east-1"
)

// Flag names shared with the CLI.
const (
	FlagURL          = "url"
	FlagAPIKey       = "api-key"
	FlagAPIKeyFile   = "api-key-file"
	FlagCollection   = "collection"
	FlagOut          = "out"
	FlagTimestamp    = "timestamp"
	FlagProvider     = "provider"
	FlagRemotePrefix = "remote-prefix"
	FlagLogLevel     = "log-level"
	FlagLogFormat    = "log-format"
)

var (
	ErrMissingURL          = errors.New("qdrant url is required (--url or QDRANT_URL)")
	ErrInvalidURL          = errors.New("qdrant url must be an absolute http(s) url")
	ErrConflictingAPIKey   = errors.New("--api-key and --api-key-file are mutually exclusive")
	ErrEmptyCollection     = errors.New("collection must not be empty")
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

type Config struct {
	URL        string
	APIKey     string
	APIKeyFile string
	Collection string
	OutDir     string
	Timestamp  bool

	LogLevel  string
	LogFormat string

	// Offsite copy of each saved file; empty Provider keeps backups local.
	Provider     string
	RemotePrefix string

	Azure AzureConfig
	S3    S3Config

	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
	RetryMultiplier   float64
	RetryEnableJitter bool
}

type AzureConfig struct {
	Account   string
	Container string
	SASToken  string
	Endpoint  string

	ClientID     string
	ClientSecret string
	TenantID     string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible stores (path-style)
	AccessKeyID     string
	SecretAccessKey string
}

// flagEnv maps keys bound to CLI flags to their environment fallback.
var flagEnv = map[string]string{
	FlagURL:          "QDRANT_URL",
	FlagAPIKey:       "QDRANT_API_KEY",
	FlagAPIKeyFile:   "QDRANT_API_KEY_FILE",
	FlagCollection:   "QDRANT_COLLECTION",
	FlagOut:          "BACKUP_OUT",
	FlagTimestamp:    "BACKUP_TIMESTAMP",
	FlagProvider:     "BACKUP_PROVIDER",
	FlagRemotePrefix: "BACKUP_REMOTE_PREFIX",
	FlagLogLevel:     "LOG_LEVEL",
	FlagLogFormat:    "LOG_FORMAT",
}

// envOnly lists settings with no CLI flag.
var envOnly = map[string]string{
	"azure.account":       "AZURE_STORAGE_ACCOUNT",
	"azure.container":     "AZURE_STORAGE_CONTAINER",
	"azure.sas":           "AZURE_STORAGE_SAS",
	"azure.endpoint":      "AZURE_BLOB_ENDPOINT",
	"azure.client_id":     "AZURE_CLIENT_ID",
	"azure.client_secret": "AZURE_CLIENT_SECRET",
	"azure.tenant_id":     "AZURE_TENANT_ID",
	"s3.bucket":           "S3_BUCKET",
	"s3.region":           "AWS_REGION",
	"s3.endpoint":         "AWS_ENDPOINT_URL",
	"s3.access_key_id":    "AWS_ACCESS_KEY_ID",
	"s3.secret_key":       "AWS_SECRET_ACCESS_KEY",
	"retry.max_attempts":  "RETRY_MAX_ATTEMPTS",
	"retry.initial_delay": "RETRY_INITIAL_DELAY",
	"retry.max_delay":     "RETRY_MAX_DELAY",
	"retry.multiplier":    "RETRY_MULTIPLIER",
	"retry.jitter":        "RETRY_JITTER",
}

// RegisterFlags declares the configuration flags on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP(FlagURL, "u", "", "Qdrant server URL (e.g. https://qdrant.example.com:6333)")
	fs.StringP(FlagAPIKey, "a", "", "API key for Qdrant (if needed)")
	fs.String(FlagAPIKeyFile, "", "read the API key from this file instead of --api-key")
	fs.StringP(FlagCollection, "c", DefaultCollection, `collection to back up, or "all" for every collection`)
	fs.StringP(FlagOut, "o", DefaultOutDir, "directory where backups are saved")
	fs.BoolP(FlagTimestamp, "t", false, "save into a <out>/YYYYMMDD_HHMMSS subdirectory")
	fs.String(FlagProvider, "", "also upload each snapshot file: azure, s3 (default: local only)")
	fs.String(FlagRemotePrefix, DefaultRemotePrefix, "object key prefix for uploads")
	fs.String(FlagLogLevel, DefaultLogLevel, "log level: trace, debug, info, warn, error")
	fs.String(FlagLogFormat, DefaultLogFormat, "log format: console, json")
}

// Load resolves configuration from fs and the environment, applies defaults
// and validates. Precedence: explicitly set flag > env var > flag default.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()

	for key, env := range flagEnv {
		if fs != nil {
			if f := fs.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, errors.Wrapf(err, "bind flag %s", key)
				}
			}
		}
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, errors.Wrapf(err, "bind env %s", env)
		}
	}
	for key, env := range envOnly {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, errors.Wrapf(err, "bind env %s", env)
		}
	}

	v.SetDefault(FlagCollection, DefaultCollection)
	v.SetDefault(FlagOut, DefaultOutDir)
	v.SetDefault(FlagRemotePrefix, DefaultRemotePrefix)
	v.SetDefault(FlagLogLevel, DefaultLogLevel)
	v.SetDefault(FlagLogFormat, DefaultLogFormat)
	v.SetDefault("s3.region", DefaultAWSRegion)
	v.SetDefault("retry.max_attempts", retry.Default.MaxAttempts)
	v.SetDefault("retry.initial_delay", retry.Default.InitialDelay)
	v.SetDefault("retry.max_delay", retry.Default.MaxDelay)
	v.SetDefault("retry.multiplier", retry.Default.Multiplier)
	v.SetDefault("retry.jitter", retry.Default.Jitter)

	str := func(key string) string { return strings.TrimSpace(v.GetString(key)) }

	cfg := Config{
		URL:        str(FlagURL),
		APIKey:     v.GetString(FlagAPIKey),
		APIKeyFile: str(FlagAPIKeyFile),
		Collection: v.GetString(FlagCollection),
		OutDir:     str(FlagOut),
		Timestamp:  v.GetBool(FlagTimestamp),

		LogLevel:  strings.ToLower(str(FlagLogLevel)),
		LogFormat: strings.ToLower(str(FlagLogFormat)),

		Provider:     strings.ToLower(str(FlagProvider)),
		RemotePrefix: str(FlagRemotePrefix),

		Azure: AzureConfig{
			Account:      str("azure.account"),
			Container:    str("azure.container"),
			SASToken:     str("azure.sas"),
			Endpoint:     str("azure.endpoint"),
			ClientID:     str("azure.client_id"),
			ClientSecret: str("azure.client_secret"),
			TenantID:     str("azure.tenant_id"),
		},
		S3: S3Config{
			Bucket:          str("s3.bucket"),
			Region:          str("s3.region"),
			Endpoint:        str("s3.endpoint"),
			AccessKeyID:     str("s3.access_key_id"),
			SecretAccessKey: str("s3.secret_key"),
		},

		RetryMaxAttempts:  v.GetInt("retry.max_attempts"),
		RetryInitialDelay: v.GetDuration("retry.initial_delay"),
		RetryMaxDelay:     v.GetDuration("retry.max_delay"),
		RetryMultiplier:   v.GetFloat64("retry.multiplier"),
		RetryEnableJitter: v.GetBool("retry.jitter"),
	}
	if cfg.OutDir == "" {
		cfg.OutDir = DefaultOutDir
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = DefaultAWSRegion
	}
	if cfg.Provider == "none" {
		cfg.Provider = ""
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate checks required values and provider-specific requirements.
func (c *Config) validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Wrapf(ErrInvalidURL, "%q", c.URL)
	}
	if c.APIKey != "" && c.APIKeyFile != "" {
		return ErrConflictingAPIKey
	}
	if strings.TrimSpace(c.Collection) == "" {
		return ErrEmptyCollection
	}

	switch c.Provider {
	case "":
	case "azure":
		if c.Azure.Account == "" || c.Azure.Container == "" {
			return errors.New("azure: AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_CONTAINER are required")
		}
		// SAS, service principal, or DefaultAzureCredential (MSI) in the provider.
	case "s3":
		if c.S3.Bucket == "" {
			return errors.New("s3: S3_BUCKET is required")
		}
	default:
		return errors.Wrapf(ErrUnsupportedProvider, "%s", c.Provider)
	}
	return nil
}

// RetryOptions converts retry-related config values to retry.Options.
func (c Config) RetryOptions() retry.Options {
	return retry.Options{
		MaxAttempts:  c.RetryMaxAttempts,
		InitialDelay: c.RetryInitialDelay,
		MaxDelay:     c.RetryMaxDelay,
		Multiplier:   c.RetryMultiplier,
		Jitter:       c.RetryEnableJitter,
	}
}
