package s3

import (
	"fmt"
	"maps"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Config holds configuration for the S3 backend.
type Config struct {
	// Bucket is required.
	Bucket string

	// Region falls back to the SDK's own resolution when empty.
	Region string

	// Endpoint is the base URL of an S3-compatible store such as MinIO
	// ("http://localhost:9000") or R2. Empty means AWS.
	Endpoint string

	// Prefix is joined in front of every key, e.g. "runs/2024".
	Prefix string

	// Static credentials. When AccessKeyID or SecretAccessKey is empty the
	// SDK default chain is used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// UsePathStyle selects path-style addressing, which MinIO needs.
	UsePathStyle bool

	// StorageClass is set on every uploaded object, e.g. "STANDARD_IA".
	// Empty leaves the bucket default.
	StorageClass string

	// Metadata is attached to every uploaded object. Per-writer metadata
	// wins on key conflicts.
	Metadata map[string]string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{}
}

// setting is one configuration key with its environment sources, tried in
// order, and the setter that stores a value into Config.
type setting struct {
	key string
	env []string
	set func(*Config, string)
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

var settings = []setting{
	{"bucket", []string{"OMNIFILE_S3_BUCKET", "AWS_S3_BUCKET"}, func(c *Config, v string) { c.Bucket = v }},
	{"region", []string{"OMNIFILE_S3_REGION", "AWS_REGION", "AWS_DEFAULT_REGION"}, func(c *Config, v string) { c.Region = v }},
	{"endpoint", []string{"OMNIFILE_S3_ENDPOINT"}, func(c *Config, v string) { c.Endpoint = v }},
	{"prefix", []string{"OMNIFILE_S3_PREFIX"}, func(c *Config, v string) { c.Prefix = v }},
	{"access_key_id", []string{"AWS_ACCESS_KEY_ID"}, func(c *Config, v string) { c.AccessKeyID = v }},
	{"secret_access_key", []string{"AWS_SECRET_ACCESS_KEY"}, func(c *Config, v string) { c.SecretAccessKey = v }},
	{"session_token", []string{"AWS_SESSION_TOKEN"}, func(c *Config, v string) { c.SessionToken = v }},
	{"use_path_style", []string{"OMNIFILE_S3_USE_PATH_STYLE"}, func(c *Config, v string) { c.UsePathStyle = parseBool(v) }},
	{"storage_class", []string{"OMNIFILE_S3_STORAGE_CLASS"}, func(c *Config, v string) { c.StorageClass = v }},
}

// metadataPrefix marks ConfigFromMap keys that become object metadata,
// e.g. "metadata.run=42".
const metadataPrefix = "metadata."

// ConfigFromEnv creates a Config from environment variables. Each setting
// reads the first non-empty of its variables:
//
//	bucket             OMNIFILE_S3_BUCKET, AWS_S3_BUCKET
//	region             OMNIFILE_S3_REGION, AWS_REGION, AWS_DEFAULT_REGION
//	endpoint           OMNIFILE_S3_ENDPOINT
//	prefix             OMNIFILE_S3_PREFIX
//	access_key_id      AWS_ACCESS_KEY_ID
//	secret_access_key  AWS_SECRET_ACCESS_KEY
//	session_token      AWS_SESSION_TOKEN
//	use_path_style     OMNIFILE_S3_USE_PATH_STYLE ("true" or "1")
//	storage_class      OMNIFILE_S3_STORAGE_CLASS
//	metadata           OMNIFILE_S3_METADATA as "k=v,k=v"
func ConfigFromEnv() Config {
	config := DefaultConfig()
	for _, s := range settings {
		for _, name := range s.env {
			if v := os.Getenv(name); v != "" {
				s.set(&config, v)
				break
			}
		}
	}
	config.Metadata = parseMetadata(os.Getenv("OMNIFILE_S3_METADATA"))
	return config
}

// parseMetadata parses "k=v,k=v". Pairs without "=" or with an empty key
// are ignored.
func parseMetadata(s string) map[string]string {
	var m map[string]string
	for pair := range strings.SplitSeq(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" {
			continue
		}
		if m == nil {
			m = make(map[string]string)
		}
		m[k] = v
	}
	return m
}

// ConfigFromMap creates a Config from a string map, as given on the
// command line with --backend-opt. Keys are the setting names listed on
// ConfigFromEnv; "metadata.<name>" adds one metadata entry.
func ConfigFromMap(m map[string]string) Config {
	config := DefaultConfig()
	for _, s := range settings {
		if v, ok := m[s.key]; ok {
			s.set(&config, v)
		}
	}
	for k, v := range m {
		name, ok := strings.CutPrefix(k, metadataPrefix)
		if !ok || name == "" {
			continue
		}
		if config.Metadata == nil {
			config.Metadata = make(map[string]string)
		}
		config.Metadata[name] = v
	}
	return config
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return ErrBucketRequired
	}
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.Endpoint)
		}
	}
	if c.StorageClass != "" && !slices.Contains(types.StorageClass("").Values(), types.StorageClass(c.StorageClass)) {
		return fmt.Errorf("%w: %q", ErrInvalidStorageClass, c.StorageClass)
	}
	return nil
}

// objectMetadata merges the configured metadata with per-writer metadata.
func (c Config) objectMetadata(perWriter map[string]string) map[string]string {
	if len(c.Metadata) == 0 {
		return perWriter
	}
	m := make(map[string]string, len(c.Metadata)+len(perWriter))
	maps.Copy(m, c.Metadata)
	maps.Copy(m, perWriter)
	return m
}
