// Package etlconfig loads and validates the configuration for one ingestion
// run: fan-out sizes, batch thresholds, and the DSNs/URLs for the relational
// store, the search index, and the identity cache.
package etlconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig reads environment variables under an optional prefix, with
// typed accessors and required-or-panic variants for startup-time config
// that has no sane default.
type EnvConfig struct {
	prefix string
}

// NewEnvConfig creates a loader that reads PREFIX_KEY for a given key.
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix == "" {
		return key
	}
	return ec.prefix + "_" + key
}

func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		return v
	}
	return defaultValue
}

func (ec *EnvConfig) MustGetString(key string) string {
	full := ec.buildKey(key)
	v := os.Getenv(full)
	if v == "" {
		panic(fmt.Sprintf("required environment variable %s not set", full))
	}
	return v
}

func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if v := os.Getenv(ec.buildKey(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// Validator accumulates configuration validation errors so a run reports
// every missing setting at once instead of failing on the first.
type Validator struct {
	errors []string
}

func NewValidator() *Validator { return &Validator{} }

func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

func (v *Validator) Validate() error {
	if len(v.errors) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
}

// Config is the fully resolved configuration for one ingestion run, scoped
// to a single language per SPEC_FULL.md §4.7/§2.
type Config struct {
	Lang     string
	DumpKind string // "revision-history", "stub-meta", or "logging"

	PageFan int // page-transformer worker count
	RevFan  int // revision-transformer worker count
	LogFan  int // log-item-transformer worker count
	Workers int // concurrent dump files processed by the driver

	BatchRows int // tabular loader flush threshold
	BatchDocs int // search loader flush threshold

	MySQLDSN       string // bulk tabular load target for all six relational tables
	SearchURL      string
	SearchIndexFmt string // e.g. "wiki_%s_revisions", %s replaced with Lang
	RedisURL       string

	QuarantineDir string

	LogLevel  string
	LogFormat string
}

// Load resolves a Config from environment variables under the WIKIETL_
// prefix, applying the defaults a single-operator run would want.
func Load() Config {
	env := NewEnvConfig("WIKIETL")
	return Config{
		Lang:           env.GetString("LANG", ""),
		DumpKind:       env.GetString("DUMP_KIND", string(defaultDumpKind)),
		PageFan:        env.GetInt("PAGE_FAN", 1),
		RevFan:         env.GetInt("REV_FAN", 4),
		LogFan:         env.GetInt("LOG_FAN", 2),
		Workers:        env.GetInt("WORKERS", 2),
		BatchRows:      env.GetInt("BATCH_ROWS", 5000),
		BatchDocs:      env.GetInt("BATCH_DOCS", 500),
		MySQLDSN:       env.GetString("MYSQL_DSN", ""),
		SearchURL:      env.GetString("SEARCH_URL", "http://localhost:5984"),
		SearchIndexFmt: env.GetString("SEARCH_INDEX_FMT", "wiki_%s_revisions"),
		RedisURL:       env.GetString("REDIS_URL", "redis://localhost:6379/0"),
		QuarantineDir:  env.GetString("QUARANTINE_DIR", "./quarantine"),
		LogLevel:       env.GetString("LOG_LEVEL", "info"),
		LogFormat:      env.GetString("LOG_FORMAT", "text"),
	}
}

const defaultDumpKind = "revision-history"

// SearchIndexName returns the per-language search index name.
func (c Config) SearchIndexName() string {
	return fmt.Sprintf(c.SearchIndexFmt, c.Lang)
}

// Validate checks the settings that must hold before any dump is consumed,
// so misconfiguration is caught at startup rather than mid-run. It requires
// Lang to be set but does not look it up in the language-pattern registry;
// the ingest command does that check before the first dump is queued.
func (c Config) Validate() error {
	v := NewValidator()
	v.RequireString("Lang", c.Lang)
	v.RequireOneOf("DumpKind", c.DumpKind, []string{"revision-history", "stub-meta", "logging"})
	v.RequirePositiveInt("PageFan", c.PageFan)
	v.RequirePositiveInt("RevFan", c.RevFan)
	v.RequirePositiveInt("Workers", c.Workers)
	v.RequirePositiveInt("BatchRows", c.BatchRows)
	v.RequirePositiveInt("BatchDocs", c.BatchDocs)
	return v.Validate()
}
