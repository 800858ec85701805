// Package config holds the runtime configuration for the index service:
// where sources live, how aggressively to refresh them, and the knobs that
// bound concurrent network and summarizer work.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Default values applied by Validate when the corresponding field is the
// zero value.
const (
	DefaultRuntimeRefreshTick       = 5 * time.Minute
	DefaultURLRefreshMinInterval    = 6 * time.Hour
	DefaultURLDownloadConcurrency   = 4
	DefaultSummarizationConcurrency = 2
	DefaultWebFetchTimeout          = 30 * time.Second
)

// ErrSourcesDirRequired is returned by Validate when SourcesDir is empty.
var ErrSourcesDirRequired = errors.New("config: sources_dir is required")

// ErrIndexCachePathRequired is returned by Validate when IndexCachePath is
// empty.
var ErrIndexCachePathRequired = errors.New("config: index_cache_path is required")

// ErrIndexPathRequired is returned by Validate when IndexPath is empty.
var ErrIndexPathRequired = errors.New("config: index_path is required")

// Config is the full set of knobs the index service is built from.
type Config struct {
	// SourcesDir is the root directory the file provider walks.
	SourcesDir string `json:"sources_dir" yaml:"sources_dir"`
	// LinksFilePath lists the URLs the url provider tracks, one per line.
	LinksFilePath string `json:"links_file_path" yaml:"links_file_path"`
	// IndexCachePath is where the JSON cache is persisted.
	IndexCachePath string `json:"index_cache_path" yaml:"index_cache_path"`
	// IndexPath is where the human-readable index artifact is written.
	IndexPath string `json:"index_path" yaml:"index_path"`

	// RuntimeRefreshTick is the interval between refresh cycles when
	// RefreshSchedule is unset.
	RuntimeRefreshTick time.Duration `json:"runtime_refresh_tick_seconds" yaml:"runtime_refresh_tick_seconds"`
	// RefreshSchedule is an optional cron expression (robfig/cron/v3
	// "standard" 5-field syntax) that overrides the fixed-tick cadence.
	RefreshSchedule string `json:"refresh_schedule" yaml:"refresh_schedule"`

	// URLRefreshMinInterval is the minimum gap between successful checks
	// of the same URL.
	URLRefreshMinInterval time.Duration `json:"url_refresh_min_interval_hours" yaml:"url_refresh_min_interval_hours"`
	// URLDownloadConcurrency bounds parallel HTTP operations (≥1).
	URLDownloadConcurrency int `json:"url_download_concurrency" yaml:"url_download_concurrency"`
	// SummarizationConcurrency bounds parallel summarizer calls (≥1).
	SummarizationConcurrency int `json:"summarization_concurrency" yaml:"summarization_concurrency"`
	// WebFetchTimeout bounds a single URL provider HTTP round trip.
	WebFetchTimeout time.Duration `json:"web_fetch_timeout_seconds" yaml:"web_fetch_timeout_seconds"`

	// IndexPrefix is an optional single line prepended to the index
	// artifact.
	IndexPrefix string `json:"index_prefix" yaml:"index_prefix"`
	// SourceTypeOrder controls grouping order in the index artifact.
	// Defaults to ["file", "url"] when empty.
	SourceTypeOrder []string `json:"source_type_order" yaml:"source_type_order"`

	// BaseSummarizationPrompt and ProjectIntroduction compose the system
	// prompt sent to the summarizer; both are optional.
	BaseSummarizationPrompt string `json:"base_summarization_prompt" yaml:"base_summarization_prompt"`
	ProjectIntroduction     string `json:"project_introduction" yaml:"project_introduction"`
}

// Validate applies defaults and rejects configurations the rest of the
// service cannot act on.
func (c *Config) Validate() error {
	if c.SourcesDir == "" {
		return ErrSourcesDirRequired
	}

	if c.IndexCachePath == "" {
		return ErrIndexCachePathRequired
	}

	if c.IndexPath == "" {
		return ErrIndexPathRequired
	}

	if c.RuntimeRefreshTick <= 0 {
		c.RuntimeRefreshTick = DefaultRuntimeRefreshTick
	}

	if c.URLRefreshMinInterval <= 0 {
		c.URLRefreshMinInterval = DefaultURLRefreshMinInterval
	}

	if c.WebFetchTimeout <= 0 {
		c.WebFetchTimeout = DefaultWebFetchTimeout
	}

	if c.URLDownloadConcurrency <= 0 {
		c.URLDownloadConcurrency = DefaultURLDownloadConcurrency
	}

	if c.SummarizationConcurrency <= 0 {
		c.SummarizationConcurrency = DefaultSummarizationConcurrency
	}

	if len(c.SourceTypeOrder) == 0 {
		c.SourceTypeOrder = []string{"file", "url"}
	}

	for _, st := range c.SourceTypeOrder {
		if st != "file" && st != "url" {
			return fmt.Errorf("config: unknown source_type_order entry %q", st)
		}
	}

	return nil
}
