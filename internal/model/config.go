package model

import "time"

// Config holds the complete habitboard configuration
type Config struct {
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Aggregate AggregateConfig `yaml:"aggregate" mapstructure:"aggregate"`
	Progress  ProgressConfig  `yaml:"progress" mapstructure:"progress"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Insights  InsightsConfig  `yaml:"insights" mapstructure:"insights"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
}

// NotionConfig holds credentials and schema names for the remote database
type NotionConfig struct {
	Token      string `yaml:"-" mapstructure:"token"` // never written to config files
	DatabaseID string `yaml:"database_id" mapstructure:"database_id"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Version    string `yaml:"version" mapstructure:"version"`

	// Property names in the habits database schema
	TitleProperty   string `yaml:"title_property" mapstructure:"title_property"`
	ParentProperty  string `yaml:"parent_property" mapstructure:"parent_property"`
	MeasureProperty string `yaml:"measure_property" mapstructure:"measure_property"`

	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// FetchConfig controls the pagination loop
type FetchConfig struct {
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
	// PageLimit is the hard cap on retrieved records per run
	PageLimit int `yaml:"page_limit" mapstructure:"page_limit"`
	// SoftThreshold triggers a longer pause before continuing toward PageLimit
	SoftThreshold      int           `yaml:"soft_threshold" mapstructure:"soft_threshold"`
	SoftThresholdPause time.Duration `yaml:"soft_threshold_pause" mapstructure:"soft_threshold_pause"`
	// RequestsPerSecond is the steady-state pacing between successful pages
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// RetryConfig controls the retrying request executor
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay" mapstructure:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
}

// AggregateConfig controls category resolution
type AggregateConfig struct {
	// MaxLookups bounds concurrent category-name lookups
	MaxLookups int `yaml:"max_lookups" mapstructure:"max_lookups"`
	// CategoryMarker, when set, must appear in a resolved parent title
	// for it to count as a category; non-matching parents fold into
	// the Unknown bucket. Empty disables the filter.
	CategoryMarker string        `yaml:"category_marker" mapstructure:"category_marker"`
	NameCacheTTL   time.Duration `yaml:"name_cache_ttl" mapstructure:"name_cache_ttl"`
}

// ProgressConfig locates the durable checkpoint
type ProgressConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ExportConfig locates the exported category table
type ExportConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// InsightsConfig controls the optional LLM summary of the exported table
type InsightsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	APIKey    string `yaml:"-" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OutputConfig controls CLI output behavior
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the default habitboard configuration
func DefaultConfig() *Config {
	return &Config{
		Notion: NotionConfig{
			BaseURL:         "https://api.notion.com",
			Version:         "2022-06-28",
			TitleProperty:   "Name",
			ParentProperty:  "Parent Hab",
			MeasureProperty: "Total min Par",
			Timeout:         30 * time.Second,
		},
		Fetch: FetchConfig{
			PageSize:           5,
			PageLimit:          600,
			SoftThreshold:      400,
			SoftThresholdPause: 30 * time.Second,
			RequestsPerSecond:  1,
		},
		Retry: RetryConfig{
			MaxAttempts:  30,
			InitialDelay: 5 * time.Second,
			MaxDelay:     300 * time.Second,
		},
		Aggregate: AggregateConfig{
			MaxLookups:   10,
			NameCacheTTL: 15 * time.Minute,
		},
		Progress: ProgressConfig{
			Path: "progress.json",
		},
		Export: ExportConfig{
			Path: "data/habits.csv",
		},
		Insights: InsightsConfig{
			Model:     "gpt-4o-mini",
			MaxTokens: 500,
		},
	}
}
