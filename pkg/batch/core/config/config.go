package config

import (
	"time"
)

// EmbeddedConfig holds the content of the configuration file compiled into the binary.
type EmbeddedConfig []byte

// Destination names accepted by RunOptions and mapped to store adapters.
const (
	DestinationPrimaryStore    = "primary-store"
	DestinationEmulatedStore   = "emulated-store"
	DestinationLocalFilesystem = "local-filesystem"
)

// RetryConfig holds the retry settings of one API family.
type RetryConfig struct {
	MaxAttempts     int     `yaml:"max_attempts"`     // MaxAttempts is the maximum number of attempts, including the first one.
	InitialInterval int     `yaml:"initial_interval"` // InitialInterval is the delay between attempts in milliseconds.
	MaxInterval     int     `yaml:"max_interval"`     // MaxInterval caps the delay when Factor > 1.
	Factor          float64 `yaml:"factor"`           // Factor multiplies the delay after each attempt; 1 keeps it fixed.
}

// PacingConfig centralizes the pauses applied to one API family.
type PacingConfig struct {
	// RequestsPerSecond is the sustained request rate shared by all workers. 0 disables the limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// Burst is the limiter bucket size.
	Burst int `yaml:"burst"`
	// PagePauseMs is the pause between two pages of the same paginated resource.
	PagePauseMs int `yaml:"page_pause_ms"`
	// ChunkPauseMs is the pause between two fan-out chunks.
	ChunkPauseMs int `yaml:"chunk_pause_ms"`
}

// APIFamilyConfig describes one upstream REST API.
type APIFamilyConfig struct {
	BaseURL        string            `yaml:"base_url"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	UserAgent      string            `yaml:"user_agent"`
	PageSize       int               `yaml:"page_size"`
	PageParam      string            `yaml:"page_param"`
	PageSizeParam  string            `yaml:"page_size_param"`
	DefaultParams  map[string]string `yaml:"default_params"`
	Retry          RetryConfig       `yaml:"retry"`
	Pacing         PacingConfig      `yaml:"pacing"`
}

// Timeout returns the per-request timeout.
func (c APIFamilyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// APIConfig groups the API families.
type APIConfig struct {
	Senado APIFamilyConfig `yaml:"senado"`
	Camara APIFamilyConfig `yaml:"camara"`
}

// ItemSkipConfig lists error kinds that count as warnings instead of failures.
type ItemSkipConfig struct {
	SkipLimit           int      `yaml:"skip_limit"`           // SkipLimit is the maximum number of skipped items, 0 for unlimited.
	SkippableExceptions []string `yaml:"skippable_exceptions"` // SkippableExceptions are registered exception names.
}

// BatchConfig holds the run-wide extraction settings.
type BatchConfig struct {
	// ChunkSize is the default fan-out concurrency when --concorrencia is not given.
	ChunkSize int `yaml:"chunk_size"`
	// MaxPages is the page ceiling of a full crawl.
	MaxPages int `yaml:"max_pages"`
	// IncrementalMaxPages is the page ceiling of an incremental crawl.
	IncrementalMaxPages int `yaml:"incremental_max_pages"`
	// IncrementalWindowDays is the trailing window of an incremental crawl.
	IncrementalWindowDays int `yaml:"incremental_window_days"`
	// DefaultDestination is used when --destino is not given.
	DefaultDestination string `yaml:"default_destination"`
	// RootCollection is the top-level collection all documents live under.
	RootCollection string         `yaml:"root_collection"`
	ItemSkip       ItemSkipConfig `yaml:"item_skip"`
}

// WriterConfig holds the batch writer ceilings.
type WriterConfig struct {
	MaxOperations        int `yaml:"max_operations"`
	MaxDocumentBytes     int `yaml:"max_document_bytes"`
	CommitTimeoutSeconds int `yaml:"commit_timeout_seconds"`
}

// CommitTimeout returns the commit deadline.
func (c WriterConfig) CommitTimeout() time.Duration {
	return time.Duration(c.CommitTimeoutSeconds) * time.Second
}

// DestinationsConfig maps each destination to the name of a store adapter in AdapterConfigs.
type DestinationsConfig struct {
	PrimaryStore    string `yaml:"primary_store"`
	EmulatedStore   string `yaml:"emulated_store"`
	LocalFilesystem string `yaml:"local_filesystem"`
}

// AdapterFor returns the adapter name configured for a destination.
func (d DestinationsConfig) AdapterFor(destination string) (string, bool) {
	switch destination {
	case DestinationPrimaryStore:
		return d.PrimaryStore, d.PrimaryStore != ""
	case DestinationEmulatedStore:
		return d.EmulatedStore, d.EmulatedStore != ""
	case DestinationLocalFilesystem:
		return d.LocalFilesystem, d.LocalFilesystem != ""
	}
	return "", false
}

// MetricsConfig controls the prometheus recorder.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// ListenAddress exposes /metrics while the run is in progress when set (e.g. ":9102").
	ListenAddress string `yaml:"listen_address"`
	// TextfilePath writes the registry in text format at shutdown when set.
	TextfilePath string `yaml:"textfile_path"`
}

// TracingConfig controls the OpenTelemetry tracer.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // "otlp-http", "otlp-grpc" or "none"
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is used to interpret CLI dates and incremental windows.
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// Location resolves Timezone, falling back to UTC.
func (s SystemConfig) Location() *time.Location {
	if loc, err := time.LoadLocation(s.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// CongressoConfig holds all configuration under the "congresso" top-level key.
type CongressoConfig struct {
	System       SystemConfig       `yaml:"system"`
	API          APIConfig          `yaml:"api"`
	Batch        BatchConfig        `yaml:"batch"`
	Writer       WriterConfig       `yaml:"writer"`
	Destinations DestinationsConfig `yaml:"destinations"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Tracing      TracingConfig      `yaml:"tracing"`
	// AdapterConfigs holds the named store adapters, decoded by each adapter with configbinder.
	AdapterConfigs map[string]interface{} `yaml:"adapter"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Congresso CongressoConfig `yaml:"congresso"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		Congresso: CongressoConfig{
			System: SystemConfig{
				Timezone: "America/Sao_Paulo",
				Logging:  LoggingConfig{Level: "INFO", Format: "console"},
			},
			API: APIConfig{
				Senado: APIFamilyConfig{
					BaseURL:        "https://legis.senado.leg.br/dadosabertos",
					TimeoutSeconds: 30,
					UserAgent:      "congresso-etl",
					PageSize:       100,
					PageParam:      "pagina",
					PageSizeParam:  "itens",
					DefaultParams:  map[string]string{"v": "7"},
					Retry:          RetryConfig{MaxAttempts: 3, InitialInterval: 2000, Factor: 1},
					Pacing:         PacingConfig{RequestsPerSecond: 4, Burst: 1, PagePauseMs: 500, ChunkPauseMs: 3000},
				},
				Camara: APIFamilyConfig{
					BaseURL:        "https://dadosabertos.camara.leg.br/api/v2",
					TimeoutSeconds: 30,
					UserAgent:      "congresso-etl",
					PageSize:       100,
					PageParam:      "pagina",
					PageSizeParam:  "itens",
					DefaultParams:  map[string]string{"ordem": "ASC"},
					Retry:          RetryConfig{MaxAttempts: 3, InitialInterval: 2000, Factor: 1},
					Pacing:         PacingConfig{RequestsPerSecond: 8, Burst: 2, PagePauseMs: 500, ChunkPauseMs: 1000},
				},
			},
			Batch: BatchConfig{
				ChunkSize:             5,
				MaxPages:              100,
				IncrementalMaxPages:   20,
				IncrementalWindowDays: 30,
				DefaultDestination:    DestinationPrimaryStore,
				RootCollection:        "congressoData",
				ItemSkip: ItemSkipConfig{
					SkippableExceptions: []string{"NotFoundError"},
				},
			},
			Writer: WriterConfig{
				MaxOperations:        250,
				MaxDocumentBytes:     996147, // 0.95 MiB
				CommitTimeoutSeconds: 30,
			},
			Destinations: DestinationsConfig{
				PrimaryStore:    "primary",
				EmulatedStore:   "emulator",
				LocalFilesystem: "local",
			},
			Tracing: TracingConfig{
				Exporter:    "none",
				ServiceName: "congresso",
				SampleRatio: 1,
			},
			AdapterConfigs: map[string]interface{}{},
		},
	}
}
