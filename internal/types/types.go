package types

import (
	"time"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeUnknown    ErrorType = "unknown"
	// BaseX specific error types
	ErrorTypeBaseXConnection ErrorType = "basex_connection"
	ErrorTypeBaseXAuth       ErrorType = "basex_auth"
	ErrorTypeBaseXQuery      ErrorType = "basex_query"
	ErrorTypeBaseXProtocol   ErrorType = "basex_protocol"
	// Treebank layout error types
	ErrorTypeManifest ErrorType = "manifest"
	ErrorTypeTopology ErrorType = "topology"
)

// Config represents the search service configuration
type Config struct {
	// Treebank layout
	TopologyPath     string `json:"topology_path" env:"TREEBANK_TOPOLOGY,required=true"`
	ManifestDir      string `json:"manifest_dir" env:"TREEBANK_MANIFEST_DIR,default=treebank-parts"`
	ManifestBucket   string `json:"manifest_bucket" env:"TREEBANK_MANIFEST_BUCKET"`
	ManifestPrefix   string `json:"manifest_prefix" env:"TREEBANK_MANIFEST_PREFIX"`
	ManifestS3Region string `json:"manifest_s3_region" env:"AWS_REGION,default=us-east-1"`

	// Search budgets
	SearchTimeCeiling   time.Duration `json:"search_time_ceiling" env:"SEARCH_TIME_CEILING,default=10s"`
	SearchBatchLimit    int           `json:"search_batch_limit" env:"SEARCH_BATCH_LIMIT,default=500"`
	SearchMaxBatchLimit int           `json:"search_max_batch_limit" env:"SEARCH_MAX_BATCH_LIMIT,default=5000"`
	CountConcurrency    int           `json:"count_concurrency" env:"COUNT_CONCURRENCY,default=4"`

	// BaseX connection
	BaseXDialTimeout time.Duration `json:"basex_dial_timeout" env:"BASEX_DIAL_TIMEOUT,default=10s"`

	// Search log
	QueryLogEnabled bool   `json:"query_log_enabled" env:"QUERY_LOG_ENABLED,default=true"`
	QueryLogPath    string `json:"query_log_path" env:"QUERY_LOG_PATH"`

	// HTTP API
	APIHost            string        `json:"api_host" env:"API_HOST,default=localhost"`
	APIPort            int           `json:"api_port" env:"API_PORT,default=8090"`
	APIRatePerMinute   int           `json:"api_rate_per_minute" env:"API_RATE_PER_MINUTE,default=120"`
	APIReadTimeout     time.Duration `json:"api_read_timeout" env:"API_READ_TIMEOUT,default=30s"`
	APIWriteTimeout    time.Duration `json:"api_write_timeout" env:"API_WRITE_TIMEOUT,default=120s"`
	APIShutdownTimeout time.Duration `json:"api_shutdown_timeout" env:"API_SHUTDOWN_TIMEOUT,default=30s"`

	LogLevel string `json:"log_level" env:"LOG_LEVEL,default=info"`

	// OpenTelemetry
	OTelEnabled              bool          `json:"otel_enabled" env:"OTEL_ENABLED,default=false"`
	OTelServiceName          string        `json:"otel_service_name" env:"OTEL_SERVICE_NAME,default=treesearch"`
	OTelExporterOTLPEndpoint string        `json:"otel_exporter_otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelExporterOTLPProtocol string        `json:"otel_exporter_otlp_protocol" env:"OTEL_EXPORTER_OTLP_PROTOCOL,default=http/protobuf"`
	OTelResourceAttributes   string        `json:"otel_resource_attributes" env:"OTEL_RESOURCE_ATTRIBUTES"`
	OTelTracesSampler        string        `json:"otel_traces_sampler" env:"OTEL_TRACES_SAMPLER,default=always_on"`
	OTelTracesSamplerArg     float64       `json:"otel_traces_sampler_arg" env:"OTEL_TRACES_SAMPLER_ARG,default=1.0"`
	OTelMetricExportInterval time.Duration `json:"otel_metric_export_interval" env:"OTEL_METRIC_EXPORT_INTERVAL,default=60s"`
}
