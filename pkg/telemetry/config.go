package telemetry

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the telemetry configuration of a process embedding the bridge.
// It can be built in code from one of the presets or loaded from YAML with
// LoadConfig.
type Config struct {
	ServiceName    string `yaml:"service_name" validate:"required"`
	ServiceVersion string `yaml:"service_version" validate:"required"`

	// Environment is a free-form deployment label (development, test, production).
	Environment string `yaml:"environment"`

	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Events  EventsConfig  `yaml:"events"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `yaml:"format" validate:"oneof=console json"`

	// Output is stdout, stderr, discard or a file path. Empty means stdout.
	Output string `yaml:"output"`

	EnableCaller bool `yaml:"enable_caller"`

	// Sampling keeps SamplingInitial messages per second, then every
	// SamplingThereafter-th message.
	EnableSampling     bool `yaml:"enable_sampling"`
	SamplingInitial    int  `yaml:"sampling_initial" validate:"gte=0"`
	SamplingThereafter int  `yaml:"sampling_thereafter" validate:"gte=0"`

	// TimeFormat is rfc3339, unix, unixms or unixmicro.
	TimeFormat string `yaml:"time_format"`
}

// TracingConfig configures the OpenTelemetry tracer. Exporter is only
// checked when tracing is enabled.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP collector address, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	SamplingRate       float64           `yaml:"sampling_rate" validate:"gte=0,lte=1"`
	MaxExportBatchSize int               `yaml:"max_export_batch_size" validate:"gte=0"`
	ExportTimeout      time.Duration     `yaml:"export_timeout"`
	Headers            map[string]string `yaml:"headers"`

	// Insecure disables TLS on the OTLP connection.
	Insecure bool `yaml:"insecure"`
}

// MetricsConfig configures the Prometheus registry and its HTTP endpoint.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	ListenAddress string `yaml:"listen_address" validate:"required_if=Enabled true"`
	Path          string `yaml:"path"`
	Namespace     string `yaml:"namespace"`

	// DefaultHistogramBuckets are the latency buckets in seconds shared by the
	// run and calc_new histograms.
	DefaultHistogramBuckets []float64 `yaml:"histogram_buckets"`
}

// EventsConfig configures the event publisher.
type EventsConfig struct {
	Enabled bool `yaml:"enabled"`

	// EnableAsync buffers events and delivers them from a background
	// goroutine. Synchronous delivery runs subscribers on the publisher.
	EnableAsync   bool          `yaml:"async"`
	BufferSize    int           `yaml:"buffer_size" validate:"required_if=Enabled true,gte=0"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxBatchSize  int           `yaml:"max_batch_size" validate:"gte=0"`
}

var traceExporters = map[string]bool{"otlp": true, "stdout": true, "none": true}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		tc := sl.Current().Interface().(TracingConfig)
		if tc.Enabled && !traceExporters[tc.Exporter] {
			sl.ReportError(tc.Exporter, "Exporter", "Exporter", "exporter", "otlp stdout none")
		}
	}, TracingConfig{})
	return v
}

// DefaultConfig returns a default telemetry configuration.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "geometric-bridge",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:              "info",
			Format:             "console",
			Output:             "stdout",
			EnableCaller:       true,
			SamplingInitial:    100,
			SamplingThereafter: 100,
			TimeFormat:         "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:            true,
			Exporter:           "stdout",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            make(map[string]string),
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "geometric_bridge",
			// calc_new spans microseconds for model drivers to minutes for
			// quantum chemistry backends.
			DefaultHistogramBuckets: []float64{
				0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 120.0,
			},
		},
		Events: EventsConfig{
			Enabled:       true,
			EnableAsync:   true,
			BufferSize:    1000,
			FlushInterval: 5 * time.Second,
			MaxBatchSize:  100,
		},
	}
}

// ProductionConfig returns a configuration with JSON logs, sampled logging
// and OTLP export of one trace in ten.
func ProductionConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "production"
	cfg.Logging.Format = "json"
	cfg.Logging.EnableSampling = true
	cfg.Logging.TimeFormat = "unix"
	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.SamplingRate = 0.1
	cfg.Tracing.Insecure = false
	return cfg
}

// DevelopmentConfig returns a configuration with debug console logs and
// every span written to stdout.
func DevelopmentConfig() *Config {
	cfg := DefaultConfig()
	cfg.Logging.Level = "debug"
	return cfg
}

// TestConfig returns a configuration that records metrics and delivers events
// synchronously but writes nothing: logs are discarded and spans are not exported.
func TestConfig() *Config {
	cfg := DefaultConfig()
	cfg.Environment = "test"
	cfg.Logging.Output = "discard"
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "debug"
	cfg.Tracing.Exporter = "none"
	cfg.Events.EnableAsync = false
	return cfg
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
// Keys absent from the file keep their default values; durations use Go
// syntax ("5s", "250ms").
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read telemetry config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse telemetry config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and names every offending field.
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			fields = append(fields, fmt.Sprintf("%s (%s=%s, got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			fields = append(fields, fmt.Sprintf("%s (%s)", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid telemetry config: %s", strings.Join(fields, ", "))
}
