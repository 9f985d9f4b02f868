package config

import (
	"fmt"
	"strings"
	"time"
)

// Transport selects how JSON-RPC payloads reach the node.
type Transport string

const (
	TransportHTTP      Transport = "http"
	TransportWebSocket Transport = "websocket"
)

// Dataset names accepted by the extractor.
const (
	DatasetBlocks       = "blocks"
	DatasetLogs         = "logs"
	DatasetTransactions = "transactions"
)

// KnownDatasets lists every dataset the extractor can collect.
var KnownDatasets = []string{DatasetBlocks, DatasetLogs, DatasetTransactions}

type Config struct {
	TargetURL  string            `mapstructure:"target"`
	Transport  Transport         `mapstructure:"transport"`
	Headers    map[string]string `mapstructure:"headers"`
	Datasets   []string          `mapstructure:"datasets"`
	StartBlock uint64            `mapstructure:"start_block"`
	EndBlock   uint64            `mapstructure:"end_block"`
	ChunkSize  uint64            `mapstructure:"chunk_size"`
	Workers    int               `mapstructure:"workers"`
	Rate       int               `mapstructure:"rate"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	Retries    int               `mapstructure:"retries"`
	OutputDir  string            `mapstructure:"output_dir"`
	HTMLReport string            `mapstructure:"html_report"`
	JSONOutput bool              `mapstructure:"json_output"`
	Dashboard  bool              `mapstructure:"dashboard"`
	LogErrors  bool              `mapstructure:"log_errors"`
	ConfigFile string            `mapstructure:"-"`
	WebSocket  WebSocketConfig   `mapstructure:"websocket"`
	Tracing    TracingConfig     `mapstructure:"tracing"`
}

type WebSocketConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"` // WebSocket handshake timeout
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`      // Timeout for reading responses
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`     // Timeout for writing requests
}

// TracingConfig configures OTLP span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether an OTLP export endpoint has been resolved. The
// loader folds the standard OTel environment variables into the config, so
// checking the endpoint field is sufficient.
func (c TracingConfig) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// ShouldPropagate reports whether W3C trace headers should be injected into
// outgoing requests. Defaults to following Enabled unless overridden.
func (c TracingConfig) ShouldPropagate() bool {
	if c.Propagate != nil {
		return *c.Propagate
	}
	return c.Enabled()
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.TargetURL) == "" {
		issues = append(issues, "target is required (use --help for usage information)")
	}

	switch c.Transport {
	case TransportHTTP, TransportWebSocket:
	default:
		issues = append(issues, fmt.Sprintf("unknown transport %q: use %q or %q",
			c.Transport, TransportHTTP, TransportWebSocket))
	}

	if len(c.Datasets) == 0 {
		issues = append(issues, "at least one dataset is required")
	}
	for _, ds := range c.Datasets {
		if !knownDataset(ds) {
			issues = append(issues, fmt.Sprintf("unknown dataset %q: known datasets are %s",
				ds, strings.Join(KnownDatasets, ", ")))
		}
	}

	if c.EndBlock < c.StartBlock {
		issues = append(issues, fmt.Sprintf("end block %d is before start block %d", c.EndBlock, c.StartBlock))
	}
	if c.Workers < 1 {
		issues = append(issues, "workers must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be >= 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func knownDataset(name string) bool {
	for _, ds := range KnownDatasets {
		if ds == name {
			return true
		}
	}
	return false
}
