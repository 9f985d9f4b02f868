package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		Transport:  TransportHTTP,
		Headers:    map[string]string{},
		Datasets:   []string{DatasetBlocks},
		ChunkSize:  1000,
		Workers:    4,
		Timeout:    30 * time.Second,
		ConfigFile: configPath,
		Tracing:    TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.Transport = Transport(strings.ToLower(string(cfg.Transport)))
	cfg.Datasets = normalizeDatasets(cfg.Datasets)

	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	resolveTracingEnv(&cfg.Tracing)

	return cfg, nil
}

// resolveTracingEnv fills tracing settings left unset by file and flags from
// the standard OTel environment variables, so downstream consumers only ever
// see resolved values.
func resolveTracingEnv(cfg *TracingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = strings.TrimSpace(os.Getenv("OTEL_SERVICE_NAME"))
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "coldcall"
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "transport"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("transport: %w", err)
		}
		if val != "" {
			cfg.Transport = Transport(strings.ToLower(strings.TrimSpace(val)))
		}
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "datasets"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("datasets: %w", err)
		}
		if len(vals) > 0 {
			cfg.Datasets = normalizeDatasets(vals)
		}
	}

	if raw, ok := lookupSetting(settings, "startblock", "start_block", "start-block"); ok {
		val, err := asUint64(raw)
		if err != nil {
			return fmt.Errorf("startBlock: %w", err)
		}
		cfg.StartBlock = val
	}

	if raw, ok := lookupSetting(settings, "endblock", "end_block", "end-block"); ok {
		val, err := asUint64(raw)
		if err != nil {
			return fmt.Errorf("endBlock: %w", err)
		}
		cfg.EndBlock = val
	}

	if raw, ok := lookupSetting(settings, "chunksize", "chunk_size", "chunk-size"); ok {
		val, err := asUint64(raw)
		if err != nil {
			return fmt.Errorf("chunkSize: %w", err)
		}
		cfg.ChunkSize = val
	}

	if raw, ok := lookupSetting(settings, "workers"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("workers: %w", err)
		}
		cfg.Workers = val
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "retries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("retries: %w", err)
		}
		cfg.Retries = val
	}

	if raw, ok := lookupSetting(settings, "outputdir", "output_dir", "output-dir"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("outputDir: %w", err)
		}
		cfg.OutputDir = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "htmlreport", "html_report", "html-report"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("htmlReport: %w", err)
		}
		cfg.HTMLReport = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("logErrors: %w", err)
		}
		cfg.LogErrors = val
	}

	if raw, ok := lookupSetting(settings, "websocket"); ok {
		if err := applyWebSocketSettings(&cfg.WebSocket, raw); err != nil {
			return fmt.Errorf("websocket: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func applyWebSocketSettings(cfg *WebSocketConfig, raw interface{}) error {
	section, err := asSubSettings(raw)
	if err != nil {
		return err
	}
	if section == nil {
		return nil
	}

	if raw, ok := lookupSetting(section, "handshaketimeout", "handshake_timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("handshake_timeout: %w", err)
		}
		cfg.HandshakeTimeout = dur
	}
	if raw, ok := lookupSetting(section, "readtimeout", "read_timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("read_timeout: %w", err)
		}
		cfg.ReadTimeout = dur
	}
	if raw, ok := lookupSetting(section, "writetimeout", "write_timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("write_timeout: %w", err)
		}
		cfg.WriteTimeout = dur
	}
	return nil
}

func applyTracingSettings(cfg *TracingConfig, raw interface{}) error {
	section, err := asSubSettings(raw)
	if err != nil {
		return err
	}
	if section == nil {
		return nil
	}

	if raw, ok := lookupSetting(section, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		cfg.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(section, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		cfg.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(section, "servicename", "service_name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		cfg.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(section, "samplerate", "sample_rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		cfg.SampleRate = val
	}
	if raw, ok := lookupSetting(section, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		cfg.Insecure = val
	}
	if raw, ok := lookupSetting(section, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		cfg.Propagate = &val
	}
	return nil
}
