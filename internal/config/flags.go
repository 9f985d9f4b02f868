package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "coldcall",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Node connection flags
	flags.String("target", "", "JSON-RPC endpoint of the node")
	flags.String("transport", string(TransportHTTP), "Transport to use: 'http' or 'websocket'")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.Duration("timeout", 30*time.Second, "Per-call timeout")

	// Extraction flags
	flags.StringSlice("datasets", []string{DatasetBlocks}, "Datasets to extract (blocks, logs, transactions)")
	flags.Uint64("start-block", 0, "First block of the extraction range (inclusive)")
	flags.Uint64("end-block", 0, "Last block of the extraction range (inclusive)")
	flags.Uint64("chunk-size", 1000, "Blocks per extraction chunk (0 means a single chunk)")

	// Load control flags
	flags.IntP("workers", "w", 4, "Number of concurrent extraction workers")
	flags.IntP("rate", "r", 0, "RPC calls per second limit (0 means unlimited)")
	flags.Int("retries", 0, "Number of retries per RPC call")

	// Output flags
	flags.StringP("output-dir", "o", "", "Directory for extracted JSONL files (empty disables file output)")
	flags.String("html-report", "", "Write an HTML metrics report to this path")
	flags.Bool("json-output", false, "Emit the metrics report as JSON instead of a table")
	flags.Bool("dashboard", false, "Show live terminal dashboard while extracting")
	flags.Bool("log-errors", false, "Log each failed RPC call to stderr")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// WebSocket flags
	flags.Duration("ws-handshake-timeout", 30*time.Second, "WebSocket handshake timeout")
	flags.Duration("ws-read-timeout", 30*time.Second, "WebSocket read timeout")
	flags.Duration("ws-write-timeout", 10*time.Second, "WebSocket write timeout")

	// Tracing flags
	flags.String("trace-endpoint", "", "OTLP endpoint for span export (empty disables tracing)")
	flags.String("trace-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("trace-service-name", "", "Service name reported on spans")
	flags.Float64("trace-sample-rate", 1.0, "Trace sampling rate between 0.0 and 1.0")
	flags.Bool("trace-insecure", false, "Disable TLS for OTLP export")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("transport") {
		val, err := fs.GetString("transport")
		if err != nil {
			return err
		}
		cfg.Transport = Transport(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("datasets") {
		vals, err := fs.GetStringSlice("datasets")
		if err != nil {
			return err
		}
		cfg.Datasets = normalizeDatasets(vals)
	}
	if fs.Changed("start-block") {
		val, err := fs.GetUint64("start-block")
		if err != nil {
			return err
		}
		cfg.StartBlock = val
	}
	if fs.Changed("end-block") {
		val, err := fs.GetUint64("end-block")
		if err != nil {
			return err
		}
		cfg.EndBlock = val
	}
	if fs.Changed("chunk-size") {
		val, err := fs.GetUint64("chunk-size")
		if err != nil {
			return err
		}
		cfg.ChunkSize = val
	}
	if fs.Changed("workers") {
		val, err := fs.GetInt("workers")
		if err != nil {
			return err
		}
		cfg.Workers = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}
	if fs.Changed("output-dir") {
		val, err := fs.GetString("output-dir")
		if err != nil {
			return err
		}
		cfg.OutputDir = strings.TrimSpace(val)
	}
	if fs.Changed("html-report") {
		val, err := fs.GetString("html-report")
		if err != nil {
			return err
		}
		cfg.HTMLReport = strings.TrimSpace(val)
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	if fs.Changed("ws-handshake-timeout") {
		val, err := fs.GetDuration("ws-handshake-timeout")
		if err != nil {
			return err
		}
		cfg.WebSocket.HandshakeTimeout = val
	}
	if fs.Changed("ws-read-timeout") {
		val, err := fs.GetDuration("ws-read-timeout")
		if err != nil {
			return err
		}
		cfg.WebSocket.ReadTimeout = val
	}
	if fs.Changed("ws-write-timeout") {
		val, err := fs.GetDuration("ws-write-timeout")
		if err != nil {
			return err
		}
		cfg.WebSocket.WriteTimeout = val
	}

	if fs.Changed("trace-endpoint") {
		val, err := fs.GetString("trace-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("trace-protocol") {
		val, err := fs.GetString("trace-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("trace-service-name") {
		val, err := fs.GetString("trace-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("trace-sample-rate") {
		val, err := fs.GetFloat64("trace-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("trace-insecure") {
		val, err := fs.GetBool("trace-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}

	return nil
}

// normalizeDatasets lowercases and deduplicates dataset names, preserving
// first-seen order.
func normalizeDatasets(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
