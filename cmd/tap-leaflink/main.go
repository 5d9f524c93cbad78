package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/tap-leaflink/pkg/config"
	jsonpool "github.com/ajitpratap0/tap-leaflink/pkg/json"
	"github.com/ajitpratap0/tap-leaflink/pkg/schema"
	"github.com/ajitpratap0/tap-leaflink/pkg/sink"
	"github.com/ajitpratap0/tap-leaflink/pkg/stream"

	// Register all sinks
	_ "github.com/ajitpratap0/tap-leaflink/pkg/sink/sinks"
)

// flag names, bound to config keys through viper
const (
	flagConfig      = "config"
	flagState       = "state"
	flagOutput      = "output"
	flagStreams     = "streams"
	flagLogLevel    = "log-level"
	flagMetricsAddr = "metrics-addr"
	flagAPIURL      = "api-url"
	flagStartDate   = "start-date"
	flagDiscover    = "discover"
)

var flagKeys = map[string]string{
	flagState:       config.KeyStatePath,
	flagOutput:      config.KeyOutputType,
	flagStreams:     config.KeyStreams,
	flagLogLevel:    config.KeyLogLevel,
	flagMetricsAddr: config.KeyMetricsAddr,
	flagAPIURL:      config.KeyAPIURL,
	flagStartDate:   config.KeyStartDate,
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var discover bool

	root := &cobra.Command{
		Use:   "tap-leaflink",
		Short: "tap-leaflink - extract LeafLink marketplace data",
		Long: `tap-leaflink pages through the LeafLink REST API and emits every record of the
selected streams, resuming incremental streams from saved state.

By default records are written to stdout as Singer messages. Configuration is read
from --config (YAML or JSON), LEAFLINK_* environment variables and flags, in
increasing order of precedence.

Example:
  tap-leaflink --config config.yaml --state state.json > out.jsonl`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if discover {
				return runDiscover(cmd)
			}
			return runSyncCommand(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringP(flagConfig, "c", "", "Path to configuration file (YAML or JSON)")
	flags.String(flagState, "", "Path to the state file, read at start and updated after each stream")
	flags.StringP(flagOutput, "o", "", "Output sink: singer, jsonl, s3 or kafka")
	flags.StringSlice(flagStreams, nil, "Streams to sync (default all)")
	flags.String(flagLogLevel, "", "Log level (debug, info, warn, error)")
	flags.String(flagMetricsAddr, "", "Serve Prometheus metrics on this address, e.g. :9102")
	flags.String(flagAPIURL, "", "API root, e.g. "+config.SandboxAPIURL)
	flags.String(flagStartDate, "", "Lower bound for incremental streams without state (ISO date or datetime)")
	root.Flags().BoolVar(&discover, flagDiscover, false, "Print the catalog and exit")

	root.AddCommand(
		&cobra.Command{
			Use:   "sync",
			Short: "Sync the selected streams",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSyncCommand(cmd)
			},
		},
		&cobra.Command{
			Use:   "discover",
			Short: "Print the Singer catalog of available streams",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDiscover(cmd)
			},
		},
		&cobra.Command{
			Use:   "streams",
			Short: "List available streams",
			Run: func(cmd *cobra.Command, args []string) {
				printStreams(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "tap-leaflink v%s\n", config.Version)
				fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
				fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
				fmt.Fprintf(out, "Sinks: %v\n", sink.List())
			},
		},
	)

	return root
}

// loadConfig layers the config file, LEAFLINK_* variables and changed
// flags, in that order.
func loadConfig(cmd *cobra.Command) (*config.TapConfig, error) {
	path, _ := cmd.Flags().GetString(flagConfig)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	v := config.NewViper()
	if err := bindFlags(cmd, v); err != nil {
		return nil, err
	}
	config.Resolve(cfg, v)
	return cfg, nil
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func runDiscover(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	registry := schema.Empty()
	if cfg.SchemaPath != "" {
		if registry, err = schema.Load(cfg.SchemaPath); err != nil {
			return err
		}
	}

	descs, err := stream.Select(cfg.Streams)
	if err != nil {
		return err
	}

	data, err := jsonpool.MarshalIndent(registry.Discover(descs), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func printStreams(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STREAM\tPATH\tKEY\tREPLICATION")
	for _, d := range stream.Catalog() {
		replication := "full table"
		if d.Incremental() {
			replication = "incremental (" + d.ReplicationKey + ")"
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\n", d.Name, d.Path, d.PrimaryKeys, replication)
	}
	w.Flush()
}
