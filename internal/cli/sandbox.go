package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recpurge/internal/config"
	"github.com/roach88/recpurge/internal/platform"
	"github.com/roach88/recpurge/internal/store"
)

// SandboxOptions holds flags for the sandbox subcommands.
type SandboxOptions struct {
	*RootOptions
	Path       string
	RecordType string
	Count      int
}

// SeedResult is the JSON payload of sandbox seed.
type SeedResult struct {
	Path       string   `json:"path"`
	RecordType string   `json:"record_type"`
	IDs        []string `json:"ids"`
	Total      int      `json:"total"`
}

// NewSandboxCommand creates the sandbox command group.
func NewSandboxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SandboxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Manage the local sandbox backend",
		Long: `The sandbox is a SQLite database standing in for a NetSuite account, so
runs can be rehearsed without touching live data.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Path, "sandbox", "", "SQLite path of the sandbox (defaults to config)")
	cmd.PersistentFlags().StringVar(&opts.RecordType, "record-type", "", "record type to operate on (defaults to config)")

	seed := &cobra.Command{
		Use:   "seed",
		Short: "Create sandbox records",
		Example: `  recpurge sandbox seed --count 500
  recpurge sandbox seed --sandbox ./rehearsal.db --record-type customrecord_widget --count 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSandboxSeed(opts, cmd)
		},
	}
	seed.Flags().IntVarP(&opts.Count, "count", "n", 100, "number of records to create")

	cmd.AddCommand(seed)
	return cmd
}

func runSandboxSeed(opts *SandboxOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return commandError(formatter, ErrCodeConfig, "invalid configuration", err)
	}
	path := cfg.Sandbox.Path
	if cmd.Flags().Changed("sandbox") {
		path = opts.Path
	}
	recordType := cfg.RecordType
	if cmd.Flags().Changed("record-type") {
		recordType = opts.RecordType
	}
	recordType = platform.NormalizeType(recordType)
	if opts.Count < 0 {
		return commandError(formatter, ErrCodeConfig, fmt.Sprintf("--count must be >= 0, got %d", opts.Count), nil)
	}

	st, err := store.Open(path)
	if err != nil {
		return commandError(formatter, ErrCodeBackend, "failed to open sandbox", err)
	}
	defer st.Close()

	sb := st.Sandbox()
	ids, err := sb.Seed(ctx, recordType, opts.Count)
	if err != nil {
		return commandError(formatter, ErrCodeBackend, "failed to seed sandbox", err)
	}
	total, err := sb.Count(ctx, recordType)
	if err != nil {
		return commandError(formatter, ErrCodeBackend, "failed to count sandbox records", err)
	}

	if opts.Format == "json" {
		return formatter.Success(SeedResult{Path: path, RecordType: recordType, IDs: ids, Total: total})
	}
	fmt.Fprintf(formatter.Writer, "Seeded %d %s record(s) in %s (%d total)\n", len(ids), recordType, path, total)
	return nil
}
