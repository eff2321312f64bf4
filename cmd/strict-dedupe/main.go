package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yuya-takeyama/strict-dedupe/internal/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

type options struct {
	configFile     string
	verbose        int
	quiet          bool
	dryRun         bool
	excludes       []string
	workers        int
	concurrency    int
	planJSONFile   string
	resultJSONFile string
	followSymlinks bool

	duplicatesDir string
	hash          string
	prefixSize    int64
	maxSuffix     int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}

	rootCmd := &cobra.Command{
		Use:   "strict-dedupe",
		Short: "Find duplicate files by content and resolve clashing file names",
		Long: `strict-dedupe scans one or more directories, finds files with identical
content using a size, partial-hash, full-hash pipeline, and moves every copy
but the first into a duplicates directory. It can also rename files whose
names clash across directories. Every run builds a deterministic plan first;
--dryrun prints it without touching the filesystem.`,
		Version:      fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&o.configFile, "config", "", "Config file (default: ./"+config.FileName+" or $XDG_CONFIG_HOME/"+config.UserFile+")")
	pf.CountVarP(&o.verbose, "verbose", "v", "Verbose logging (repeat for more)")
	pf.BoolVar(&o.quiet, "quiet", false, "Suppress non-error output")
	pf.BoolVar(&o.dryRun, "dryrun", false, "Shows operations without executing")
	pf.StringSliceVar(&o.excludes, "exclude", nil, "Exclude patterns (multiple allowed)")
	pf.IntVar(&o.workers, "workers", 0, "Number of hashing workers (0 = number of CPUs)")
	pf.IntVar(&o.concurrency, "concurrency", 8, "Number of concurrent file operations")
	pf.StringVar(&o.planJSONFile, "plan-json-file", "", "Path to output plan as JSON (or YAML by extension)")
	pf.StringVar(&o.resultJSONFile, "result-json-file", "", "Path to output result as JSON (or YAML by extension)")
	pf.BoolVar(&o.followSymlinks, "follow-symlinks", false, "Treat symlinks to regular files as files")

	rootCmd.AddCommand(
		newPlanCmd(o, modeDupes),
		newPlanCmd(o, modeRename),
		newPlanCmd(o, modeAll),
		newConfigCmd(o),
		newVersionCmd(),
	)
	return rootCmd
}

func newPlanCmd(o *options, m mode) *cobra.Command {
	cmd := &cobra.Command{
		Use:   m.use(),
		Short: m.short(),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, m, args)
		},
	}

	if m.dupes() {
		cmd.Flags().StringVar(&o.duplicatesDir, "duplicates-dir", "duplicates", "Directory duplicates are moved into")
		cmd.Flags().StringVar(&o.hash, "hash", "sha256", "Hash algorithm (sha256 or xxhash)")
		cmd.Flags().Int64Var(&o.prefixSize, "prefix-size", 64*1024, "Bytes read for the partial hash")
	}
	if m.renames() {
		cmd.Flags().IntVar(&o.maxSuffix, "max-suffix", 10000, "Highest numeric suffix tried for a clashing name")
	}
	return cmd
}

func newConfigCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := config.Load(config.LoadOptions{
				File:      o.configFile,
				Overrides: o.overrides(cmd),
			})
			if err != nil {
				return err
			}
			data, err := cfg.Encode()
			if err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			out := cmd.OutOrStdout()
			if path != "" {
				fmt.Fprintf(out, "# loaded from %s\n", path)
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "strict-dedupe %s (commit: %s, built at: %s by %s)\n", version, commit, date, builtBy)
		},
	}
}

// overrides returns the flags the user set explicitly, keyed like the
// config file, so that unset flags never shadow file or env values.
func (o *options) overrides(cmd *cobra.Command) map[string]interface{} {
	flags := cmd.Flags()
	m := make(map[string]interface{})
	set := func(flag, key string, value interface{}) {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			m[key] = value
		}
	}

	set("exclude", "excludes", o.excludes)
	set("workers", "workers", o.workers)
	set("concurrency", "concurrency", o.concurrency)
	set("follow-symlinks", "follow_symlinks", o.followSymlinks)
	set("duplicates-dir", "duplicates_dir", o.duplicatesDir)
	set("hash", "hash_algorithm", o.hash)
	set("prefix-size", "prefix_size", o.prefixSize)
	set("max-suffix", "max_suffix", o.maxSuffix)
	return m
}
