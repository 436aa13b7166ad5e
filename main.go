// symnav finds where a symbol is defined and used across a git work tree,
// printing scope-aware excerpts of every hit.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/symnav/internal/config"
	"github.com/phobologic/symnav/internal/discover"
	"github.com/phobologic/symnav/internal/logging"
	"github.com/phobologic/symnav/internal/navigator"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by the query commands.
type globalFlags struct {
	root       string
	configPath string
	depth      int
	directory  string
	workers    int
	verbose    int
	quiet      bool
	progress   bool
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:           "symnav",
		Short:         "Jump to definitions and references in a git work tree",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&g.root, "root", "C", ".", "project root")
	pf.StringVar(&g.configPath, "config", "", "config file (default <root>/"+config.FileName+")")
	pf.IntVar(&g.depth, "depth", 0, "scan at most this many directory levels below --dir")
	pf.StringVar(&g.directory, "dir", "", "scan only this root-relative directory")
	pf.IntVar(&g.workers, "workers", 0, "files parsed concurrently (0 = GOMAXPROCS)")
	pf.CountVarP(&g.verbose, "verbose", "v", "increase log verbosity (repeatable)")
	pf.BoolVarP(&g.quiet, "quiet", "q", false, "suppress all logs")
	pf.BoolVar(&g.progress, "progress", false, "report parsing progress on stderr")

	var pathFilter string
	defCmd := &cobra.Command{
		Use:   "def <symbol>",
		Short: "Show the definitions of a symbol",
		Long: `Show every definition of a symbol, each with its enclosing scope.

Examples:
  symnav def UserService
  symnav def handle --path internal/api
  symnav def Config --path /abs/path/to/config.go`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nav, err := newNavigator(cmd, &g, stderr)
			if err != nil {
				return err
			}
			filter, err := relativeFilter(nav.Root(), pathFilter)
			if err != nil {
				return err
			}
			out, err := nav.FindDefinitions(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}
			printResult(stdout, out)
			return nil
		},
	}
	defCmd.Flags().StringVarP(&pathFilter, "path", "p", "", "only files whose path contains this (absolute paths are made root-relative)")

	refsCmd := &cobra.Command{
		Use:   "refs <symbol>",
		Short: "Show the references to a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nav, err := newNavigator(cmd, &g, stderr)
			if err != nil {
				return err
			}
			out, err := nav.FindReferences(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printResult(stdout, out)
			return nil
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(stdout, "symnav %s\n", version)
			return err
		},
	}

	root.AddCommand(defCmd, refsCmd, versionCmd, newInitCmd(stdout, stderr))
	return root
}

// newNavigator merges the config file with command-line flags.
func newNavigator(cmd *cobra.Command, g *globalFlags, stderr io.Writer) (*navigator.Navigator, error) {
	root, err := filepath.Abs(g.root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", root)
	}

	var cfg config.Config
	if g.configPath != "" {
		cfg, err = config.Load(g.configPath, false)
	} else {
		cfg, err = config.LoadForRoot(root)
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("depth") {
		cfg.Depth = &g.depth
	}
	if flags.Changed("dir") {
		cfg.Directory = g.directory
	}
	if flags.Changed("workers") {
		cfg.Workers = g.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := logging.LevelFromString(cfg.LogLevel)
	if g.verbose > 0 || g.quiet {
		level = logging.LevelFromVerbosity(g.verbose, g.quiet)
	}
	logger := logging.New(stderr, level)

	opts := navigator.Options{
		Scope:               discover.Scope{Depth: cfg.Depth, Directory: cfg.Directory},
		Exclude:             cfg.Exclude,
		Workers:             cfg.Workers,
		MaxFileSize:         cfg.MaxFileSize,
		MaxLineLength:       cfg.MaxLineLength,
		MaxSuggestions:      cfg.MaxSuggestions,
		SimilarityThreshold: cfg.SimilarityThreshold,
		Logger:              logger,
	}
	if g.progress {
		opts.Progress = func(done, total int) {
			_, _ = fmt.Fprintf(stderr, "\rParsing tags: %d/%d files", done, total)
			if done == total {
				_, _ = fmt.Fprintln(stderr)
			}
		}
	}
	return navigator.New(root, opts)
}

// printResult writes out, terminating it with a newline only when it lacks
// one.
func printResult(w io.Writer, out string) {
	_, _ = fmt.Fprint(w, out)
	if !strings.HasSuffix(out, "\n") {
		_, _ = fmt.Fprintln(w)
	}
}

// relativeFilter turns an absolute --path into a root-relative one; other
// values are used as given.
func relativeFilter(root, path string) (string, error) {
	if path == "" || !filepath.IsAbs(path) {
		return path, nil
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("path %s: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}
