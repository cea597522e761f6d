package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"graphgolf/internal/storage"
	golfapi "graphgolf/pkg/graphgolf"
)

const (
	artifactsDir = "artifacts"
	exportsDir   = "exports"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalOptions struct {
	logLevel     string
	logFormat    string
	storeKind    string
	dbPath       string
	artifactsDir string
	exportsDir   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "graphgolfctl",
		Short:         "Search for low-diameter, low-ASPL regular graphs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug|info|warn|error")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log format: text|json")
	pf.StringVar(&opts.storeKind, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	pf.StringVar(&opts.dbPath, "db-path", "graphgolf.db", "sqlite database path")
	pf.StringVar(&opts.artifactsDir, "artifacts-dir", artifactsDir, "run artifacts directory")
	pf.StringVar(&opts.exportsDir, "exports-dir", exportsDir, "export destination directory")

	root.AddCommand(
		newRunCmd(opts),
		newBoundsCmd(opts),
		newAnalyzeCmd(opts),
		newBestCmd(opts),
		newRunsCmd(opts),
		newExportCmd(opts),
	)
	return root
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func (o *globalOptions) client() (*golfapi.Client, error) {
	return golfapi.New(golfapi.Options{
		StoreKind:    o.storeKind,
		DBPath:       o.dbPath,
		ArtifactsDir: o.artifactsDir,
		ExportsDir:   o.exportsDir,
		Logger:       slog.Default(),
	})
}
