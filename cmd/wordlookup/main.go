// Command wordlookup serves dictionary definitions and illustrative images
// for words, and can run single lookups from the command line.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitmatrixmax/google-dictionary/internal/config"
	"github.com/gitmatrixmax/google-dictionary/internal/logger"
	"github.com/gitmatrixmax/google-dictionary/internal/store"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

type globalFlags struct {
	configPath string
	debug      bool
}

func rootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "wordlookup",
		Short:         "Word definitions and illustrative images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "JSON configuration file (default "+config.DefaultConfigFile+" when present)")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "debug logging, pprof endpoints")

	serveCmd := serveCommand(flags)
	rootCmd.RunE = serveCmd.RunE
	rootCmd.AddCommand(
		serveCmd,
		imagesCommand(flags),
		defineCommand(flags),
		hashPasswordCommand(),
	)
	return rootCmd
}

// setup loads configuration and builds the components every command uses.
func setup(flags *globalFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.debug {
		cfg.Debug.Enabled = true
	}
	log := logger.New(cfg.Debug.Enabled)
	a, err := newApp(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return a, nil
}

func serveCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.Close()
			defer func() { _ = a.log.Sync() }()

			ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.log.Info("Configured image cache",
				zap.String("backend", a.cfg.Images.CacheBackend),
				zap.Duration("ttl", a.cfg.Images.CacheTTL),
				zap.Bool("dedupe", a.cfg.Images.Dedupe))
			return a.server().Run(ctx, ":"+strconv.Itoa(a.cfg.Port))
		},
	}
}

func imagesCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "images <word>",
		Short: "Resolve images for a word and print them as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			word := strings.Join(args, " ")
			return printJSON(cmd.OutOrStdout(), a.cascade.GetWordImages(cmdContext(cmd), word))
		},
	}
}

func defineCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "define <word>",
		Short: "Look up a word and print the definition as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.dict.Lookup(cmdContext(cmd), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func hashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the argon2id hash to use as METRICS_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return errors.New("password must not be empty")
			}
			hash, err := store.HashPassword(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
