// Package cli implements chatctl, a terminal client for pairing and chatting.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Server  string
	Token   string
	Cache   string // sqlite path; empty uses the user cache dir
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Execute runs chatctl with the process arguments and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, opts := newRoot()
	if err := cmd.ExecuteContext(ctx); err != nil {
		PrintError(cmd.ErrOrStderr(), opts.Format, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// NewRootCommand creates the chatctl root command.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

func newRoot() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chatctl",
		Short: "chatctl - private chat for two",
		Long:  "Pair with your partner using an invite code, then chat in your shared room.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}
			logrus.SetOutput(cmd.ErrOrStderr())
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("CHATCHAT_SERVER", "http://127.0.0.1:8080"), "server base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("CHATCHAT_TOKEN"), "bearer token (env CHATCHAT_TOKEN)")
	cmd.PersistentFlags().StringVar(&opts.Cache, "cache", "", "path of the local message cache")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewPairCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewChatCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))

	return cmd, opts
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
