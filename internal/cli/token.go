package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/QQCPM/ChatChat/internal/auth"
	"github.com/QQCPM/ChatChat/internal/models"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	ID     string
	Name   string
	Email  string
	Secret string
	TTL    time.Duration
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development token",
		Long: `Mint a bearer token signed with the server's JWT secret.

Production tokens come from the identity provider; this is for local servers.

Example:
  export CHATCHAT_TOKEN=$(chatctl token --id alice --name Alice --secret dev-secret)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mintToken(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "account id (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.Secret, "secret", os.Getenv("JWT_SECRET"), "signing secret (env JWT_SECRET)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "token lifetime; 0 never expires")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func mintToken(opts *TokenOptions, cmd *cobra.Command) error {
	if opts.Secret == "" {
		return NewExitError(ExitCommandError, "no signing secret: pass --secret or set JWT_SECRET")
	}
	acct := models.Account{ID: opts.ID, DisplayName: opts.Name, Email: opts.Email}
	token, err := auth.NewIssuer(opts.Secret).Issue(acct, opts.TTL)
	if err != nil {
		return err
	}
	return newOutput(opts.RootOptions, cmd).result(map[string]string{"token": token}, func(w io.Writer) {
		fmt.Fprintln(w, token)
	})
}
