package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/QQCPM/ChatChat/internal/apperrors"
	"github.com/QQCPM/ChatChat/internal/client"
	"github.com/QQCPM/ChatChat/internal/models"
	"github.com/QQCPM/ChatChat/internal/session"
)

// PairStatus is the JSON shape of the pair commands.
type PairStatus struct {
	State  string         `json:"state"`
	Invite *models.Invite `json:"invite,omitempty"`
	Room   *models.Room   `json:"room,omitempty"`
}

// NewPairCommand creates the pair command group.
func NewPairCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Pair with your partner",
	}
	cmd.AddCommand(newPairStatusCommand(rootOpts))
	cmd.AddCommand(newPairCreateCommand(rootOpts))
	cmd.AddCommand(newPairJoinCommand(rootOpts))
	return cmd
}

func newPairStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether you are paired or waiting on an invite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, acct, err := opts.connect()
			if err != nil {
				return err
			}
			ctrl, err := signIn(cmd.Context(), c, acct)
			if err != nil {
				return err
			}
			return printPairing(opts, cmd, ctrl)
		},
	}
}

// PairCreateOptions holds flags for pair create.
type PairCreateOptions struct {
	*RootOptions
	Wait         bool
	Timeout      time.Duration
	PollInterval time.Duration
}

func newPairCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PairCreateOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an invite code for your partner",
		Long: `Create an invite code for your partner to join with "chatctl pair join".

If you already have an open invite, its code is shown instead. With --wait the
command blocks until your partner joins.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createInvite(opts, cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.Wait, "wait", false, "wait until your partner joins")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Minute, "how long --wait waits")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll", 15*time.Second, "how often --wait re-checks when no notification arrives")
	return cmd
}

func createInvite(opts *PairCreateOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	c, acct, err := opts.connect()
	if err != nil {
		return err
	}
	ctrl, err := signIn(ctx, c, acct)
	if err != nil {
		return err
	}

	switch ctrl.State() {
	case session.StatePaired:
		return apperrors.ErrAlreadyPaired
	case session.StateChoosing:
		if err := ctrl.BeginCreate(); err != nil {
			return err
		}
		if err := ctrl.CreateInvite(ctx); err != nil {
			return err
		}
	}

	if opts.Wait && ctrl.State() == session.StateWaiting {
		if opts.Format != "json" {
			inv, _ := ctrl.Invite()
			fmt.Fprintf(cmd.OutOrStdout(), "Share this code with your partner: %s\nWaiting for them to join...\n", inv.Code)
		}
		if err := waitForPartner(ctx, c, ctrl, opts.Timeout, opts.PollInterval); err != nil {
			return err
		}
	}
	return printPairing(opts.RootOptions, cmd, ctrl)
}

// waitForPartner listens for the pairing notification and falls back to
// polling when the realtime channel is unavailable or silent.
func waitForPartner(ctx context.Context, c *client.Client, ctrl *session.Controller, timeout, poll time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var rooms <-chan models.Room
	if watch, err := c.WatchPairing(ctx); err != nil {
		logrus.WithError(err).Warn("Pairing notifications unavailable, polling instead")
	} else {
		defer watch.Close()
		rooms = watch.Rooms()
		// The partner may have joined before the watch opened.
		if err := ctrl.Refresh(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for ctrl.State() != session.StatePaired {
		select {
		case <-ctx.Done():
			return fmt.Errorf("stopped waiting for your partner: %w", ctx.Err())
		case room, ok := <-rooms:
			if !ok {
				rooms = nil
				continue
			}
			ctrl.ObservePaired(room)
		case <-ticker.C:
			if err := ctrl.Refresh(ctx); err != nil {
				logrus.WithError(err).Warn("Pairing check failed")
			}
		}
	}
	return nil
}

func newPairJoinCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "join CODE",
		Short: "Join your partner's invite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, acct, err := opts.connect()
			if err != nil {
				return err
			}
			ctrl, err := signIn(ctx, c, acct)
			if err != nil {
				return err
			}
			switch ctrl.State() {
			case session.StatePaired:
				return apperrors.ErrAlreadyPaired
			case session.StateWaiting:
				inv, _ := ctrl.Invite()
				return apperrors.New(apperrors.CodeInvalidTransition,
					fmt.Sprintf("you already created invite %s; ask your partner to join it", inv.Code))
			}
			if err := ctrl.BeginJoin(); err != nil {
				return err
			}
			if err := ctrl.SubmitCode(ctx, args[0]); err != nil {
				return err
			}
			return printPairing(opts, cmd, ctrl)
		},
	}
}

func printPairing(opts *RootOptions, cmd *cobra.Command, ctrl *session.Controller) error {
	status := PairStatus{State: ctrl.State().String()}
	if inv, ok := ctrl.Invite(); ok {
		status.Invite = &inv
	}
	if room, ok := ctrl.Room(); ok {
		status.Room = &room
		rememberOnline(cmd.Context(), opts, ctrl.Account(), room)
	}

	return newOutput(opts, cmd).result(status, func(w io.Writer) {
		switch {
		case status.Room != nil:
			_, partner := status.Room.Partner(ctrl.Account().ID)
			fmt.Fprintf(w, "Paired with %s since %s (room %s)\n",
				partner, status.Room.PairedAt.Local().Format("2006-01-02"), status.Room.ID)
		case status.Invite != nil:
			fmt.Fprintf(w, "Waiting for your partner to join with code %s\n", status.Invite.Code)
		default:
			fmt.Fprintln(w, "Not paired. Run \"chatctl pair create\" or \"chatctl pair join CODE\".")
		}
	})
}

// rememberOnline stores the room so offline chat knows where to look.
func rememberOnline(ctx context.Context, opts *RootOptions, acct models.Account, room models.Room) {
	kv, err := opts.openCache()
	if err != nil {
		logrus.WithError(err).Debug("Local cache unavailable")
		return
	}
	defer kv.Close()
	if err := rememberRoom(ctx, kv, acct, room); err != nil {
		logrus.WithError(err).Warn("Failed to remember room")
	}
}
