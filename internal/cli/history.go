package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/QQCPM/ChatChat/internal/chat"
	"github.com/QQCPM/ChatChat/internal/models"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Offline bool
	Limit   int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print your room's messages",
		Long: `Print your room's messages, oldest first.

The server is asked first; if it is unreachable or has nothing, the local
cache is used. --offline reads only the cache.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printHistory(opts, cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "read only the local cache")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show only the last n messages")
	return cmd
}

func printHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	rc, err := openRoom(cmd.Context(), opts.RootOptions, opts.Offline)
	if err != nil {
		return err
	}
	defer rc.Close()

	msgs, origin := rc.store().LoadHistory(cmd.Context())
	if opts.Limit > 0 && len(msgs) > opts.Limit {
		msgs = msgs[len(msgs)-opts.Limit:]
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	return newOutput(opts.RootOptions, cmd).result(msgs, func(w io.Writer) {
		if opts.Verbose {
			fmt.Fprintf(w, "# %d messages from %s\n", len(msgs), origin)
		}
		if len(msgs) == 0 {
			fmt.Fprintln(w, "No messages yet.")
		}
		for _, m := range msgs {
			fmt.Fprintln(w, formatMessage(m, rc.account.ID))
		}
	})
}

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Offline bool
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show your relationship stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printStats(opts, cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.Offline, "offline", false, "compute from the local cache")
	return cmd
}

func printStats(opts *StatsOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	rc, err := openRoom(ctx, opts.RootOptions, opts.Offline)
	if err != nil {
		return err
	}
	defer rc.Close()

	var st chat.Stats
	if rc.client != nil {
		if st, err = rc.client.Stats(ctx, rc.room.ID); err != nil {
			return err
		}
	} else {
		msgs, _ := rc.store().LoadHistory(ctx)
		st = chat.ComputeStats(msgs, rc.account.ID, rc.room.PairedAt, time.Now())
	}

	return newOutput(opts.RootOptions, cmd).result(st, func(w io.Writer) {
		fmt.Fprintf(w, "Days together:  %d\n", st.DaysTogether)
		fmt.Fprintf(w, "Messages:       %d (%d from you, %d from your partner)\n",
			st.TotalMessages, st.MessagesFromYou, st.MessagesFromThem)
		fmt.Fprintf(w, "Photos shared:  %d\n", st.PhotosShared)
		fmt.Fprintf(w, "Videos shared:  %d\n", st.VideosShared)
		fmt.Fprintf(w, "PDFs shared:    %d\n", st.PDFsShared)
	})
}
