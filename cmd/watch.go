package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/mindtrail-backend/internal/capture"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var recent int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow your recent captures live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := opts.clientLogger()
			if err != nil {
				return err
			}
			api, err := opts.apiClient(log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, _ = tracedContext(ctx)

			out := cmd.OutOrStdout()
			var mu sync.Mutex
			failed := make(chan string, 1)
			lastErr := ""

			vm := capture.NewViewModel(log, api, capture.OnChange(func(s capture.State) {
				mu.Lock()
				defer mu.Unlock()
				if s.Error != "" && s.Error != lastErr {
					lastErr = s.Error
					select {
					case failed <- s.Error:
					default:
					}
					return
				}
				if s.Loading {
					return
				}
				renderRecent(out, s.Items, recent, time.Now())
			}))
			defer vm.Close()

			if err := vm.Start(ctx); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return nil
			case msg := <-failed:
				return fmt.Errorf("stream ended: %s", msg)
			}
		},
	}
	cmd.Flags().IntVarP(&recent, "recent", "n", capture.DefaultRecent, "how many captures to show")
	return cmd
}

func renderRecent(w io.Writer, items []capture.Item, n int, now time.Time) {
	if n <= 0 {
		n = capture.DefaultRecent
	}
	if len(items) > n {
		items = items[:n]
	}
	fmt.Fprintf(w, "\n── Recent captures (%d) ──\n", len(items))
	if len(items) == 0 {
		fmt.Fprintln(w, "No captures yet.")
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "• %s · %s\n", capture.Capitalize(string(it.Context)), capture.FormatTimeAgo(it.CreatedAt, now))
		fmt.Fprintf(w, "  %s\n", capture.Truncate(it.TextRaw, 120))
		if len(it.Tags) > 0 {
			fmt.Fprintf(w, "  #%s\n", strings.Join(it.Tags, " #"))
		}
		if it.Insight != "" {
			fmt.Fprintf(w, "  → %s\n", capture.Truncate(it.Insight, 160))
		}
	}
}
