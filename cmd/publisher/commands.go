package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ContentPublisher/internal/app"
	"ContentPublisher/internal/domain"
	"ContentPublisher/internal/usecase"
)

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat bot and the inbox sweep until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			if err := a.Run(cmd.Context()); err != nil {
				c.logger.Error("service stopped", "error", err)
				return err
			}
			c.logger.Info("service stopped")
			return nil
		},
	}
}

func (c *cli) ingestCmd() *cobra.Command {
	var (
		requester string
		approve   bool
	)
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Extract, rewrite and review a file; optionally publish it right away",
		Long: `Ingest runs a file up to the approval gate and prints the draft.
With --approve the draft is published immediately and the command waits for
the result. Without it the draft stays awaiting approval; re-arm it later
with /retry <id> in the bot.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			console := &consoleNotifier{w: out}
			a, err := c.application(app.WithNotifier(console))
			if err != nil {
				return err
			}
			release, err := a.Claim()
			if err != nil {
				return err
			}
			defer release()
			ctx := cmd.Context()
			pipeline := a.Pipeline()

			item, err := pipeline.Submit(ctx, requester, args[0])
			if err != nil {
				if item.ID != "" {
					fmt.Fprintf(out, "item %s failed: %s\n", item.ID, domain.Describe(domain.KindOf(err)))
					printNext(out, item)
				}
				return err
			}
			printDraft(out, item)

			if !approve {
				return nil
			}
			if _, err := pipeline.Approve(ctx, requester); err != nil {
				return err
			}
			fmt.Fprintln(out, "publishing…")
			pipeline.Wait()

			if o, ok := console.last(); !ok || !o.Published {
				return errors.New("item was not published")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&requester, "requester", "cli", "requester recorded on the item")
	cmd.Flags().BoolVar(&approve, "approve", false, "publish the draft without waiting for a separate approval")
	return cmd
}

func (c *cli) listCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued and archived items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter *domain.Status
			if status != "" {
				st, err := domain.ParseStatus(strings.ToLower(status))
				if err != nil {
					return err
				}
				filter = &st
			}
			a, err := c.application()
			if err != nil {
				return err
			}
			items, err := a.Store().List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tREQUESTER\tUPDATED\tERROR")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.Status, it.Requester, it.UpdatedAt.UTC().Format(time.RFC3339), it.LastErrorKind)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only items with this status")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Print an item record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			item, err := a.Store().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(item)
		},
	}
}

func (c *cli) statsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize the automation audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			since := time.Now().AddDate(0, 0, -days)
			st, err := a.Events().Stats(cmd.Context(), since)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "since %s: %d events, %d succeeded, %d failed, avg %d ms\n",
				since.UTC().Format("2006-01-02"), st.Total, st.Succeeded, st.Failed, st.AvgDurationMs)
			for kind, n := range st.ByKind {
				fmt.Fprintf(out, "  %s: %d\n", kind, n)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "look back this many days")
	return cmd
}

func (c *cli) authCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth-check",
		Short: "Sign in to the platform without publishing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.cfg.Platform.Configured() {
				return errors.New("platform credentials are not configured (PLATFORM_EMAIL, PLATFORM_PASSWORD)")
			}
			a, err := c.application()
			if err != nil {
				return err
			}
			outcome, trail, err := a.Publisher().CheckLogin(cmd.Context())
			out := cmd.OutOrStdout()
			for _, e := range trail {
				fmt.Fprintf(out, "%s %-8s %-22s %s %s\n", e.Timestamp.UTC().Format("15:04:05"), e.Outcome, e.Action, e.Target, e.Detail)
			}
			fmt.Fprintf(out, "outcome: %s\n", outcome)
			return err
		},
	}
}

func (c *cli) recoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Finish interrupted archives and fail items left mid-step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.application()
			if err != nil {
				return err
			}
			release, err := a.Claim()
			if err != nil {
				return err
			}
			defer release()
			ctx := cmd.Context()
			report, err := a.Pipeline().Recover(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "archived: %s\n", listOrNone(report.Archived))
			fmt.Fprintf(out, "interrupted: %s\n", listOrNone(report.Interrupted))

			issues, err := a.Store().Verify(ctx)
			if err != nil {
				return err
			}
			for _, issue := range issues {
				fmt.Fprintf(out, "inconsistent: %s/%s: %s\n", issue.Dir, issue.File, issue.Problem)
			}
			return nil
		},
	}
}

func printDraft(w io.Writer, item domain.ContentItem) {
	fmt.Fprintf(w, "item %s awaiting approval\n\n%s\n\n", item.ID, item.Rewritten())
	if r := item.ReviewReport; r != nil {
		fmt.Fprintf(w, "review: %s (%s, confidence %.2f), %d characters, %d hashtags\n",
			r.Recommendation, r.Mode, r.Confidence, r.CharCount, r.HashtagCount)
		for _, issue := range r.Issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}
}

func printNext(w io.Writer, item domain.ContentItem) {
	if next := usecase.RecoveryCommands(item); len(next) > 0 {
		fmt.Fprintf(w, "next: %s\n", strings.Join(next, ", "))
	}
}

func listOrNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}

// consoleNotifier prints pipeline updates for one-shot CLI runs.
type consoleNotifier struct {
	w io.Writer

	mu       sync.Mutex
	outcome  domain.PublishOutcome
	received bool
}

func (n *consoleNotifier) NotifyReview(_ context.Context, _ string, item domain.ContentItem) error {
	printDraft(n.w, item)
	return nil
}

func (n *consoleNotifier) NotifyOutcome(_ context.Context, _ string, o domain.PublishOutcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcome, n.received = o, true

	if o.Published {
		fmt.Fprintf(n.w, "published %s (execution %s)\n", o.ItemID, o.Result.ExecutionID)
		if o.Result.Warning != "" {
			fmt.Fprintf(n.w, "warning: %s\n", o.Result.Warning)
		}
		return nil
	}
	fmt.Fprintf(n.w, "not published %s: %s\n", o.ItemID, o.Error)
	if len(o.Recovery) > 0 {
		fmt.Fprintf(n.w, "next: %s\n", strings.Join(o.Recovery, ", "))
	}
	return nil
}

func (n *consoleNotifier) last() (domain.PublishOutcome, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.outcome, n.received
}
