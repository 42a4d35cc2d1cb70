package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tablefsm/internal/harness"
	"github.com/roach88/tablefsm/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - list sessions when empty
}

// TraceResult holds one session's timeline.
type TraceResult struct {
	Session  SessionInfo          `json:"session"`
	Timeline []harness.TraceEvent `json:"timeline"`
	Stats    TraceStats           `json:"stats"`
}

// SessionInfo describes a recorded session.
type SessionInfo struct {
	ID      string `json:"id"`
	Machine string `json:"machine"`
	Label   string `json:"label,omitempty"`
	Events  int    `json:"events"`
}

// TraceStats holds summary statistics for a timeline.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Transitions int `json:"transitions"`
	Frames      int `json:"frames"`
	Deferred    int `json:"deferred"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show recorded sessions",
		Long: `Show sessions recorded by "steerctl run --db".

Without --session, lists every session. With --session, prints its
timeline: transitions, frames and deferred drains in logical clock order.

Examples:
  steerctl trace --db ./steer.db
  steerctl trace --db ./steer.db --session 0190...
  steerctl trace --db ./steer.db --session 0190... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session to show")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.SessionID == "" {
		return listSessions(ctx, st, opts, cmd)
	}

	sess, err := st.ReadSession(ctx, opts.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, fmt.Sprintf("session not found: %s", opts.SessionID), err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	events, err := st.ReadTimeline(ctx, opts.SessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read timeline", err)
	}

	result := TraceResult{
		Session:  sessionInfo(sess),
		Timeline: harness.FromTimeline(events),
	}
	result.Stats.TotalEvents = len(result.Timeline)
	for _, ev := range events {
		switch ev.Kind {
		case store.KindTransition:
			result.Stats.Transitions++
		case store.KindFrame:
			result.Stats.Frames++
		case store.KindDeferred:
			result.Stats.Deferred++
		}
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), result, nil)
	}
	return outputTraceText(cmd, result)
}

func listSessions(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, sessionInfo(s))
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), infos, nil)
	}

	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tMACHINE\tLABEL\tEVENTS")
	for _, s := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ID, s.Machine, s.Label, s.Events)
	}
	return tw.Flush()
}

func sessionInfo(s store.Session) SessionInfo {
	return SessionInfo{ID: s.ID, Machine: s.Machine, Label: s.Label, Events: s.EventCount}
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Session: %s\n", result.Session.ID)
	fmt.Fprintf(w, "Machine: %s\n", result.Session.Machine)
	if result.Session.Label != "" {
		fmt.Fprintf(w, "Label: %s\n", result.Session.Label)
	}
	fmt.Fprintf(w, "Events: %d (%d transitions, %d frames, %d deferred)\n",
		result.Stats.TotalEvents, result.Stats.Transitions, result.Stats.Frames, result.Stats.Deferred)
	fmt.Fprintln(w)

	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "%6d %s\n", ev.Seq, ev)
	}
	return nil
}
