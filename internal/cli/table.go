package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tablefsm/internal/fsm"
	"github.com/roach88/tablefsm/internal/steering"
)

// TableResult describes the steering transition tables.
type TableResult struct {
	Machine string      `json:"machine"`
	States  []StateInfo `json:"states"`
	Events  []EventInfo `json:"events"`
}

// StateInfo describes one state's handler.
type StateInfo struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Expects string `json:"expects"`
}

// EventInfo lists an event's target per state; "-" means ignored.
type EventInfo struct {
	Name    string   `json:"name"`
	Targets []string `json:"targets"`
}

// NewTableCommand creates the table command.
func NewTableCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "table",
		Short:         "Print the steering transition tables",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := buildTable()
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), result, nil)
			}
			return outputTableText(cmd, result)
		},
	}
}

func buildTable() TableResult {
	table := steering.Table()
	result := TableResult{Machine: steering.MachineName}

	for i := 0; i < table.Len(); i++ {
		d := table.Lookup(fsm.State(i))
		result.States = append(result.States, StateInfo{Index: i, Name: d.Name(), Expects: d.Expects()})
	}

	for _, m := range steering.EventMaps() {
		ev := EventInfo{Name: m.Event, Targets: make([]string, len(m.Targets))}
		for i, target := range m.Targets {
			if target == fsm.Ignored {
				ev.Targets[i] = "-"
				continue
			}
			ev.Targets[i] = table.Name(target)
		}
		result.Events = append(result.Events, ev)
	}
	return result
}

func outputTableText(cmd *cobra.Command, result TableResult) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "STATE\tNAME\tPAYLOAD")
	for _, s := range result.States {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Index, s.Name, s.Expects)
	}
	fmt.Fprintln(tw)

	names := make([]string, len(result.States))
	for i, s := range result.States {
		names[i] = s.Name
	}
	fmt.Fprintf(tw, "EVENT\t%s\n", strings.Join(names, "\t"))
	for _, ev := range result.Events {
		fmt.Fprintf(tw, "%s\t%s\n", ev.Name, strings.Join(ev.Targets, "\t"))
	}
	return tw.Flush()
}
