package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tablefsm/internal/compiler"
	"github.com/roach88/tablefsm/internal/steering"
)

// ValidationResult holds the validation result of one file.
type ValidationResult struct {
	Valid    bool            `json:"valid"`
	Machines []MachineResult `json:"machines"`
}

// MachineResult holds the checks run on one machine definition.
type MachineResult struct {
	Name        string                     `json:"name"`
	States      int                        `json:"states"`
	Events      int                        `json:"events"`
	Errors      []compiler.ValidationError `json:"errors,omitempty"`
	Unreachable []string                   `json:"unreachable,omitempty"`
	Cycles      []compiler.CycleWarning    `json:"cycles,omitempty"`
	Drift       []string                   `json:"drift,omitempty"`
}

// failed reports whether the machine fails validation. Unreachable states
// and chain cycles are warnings.
func (m MachineResult) failed() bool {
	return len(m.Errors) > 0 || len(m.Drift) > 0
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <machine.cue>",
		Short: "Validate CUE machine definitions",
		Long: `Validate CUE machine definitions.

Checks the definition for structural errors, reports unreachable states and
internal chain cycles, and compares the SteeringInterface definition against
the compiled transition tables.

Exit codes:
  0 - Valid (warnings allowed)
  1 - Validation errors or drift from the tables
  2 - Command error (file not found, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	if _, err := os.Stat(path); err != nil {
		return WrapExitError(ExitCommandError, "cannot read machine definition", err)
	}

	defs, err := compiler.CompileFile(path)
	if err != nil {
		if opts.Format == "json" {
			_ = writeJSON(cmd.OutOrStdout(), nil, &CLIError{
				Code:    "E_COMPILE",
				Message: err.Error(),
			})
		}
		return WrapExitError(ExitFailure, "compilation failed", err)
	}

	result := ValidationResult{Valid: true, Machines: make([]MachineResult, 0, len(defs))}
	for _, def := range defs {
		m := checkMachine(def)
		if m.failed() {
			result.Valid = false
		}
		result.Machines = append(result.Machines, m)
	}

	if opts.Format == "json" {
		var cliErr *CLIError
		if !result.Valid {
			cliErr = &CLIError{Code: "E_VALIDATION", Message: "machine definition is invalid"}
		}
		if err := writeJSON(cmd.OutOrStdout(), result, cliErr); err != nil {
			return err
		}
	} else {
		outputValidateText(cmd.OutOrStdout(), result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func checkMachine(def *compiler.MachineSpec) MachineResult {
	m := MachineResult{
		Name:   def.Name,
		States: len(def.States),
		Events: len(def.Events),
		Errors: compiler.Validate(def),
	}
	// Reachability and drift need a structurally valid machine.
	if len(m.Errors) > 0 {
		return m
	}
	m.Unreachable = compiler.Unreachable(def)
	m.Cycles = compiler.AnalyzeChains(def)
	if def.Name == steering.MachineName {
		m.Drift = compiler.Drift(def, steering.StateNames(), steering.EventMaps())
	}
	return m
}

func outputValidateText(w io.Writer, result ValidationResult) {
	for _, m := range result.Machines {
		mark := "✓"
		if m.failed() {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (%d states, %d events)\n", mark, m.Name, m.States, m.Events)
		for _, e := range m.Errors {
			fmt.Fprintf(w, "  error: %s\n", e.Error())
		}
		for _, d := range m.Drift {
			fmt.Fprintf(w, "  drift: %s\n", d)
		}
		for _, s := range m.Unreachable {
			fmt.Fprintf(w, "  warning: state %s is unreachable\n", s)
		}
		for _, c := range m.Cycles {
			fmt.Fprintf(w, "  warning: %s\n", c.Message)
		}
	}
}
