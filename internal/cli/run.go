package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tablefsm/internal/can"
	"github.com/roach88/tablefsm/internal/config"
	"github.com/roach88/tablefsm/internal/fsm"
	"github.com/roach88/tablefsm/internal/ingress"
	"github.com/roach88/tablefsm/internal/metrics"
	"github.com/roach88/tablefsm/internal/recorder"
	"github.com/roach88/tablefsm/internal/steering"
	"github.com/roach88/tablefsm/internal/store"
)

// DefaultOps is the sequence run executes when no operations are given.
var DefaultOps = []string{
	"activate",
	"send_clearance",
	"activate",
	"set_value=-0.5",
	"set_value=-0.5",
	"stop",
	"confirm_sent",
	"drain",
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database     string
	Label        string
	Debug        bool
	Mode         string
	GatewayState uint8
	MaxSteps     int
	Metrics      bool
	MetricsAddr  string
	EnvFiles     []string

	// MetricsListener overrides the listener --metrics-addr would open
	// (for testing).
	MetricsListener net.Listener

	// IDGenerator allows overriding the session ID generator (for testing).
	// If nil, defaults to recorder.UUIDv7Generator.
	IDGenerator recorder.IDGenerator
}

// OpResult is the outcome of one operation.
type OpResult struct {
	Op       string `json:"op"`
	State    string `json:"state"`
	Deferred bool   `json:"deferred,omitempty"`
	Awaiting bool   `json:"awaiting_confirmation,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RunResult is the outcome of a run.
type RunResult struct {
	SessionID string     `json:"session_id,omitempty"`
	Ops       []OpResult `json:"ops"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [ops...]",
		Short: "Drive a steering interface through a sequence of operations",
		Long: `Create a steering interface from the environment configuration (STEER_*
variables, optionally from .env) and apply operations in order, printing
the current state after each.

Operations:
  send_clearance, activate, stop    external events
  set_value=<v>                     signed setpoint, e.g. set_value=-0.5
  code=<n>                          activation code (0 stop, 1 request)
  confirm_sent                      confirm the stop frame
  drain                             resume a deferred cascade
  set_gateway_state=<n>             set the reported gateway state

Without operations the end-to-end demo sequence runs. Frames are logged.
With --db every transition and frame is recorded as a session.
With --metrics-addr /metrics is served while the operations run and
afterwards until interrupted.

Examples:
  steerctl run
  steerctl run send_clearance activate set_value=1.5 --debug=false
  steerctl run --db ./steer.db --label demo --metrics
  steerctl run --metrics-addr 127.0.0.1:9464`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOps(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the session to this SQLite database (default $STEER_DB)")
	cmd.Flags().StringVar(&opts.Label, "label", "", "session label")
	cmd.Flags().BoolVar(&opts.Debug, "debug", true, "bypass guards (default $STEER_DEBUG_MODE)")
	cmd.Flags().StringVar(&opts.Mode, "mode", "angle", "control mode angle|torque (default $STEER_CONTROL_MODE)")
	cmd.Flags().Uint8Var(&opts.GatewayState, "gateway-state", 0, "initial gateway state (default $STEER_GATEWAY_STATE)")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", steering.DefaultMaxSteps, "step budget of one drain, 0 unbounded (default $STEER_MAX_CHAIN_STEPS)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print metrics after the run")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve /metrics on this address until interrupted")
	cmd.Flags().StringSliceVar(&opts.EnvFiles, "env-file", nil, "env files to load (default .env)")

	return cmd
}

// resolveConfig loads the environment configuration and applies the flags
// the user set explicitly.
func resolveConfig(opts *RunOptions, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(opts.EnvFiles...)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = opts.Database
	}
	if flags.Changed("debug") {
		cfg.DebugMode = opts.Debug
	}
	if flags.Changed("mode") {
		cfg.ControlMode = opts.Mode
	}
	if flags.Changed("gateway-state") {
		cfg.GatewayState = opts.GatewayState
	}
	if flags.Changed("max-steps") {
		cfg.MaxChainSteps = opts.MaxSteps
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runOps(opts *RunOptions, args []string, cmd *cobra.Command) error {
	if len(args) == 0 {
		args = DefaultOps
	}
	ops := make([]op, 0, len(args))
	for _, a := range args {
		o, err := parseOp(a)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid operation", err)
		}
		ops = append(ops, o)
	}

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.SlogLevel(), opts.Verbose)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.MetricsAddr != "" || opts.MetricsListener != nil {
		stop, err := serveMetrics(opts, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer stop()
	}

	var transport can.Transport = can.NewLogTransport(logger)
	steerOpts := append(cfg.SteeringOptions(),
		steering.WithLogger(logger),
		steering.WithObserver(metrics.Observer()),
	)

	result := RunResult{Ops: make([]OpResult, 0, len(ops))}

	var rec *recorder.Recorder
	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()

		ids := opts.IDGenerator
		if ids == nil {
			ids = recorder.UUIDv7Generator{}
		}
		rec, err = recorder.New(ctx, st, steering.MachineName,
			recorder.WithIDGenerator(ids),
			recorder.WithTransport(transport),
			recorder.WithLogger(logger),
			recorder.WithLabel(opts.Label),
		)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start recording", err)
		}

		steerOpts = append(steerOpts, steering.WithRecorder(rec))
		result.SessionID = rec.SessionID()
		logger.Info("recording session", "session", rec.SessionID(), "db", cfg.DBPath)
	}
	steerOpts = append(steerOpts, steering.WithTransport(transport))

	si, err := steering.New(steerOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create steering interface", err)
	}
	unregister := si.Heartbeats().Register(steering.TopicStop, func(topic string) {
		logger.Info("heartbeat", "topic", topic, "state", si.StateName())
	})
	defer unregister()

	failed := 0
	for _, o := range ops {
		err := o.apply(si)
		r := OpResult{Op: o.raw, State: si.StateName()}
		switch {
		case err == nil:
		case fsm.IsStepsExceededError(err):
			r.Deferred = true
			r.Awaiting = errors.Is(err, steering.ErrAwaitingConfirmation)
		default:
			r.Error = err.Error()
			failed++
		}
		result.Ops = append(result.Ops, r)
		logger.Debug("operation applied", "op", o.raw, "state", r.State, "deferred", r.Deferred)
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		var cliErr *CLIError
		if failed > 0 {
			cliErr = &CLIError{Code: "E_OP_FAILED", Message: fmt.Sprintf("%d operation(s) failed", failed)}
		}
		if err := writeJSON(w, result, cliErr); err != nil {
			return err
		}
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, r := range result.Ops {
			note := ""
			if r.Deferred {
				note = "(deferred)"
			}
			if r.Awaiting {
				note = "(awaiting confirmation)"
			}
			if r.Error != "" {
				note = "error: " + r.Error
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Op, r.State, note)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if result.SessionID != "" {
			fmt.Fprintf(w, "session: %s\n", result.SessionID)
		}
		if opts.Metrics {
			fmt.Fprintln(w)
			if err := metrics.WriteText(w); err != nil {
				return WrapExitError(ExitFailure, "failed to write metrics", err)
			}
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d operation(s) failed", failed))
	}
	if rec != nil {
		if recErr := rec.Err(); recErr != nil {
			return WrapExitError(ExitFailure, "trace incomplete", recErr)
		}
	}
	if opts.MetricsAddr != "" || opts.MetricsListener != nil {
		logger.Info("operations done, serving metrics until interrupted")
		<-ctx.Done()
	}
	return nil
}

// serveMetrics starts an HTTP server for /metrics and returns a function
// that shuts it down.
func serveMetrics(opts *RunOptions, logger *slog.Logger) (func(), error) {
	ln := opts.MetricsListener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", opts.MetricsAddr)
		if err != nil {
			return nil, err
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("error stopping metrics server", "error", err)
		}
	}, nil
}

// op is one parsed operation argument.
type op struct {
	raw   string
	name  string
	value float64
	code  uint8
}

func parseOp(arg string) (op, error) {
	name, value, hasValue := strings.Cut(arg, "=")
	o := op{raw: arg, name: name}

	switch name {
	case "send_clearance", "activate", "stop", "confirm_sent", "drain":
		if hasValue {
			return op{}, fmt.Errorf("%s takes no value", name)
		}
	case "set_value":
		if !hasValue {
			return op{}, fmt.Errorf("set_value needs a value, e.g. set_value=-0.5")
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return op{}, fmt.Errorf("set_value: %w", err)
		}
		o.value = v
	case "code", "set_gateway_state":
		if !hasValue {
			return op{}, fmt.Errorf("%s needs a value, e.g. %s=1", name, name)
		}
		v, err := strconv.ParseUint(value, 0, 8)
		if err != nil {
			return op{}, fmt.Errorf("%s: %w", name, err)
		}
		o.code = uint8(v)
	default:
		return op{}, fmt.Errorf("unknown operation %q", name)
	}
	return o, nil
}

func (o op) apply(si *steering.Interface) error {
	switch o.name {
	case "send_clearance":
		return si.SendClearance()
	case "activate":
		return si.Activate()
	case "stop":
		return si.Stop()
	case "set_value":
		return ingress.ApplyValue(si, o.value)
	case "code":
		return ingress.ApplyCode(si, o.code)
	case "confirm_sent":
		si.ConfirmSent()
		return nil
	case "drain":
		return si.Update()
	case "set_gateway_state":
		si.SetGatewayState(o.code)
		return nil
	default:
		return fmt.Errorf("unknown operation %q", o.name)
	}
}
