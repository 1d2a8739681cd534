package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/maneuver-editor/host"
	"github.com/signalsfoundry/maneuver-editor/internal/logging"
	"github.com/signalsfoundry/maneuver-editor/internal/observability"
	"github.com/signalsfoundry/maneuver-editor/scenario"
	"github.com/signalsfoundry/maneuver-editor/timectrl"
)

type runOptions struct {
	scenarioPath string
	tick         time.Duration
	duration     time.Duration
	accelerated  bool
	metricsAddr  string
	verbose      bool

	registerer prometheus.Registerer
	log        logging.Logger
}

func newRootCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "maneuver-sim",
		Short: "Run a scripted maneuver node editing session against a simulated host",
		Long: `maneuver-sim loads a scenario (vessel, bodies, planned nodes and scripted
edits), ticks a host simulation and prints what the node editor does each tick.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			opts.log = logging.NewFromEnv()
			return run(ctx, opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.scenarioPath, "scenario", "configs/leo_transfer.yaml", "Path to a YAML scenario")
	flags.DurationVar(&opts.tick, "tick", time.Second, "Simulation tick interval")
	flags.DurationVar(&opts.duration, "duration", 30*time.Minute, "Total simulated duration")
	flags.BoolVar(&opts.accelerated, "accelerated", true, "Run in accelerated mode (vs real-time)")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics and /status (disabled when empty)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Print every tick, not only ticks where something happened")
	return cmd
}

func run(ctx context.Context, opts runOptions, out io.Writer) error {
	if opts.tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", opts.tick)
	}
	if opts.log == nil {
		opts.log = logging.Noop()
	}
	ctx, log := logging.WithSessionLogger(ctx, opts.log)

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	collector, err := observability.NewEditorCollector(opts.registerer)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	board := &statusBoard{}
	if opts.metricsAddr != "" {
		srv := serveStatus(ctx, opts.metricsAddr, newStatusHandler(collector, board), log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sc, err := scenario.LoadFile(opts.scenarioPath)
	if err != nil {
		return err
	}
	log.Info(ctx, "loaded scenario",
		logging.String("name", sc.Name),
		logging.String("vessel", sc.Vessel.Name),
		logging.Int("nodes", len(sc.Nodes)),
		logging.Int("events", len(sc.Actions)),
	)

	mode := timectrl.RealTime
	if opts.accelerated {
		mode = timectrl.Accelerated
	}
	start := sc.Epoch
	if start.IsZero() {
		start = time.Unix(0, 0).UTC()
	}
	tc := timectrl.NewTimeController(start, opts.tick, mode)

	sim, err := host.NewSimulation(tc, sc.Propagator(), sc.Bodies, sc.Nodes,
		host.WithLogger(log),
		host.WithMetricsRecorder(collector),
		host.WithTracer(observability.Tracer()),
		host.WithScript(sc.Actions),
	)
	if err != nil {
		return fmt.Errorf("build simulation: %w", err)
	}

	printer := &reportPrinter{out: out, verbose: opts.verbose}
	sim.RegisterTickListener(printer.Print)
	sim.RegisterTickListener(board.Record)
	tc.AddListener(func(time.Time) {
		if ctx.Err() == nil {
			sim.Tick(ctx)
		}
	})

	log.Info(ctx, "starting simulation",
		logging.String("mode", mode.String()),
		logging.String("tick", opts.tick.String()),
		logging.String("duration", opts.duration.String()),
	)
	select {
	case <-tc.Start(opts.duration):
	case <-ctx.Done():
		log.Info(ctx, "simulation interrupted")
	}
	if err := printer.Err(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	log.Info(ctx, "simulation finished", logging.Int("remaining_nodes", sim.Plan.Len()))
	return nil
}

func serveStatus(ctx context.Context, addr string, handler http.Handler, log logging.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(ctx, "status server exited", logging.Err(err))
		}
	}()

	log.Info(ctx, "serving /metrics and /status", logging.String("addr", addr))
	return srv
}
