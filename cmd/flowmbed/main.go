package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/flowmbed/internal/app"
	"github.com/san-kum/flowmbed/internal/config"
)

var (
	dataDir  string
	logLevel string

	configFile string
	preset     string
	rateHz     float64
	duration   float64
	drift      string
	strategy   string
	budget     int
	realtime   bool
	kp         float64
	ki         float64
	kd         float64
	setpoint   float64
	noSave     bool

	signalName string
)

var registry = app.NewRegistry()

// main registers the flowmbed commands and executes the root command,
// exiting with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "flowmbed",
		Short:         "block-based fixed-step control runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			logrus.SetOutput(os.Stderr)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warning", "log level (debug, info, warning, error)")

	runCmd := &cobra.Command{
		Use:   "run [system]",
		Short: "run a system on simulated drivers and save the trace",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSystem,
	}
	addConfigFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not save the run")

	liveCmd := &cobra.Command{
		Use:   "live [system]",
		Short: "run a system in real time with a live monitor",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addConfigFlags(liveCmd)

	consoleCmd := &cobra.Command{
		Use:   "console [system]",
		Short: "step a system interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConsole,
	}
	addConfigFlags(consoleCmd)

	storageCmd := &cobra.Command{
		Use:   "storage [system]",
		Short: "report the storage layout of a system",
		Args:  cobra.MaximumNArgs(1),
		RunE:  storageReport,
	}
	addConfigFlags(storageCmd)

	systemsCmd := &cobra.Command{
		Use:   "systems",
		Short: "list the available systems",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SYSTEM\tDESCRIPTION")
			for _, name := range registry.List() {
				fmt.Fprintf(w, "%s\t%s\n", name, registry.Describe(name))
			}
			return w.Flush()
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [system]",
		Short: "list available presets for a system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for system: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot recorded signals of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&signalName, "signal", "", "plot only this signal")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a recorded signal",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringVar(&signalName, "signal", "", "signal to analyze (default: first)")

	rootCmd.AddCommand(runCmd, liveCmd, consoleCmd, storageCmd, systemsCmd, presetsCmd, listCmd, plotCmd, analyzeCmd,
		newScenarioCmd(), newSweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&rateHz, "rate", config.DefaultRateHz, "step rate in Hz")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration in seconds (0 runs until interrupted)")
	cmd.Flags().StringVar(&drift, "drift", "run-every-tick", "overrun policy (run-every-tick, skip-missed-ticks)")
	cmd.Flags().StringVar(&strategy, "strategy", "static", "storage strategy (static, heap)")
	cmd.Flags().IntVar(&budget, "budget", config.DefaultBudget, "storage budget in bytes")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "pace steps on the wall clock")
	cmd.Flags().Float64Var(&kp, "kp", config.DefaultKp, "pid kp")
	cmd.Flags().Float64Var(&ki, "ki", config.DefaultKi, "pid ki")
	cmd.Flags().Float64Var(&kd, "kd", config.DefaultKd, "pid kd")
	cmd.Flags().Float64Var(&setpoint, "setpoint", 0, "pid setpoint")
}

// buildConfig layers defaults, preset, config file and explicitly set flags,
// in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if len(args) > 0 {
		cfg.System = args[0]
	}
	if preset != "" {
		p := config.GetPreset(cfg.System, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.System))
		}
		if configFile == "" {
			cfg = p
		} else {
			config.Presets[cfg.System][preset](cfg)
		}
	}

	f := cmd.Flags()
	if f.Changed("rate") {
		cfg.Runner.RateHz = rateHz
	}
	if f.Changed("time") {
		cfg.Runner.Duration = duration
	}
	if f.Changed("drift") {
		cfg.Runner.Drift = drift
	}
	if f.Changed("strategy") {
		cfg.Storage.Strategy = strategy
	}
	if f.Changed("budget") {
		cfg.Storage.Budget = budget
	}
	if f.Changed("realtime") {
		cfg.Runner.Realtime = realtime
	}
	if f.Changed("kp") {
		cfg.Control.Kp = kp
	}
	if f.Changed("ki") {
		cfg.Control.Ki = ki
	}
	if f.Changed("kd") {
		cfg.Control.Kd = kd
	}
	if f.Changed("setpoint") {
		cfg.Control.Setpoint = setpoint
	}
	if !f.Changed("data") && cfg.Trace.Dir != "" {
		dataDir = cfg.Trace.Dir
	}
	return cfg, cfg.Validate()
}

func runSystem(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	session, err := app.NewSession(registry, cfg, os.Stdout, logrus.StandardLogger())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s at %.0f Hz (%s, %s storage %d/%d bytes)\n",
		cfg.System, cfg.Runner.RateHz, cfg.Runner.Drift,
		session.Rig.Storage.Strategy(), session.Rig.Storage.Used(), session.Rig.Storage.Capacity())

	res, err := session.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	printResult(res)

	if cfg.Trace.Save && !noSave {
		store, err := openStore()
		if err != nil {
			return err
		}
		id, err := session.Save(store, res)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		fmt.Printf("saved: %s\n", id)
	}
	return res.Err
}

func printResult(res *app.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "steps\t%d\n", res.Stats.Steps)
	fmt.Fprintf(w, "overruns\t%d\n", res.Stats.Overruns)
	fmt.Fprintf(w, "skipped\t%d\n", res.Stats.Skipped)
	fmt.Fprintf(w, "max step\t%v\n", res.Stats.MaxStepDuration)
	for _, name := range sortedKeys(res.Metrics) {
		fmt.Fprintf(w, "%s\t%.4f\n", name, res.Metrics[name])
	}
	if res.Err != nil {
		fmt.Fprintf(w, "halted\t%v\n", res.Err)
	}
	_ = w.Flush()
}
