package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/flowmbed/internal/scenario"
)

var (
	sweepParam   string
	sweepMin     float64
	sweepMax     float64
	sweepPoints  int
	sweepWorkers int
	sweepMetric  string
)

func newScenarioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of systems from a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep [system]",
		Short: "run a system across a range of one parameter",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addConfigFlags(cmd)
	cmd.Flags().StringVar(&sweepParam, "param", "kp", fmt.Sprintf("parameter to sweep %v", scenario.SweepParams()))
	cmd.Flags().Float64Var(&sweepMin, "min", 1, "first value")
	cmd.Flags().Float64Var(&sweepMax, "max", 40, "last value")
	cmd.Flags().IntVar(&sweepPoints, "points", 8, "number of values")
	cmd.Flags().IntVar(&sweepWorkers, "workers", 4, "concurrent runs")
	cmd.Flags().StringVar(&sweepMetric, "metric", "", "show only this metric")
	return cmd
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("scenario %s: %s\n", sc.Name, sc.Description)
	outcomes, err := scenario.Execute(ctx, sc, registry, store, logrus.StandardLogger())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTEPS\tOVERRUNS\tSTATUS\tSAVED")
	for _, o := range outcomes {
		status := "ok"
		if o.Result.Err != nil {
			status = o.Result.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", o.Name, o.Result.Stats.Steps, o.Result.Stats.Overruns, status, o.RunID)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if cfg.Runner.Duration <= 0 {
		return fmt.Errorf("sweep needs a positive --time")
	}
	cfg.Runner.Realtime = false

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	points, err := scenario.RunSweep(ctx, &scenario.Sweep{
		Base:    cfg,
		Param:   sweepParam,
		Min:     sweepMin,
		Max:     sweepMax,
		Points:  sweepPoints,
		Workers: sweepWorkers,
	}, registry, logrus.StandardLogger())
	if err != nil {
		return err
	}

	var names []string
	if sweepMetric != "" {
		names = []string{sweepMetric}
	} else if len(points) > 0 {
		names = sortedKeys(points[0].Metrics)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tSTEPS", sweepParam)
	for _, n := range names {
		fmt.Fprintf(w, "\t%s", n)
	}
	fmt.Fprintln(w, "\tSTATUS")
	for _, p := range points {
		fmt.Fprintf(w, "%.4g\t%d", p.Value, p.Steps)
		for _, n := range names {
			fmt.Fprintf(w, "\t%.4f", p.Metrics[n])
		}
		status := "ok"
		if p.Halted != "" {
			status = p.Halted
		}
		fmt.Fprintf(w, "\t%s\n", status)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if sweepMetric != "" {
		best, err := scenario.Best(points, sweepMetric)
		if err != nil {
			return err
		}
		fmt.Printf("\nbest %s=%.4g (%s %.4f)\n", sweepParam, best.Value, sweepMetric, best.Metrics[sweepMetric])
	}
	return nil
}
