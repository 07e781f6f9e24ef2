package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/flowmbed/internal/trace"
)

func openStore() (*trace.Store, error) {
	st := trace.NewStore(dataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := trace.NewStore(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSYSTEM\tTIME\tRATE\tDRIFT\tSTORAGE\tSTEPS\tOVERRUNS\tSTATUS")
	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "halted"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0fHz\t%s\t%s %d/%d\t%d\t%d\t%s\n",
			run.ID,
			run.System,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.RateHz,
			run.Drift,
			run.Strategy, run.StorageUsed, run.StorageCapacity,
			run.Steps,
			run.Overruns,
			status,
		)
	}
	return w.Flush()
}

func loadRun(runID string) (*trace.RunMetadata, *trace.Trace, error) {
	st := trace.NewStore(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	tr, err := st.LoadTrace(runID)
	if err != nil {
		return nil, nil, err
	}
	if tr.Len() == 0 {
		return nil, nil, fmt.Errorf("no data to plot")
	}
	return meta, tr, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("system: %s\n", meta.System)
	fmt.Printf("samples: %d\n\n", tr.Len())

	columns := tr.Columns
	if signalName != "" {
		columns = []string{signalName}
	}
	for _, name := range columns {
		data := tr.Column(name)
		if data == nil {
			return fmt.Errorf("no signal %s in run (have %v)", name, tr.Columns)
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name+" vs time"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, tr, err := loadRun(args[0])
	if err != nil {
		return err
	}
	name := signalName
	if name == "" {
		name = tr.Columns[0]
	}
	data := tr.Column(name)
	if data == nil {
		return fmt.Errorf("no signal %s in run (have %v)", name, tr.Columns)
	}

	// Decimated traces sample at a fraction of the step rate.
	rate := meta.RateHz
	if len(tr.Ticks) > 1 && tr.Ticks[1] > tr.Ticks[0] {
		rate /= float64(tr.Ticks[1] - tr.Ticks[0])
	}

	fmt.Printf("frequency analysis: %s\n", meta.ID)
	fmt.Printf("signal: %s\n\n", name)

	ps := trace.PowerSpectrum(data)
	if plotData := ps[:len(ps)/4]; len(plotData) > 1 {
		graph := asciigraph.Plot(plotData,
			asciigraph.Height(15),
			asciigraph.Width(80),
			asciigraph.Caption("power spectrum ("+name+")"),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	freq := trace.DominantFrequency(data, rate)
	fmt.Printf("dominant frequency: %.3f hz\n", freq)
	if freq > 0 {
		fmt.Printf("period: %.3f s\n", 1.0/freq)
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
