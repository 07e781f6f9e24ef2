package main

import (
	"context"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/flowmbed/internal/app"
	"github.com/san-kum/flowmbed/internal/console"
	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/san-kum/flowmbed/internal/monitor"
)

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("realtime") {
		cfg.Runner.Realtime = true
	}

	// Logs would tear the terminal UI; keep only errors.
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	log.SetOutput(os.Stderr)

	// Serial output would also tear the UI, so it is discarded.
	session, err := app.NewSession(registry, cfg, nil, log)
	if err != nil {
		return err
	}

	m := monitor.New(cfg.System, session.Recorder, session.Runner.Stats, session.Stop)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		res, err := session.Run(context.Background())
		if err == nil {
			err = res.Err
		}
		p.Send(monitor.DoneMsg{Err: err})
	}()

	_, err = p.Run()
	session.Stop()
	return err
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	cfg.Runner.Realtime = false

	session, err := app.NewSession(registry, cfg, os.Stdout, logrus.StandardLogger())
	if err != nil {
		return err
	}
	d := console.NewDebugger(session.Rig.System, cfg.Interval())
	if clock, ok := session.Clock.(*dynsys.ManualClock); ok {
		d.Clock = clock
	}
	d.Metrics = session.Rig.Metrics
	d.Observers = append(d.Observers, session.Recorder)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}
	return console.Run(d, os.Stdout, filepath.Join(dataDir, "console_history"))
}
