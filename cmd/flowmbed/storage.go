package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/san-kum/flowmbed/internal/app"
	"github.com/san-kum/flowmbed/internal/dynsys"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4444"))
)

var kinds = []dynsys.VarKind{dynsys.KindParameter, dynsys.KindInput, dynsys.KindOutput, dynsys.KindDiscreteState}

// storageReport composes the system without running it and prints the
// storage requirement per variable kind and the slot layout. A budget
// overflow is reported together with the layout it would have needed.
func storageReport(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	env := app.Env{Clock: dynsys.NewManualClock(app.Epoch)}

	rig, err := registry.Compose(cfg, env)
	var overflow *dynsys.StorageOverflowError
	if errors.As(err, &overflow) {
		fmt.Println(errStyle.Render("overflow: " + overflow.Error()))
		cfg.Storage.Strategy = "heap"
		cfg.Storage.Budget = 0
		rig, err = registry.Compose(cfg, env)
	}
	if err != nil {
		return err
	}
	st := rig.Storage

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s storage (%s)", cfg.System, st.Strategy())))
	if overflow == nil {
		capacity := "unbounded"
		if st.Capacity() >= 0 {
			capacity = fmt.Sprintf("%d", st.Capacity())
		}
		fmt.Println(okStyle.Render(fmt.Sprintf("used %d of %s bytes", st.Used(), capacity)))
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tCOUNT\tBYTES")
	size := st.StorageSize()
	for _, k := range kinds {
		ks := size.Of(k)
		fmt.Fprintf(w, "%s\t%d\t%d\n", k, ks.Count, ks.Bytes)
	}
	fmt.Fprintf(w, "total\t\t%d\n", st.Used())
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()

	fmt.Println(titleStyle.Render("layout"))
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OFFSET\tSIZE\tKIND\tTYPE\tVARIABLE")
	for _, s := range st.Slots() {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", s.Offset, s.Size, s.Kind, s.Type, s.Qualified())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println()

	fmt.Println(titleStyle.Render("peripherals"))
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "REFERENCE\tDIR\tREQUIRES\tCHANNELS\tDRIVER")
	for _, ref := range rig.System.Peripherals() {
		var requires string
		switch r := ref.(type) {
		case *dynsys.TypeRef:
			requires = "type " + r.Type.String()
		case *dynsys.CapabilityRef:
			requires = "capability " + r.Capability.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%T\n", ref.Name(), ref.Direction(), requires, ref.Channels(), ref.Resolved())
	}
	return w.Flush()
}
