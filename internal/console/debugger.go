// Package console is an interactive step debugger for a built system.
package console

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/san-kum/flowmbed/internal/metrics"
)

const helpText = `commands:
  :step [n]      run n steps (default 1)
  :get <var>     print a variable, e.g. :get pid.command
  :slots [kind]  list storage slots, optionally one kind
  :stats         steps taken and storage usage
  :metrics       current metric values
  :help          this text
  :quit          leave the console
`

var ErrHalted = errors.New("console: system halted")

// Debugger steps a system by hand on logical time. A failed step halts it.
type Debugger struct {
	sys      *dynsys.System
	interval time.Duration

	// Clock, when set, is advanced one interval per step so time-based
	// drivers see the same time the system does.
	Clock     *dynsys.ManualClock
	Metrics   *metrics.Set
	Observers []dynsys.StepObserver

	step   uint64
	halted error
}

// NewDebugger returns a debugger for a built system.
func NewDebugger(sys *dynsys.System, interval time.Duration) *Debugger {
	return &Debugger{sys: sys, interval: interval}
}

// Steps returns the number of completed steps.
func (d *Debugger) Steps() uint64 { return d.step }

// Step initializes the system if needed and runs one step.
func (d *Debugger) Step() (dynsys.SystemStateInfo, error) {
	if d.halted != nil {
		return dynsys.SystemStateInfo{}, fmt.Errorf("%w: %v", ErrHalted, d.halted)
	}
	if !d.sys.Initialized() {
		if err := d.sys.Init(); err != nil {
			d.halted = err
			return dynsys.SystemStateInfo{}, err
		}
	}
	if d.Clock != nil && d.step > 0 {
		d.Clock.Advance(d.interval)
	}
	ssi := dynsys.SystemStateInfo{
		Step: d.step,
		Tick: d.step,
		Time: time.Duration(d.step) * d.interval,
		Dt:   d.interval,
		Wall: time.Duration(d.step) * d.interval,
	}
	err := d.sys.Step(&ssi)
	if d.Metrics != nil {
		d.Metrics.OnStep(ssi, 0)
	}
	for _, o := range d.Observers {
		o.OnStep(ssi, 0)
	}
	if err != nil {
		d.halted = err
		return ssi, err
	}
	d.step++
	return ssi, nil
}

// Exec runs one console command, writing its output to w. quit reports
// whether the session should end. Command errors are written to w, not
// returned; err is only set when w fails.
func (d *Debugger) Exec(line string, w io.Writer) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	switch strings.ToLower(fields[0]) {
	case ":help":
		_, err = io.WriteString(w, helpText)
	case ":quit", ":exit":
		return true, nil
	case ":step", ":s":
		err = d.execStep(fields[1:], w)
	case ":get":
		if len(fields) < 2 {
			_, err = fmt.Fprintln(w, "usage: :get <block.var>")
			break
		}
		err = d.execGet(fields[1], w)
	case ":slots":
		err = d.execSlots(fields[1:], w)
	case ":stats":
		st := d.sys.Storage()
		_, err = fmt.Fprintf(w, "steps=%d halted=%t storage=%s used=%d capacity=%d\n",
			d.step, d.halted != nil, st.Strategy(), st.Used(), st.Capacity())
	case ":metrics":
		err = d.execMetrics(w)
	default:
		_, err = fmt.Fprintln(w, "unknown command. Type :help for help.")
	}
	return false, err
}

func (d *Debugger) execStep(args []string, w io.Writer) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			_, err := fmt.Fprintf(w, "bad step count: %s\n", args[0])
			return err
		}
		n = v
	}
	var ssi dynsys.SystemStateInfo
	for i := 0; i < n; i++ {
		var err error
		if ssi, err = d.Step(); err != nil {
			_, werr := fmt.Fprintf(w, "step %d failed: %v\n", ssi.Step, err)
			return werr
		}
	}
	_, err := fmt.Fprintf(w, "step=%d t=%v\n", ssi.Step, ssi.Time)
	return err
}

func (d *Debugger) execGet(name string, w io.Writer) error {
	v, err := d.sys.Storage().Value(name)
	if err != nil {
		_, err = fmt.Fprintln(w, err)
		return err
	}
	_, err = fmt.Fprintf(w, "%s = %v\n", name, v)
	return err
}

func (d *Debugger) execSlots(args []string, w io.Writer) error {
	st := d.sys.Storage()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tTYPE\tOFFSET\tSIZE\tVALUE")
	for _, s := range st.Slots() {
		if len(args) > 0 && !strings.EqualFold(s.Kind.String(), args[0]) {
			continue
		}
		v, _ := st.Value(s.Qualified())
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%v\n", s.Qualified(), s.Kind, s.Type, s.Offset, s.Size, v)
	}
	return tw.Flush()
}

func (d *Debugger) execMetrics(w io.Writer) error {
	if d.Metrics == nil {
		_, err := fmt.Fprintln(w, "no metrics attached")
		return err
	}
	values := d.Metrics.Values()
	for _, name := range d.Metrics.Names() {
		if _, err := fmt.Fprintf(w, "%-20s %.4f\n", name, values[name]); err != nil {
			return err
		}
	}
	return nil
}
