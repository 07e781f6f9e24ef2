package app_test

import (
	"bytes"
	"errors"
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/flowmbed/internal/app"
	"github.com/san-kum/flowmbed/internal/config"
	"github.com/san-kum/flowmbed/internal/dynsys"
	"github.com/san-kum/flowmbed/internal/trace"
)

func preset(system, name string) *config.Config {
	cfg := config.GetPreset(system, name)
	Expect(cfg).NotTo(BeNil())
	return cfg
}

var _ = Describe("Registry", func() {
	var reg *app.Registry

	BeforeEach(func() {
		reg = app.NewRegistry()
	})

	It("lists every shipped system", func() {
		Expect(reg.List()).To(Equal([]string{"multichannel", "oneshot", "pendulum_pid", "spring_pid"}))
		Expect(reg.Describe("oneshot")).NotTo(BeEmpty())
	})

	It("rejects unknown systems", func() {
		cfg := config.DefaultConfig()
		cfg.System = "toaster"
		_, err := reg.Compose(cfg, app.Env{Clock: dynsys.NewManualClock(app.Epoch)})
		Expect(err).To(MatchError(app.ErrUnknownSystem))
	})

	It("nests the controller as a subsystem", func() {
		rig, err := reg.Compose(config.DefaultConfig(), app.Env{Clock: dynsys.NewManualClock(app.Epoch)})
		Expect(err).NotTo(HaveOccurred())
		_, ok := rig.Storage.Lookup("controller/pid.kp")
		Expect(ok).To(BeTrue())
		Expect(rig.System.Peripherals()).To(HaveLen(3))
	})

	It("reports a storage overflow before any block runs", func() {
		cfg := preset("pendulum_pid", "tight-budget")
		_, err := reg.Compose(cfg, app.Env{Clock: dynsys.NewManualClock(app.Epoch)})
		var overflow *dynsys.StorageOverflowError
		Expect(errors.As(err, &overflow)).To(BeTrue())
		Expect(overflow.Budget).To(Equal(32))
	})
})

var _ = Describe("Session", func() {
	var reg *app.Registry

	BeforeEach(func() {
		reg = app.NewRegistry()
	})

	Context("with a simulated clock", func() {
		It("runs exactly the configured number of ticks", func() {
			cfg := config.DefaultConfig()
			cfg.Runner.Duration = 2
			s, err := app.NewSession(reg, cfg, nil, nil)
			Expect(err).NotTo(HaveOccurred())

			res, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(res.Stats.Steps).To(BeEquivalentTo(200))
			Expect(res.Stats.Overruns).To(BeZero())
			Expect(res.Trace.Len()).To(Equal(200))
			Expect(res.Trace.Columns).To(ContainElements("angle", "filtered", "command"))
			Expect(res.Metrics).To(HaveKey("step_latency_ms"))
			Expect(s.Rig.World.Time()).To(BeNumerically("~", 1.99, 1e-6))
		})

		It("settles the spring at its setpoint", func() {
			cfg := preset("spring_pid", "step")
			cfg.Runner.Duration = 20
			s, err := app.NewSession(reg, cfg, nil, nil)
			Expect(err).NotTo(HaveOccurred())

			res, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Err).NotTo(HaveOccurred())
			Expect(s.Rig.World.Component(0)).To(BeNumerically("~", cfg.Control.Setpoint, 0.05))
			Expect(res.Metrics["position_stability"]).To(BeNumerically("==", 1))
		})

		It("halts on an exhausted sensor and keeps the partial trace", func() {
			cfg := preset("oneshot", "fault")
			s, err := app.NewSession(reg, cfg, nil, nil)
			Expect(err).NotTo(HaveOccurred())

			res, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			var se *dynsys.StepError
			Expect(errors.As(res.Err, &se)).To(BeTrue())
			Expect(se.Step).To(BeEquivalentTo(2))
			n := len(cfg.Inputs.Sequence) - 1
			Expect(res.Stats.Steps).To(BeEquivalentTo(n + 1))
			Expect(res.Trace.Len()).To(Equal(n + 1))
		})

		It("streams the filtered channel to the serial sink", func() {
			cfg := preset("multichannel", "daq")
			cfg.Runner.Duration = 0.1
			var serial bytes.Buffer
			s, err := app.NewSession(reg, cfg, &serial, nil)
			Expect(err).NotTo(HaveOccurred())

			res, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Err).NotTo(HaveOccurred())
			lines := strings.Split(strings.TrimSpace(serial.String()), "\n")
			// one write at init plus one per step
			Expect(lines).To(HaveLen(int(res.Stats.Steps) + 1))
			Expect(lines[0]).To(HavePrefix("ch0="))
		})
	})

	It("saves runs that can be listed and reloaded", func() {
		cfg := config.DefaultConfig()
		cfg.Runner.Duration = 0.5
		s, err := app.NewSession(reg, cfg, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		res, err := s.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())

		store := trace.NewStore(GinkgoT().TempDir())
		Expect(store.Init()).To(Succeed())
		id, err := s.Save(store, res)
		Expect(err).NotTo(HaveOccurred())

		runs, err := store.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(runs).To(HaveLen(1))
		Expect(runs[0].ID).To(Equal(id))
		Expect(runs[0].Steps).To(BeEquivalentTo(50))

		tr, err := store.LoadTrace(id)
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Len()).To(Equal(50))
	})

	It("returns the cancellation error", func() {
		cfg := config.DefaultConfig()
		cfg.Runner.Duration = 0
		s, err := app.NewSession(reg, cfg, nil, nil)
		Expect(err).NotTo(HaveOccurred())
		ctx, cancel := context.WithCancel(context.Background())
		s.Observe(dynsys.StepObserverFunc(func(ssi dynsys.SystemStateInfo, _ time.Duration) {
			if ssi.Step == 9 {
				cancel()
			}
		}))
		res, err := s.Run(ctx)
		Expect(err).To(MatchError(context.Canceled))
		Expect(res.Stats.Steps).To(BeEquivalentTo(10))
	})
})
