// Package dynsys is the block execution runtime.
//
// A control application is a tree of blocks. Each block declares its
// variables and peripheral needs through a [BlockBuilder], and implements the
// [DynamicalSystem] lifecycle:
//
//   - [Parameter]: fixed value supplied at composition time
//   - [Input]: value copied from an upstream [Output] at each tick boundary
//   - [Output]: value owned and published by its block
//   - [DiscreteState]: value persisted across steps
//   - [Peripheral]: bound hardware capability
//
// A [System] holds blocks in execution order. Building the system computes
// the storage layout for every variable, checks it against a
// [StorageStrategy] budget and binds peripherals. Nothing in a block runs
// before Build succeeds.
//
// # Example
//
//	sys := dynsys.NewSystem("root")
//	sensor := blocks.NewOneShotDigital(sys.Block("button"))
//	_ = sys.Add(sensor)
//	_ = sys.Bind("button.reader", driver)
//	if _, err := sys.Build(dynsys.NewStaticStorage(arena[:])); err != nil {
//		return err
//	}
//	runner := dynsys.NewFixedStepRunner(dynsys.FromFrequency(100))
//	err := runner.Run(ctx, sys)
//
// # Thread Safety
//
// Systems are single-threaded: Init and Step run on the runner goroutine and
// nothing in a system is safe for concurrent use. Only [FixedStepRunner.Stop]
// and [FixedStepRunner.Stats] may be called from another goroutine.
package dynsys
