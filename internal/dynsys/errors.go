package dynsys

import (
	"errors"
	"fmt"
)

// Domain errors for composition and execution.
var (
	// ErrStorageSealed indicates a declaration after the storage layout was built.
	ErrStorageSealed = errors.New("dynsys: storage layout already built")

	// ErrStorageNotBuilt indicates use of a system whose storage was never built.
	ErrStorageNotBuilt = errors.New("dynsys: storage not built")

	// ErrStorageInUse indicates a static buffer already backing another system.
	ErrStorageInUse = errors.New("dynsys: storage already owned by a system")

	// ErrInitOutsideInit indicates Initialize was called outside the init pass.
	ErrInitOutsideInit = errors.New("dynsys: initialize called outside init pass")

	// ErrAlreadyInitialized indicates a second Initialize on the same variable or system.
	ErrAlreadyInitialized = errors.New("dynsys: already initialized")

	// ErrUninitialized indicates an output or discrete state left without a value after init.
	ErrUninitialized = errors.New("dynsys: variable not initialized")

	// ErrNotInitialized indicates Step was invoked before a successful Init.
	ErrNotInitialized = errors.New("dynsys: step before successful init")

	// ErrSystemFailed indicates use of a system after a failed init or step.
	ErrSystemFailed = errors.New("dynsys: system failed; rebuild required")

	// ErrDuplicateBlock indicates two blocks with the same name.
	ErrDuplicateBlock = errors.New("dynsys: duplicate block name")

	// ErrDuplicateVariable indicates two variables with the same name in one block.
	ErrDuplicateVariable = errors.New("dynsys: duplicate variable name")

	// ErrBlockNotAdded indicates a declared block that was never added to a system.
	ErrBlockNotAdded = errors.New("dynsys: block declared but not added")

	// ErrForeignBlock indicates a block declared against a different system.
	ErrForeignBlock = errors.New("dynsys: block belongs to another system")

	// ErrNotRoot indicates a root-only operation invoked on a subsystem.
	ErrNotRoot = errors.New("dynsys: operation requires the root system")

	// ErrInputConnected indicates a second link into one input.
	ErrInputConnected = errors.New("dynsys: input already connected")

	// ErrUnbound indicates a declared peripheral with no driver.
	ErrUnbound = errors.New("dynsys: peripheral not bound")

	// ErrCapabilityMismatch indicates a driver that does not satisfy the declared capability.
	ErrCapabilityMismatch = errors.New("dynsys: driver does not satisfy capability")

	// ErrChannelCount indicates a multi-channel driver with too few channels.
	ErrChannelCount = errors.New("dynsys: driver has too few channels")

	// ErrPeripheralShared indicates one driver bound to more than one reference.
	ErrPeripheralShared = errors.New("dynsys: driver already owned by another reference")

	// ErrUnknownReference indicates a binding for a reference no block declared.
	ErrUnknownReference = errors.New("dynsys: no block declares this peripheral")

	// ErrRunnerBusy indicates Run on a runner that is already running.
	ErrRunnerBusy = errors.New("dynsys: runner already running")
)

// StorageOverflowError reports a layout larger than the strategy's budget.
type StorageOverflowError struct {
	Strategy string
	Required int
	Budget   int
}

func (e *StorageOverflowError) Error() string {
	return fmt.Sprintf("dynsys: storage overflow: %s strategy needs %d bytes, budget is %d", e.Strategy, e.Required, e.Budget)
}

// InitializationError wraps the failure of a block's Init.
type InitializationError struct {
	Block   string
	Wrapped error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("dynsys: init %s: %v", e.Block, e.Wrapped)
}

func (e *InitializationError) Unwrap() error {
	return e.Wrapped
}

// StepError wraps the failure of a block's Step with the step index it failed at.
type StepError struct {
	Block   string
	Step    uint64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("dynsys: step %d %s: %v", e.Step, e.Block, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}

// PeripheralBindingError reports a peripheral reference that could not be resolved.
type PeripheralBindingError struct {
	Reference string
	Wrapped   error
}

func (e *PeripheralBindingError) Error() string {
	return fmt.Sprintf("dynsys: bind %s: %v", e.Reference, e.Wrapped)
}

func (e *PeripheralBindingError) Unwrap() error {
	return e.Wrapped
}
