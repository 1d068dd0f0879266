package vm

import (
	"fmt"
	"sync/atomic"
)

// ErrOutOfGas is a sentinel error for when gas is exhausted.
var ErrOutOfGas = fmt.Errorf("execution halted: out of gas")

// GasTank manages gas consumption for an execution context using
// atomic counters, charged at host-call sites rather than per
// instruction.
type GasTank struct {
	limit    uint64
	consumed uint64
}

// NewGasTank creates a new gas tank with a given limit.
func NewGasTank(limit uint64) *GasTank {
	return &GasTank{limit: limit}
}

// ConsumeGas attempts to consume a specified amount of gas.
// Returns ErrOutOfGas if consumption exceeds the limit.
func (gt *GasTank) ConsumeGas(amount uint64) error {
	newConsumed := atomic.AddUint64(&gt.consumed, amount)
	if newConsumed > gt.limit {
		atomic.StoreUint64(&gt.consumed, gt.limit)
		return ErrOutOfGas
	}
	return nil
}

// GasConsumed returns the total amount of gas consumed so far.
func (gt *GasTank) GasConsumed() uint64 {
	return atomic.LoadUint64(&gt.consumed)
}

// GasLimit returns the initial gas limit.
func (gt *GasTank) GasLimit() uint64 {
	return gt.limit
}

// GasRemaining returns the amount of gas left.
func (gt *GasTank) GasRemaining() uint64 {
	consumed := atomic.LoadUint64(&gt.consumed)
	if consumed >= gt.limit {
		return 0
	}
	return gt.limit - consumed
}
