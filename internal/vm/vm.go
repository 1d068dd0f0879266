package vm

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cespare/xxhash/v2"
	"github.com/dop251/goja"
	"github.com/pbnjay/memory"
	"go.uber.org/zap"

	"github.com/concilium/ledgercore/internal/core"
)

// Sandbox runs contract source in an isolated goja interpreter per
// call: a fresh interpreter instance per execution, since contracts
// here are JS-class-shaped source text rather than compiled bytecode
// that could be instantiated once and reused.
type Sandbox struct {
	logger *zap.SugaredLogger
	clock  clock.Clock

	mu            sync.Mutex
	compiled      map[uint64]*goja.Program // keyed by xxhash of source, to skip recompiling unchanged contract code
	memoryBudget  uint64
}

// defaultMemoryBudget computes a per-sandbox memory figure as a fraction
// of total system memory. It is recorded on the Sandbox and reported by
// MemoryBudget; Run does not enforce it, so a contract's memory use is
// bounded only by the wall-clock timeout.
func defaultMemoryBudget() uint64 {
	total := memory.TotalMemory()
	if total == 0 {
		return 256 << 20 // 256MiB fallback when the OS won't report total memory
	}
	return total / 64
}

// NewSandbox builds a Sandbox. clk lets tests substitute a mock clock
// for the timeout deadline; passing nil uses the real wall clock.
func NewSandbox(logger *zap.SugaredLogger, clk clock.Clock) *Sandbox {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if clk == nil {
		clk = clock.New()
	}
	budget := defaultMemoryBudget()
	logger.Debugw("sandbox memory budget computed", "bytes", budget)
	return &Sandbox{
		logger:       logger,
		clock:        clk,
		compiled:     make(map[uint64]*goja.Program),
		memoryBudget: budget,
	}
}

// MemoryBudget returns the per-sandbox memory figure derived from total
// system memory at construction time. Run does not enforce it.
func (s *Sandbox) MemoryBudget() uint64 {
	return s.memoryBudget
}

// InternalTransfer is the host callback a running contract invokes to
// move coins without re-entering the UTXO claim-verification path: the
// caller supplies the already-authorized contract address as sender.
type InternalTransfer func(to core.Address, amount uint64) error

// RunResult carries the script's final value as a string (for a
// synthesized driver, the JSON {result, data} envelope holding the call's
// return value and updated data snapshot), the gas used, and the
// internal transfers it issued. Run leaves DataJSON empty.
type RunResult struct {
	ResultJSON   string
	DataJSON     string
	GasUsed      uint64
	InternalTxns []InternalTransferRecord
}

// InternalTransferRecord is one transfer a contract issued via the
// internalTransfer host function during its run.
type InternalTransferRecord struct {
	To     core.Address
	Amount uint64
}

var (
	ErrCompile   = errors.New("contract script failed to compile")
	ErrExecution = errors.New("contract script execution failed")
	ErrTimeout   = errors.New("contract execution timed out")
)

// Run compiles (or reuses a cached compilation of) script and executes
// it to completion, enforcing both a gas budget (consumed by the
// internalTransfer host call) and a wall-clock deadline of
// core.TimeoutCode. script must be a fully synthesized invocation
// driver (see contract.SynthesizeInvocation) whose final expression
// statement evaluates to the JSON result/data object.
func (s *Sandbox) Run(script, dataSnapshot string, gasTank *GasTank, transfer InternalTransfer) (*RunResult, error) {
	program, err := s.compile(script)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}

	vm := goja.New()
	if err := vm.Set("__dataSnapshot", dataSnapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	var issued []InternalTransferRecord
	if err := vm.Set("internalTransfer", func(to string, amount int64) bool {
		if err := gasTank.ConsumeGas(100); err != nil {
			panic(vm.ToValue(err.Error()))
		}
		raw, err := hex.DecodeString(to)
		if err != nil || transfer == nil {
			return false
		}
		addr, err := core.AddressFromBytes(raw)
		if err != nil {
			return false
		}
		if err := transfer(addr, uint64(amount)); err != nil {
			return false
		}
		issued = append(issued, InternalTransferRecord{To: addr, Amount: uint64(amount)})
		return true
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	timer := s.clock.Timer(core.TimeoutCode)
	defer timer.Stop()
	done := make(chan struct{})
	go func() {
		select {
		case <-timer.C:
			vm.Interrupt(ErrTimeout)
		case <-done:
		}
	}()

	value, err := vm.RunProgram(program)
	close(done)
	if err != nil {
		if interrupted, ok := err.(*goja.InterruptedError); ok {
			if interrupted.Value() == ErrTimeout {
				return nil, fmt.Errorf("%w", ErrTimeout)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	return &RunResult{
		ResultJSON:   value.String(),
		GasUsed:      gasTank.GasConsumed(),
		InternalTxns: issued,
	}, nil
}

func (s *Sandbox) compile(script string) (*goja.Program, error) {
	key := xxhash.Sum64String(script)

	s.mu.Lock()
	if p, ok := s.compiled[key]; ok {
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()

	program, err := goja.Compile("contract.js", script, false)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.compiled[key] = program
	s.mu.Unlock()
	return program, nil
}

// Deadline reports the wall-clock instant a run started now would time
// out at, used by callers that want to log or display it.
func (s *Sandbox) Deadline() time.Time {
	return s.clock.Now().Add(core.TimeoutCode)
}
