// Package app implements the transaction-processing state machine:
// input validation and claim verification, output minting, and the
// contract deploy/invoke lifecycle that drives the Sandbox. Dispatch is
// split into four narrow operations rather than one block-level switch
// over transaction kinds.
package app

import (
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/concilium/ledgercore/internal/contract"
	"github.com/concilium/ledgercore/internal/core"
	"github.com/concilium/ledgercore/internal/crypto"
	"github.com/concilium/ledgercore/internal/ledgerstate"
	"github.com/concilium/ledgercore/internal/metrics"
	"github.com/concilium/ledgercore/internal/vm"
)

var ErrClaimFailed = errors.New("Claim failed!")

// Environment carries the deploying transaction's hash, the contract's
// address and the witness group responsible for the deploying
// transaction's inclusion. The Application uses ContractTx and GroupID
// itself; none of the fields is bound as a name inside the sandbox, so
// contract source cannot reference them.
type Environment struct {
	ContractTx   [32]byte
	ContractAddr core.Address
	GroupID      string
}

// Application is the single-writer transaction processor for one
// Patch. It holds no UTXO/contract state itself; everything it mutates
// lives in the Patch passed to each call.
type Application struct {
	sandbox *vm.Sandbox
	logger  *zap.SugaredLogger
	metrics *metrics.Collector
}

// New builds an Application. logger and metrics may be nil, in which
// case a no-op logger and an unregistered metrics collector are used.
func New(sandbox *vm.Sandbox, logger *zap.SugaredLogger, m *metrics.Collector) *Application {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if m == nil {
		m = metrics.NewCollector()
	}
	return &Application{sandbox: sandbox, logger: logger, metrics: m}
}

// ProcessTxInputs validates and spends every input of tx against
// utxoSnapshot, working through blockPatch if one is supplied or a
// fresh patch over utxoSnapshot otherwise.
func (a *Application) ProcessTxInputs(tx *core.Transaction, utxoSnapshot *ledgerstate.Snapshot, blockPatch *ledgerstate.Patch) (*ledgerstate.Patch, uint64, error) {
	patch := blockPatch
	if patch == nil {
		patch = ledgerstate.NewPatch(utxoSnapshot, 0, a.logger)
	}

	var totalIn uint64
	for i, input := range tx.Inputs {
		digest := tx.HashInput(i)

		utxo, err := patch.GetUTXO(input.RefTxHash)
		if err != nil {
			return patch, totalIn, fmt.Errorf("UTXO not found for %s", hex.EncodeToString(input.RefTxHash[:]))
		}

		coins, err := utxo.CoinsAtIndex(input.OutputIndex)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrAlreadySpent):
				return patch, totalIn, fmt.Errorf("Tx %s index %d already deleted!", hex.EncodeToString(input.RefTxHash[:]), input.OutputIndex)
			case errors.Is(err, core.ErrNotFound):
				return patch, totalIn, fmt.Errorf("Output #%d of Tx %s already spent!", input.OutputIndex, hex.EncodeToString(input.RefTxHash[:]))
			default:
				return patch, totalIn, err
			}
		}

		recovered, err := crypto.RecoverPublicKey(digest, input.ClaimProof)
		if err != nil {
			return patch, totalIn, fmt.Errorf("%w", ErrClaimFailed)
		}
		claimantAddr := crypto.AddressFromPublicKey(recovered)
		if claimantAddr != coins.Receiver {
			return patch, totalIn, fmt.Errorf("%w", ErrClaimFailed)
		}

		if err := patch.SpendCoins(input.RefTxHash, input.OutputIndex); err != nil {
			return patch, totalIn, err
		}
		totalIn += coins.Amount
	}
	return patch, totalIn, nil
}

// ProcessPayments mints every declared output of tx into patch at
// (tx.hash(), index) and returns their total value.
func (a *Application) ProcessPayments(tx *core.Transaction, patch *ledgerstate.Patch) (uint64, error) {
	txHash := tx.Hash()
	var totalOut uint64
	for index, out := range tx.Outputs {
		if err := patch.CreateCoins(txHash, core.OutputIndex(index), out); err != nil {
			return totalOut, err
		}
		totalOut += out.Amount
	}
	return totalOut, nil
}

// CreateContract deploys user source, executing it once in a fresh
// sandbox to capture its initial data snapshot, and stores the result
// in patch. A failure inside the sandbox comes back as a FAILED receipt
// with a nil error; deploy-time validation failures return the error
// too.
func (a *Application) CreateContract(budget uint64, userCode string, env Environment, patch *ledgerstate.Patch) (*core.Receipt, *contract.Contract, error) {
	txHashHex := hex.EncodeToString(env.ContractTx[:])
	receipt := &core.Receipt{TxHash: env.ContractTx, GasUsed: core.MinContractFee}

	if err := contract.ValidateDeployCode(userCode); err != nil {
		receipt.Status = core.TxStatusFailed
		receipt.Error = err.Error()
		return receipt, nil, err
	}
	className, err := contract.ExtractClassName(userCode)
	if err != nil {
		receipt.Status = core.TxStatusFailed
		receipt.Error = err.Error()
		return receipt, nil, err
	}

	fullSource := contract.AssembleDeploySource(userCode)
	script := fmt.Sprintf("%s\nvar __instance = new %s();\nJSON.stringify({data: __instance.__data});\n", fullSource, className)

	gasTank := vm.NewGasTank(budget)
	result, err := a.sandbox.Run(script, "{}", gasTank, nil)
	receipt.GasUsed = max(gasTank.GasConsumed(), core.MinContractFee)
	if err != nil {
		a.metrics.RecordSandboxFailure()
		receipt.Status = core.TxStatusFailed
		receipt.Error = err.Error()
		return receipt, nil, nil
	}

	addr := crypto.AddressFromTxHash(env.ContractTx)
	dataJSON := extractDataJSON(result.ResultJSON)
	patch.SetContract(addr, fullSource, dataJSON, env.GroupID)

	receipt.Status = core.TxStatusOK
	receipt.ContractAddress = &addr
	for i, it := range result.InternalTxns {
		receipt.InternalTxns = append(receipt.InternalTxns, internalTxnHash(env.ContractTx, i, it))
	}

	a.logger.Debugw("deployed contract", "tx_hash", txHashHex, "address", addr.String())
	return receipt, &contract.Contract{Address: addr, Code: fullSource, Data: dataJSON, GroupID: env.GroupID}, nil
}

// RunContract invokes a method on an already-deployed contract,
// reconstructing it in a fresh sandbox from its stored code and data.
// A failure inside the sandbox comes back as a FAILED receipt with a nil
// error and leaves c.Data untouched; a malformed class or invocation
// returns the error too.
func (a *Application) RunContract(budget uint64, invocation string, c *contract.Contract, env Environment, patch *ledgerstate.Patch) (*core.Receipt, error) {
	receipt := &core.Receipt{TxHash: env.ContractTx}

	className, err := contract.ExtractClassName(c.Code)
	if err != nil {
		receipt.Status = core.TxStatusFailed
		receipt.GasUsed = core.MinContractFee
		receipt.Error = err.Error()
		return receipt, err
	}

	methodName, args := parseInvocation(invocation)
	script, err := contract.SynthesizeInvocation(c.Code, className, c.Data, methodName, args)
	if err != nil {
		receipt.Status = core.TxStatusFailed
		receipt.GasUsed = core.MinContractFee
		receipt.Error = err.Error()
		return receipt, err
	}

	gasTank := vm.NewGasTank(budget)
	result, err := a.sandbox.Run(script, c.Data, gasTank, nil)
	receipt.GasUsed = max(gasTank.GasConsumed(), core.MinContractFee)
	if err != nil {
		a.metrics.RecordSandboxFailure()
		receipt.Status = core.TxStatusFailed
		receipt.Error = err.Error()
		return receipt, nil
	}

	c.Data = extractDataJSON(result.ResultJSON)
	if rec, ok := patch.GetContract(c.Address); ok {
		c.GroupID = rec.GroupID
		patch.SetContract(c.Address, rec.Code, c.Data, rec.GroupID)
	} else {
		patch.SetContract(c.Address, c.Code, c.Data, c.GroupID)
	}
	for i, it := range result.InternalTxns {
		receipt.InternalTxns = append(receipt.InternalTxns, internalTxnHash(env.ContractTx, i, it))
	}

	receipt.Status = core.TxStatusOK
	return receipt, nil
}
