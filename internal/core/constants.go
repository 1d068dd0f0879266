// Package core defines the ledger's value objects: coins, UTXOs, inputs,
// outputs, transactions and receipts. It has no knowledge of patches,
// contracts or the sandbox — those live in sibling packages that import
// core.
package core

import "time"

// TxStatus is the outcome of processing one transaction's contract step.
type TxStatus string

const (
	// TxStatusOK marks a transaction (or contract execution) that completed
	// without error.
	TxStatusOK TxStatus = "OK"
	// TxStatusFailed marks a transaction (or contract execution) that was
	// rejected or whose sandboxed code raised, timed out, or exceeded its
	// resource caps.
	TxStatusFailed TxStatus = "FAILED"
)

const (
	// MinContractFee is the minimum coins_used charged whenever the
	// sandbox is entered, win or lose.
	MinContractFee uint64 = 1000

	// TimeoutCode bounds sandboxed contract execution wall-clock time.
	TimeoutCode = 2 * time.Second

	// ContractMethodSeparator is a boundary marker forbidden inside user
	// source at deploy time, so that its appearance inside a contract's
	// stored code can never be mistaken for a structural separator
	// introduced by this ledger rather than the deployer. Kept even
	// though code is persisted as one opaque source string rather than
	// per-method snippets joined by this marker (see DESIGN.md).
	ContractMethodSeparator = "\n//---concilium-method-boundary---\n"

	// AddressPrefix tags the human-readable string form of an Address.
	AddressPrefix = "ccw1"
)
