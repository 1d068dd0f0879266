package core

import (
	"encoding/binary"
	"sync"

	"lukechampine.com/blake3"
)

// Transaction is the unit the Application processes. A transaction with
// no inputs is a coinbase/issue transaction, only valid in the genesis
// block or as a consensus-produced emission — a rule enforced by the
// out-of-scope block-level verifier, not by this package.
//
// Hash encodes fields in a fixed binary order and hashes the result,
// memoizing on first call.
type Transaction struct {
	Inputs   []TxInput
	Outputs  []TxOutput
	TxCode   string // contract source, set only for a deployment transaction
	TxInvoke string // "methodName(args...)" or empty, set only for a contract call

	// WitnessGroupID tags which concilium is responsible for this
	// transaction's inclusion. It is part of the hash, and the CLI
	// harness records it as the GroupID of a contract this transaction
	// deploys; receipts do not carry it. The core does not interpret
	// concilium membership itself.
	WitnessGroupID string

	mu     sync.Mutex
	cached *[32]byte
}

// Hash returns the content-addressed, 32-byte hash of the transaction's
// signable fields (everything except claim proofs, which are produced
// over this hash, not included in it). The result is memoized.
func (tx *Transaction) Hash() [32]byte {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.cached != nil {
		return *tx.cached
	}
	h := blake3.New(32, nil)
	var idxBuf [4]byte
	var amtBuf [8]byte
	for _, in := range tx.Inputs {
		h.Write(in.RefTxHash[:])
		binary.BigEndian.PutUint32(idxBuf[:], in.OutputIndex)
		h.Write(idxBuf[:])
	}
	for _, out := range tx.Outputs {
		binary.BigEndian.PutUint64(amtBuf[:], out.Amount)
		h.Write(amtBuf[:])
		h.Write(out.Receiver[:])
	}
	writeLenPrefixed(h, []byte(tx.TxCode))
	writeLenPrefixed(h, []byte(tx.TxInvoke))
	writeLenPrefixed(h, []byte(tx.WitnessGroupID))

	var digest [32]byte
	sum := h.Sum(nil)
	copy(digest[:], sum)
	tx.cached = &digest
	return digest
}

func writeLenPrefixed(h *blake3.Hasher, b []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	h.Write(lenBuf[:])
	h.Write(b)
}

// HashInput returns the digest the claimant for input i must have
// signed. For the current design this equals Hash() regardless of i;
// the indexed call shape is preserved as a placeholder for future
// SIGHASH-style partial-commitment modes.
func (tx *Transaction) HashInput(i int) [32]byte {
	return tx.Hash()
}

// ClaimProofs returns the signature bytes for every input, in order.
func (tx *Transaction) ClaimProofs() [][]byte {
	out := make([][]byte, len(tx.Inputs))
	for i, in := range tx.Inputs {
		out[i] = in.ClaimProof
	}
	return out
}

// OutCoins returns the transaction's declared outputs in order.
func (tx *Transaction) OutCoins() []TxOutput {
	return tx.Outputs
}

// Code returns the contract source carried by a deployment transaction,
// or the empty string for any other transaction.
func (tx *Transaction) Code() string {
	return tx.TxCode
}

// Invocation returns the "methodName(args...)" string carried by a
// contract-call transaction, or the empty string for default dispatch
// or a non-call transaction.
func (tx *Transaction) Invocation() string {
	return tx.TxInvoke
}
