package core

import "fmt"

// UTXO is the per-transaction set of as-yet-unspent outputs, indexed by
// output position, plus a tombstone set recording which positions have
// been spent. For any index i: either outputs[i] is present or i is in
// spent, never both.
type UTXO struct {
	TxHash  [32]byte
	outputs map[OutputIndex]Coins
	spent   map[OutputIndex]struct{}
}

// NewUTXO builds a UTXO record for txHash from the given initial set of
// live outputs. The passed-in map is copied; callers may mutate their
// own copy afterward without affecting the returned UTXO.
func NewUTXO(txHash [32]byte, outputs map[OutputIndex]Coins) *UTXO {
	u := &UTXO{
		TxHash:  txHash,
		outputs: make(map[OutputIndex]Coins, len(outputs)),
		spent:   make(map[OutputIndex]struct{}),
	}
	for idx, c := range outputs {
		u.outputs[idx] = c
	}
	return u
}

// CoinsAtIndex returns the Coins at the given output position, or an
// error distinguishing "already spent" (the output existed and was
// tombstoned) from "not found" (the index never existed).
func (u *UTXO) CoinsAtIndex(i OutputIndex) (Coins, error) {
	if c, ok := u.outputs[i]; ok {
		return c, nil
	}
	if _, wasSpent := u.spent[i]; wasSpent {
		return Coins{}, fmt.Errorf("%w", ErrAlreadySpent)
	}
	return Coins{}, fmt.Errorf("%w", ErrNotFound)
}

// SpendCoins marks position i spent. It fails with ErrAlreadyDeleted if
// the position was already tombstoned, and with ErrNotFound if the
// position never held a live output.
func (u *UTXO) SpendCoins(i OutputIndex) error {
	if _, wasSpent := u.spent[i]; wasSpent {
		return fmt.Errorf("%w", ErrAlreadyDeleted)
	}
	if _, ok := u.outputs[i]; !ok {
		return fmt.Errorf("%w", ErrNotFound)
	}
	delete(u.outputs, i)
	u.spent[i] = struct{}{}
	return nil
}

// IsEmpty reports whether no live outputs remain.
func (u *UTXO) IsEmpty() bool {
	return len(u.outputs) == 0
}

// IsSpent reports whether position i has been tombstoned in this record.
func (u *UTXO) IsSpent(i OutputIndex) bool {
	_, ok := u.spent[i]
	return ok
}

// Clone performs a deep copy, used for copy-on-write into a Patch
// overlay.
func (u *UTXO) Clone() *UTXO {
	clone := &UTXO{
		TxHash:  u.TxHash,
		outputs: make(map[OutputIndex]Coins, len(u.outputs)),
		spent:   make(map[OutputIndex]struct{}, len(u.spent)),
	}
	for idx, c := range u.outputs {
		clone.outputs[idx] = c
	}
	for idx := range u.spent {
		clone.spent[idx] = struct{}{}
	}
	return clone
}

// MarkSpentDirect tombstones position i unconditionally, used by
// Patch.Merge to reconstruct a merged spent-set without re-deriving it
// through the normal spend-then-check path.
func (u *UTXO) MarkSpentDirect(i OutputIndex) {
	delete(u.outputs, i)
	u.spent[i] = struct{}{}
}

// SpentIndices returns a snapshot of all tombstoned positions, used by
// Patch.Merge to union spent-sets across overlapping UTXO records.
func (u *UTXO) SpentIndices() map[OutputIndex]struct{} {
	out := make(map[OutputIndex]struct{}, len(u.spent))
	for idx := range u.spent {
		out[idx] = struct{}{}
	}
	return out
}

// LiveOutputs returns a snapshot of all remaining live outputs, used by
// Patch.Merge to intersect live outputs across overlapping UTXO records.
func (u *UTXO) LiveOutputs() map[OutputIndex]Coins {
	out := make(map[OutputIndex]Coins, len(u.outputs))
	for idx, c := range u.outputs {
		out[idx] = c
	}
	return out
}

// AddOutput inserts a newly minted output at position i, used by
// Application.process_payments to build up a transaction's UTXO
// record one declared output at a time. It fails if the position is
// already live or already tombstoned.
func (u *UTXO) AddOutput(i OutputIndex, c Coins) error {
	if _, ok := u.outputs[i]; ok {
		return fmt.Errorf("output %d already exists", i)
	}
	if _, ok := u.spent[i]; ok {
		return fmt.Errorf("output %d already exists", i)
	}
	u.outputs[i] = c
	return nil
}
