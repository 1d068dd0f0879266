// Package ledgerstate implements the copy-on-write Patch overlay the
// Application mutates while processing a transaction, and the merge
// logic that reconciles two sibling patches drawn from the same parent
// snapshot. An immutable parent snapshot plus a mutable overlay lets
// speculative execution (by separate witness groups, out of scope here)
// run concurrently without serializing on a shared lock.
package ledgerstate

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/concilium/ledgercore/internal/core"
)

var (
	// ErrContractConflict is returned by Merge when two sibling patches
	// both produced a receipt for the same transaction hash, or both
	// wrote a contract's state at the same level — the state-layer
	// analogue of a double spend.
	ErrContractConflict = errors.New("conflicting contract state")
)

// ContractRecord is the storage blob for one deployed contract: its
// frozen source, captured data snapshot, and the witness group that
// deployed it.
type ContractRecord struct {
	Code    string
	Data    string
	GroupID string
}

// Snapshot is the read-only parent a Patch overlays. Storage (see
// internal/storage) produces one of these from the persisted ledger
// state; Patch never mutates it.
type Snapshot struct {
	UTXOs     map[[32]byte]*core.UTXO
	Contracts map[core.Address]ContractRecord
}

// NewSnapshot builds an empty snapshot, used by the CLI harness and
// tests to seed a fresh ledger.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		UTXOs:     make(map[[32]byte]*core.UTXO),
		Contracts: make(map[core.Address]ContractRecord),
	}
}

// Patch is a copy-on-write overlay over a Snapshot. Reads fall through
// to the parent when the overlay has no entry; the first write to any
// key clones the parent's entry into the overlay before mutating it, so
// the parent snapshot is never touched.
type Patch struct {
	id     uuid.UUID // tracing/log-correlation only, never compared or merged
	parent *Snapshot
	log    *zap.SugaredLogger
	level  uint64 // block height this patch was built at; breaks Merge ties on contract state

	utxos     map[[32]byte]*core.UTXO
	contracts map[core.Address]ContractRecord
	receipts  map[[32]byte]*core.Receipt
}

// NewPatch opens a fresh overlay on top of parent at the given block
// height. Two patches merged together must share the same parent;
// level only matters when both sides wrote the same contract address.
func NewPatch(parent *Snapshot, level uint64, log *zap.SugaredLogger) *Patch {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Patch{
		id:        uuid.New(),
		parent:    parent,
		log:       log,
		level:     level,
		utxos:     make(map[[32]byte]*core.UTXO),
		contracts: make(map[core.Address]ContractRecord),
		receipts:  make(map[[32]byte]*core.Receipt),
	}
}

// ID returns the patch's tracing identifier, for log correlation only.
func (p *Patch) ID() uuid.UUID {
	return p.id
}

// Level returns the block height this patch was built at.
func (p *Patch) Level() uint64 {
	return p.level
}

// GetUTXO returns the UTXO record for txHash, cloning it from the
// parent snapshot into the overlay on first access so that subsequent
// mutations through the returned pointer are copy-on-write safe.
func (p *Patch) GetUTXO(txHash [32]byte) (*core.UTXO, error) {
	if u, ok := p.utxos[txHash]; ok {
		return u, nil
	}
	if u, ok := p.parent.UTXOs[txHash]; ok {
		clone := u.Clone()
		p.utxos[txHash] = clone
		return clone, nil
	}
	return nil, fmt.Errorf("%w: utxo record for %s", core.ErrNotFound, hex.EncodeToString(txHash[:]))
}

// CreateUTXO installs a brand-new UTXO record, used when a transaction's
// outputs are minted. It is an error to create a record for a tx_hash
// that already exists in the overlay or the parent.
func (p *Patch) CreateUTXO(u *core.UTXO) error {
	if _, ok := p.utxos[u.TxHash]; ok {
		return fmt.Errorf("utxo record for %s already exists", hex.EncodeToString(u.TxHash[:]))
	}
	if _, ok := p.parent.UTXOs[u.TxHash]; ok {
		return fmt.Errorf("utxo record for %s already exists", hex.EncodeToString(u.TxHash[:]))
	}
	p.utxos[u.TxHash] = u
	p.log.Debugw("created utxo record", "patch", p.id, "tx_hash", hex.EncodeToString(u.TxHash[:]))
	return nil
}

// CreateCoins inserts a newly minted output at (txHash, index), creating
// the UTXO record in the overlay on first use for that tx_hash. Used by
// Application.process_payments, which calls this once per declared
// output in order.
func (p *Patch) CreateCoins(txHash [32]byte, index core.OutputIndex, c core.Coins) error {
	u, err := p.GetUTXO(txHash)
	if err != nil {
		u = core.NewUTXO(txHash, nil)
		p.utxos[txHash] = u
	}
	return u.AddOutput(index, c)
}

// SpendCoins spends one output of an existing UTXO record, fetching it
// copy-on-write first. The record stays in the overlay even once every
// output is spent, so its tombstones remain visible to later callers
// distinguishing "already deleted" from "not found".
func (p *Patch) SpendCoins(txHash [32]byte, index core.OutputIndex) error {
	u, err := p.GetUTXO(txHash)
	if err != nil {
		return err
	}
	return u.SpendCoins(index)
}

// GetContract returns the current record for a contract address,
// falling through to the parent snapshot.
func (p *Patch) GetContract(addr core.Address) (ContractRecord, bool) {
	if rec, ok := p.contracts[addr]; ok {
		return rec, true
	}
	rec, ok := p.parent.Contracts[addr]
	return rec, ok
}

// SetContract installs or updates a contract's record in the overlay.
func (p *Patch) SetContract(addr core.Address, code, data, groupID string) ContractRecord {
	rec := ContractRecord{Code: code, Data: data, GroupID: groupID}
	p.contracts[addr] = rec
	p.log.Debugw("set contract record", "patch", p.id, "address", addr.String(), "level", p.level)
	return rec
}

// AddReceipt records the outcome of processing a transaction. It is an
// error to add two receipts for the same tx_hash within one patch.
func (p *Patch) AddReceipt(r *core.Receipt) error {
	if _, ok := p.receipts[r.TxHash]; ok {
		return fmt.Errorf("%w: receipt for %s already recorded", ErrContractConflict, hex.EncodeToString(r.TxHash[:]))
	}
	p.receipts[r.TxHash] = r
	return nil
}

// Receipt returns the receipt recorded for txHash, if any.
func (p *Patch) Receipt(txHash [32]byte) (*core.Receipt, bool) {
	r, ok := p.receipts[txHash]
	return r, ok
}

// Dirty returns the overlay's own UTXO and contract records, excluding
// anything untouched and still only present in the parent snapshot. The
// storage adapter uses this to persist exactly what a Patch changed.
func (p *Patch) Dirty() (map[[32]byte]*core.UTXO, map[core.Address]ContractRecord) {
	return p.utxos, p.contracts
}

// Merge folds other into p, the two having been derived from the same
// parent snapshot by independent, non-overlapping transaction batches.
// UTXO spent-sets union (a coin spent in either branch stays spent);
// live outputs intersect (a coin must survive in both branches to
// remain spendable after the merge) — together this is the
// double-spend check: if both branches spent the same output, the
// union already reflects it as spent and neither branch's contradictory
// live copy survives. Contract state conflicts only when both sides
// wrote the same address themselves (an entry in each patch's own
// overlay, not merely inherited from the parent): the patch built at
// the higher level wins, equal levels writing different content is a
// conflict. Receipts colliding on tx_hash is also a conflict.
func (p *Patch) Merge(other *Patch) error {
	for txHash, ou := range other.utxos {
		cur, err := p.GetUTXO(txHash)
		if err != nil {
			p.utxos[txHash] = ou.Clone()
			continue
		}
		p.utxos[txHash] = mergeUTXO(cur, ou)
	}

	for addr, orec := range other.contracts {
		prec, pWrote := p.contracts[addr]
		switch {
		case !pWrote:
			p.contracts[addr] = orec
		case p.level < other.level:
			p.contracts[addr] = orec
		case p.level > other.level:
			// keep p's record
		case prec.Code == orec.Code && prec.Data == orec.Data && prec.GroupID == orec.GroupID:
			// identical write from both sides, nothing to do
		default:
			return fmt.Errorf("%w: contract %s", ErrContractConflict, addr.String())
		}
	}

	for txHash, rec := range other.receipts {
		if _, ok := p.receipts[txHash]; ok {
			return fmt.Errorf("%w: receipt for %s", ErrContractConflict, hex.EncodeToString(txHash[:]))
		}
		p.receipts[txHash] = rec
	}
	return nil
}

// mergeUTXO folds two UTXO records descended from the same ancestor:
// the spent-set is the union (a coin spent on either branch is spent
// after the merge) and only indices spent on neither branch remain
// live, carrying the common ancestor's Coins value.
func mergeUTXO(a, b *core.UTXO) *core.UTXO {
	aLive, bLive := a.LiveOutputs(), b.LiveOutputs()
	live := make(map[core.OutputIndex]core.Coins)
	for idx, c := range aLive {
		if _, stillLiveInB := bLive[idx]; stillLiveInB {
			live[idx] = c
		}
	}
	merged := core.NewUTXO(a.TxHash, live)
	for idx := range a.SpentIndices() {
		merged.MarkSpentDirect(idx)
	}
	for idx := range b.SpentIndices() {
		merged.MarkSpentDirect(idx)
	}
	return merged
}

// Commit folds the patch's overlay into a fresh Snapshot: the parent's
// records with the overlay's records in their place. Nothing in this
// module calls it; the CLI harness and storage adapter persist a patch
// through Dirty instead.
func (p *Patch) Commit() *Snapshot {
	out := &Snapshot{
		UTXOs:     make(map[[32]byte]*core.UTXO, len(p.parent.UTXOs)+len(p.utxos)),
		Contracts: make(map[core.Address]ContractRecord, len(p.parent.Contracts)+len(p.contracts)),
	}
	for k, v := range p.parent.UTXOs {
		if _, overlaid := p.utxos[k]; overlaid {
			continue
		}
		out.UTXOs[k] = v.Clone()
	}
	for k, v := range p.utxos {
		out.UTXOs[k] = v.Clone()
	}
	for k, v := range p.parent.Contracts {
		out.Contracts[k] = v
	}
	for k, v := range p.contracts {
		out.Contracts[k] = v
	}
	return out
}
