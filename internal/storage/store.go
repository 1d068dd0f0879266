// Package storage implements the Storage facade process_tx_inputs and
// process_payments are staged against: GetUTXOsSnapshot and ApplyPatch,
// backed by a single boltdb/bolt file. Grounded on moronibr-BYC's
// internal/storage/db.go bucket-per-concern layout, generalized from its
// block/chainstate/mempool buckets down to the two this core actually
// needs. Disk layout correctness is out of scope; this exists so the
// core can be driven end-to-end from the CLI instead of a hand-rolled
// in-memory fake.
package storage

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/boltdb/bolt"

	"github.com/concilium/ledgercore/internal/core"
	"github.com/concilium/ledgercore/internal/ledgerstate"
)

var (
	bucketUTXOs     = []byte("utxos")
	bucketContracts = []byte("contracts")
)

// utxoRecord is the on-disk shape of a core.UTXO: its outputs map plus
// the tombstoned indices, since core.UTXO itself keeps both unexported.
type utxoRecord struct {
	Outputs map[core.OutputIndex]core.Coins `json:"outputs"`
	Spent   []core.OutputIndex              `json:"spent"`
}

// Store is a bolt-backed Storage facade.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bolt file at path and ensures
// its buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketUTXOs); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketContracts)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init storage buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetUTXOsSnapshot loads the UTXO records named by txHashes, plus every
// persisted contract, into a fresh Snapshot a Patch can overlay. A
// tx_hash with no stored record is simply absent from the result, which
// Patch.GetUTXO then reports as core.ErrNotFound.
func (s *Store) GetUTXOsSnapshot(ctx context.Context, txHashes [][32]byte) (*ledgerstate.Snapshot, error) {
	snap := ledgerstate.NewSnapshot()
	err := s.db.View(func(tx *bolt.Tx) error {
		ub := tx.Bucket(bucketUTXOs)
		for _, h := range txHashes {
			data := ub.Get(h[:])
			if data == nil {
				continue
			}
			var rec utxoRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("decode utxo %s: %w", hex.EncodeToString(h[:]), err)
			}
			u := core.NewUTXO(h, rec.Outputs)
			for _, idx := range rec.Spent {
				u.MarkSpentDirect(idx)
			}
			snap.UTXOs[h] = u
		}

		cb := tx.Bucket(bucketContracts)
		return cb.ForEach(func(k, v []byte) error {
			addr, err := core.AddressFromBytes(k)
			if err != nil {
				return fmt.Errorf("decode contract key: %w", err)
			}
			var rec ledgerstate.ContractRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode contract %s: %w", addr.String(), err)
			}
			snap.Contracts[addr] = rec
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ApplyPatch persists every UTXO record and contract the patch's overlay
// touched. Untouched records already on disk are left alone; receipts
// are not persisted since nothing in this core re-reads them across a
// process restart.
func (s *Store) ApplyPatch(ctx context.Context, patch *ledgerstate.Patch) error {
	utxos, contracts := patch.Dirty()
	return s.db.Update(func(tx *bolt.Tx) error {
		ub := tx.Bucket(bucketUTXOs)
		for h, u := range utxos {
			rec := utxoRecord{Outputs: u.LiveOutputs(), Spent: spentSlice(u)}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode utxo %s: %w", hex.EncodeToString(h[:]), err)
			}
			if err := ub.Put(h[:], data); err != nil {
				return err
			}
		}

		cb := tx.Bucket(bucketContracts)
		for addr, rec := range contracts {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode contract %s: %w", addr.String(), err)
			}
			if err := cb.Put(addr.Bytes(), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func spentSlice(u *core.UTXO) []core.OutputIndex {
	indices := u.SpentIndices()
	out := make([]core.OutputIndex, 0, len(indices))
	for idx := range indices {
		out = append(out, idx)
	}
	return out
}
