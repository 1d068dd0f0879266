package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/concilium/ledgercore/internal/core"
	"github.com/concilium/ledgercore/internal/ledgerstate"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestApplyPatchThenGetUTXOsSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var h [32]byte
	h[0] = 0x42
	addr := core.Address{1, 2, 3}

	patch := ledgerstate.NewPatch(ledgerstate.NewSnapshot(), 0, nil)
	if err := patch.CreateCoins(h, 0, core.Coins{Amount: 500, Receiver: addr}); err != nil {
		t.Fatalf("CreateCoins: %v", err)
	}
	patch.SetContract(addr, "class Foo extends LedgerContract {}", "{}", "group-a")

	if err := s.ApplyPatch(ctx, patch); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}

	snap, err := s.GetUTXOsSnapshot(ctx, [][32]byte{h})
	if err != nil {
		t.Fatalf("GetUTXOsSnapshot: %v", err)
	}

	u, ok := snap.UTXOs[h]
	if !ok {
		t.Fatalf("expected utxo record for %x to round-trip", h)
	}
	coins, err := u.CoinsAtIndex(0)
	if err != nil {
		t.Fatalf("CoinsAtIndex: %v", err)
	}
	if coins.Amount != 500 || coins.Receiver != addr {
		t.Fatalf("unexpected coins after round-trip: %+v", coins)
	}

	rec, ok := snap.Contracts[addr]
	if !ok {
		t.Fatalf("expected contract record for %s to round-trip", addr.String())
	}
	if rec.Code != "class Foo extends LedgerContract {}" {
		t.Fatalf("unexpected contract code after round-trip: %q", rec.Code)
	}
}

func TestGetUTXOsSnapshotSkipsUnknownHashes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var unknown [32]byte
	unknown[0] = 0x99

	snap, err := s.GetUTXOsSnapshot(ctx, [][32]byte{unknown})
	if err != nil {
		t.Fatalf("GetUTXOsSnapshot: %v", err)
	}
	if _, ok := snap.UTXOs[unknown]; ok {
		t.Fatalf("expected no record for an unknown tx hash")
	}
}

func TestApplyPatchSpendThenReopenReflectsTombstone(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var h [32]byte
	h[0] = 0x07
	addr := core.Address{9, 9, 9}

	patch := ledgerstate.NewPatch(ledgerstate.NewSnapshot(), 0, nil)
	if err := patch.CreateCoins(h, 0, core.Coins{Amount: 10, Receiver: addr}); err != nil {
		t.Fatalf("CreateCoins: %v", err)
	}
	if err := s.ApplyPatch(ctx, patch); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}

	snap, err := s.GetUTXOsSnapshot(ctx, [][32]byte{h})
	if err != nil {
		t.Fatalf("GetUTXOsSnapshot: %v", err)
	}
	spend := ledgerstate.NewPatch(snap, 0, nil)
	if err := spend.SpendCoins(h, 0); err != nil {
		t.Fatalf("SpendCoins: %v", err)
	}
	if err := s.ApplyPatch(ctx, spend); err != nil {
		t.Fatalf("ApplyPatch spend: %v", err)
	}

	reloaded, err := s.GetUTXOsSnapshot(ctx, [][32]byte{h})
	if err != nil {
		t.Fatalf("GetUTXOsSnapshot reloaded: %v", err)
	}
	u, ok := reloaded.UTXOs[h]
	if !ok {
		t.Fatalf("expected record to still exist after being fully spent")
	}
	if !u.IsSpent(0) {
		t.Fatalf("expected index 0 to be tombstoned after reload")
	}
	if _, err := u.CoinsAtIndex(0); err == nil {
		t.Fatalf("expected CoinsAtIndex on spent position to fail")
	}
}
