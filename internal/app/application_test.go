package app

import (
	"strings"
	"testing"

	"github.com/concilium/ledgercore/internal/core"
	"github.com/concilium/ledgercore/internal/crypto"
	"github.com/concilium/ledgercore/internal/ledgerstate"
	"github.com/concilium/ledgercore/internal/vm"
)

func newTestApplication(t *testing.T) *Application {
	t.Helper()
	return New(vm.NewSandbox(nil, nil), nil, nil)
}

func seedSnapshot(t *testing.T, txHash [32]byte, receiver core.Address, indices []core.OutputIndex, amount uint64) *ledgerstate.Snapshot {
	t.Helper()
	outputs := make(map[core.OutputIndex]core.Coins, len(indices))
	for _, idx := range indices {
		outputs[idx] = core.Coins{Amount: amount, Receiver: receiver}
	}
	snap := ledgerstate.NewSnapshot()
	snap.UTXOs[txHash] = core.NewUTXO(txHash, outputs)
	return snap
}

func signInput(t *testing.T, priv [crypto.PrivateKeyLength]byte, tx *core.Transaction, index int) []byte {
	t.Helper()
	sig, err := crypto.Sign(priv, tx.HashInput(index))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return sig
}

func TestHappyPath(t *testing.T) {
	a := newTestApplication(t)
	pair, err := crypto.CreateKeyPair()
	if err != nil {
		t.Fatalf("CreateKeyPair: %v", err)
	}
	addrA := crypto.AddressFromPublicKey(pair.PublicKey)

	var h [32]byte
	h[0] = 0xAA
	snap := seedSnapshot(t, h, addrA, []core.OutputIndex{0, 12, 80}, 100000)

	tx := &core.Transaction{
		Inputs: []core.TxInput{
			{RefTxHash: h, OutputIndex: 12},
			{RefTxHash: h, OutputIndex: 0},
			{RefTxHash: h, OutputIndex: 80},
		},
		Outputs: []core.TxOutput{{Amount: 1000, Receiver: addrA}},
	}
	for i := range tx.Inputs {
		tx.Inputs[i].ClaimProof = signInput(t, pair.PrivateKey, tx, i)
	}

	patch, totalIn, err := a.ProcessTxInputs(tx, snap, nil)
	if err != nil {
		t.Fatalf("ProcessTxInputs: %v", err)
	}
	if totalIn != 300000 {
		t.Fatalf("expected total_in 300000, got %d", totalIn)
	}

	totalOut, err := a.ProcessPayments(tx, patch)
	if err != nil {
		t.Fatalf("ProcessPayments: %v", err)
	}
	if totalOut != 1000 {
		t.Fatalf("expected total_out 1000, got %d", totalOut)
	}

	u, err := patch.GetUTXO(tx.Hash())
	if err != nil {
		t.Fatalf("GetUTXO for new tx: %v", err)
	}
	if u.IsEmpty() {
		t.Fatalf("expected new UTXO record to have a live output")
	}

	srcU, err := patch.GetUTXO(h)
	if err != nil {
		t.Fatalf("GetUTXO for source tx: %v", err)
	}
	if !srcU.IsSpent(0) || !srcU.IsSpent(12) || !srcU.IsSpent(80) {
		t.Fatalf("expected all three source indices spent")
	}
}

func TestUnknownOutputIndex(t *testing.T) {
	a := newTestApplication(t)
	pair, _ := crypto.CreateKeyPair()
	addrA := crypto.AddressFromPublicKey(pair.PublicKey)

	var h [32]byte
	h[0] = 0xBB
	snap := seedSnapshot(t, h, addrA, []core.OutputIndex{0, 12, 80}, 100000)

	tx := &core.Transaction{Inputs: []core.TxInput{{RefTxHash: h, OutputIndex: 17}}}
	tx.Inputs[0].ClaimProof = signInput(t, pair.PrivateKey, tx, 0)

	_, _, err := a.ProcessTxInputs(tx, snap, nil)
	if err == nil || !strings.Contains(err.Error(), "already spent!") {
		t.Fatalf("expected 'already spent!' failure for unknown index, got %v", err)
	}
}

func TestBadClaim(t *testing.T) {
	a := newTestApplication(t)
	pairA, _ := crypto.CreateKeyPair()
	pairB, _ := crypto.CreateKeyPair()
	addrA := crypto.AddressFromPublicKey(pairA.PublicKey)

	var h [32]byte
	h[0] = 0xCC
	snap := seedSnapshot(t, h, addrA, []core.OutputIndex{12}, 100000)

	tx := &core.Transaction{Inputs: []core.TxInput{{RefTxHash: h, OutputIndex: 12}}}
	tx.Inputs[0].ClaimProof = signInput(t, pairB.PrivateKey, tx, 0)

	_, _, err := a.ProcessTxInputs(tx, snap, nil)
	if err == nil || err.Error() != "Claim failed!" {
		t.Fatalf("expected 'Claim failed!', got %v", err)
	}
}

func TestCoinbaseIssue(t *testing.T) {
	a := newTestApplication(t)
	pair, _ := crypto.CreateKeyPair()
	addrA := crypto.AddressFromPublicKey(pair.PublicKey)

	tx := &core.Transaction{Outputs: []core.TxOutput{{Amount: 100000, Receiver: addrA}}}
	patch := ledgerstate.NewPatch(ledgerstate.NewSnapshot(), 0, nil)

	if _, _, err := a.ProcessTxInputs(tx, ledgerstate.NewSnapshot(), patch); err != nil {
		t.Fatalf("ProcessTxInputs on coinbase: %v", err)
	}
	if _, err := a.ProcessPayments(tx, patch); err != nil {
		t.Fatalf("ProcessPayments: %v", err)
	}

	u, err := patch.GetUTXO(tx.Hash())
	if err != nil {
		t.Fatalf("GetUTXO: %v", err)
	}
	if u.IsEmpty() {
		t.Fatalf("expected coinbase output to be live")
	}
}

func TestIntraTxDoubleInput(t *testing.T) {
	a := newTestApplication(t)
	pair, _ := crypto.CreateKeyPair()
	addrA := crypto.AddressFromPublicKey(pair.PublicKey)

	var h [32]byte
	h[0] = 0xDD
	snap := seedSnapshot(t, h, addrA, []core.OutputIndex{12}, 100000)

	tx := &core.Transaction{Inputs: []core.TxInput{
		{RefTxHash: h, OutputIndex: 12},
		{RefTxHash: h, OutputIndex: 12},
	}}
	for i := range tx.Inputs {
		tx.Inputs[i].ClaimProof = signInput(t, pair.PrivateKey, tx, i)
	}

	_, _, err := a.ProcessTxInputs(tx, snap, nil)
	if err == nil || !strings.Contains(err.Error(), "already deleted!") {
		t.Fatalf("expected 'already deleted!' failure on the repeated input, got %v", err)
	}
}

func TestSequentialSpendAttemptViaMerge(t *testing.T) {
	a := newTestApplication(t)
	pair, _ := crypto.CreateKeyPair()
	addrA := crypto.AddressFromPublicKey(pair.PublicKey)

	var h [32]byte
	h[0] = 0xEE
	snap := seedSnapshot(t, h, addrA, []core.OutputIndex{12}, 100000)

	tx1 := &core.Transaction{Inputs: []core.TxInput{{RefTxHash: h, OutputIndex: 12}}}
	tx1.Inputs[0].ClaimProof = signInput(t, pair.PrivateKey, tx1, 0)
	p1, _, err := a.ProcessTxInputs(tx1, snap, nil)
	if err != nil {
		t.Fatalf("tx1 ProcessTxInputs: %v", err)
	}

	tx2 := &core.Transaction{Inputs: []core.TxInput{{RefTxHash: h, OutputIndex: 12}}}
	tx2.Inputs[0].ClaimProof = signInput(t, pair.PrivateKey, tx2, 0)
	p2 := ledgerstate.NewPatch(snap, 0, nil)

	if err := p1.Merge(p2); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	// The position was tombstoned by an earlier, already-merged patch
	// rather than by this same process_tx_inputs call, but this
	// implementation applies one uniform rule: any position tombstoned
	// in the patch at read time fails with "already deleted!" (see
	// the Open Question resolution in DESIGN.md).
	if _, _, err := a.ProcessTxInputs(tx2, snap, p1); err == nil || !strings.Contains(err.Error(), "already deleted!") {
		t.Fatalf("expected 'already deleted!' failure reprocessing tx2 against the merged patch, got %v", err)
	}
}

func TestContractDeployAndRun(t *testing.T) {
	a := newTestApplication(t)
	patch := ledgerstate.NewPatch(ledgerstate.NewSnapshot(), 0, nil)

	var txHash [32]byte
	txHash[0] = 0x01
	env := Environment{ContractTx: txHash}

	userCode := `
class Counter extends LedgerContract {
  _default() {
    this.set("value", (this.get("value") || 0) + 17);
  }
  add(a) {
    this.set("value", (this.get("value") || 0) + a);
  }
}
`
	receipt, c, err := a.CreateContract(1_000_000, userCode, env, patch)
	if err != nil {
		t.Fatalf("CreateContract: %v", err)
	}
	if receipt.Status != core.TxStatusOK {
		t.Fatalf("expected deploy receipt OK, got %v: %s", receipt.Status, receipt.Error)
	}
	if receipt.ContractAddress == nil {
		t.Fatalf("expected a contract address on successful deploy")
	}

	receipt2, err := a.RunContract(1_000_000, "add(10)", c, env, patch)
	if err != nil {
		t.Fatalf("RunContract add(10): %v", err)
	}
	if receipt2.Status != core.TxStatusOK {
		t.Fatalf("expected run receipt OK, got %v", receipt2.Status)
	}
	if !strings.Contains(c.Data, "10") {
		t.Fatalf("expected updated data to reflect add(10), got %s", c.Data)
	}

	receipt3, err := a.RunContract(1_000_000, "subtract(10)", c, env, patch)
	if err != nil {
		t.Fatalf("expected a sandbox failure to come back as a FAILED receipt, not an error: %v", err)
	}
	if receipt3.Status != core.TxStatusFailed {
		t.Fatalf("expected FAILED receipt for undeclared method")
	}
}

func TestContractDeployRejectsForbiddenSeparator(t *testing.T) {
	a := newTestApplication(t)
	patch := ledgerstate.NewPatch(ledgerstate.NewSnapshot(), 0, nil)

	var txHash [32]byte
	txHash[0] = 0x02
	env := Environment{ContractTx: txHash}

	userCode := "class Foo extends LedgerContract {}" + core.ContractMethodSeparator
	_, _, err := a.CreateContract(1_000_000, userCode, env, patch)
	if err == nil {
		t.Fatalf("expected deploy to reject code containing the method boundary marker")
	}
}
